package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/listkeeper/src/listd/components/approval"
	"github.com/example/listkeeper/src/listd/components/sync"
	"github.com/example/listkeeper/src/listd/config"
	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/listd/webserver"
	"github.com/example/listkeeper/src/shared/twitter"
)

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}
	rdb := data.MustRedis(cfg.RedisURL)

	tw := twitter.NewClient(twitter.Config{
		BaseURL:     cfg.TwitterBaseURL,
		ListID:      cfg.ListID,
		BearerToken: cfg.TwitterBearer,
	})

	cooloff := time.Duration(data.CooloffMinutes(cfg.CooloffMinutes)) * time.Minute
	engine := sync.NewEngine(db, tw, rdb, cooloff)
	wf := approval.NewWorkflow(db, tw, rdb)

	router := webserver.New(cfg, db, rdb, engine, wf, tw)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("listkeeper listening on %s (list %s, cooloff %s)", cfg.Port, cfg.ListID, cooloff)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
