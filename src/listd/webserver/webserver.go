package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/components/approval"
	"github.com/example/listkeeper/src/listd/components/sync"
	"github.com/example/listkeeper/src/listd/config"
)

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client, engine *sync.Engine, wf *approval.Workflow, probe Prober) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery(), RequestID())
	g.Use(cors.Default())
	attachRoutes(g, cfg, db, rdb, engine, wf, probe)
	return g
}

func attachRoutes(g *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client, engine *sync.Engine, wf *approval.Workflow, probe Prober) {
	secret := []byte(cfg.JWTSecret)

	public := Public{DB: db}
	auth := AuthHandler{AdminToken: cfg.AdminToken, JWTSecret: secret}
	subs := Submissions{DB: db, Workflow: wf, PerPage: cfg.ItemsPerPage}
	members := MembersHandler{DB: db, Workflow: wf, PerPage: cfg.ItemsPerPage}
	syncH := SyncHandler{DB: db, Engine: engine, Rdb: rdb, Probe: probe, PerPage: cfg.ItemsPerPage}

	g.POST("/submit", public.Submit)
	g.POST("/admin/login", auth.Login)

	admin := g.Group("/admin")
	admin.Use(JWT(secret))
	{
		admin.GET("/dashboard", syncH.Dashboard)
		admin.GET("/pending", subs.Pending)
		admin.GET("/search", subs.Search)
		admin.POST("/submissions/:id/approve", subs.Approve)
		admin.POST("/submissions/:id/reject", subs.Reject)
		admin.POST("/bulk-approve", subs.BulkApprove)
		admin.GET("/members", members.List)
		admin.POST("/members/:id/remove", members.Remove)
		admin.POST("/sync", syncH.Trigger)
		admin.GET("/sync/history", syncH.History)
		admin.GET("/ratelimit", syncH.RateLimit)
	}
}
