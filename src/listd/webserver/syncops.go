package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/components/sync"
	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/shared/twitter"
)

// Prober is the lightweight rate-limit probe: list metadata is the cheapest call
// that still returns quota headers.
type Prober interface {
	ListInfo(ctx context.Context) (twitter.ListInfo, twitter.RateStatus, error)
}

type SyncHandler struct {
	DB      *gorm.DB
	Engine  *sync.Engine
	Rdb     *redis.Client
	Probe   Prober
	PerPage int
}

// Trigger runs one reconciliation.
func (h SyncHandler) Trigger(c *gin.Context) {
	result, err := h.Engine.Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h SyncHandler) History(c *gin.Context) {
	logs, total, err := data.SyncHistory(h.DB, pageParam(c), h.PerPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": logs, "total": total})
}

// RateLimit reports the last observed quota telemetry. With ?probe=true it
// refreshes the telemetry by hitting the list metadata endpoint first.
func (h SyncHandler) RateLimit(c *gin.Context) {
	if c.Query("probe") == "true" && h.Probe != nil {
		_, rs, err := h.Probe.ListInfo(c.Request.Context())
		data.PublishRateStatus(c.Request.Context(), h.Rdb, rs)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	rs, ok := data.ReadRateStatus(c.Request.Context(), h.Rdb)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"known": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"known": true, "status": rs})
}

// Dashboard aggregates what the admin frontend shows on its landing view.
func (h SyncHandler) Dashboard(c *gin.Context) {
	pending, totalPending, err := data.PendingSubmissions(h.DB, 1, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	stats, err := data.MemberStats(h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	lastSync, err := data.LastSync(h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	allowed, remaining, err := sync.CanRun(h.DB, h.Engine.Cooloff(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	syncMessage := "sync allowed"
	if !allowed {
		syncMessage = (&sync.CooloffError{Remaining: remaining}).Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":       pending,
		"total_pending": totalPending,
		"member_stats":  stats,
		"last_sync":     lastSync,
		"can_sync":      allowed,
		"sync_message":  syncMessage,
	})
}
