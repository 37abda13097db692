package webserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/components/approval"
	"github.com/example/listkeeper/src/listd/components/sync"
	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/shared/twitter"
)

type Submissions struct {
	DB       *gorm.DB
	Workflow *approval.Workflow
	PerPage  int
}

func (h Submissions) Pending(c *gin.Context) {
	subs, total, err := data.PendingSubmissions(h.DB, pageParam(c), h.PerPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs, "total": total})
}

func (h Submissions) Search(c *gin.Context) {
	subs, total, err := data.SearchSubmissions(h.DB, c.Query("q"), c.Query("status"), pageParam(c), h.PerPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs, "total": total})
}

func (h Submissions) Approve(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad submission id"})
		return
	}
	sub, err := h.Workflow.Approve(c.Request.Context(), id, c.GetString("operator"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "approved @" + sub.Handle, "submission": sub})
}

type reqReject struct {
	Notes string `json:"notes"`
}

func (h Submissions) Reject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad submission id"})
		return
	}
	var req reqReject
	_ = c.ShouldBindJSON(&req)

	sub, err := h.Workflow.Reject(id, req.Notes, c.GetString("operator"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rejected @" + sub.Handle, "submission": sub})
}

type reqBulkApprove struct {
	SubmissionIDs []uint64 `json:"submission_ids" binding:"required,min=1"`
}

func (h Submissions) BulkApprove(c *gin.Context) {
	var req reqBulkApprove
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	results := h.Workflow.BulkApprove(c.Request.Context(), req.SubmissionIDs, c.GetString("operator"))
	approved, failed := 0, 0
	for _, r := range results {
		if r.OK {
			approved++
		} else {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"approved": approved,
		"failed":   failed,
		"results":  results,
	})
}

type MembersHandler struct {
	DB       *gorm.DB
	Workflow *approval.Workflow
	PerPage  int
}

func (h MembersHandler) List(c *gin.Context) {
	members, total, err := data.Members(h.DB, pageParam(c), h.PerPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "total": total})
}

func (h MembersHandler) Remove(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad member id"})
		return
	}
	member, err := h.Workflow.RemoveMember(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed @" + member.Username})
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// writeError maps the typed failure taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		invalid   *approval.InvalidStateError
		notFound  *twitter.NotFoundError
		rateLimit *twitter.RateLimitError
		cooloff   *sync.CooloffError
	)
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"err": invalid.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"err": notFound.Error()})
	case errors.As(err, &rateLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{"err": rateLimit.Error(), "reset_at": rateLimit.ResetAt})
	case errors.As(err, &cooloff):
		c.JSON(http.StatusTooManyRequests, gin.H{"err": cooloff.Error(), "retry_in_seconds": int(cooloff.Remaining.Seconds())})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
	}
}
