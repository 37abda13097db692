package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/listd/types"
)

type Public struct {
	DB *gorm.DB
}

type reqSubmit struct {
	Email   string   `json:"email" binding:"required,email"`
	Handles []string `json:"handles" binding:"required,min=1"`
}

// Submit accepts one or more handles for review. Each handle is processed
// independently; the response lists the per-handle outcome.
func (p Public) Submit(c *gin.Context) {
	var req reqSubmit
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	var (
		outcomes []data.SubmitOutcome
		created  int
	)
	for _, raw := range req.Handles {
		handle := types.NormalizeHandle(raw)
		if handle == "" {
			continue
		}
		if len(handle) > 15 {
			outcomes = append(outcomes, data.SubmitOutcome{
				Handle: handle,
				Reason: "handle must be between 1 and 15 characters",
			})
			continue
		}

		outcome, err := data.CreateSubmission(p.DB, req.Email, handle)
		if err != nil {
			outcome = data.SubmitOutcome{Handle: handle, Reason: err.Error()}
		}
		if outcome.Created {
			created++
		}
		outcomes = append(outcomes, outcome)
	}

	if len(outcomes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "no valid handles found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submitted": created,
		"results":   outcomes,
	})
}
