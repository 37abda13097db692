package approval

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/listd/types"
	"github.com/example/listkeeper/src/shared/twitter"
)

// Remote is the slice of the list API the workflow needs.
type Remote interface {
	LookupUserID(ctx context.Context, handle string) (string, twitter.RateStatus, error)
	AddMember(ctx context.Context, userID string) (twitter.AddResult, twitter.RateStatus, error)
	RemoveMember(ctx context.Context, userID string) (twitter.RemoveResult, twitter.RateStatus, error)
}

// InvalidStateError is returned when an operation needs a submission in a state
// it is not in.
type InvalidStateError struct {
	SubmissionID uint64
	Status       string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("submission %d is already %s", e.SubmissionID, e.Status)
}

// Workflow turns operator decisions into remote list calls plus local state changes.
type Workflow struct {
	db     *gorm.DB
	remote Remote
	rdb    *redis.Client
	strip  *bluemonday.Policy
}

func NewWorkflow(db *gorm.DB, remote Remote, rdb *redis.Client) *Workflow {
	return &Workflow{db: db, remote: remote, rdb: rdb, strip: bluemonday.StrictPolicy()}
}

// Approve resolves the submission's user id (reusing the cached one when present),
// adds the user to the remote list and marks the submission approved. On a rate
// limit the submission stays pending and the error carries the reset time.
func (w *Workflow) Approve(ctx context.Context, id uint64, processedBy string) (*types.Submission, error) {
	var sub types.Submission
	if err := w.db.First(&sub, id).Error; err != nil {
		return nil, fmt.Errorf("load submission %d: %w", id, err)
	}
	if sub.Status != types.StatusPending {
		return nil, &InvalidStateError{SubmissionID: sub.ID, Status: sub.Status}
	}

	userID := ""
	if sub.TwitterUserID != nil {
		userID = *sub.TwitterUserID
	}
	if userID == "" {
		resolved, rs, err := w.remote.LookupUserID(ctx, sub.Handle)
		data.PublishRateStatus(ctx, w.rdb, rs)
		if err != nil {
			return nil, fmt.Errorf("resolve @%s: %w", sub.Handle, err)
		}
		userID = resolved
		// Persist the id before the add so a retry after a failure below does
		// not spend another lookup call.
		sub.TwitterUserID = &userID
		if err := w.db.Model(&sub).Update("twitter_user_id", userID).Error; err != nil {
			return nil, fmt.Errorf("cache user id for @%s: %w", sub.Handle, err)
		}
	}

	res, rs, err := w.remote.AddMember(ctx, userID)
	data.PublishRateStatus(ctx, w.rdb, rs)
	if err != nil {
		return nil, fmt.Errorf("add @%s to list: %w", sub.Handle, err)
	}
	if res.AlreadyMember {
		log.Printf("approval: @%s was already on the list", sub.Handle)
	}

	now := time.Now().UTC()
	sub.Status = types.StatusApproved
	sub.ProcessedAt = &now
	sub.ProcessedBy = processedBy
	if err := w.db.Save(&sub).Error; err != nil {
		return nil, fmt.Errorf("mark submission %d approved: %w", id, err)
	}

	log.Printf("approval: approved @%s (user id %s)", sub.Handle, userID)
	return &sub, nil
}

// Reject marks a pending submission rejected with optional operator notes.
// No remote call is made.
func (w *Workflow) Reject(id uint64, notes, processedBy string) (*types.Submission, error) {
	var sub types.Submission
	if err := w.db.First(&sub, id).Error; err != nil {
		return nil, fmt.Errorf("load submission %d: %w", id, err)
	}
	if sub.Status != types.StatusPending {
		return nil, &InvalidStateError{SubmissionID: sub.ID, Status: sub.Status}
	}

	now := time.Now().UTC()
	sub.Status = types.StatusRejected
	sub.ProcessedAt = &now
	sub.ProcessedBy = processedBy
	if notes != "" {
		sub.Notes = w.strip.Sanitize(notes)
	}
	if err := w.db.Save(&sub).Error; err != nil {
		return nil, fmt.Errorf("mark submission %d rejected: %w", id, err)
	}

	log.Printf("approval: rejected @%s", sub.Handle)
	return &sub, nil
}

// BulkItem is the outcome for one id of a bulk approval.
type BulkItem struct {
	ID     uint64 `json:"id"`
	Handle string `json:"handle,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// BulkApprove approves each id independently; one failure never aborts the rest,
// and each submission commits under its own transaction.
func (w *Workflow) BulkApprove(ctx context.Context, ids []uint64, processedBy string) []BulkItem {
	results := make([]BulkItem, 0, len(ids))
	for _, id := range ids {
		sub, err := w.Approve(ctx, id, processedBy)
		item := BulkItem{ID: id}
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Handle = sub.Handle
			item.OK = true
		}
		results = append(results, item)
	}
	return results
}

// RemoveMember removes the user from the remote list, deletes the local roster
// row and, when a submission produced it, flips that submission to rejected with
// an explanatory note.
func (w *Workflow) RemoveMember(ctx context.Context, memberID uint64) (*types.ListMember, error) {
	var member types.ListMember
	if err := w.db.First(&member, memberID).Error; err != nil {
		return nil, fmt.Errorf("load member %d: %w", memberID, err)
	}

	res, rs, err := w.remote.RemoveMember(ctx, member.TwitterUserID)
	data.PublishRateStatus(ctx, w.rdb, rs)
	if err != nil {
		return nil, fmt.Errorf("remove @%s from list: %w", member.Username, err)
	}
	if res.AlreadyAbsent {
		log.Printf("approval: @%s was already absent from the list", member.Username)
	}

	txErr := w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&types.ListMember{}, member.ID).Error; err != nil {
			return err
		}
		if member.SubmissionID == nil {
			return nil
		}
		now := time.Now().UTC()
		return tx.Model(&types.Submission{}).Where("id = ? AND status <> ?", *member.SubmissionID, types.StatusRejected).
			Updates(map[string]interface{}{
				"status":       types.StatusRejected,
				"notes":        "Removed from list by admin",
				"processed_at": now,
			}).Error
	})
	if txErr != nil {
		return nil, fmt.Errorf("delete member %d: %w", memberID, txErr)
	}

	log.Printf("approval: removed @%s from list and roster", member.Username)
	return &member, nil
}
