package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/listd/types"
	"github.com/example/listkeeper/src/shared/twitter"
)

// Remote is the slice of the list API the engine needs.
type Remote interface {
	ListMembers(ctx context.Context) ([]twitter.Member, twitter.RateStatus, error)
}

// Result is the counts of one completed run.
type Result struct {
	SyncID  uint64 `json:"sync_id"`
	Fetched int    `json:"members_fetched"`
	Added   int    `json:"members_added"`
	Updated int    `json:"members_updated"`
	Removed int    `json:"members_removed"`
}

// Engine reconciles the remote list membership into the local roster.
type Engine struct {
	db      *gorm.DB
	remote  Remote
	rdb     *redis.Client
	cooloff time.Duration
}

func NewEngine(db *gorm.DB, remote Remote, rdb *redis.Client, cooloff time.Duration) *Engine {
	return &Engine{db: db, remote: remote, rdb: rdb, cooloff: cooloff}
}

// Cooloff returns the effective cooloff interval.
func (e *Engine) Cooloff() time.Duration { return e.cooloff }

// Run executes one reconciliation. The sync log row is committed in_progress
// before any remote call and finalized (completed or failed) before Run returns,
// so a crashed run still counts toward the next cooloff check.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	now := time.Now().UTC()

	allowed, remaining, err := CanRun(e.db, e.cooloff, now)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, &CooloffError{Remaining: remaining}
	}

	runLog := types.SyncLog{StartedAt: now, Status: types.SyncInProgress}
	if err := e.db.Create(&runLog).Error; err != nil {
		return Result{}, fmt.Errorf("create sync log: %w", err)
	}

	log.Printf("sync: run %d started", runLog.ID)

	members, rs, err := e.remote.ListMembers(ctx)
	data.PublishRateStatus(ctx, e.rdb, rs)
	if err != nil {
		e.fail(&runLog, err)
		return Result{}, fmt.Errorf("fetch list members: %w", err)
	}

	runLog.MembersFetched = len(members)
	if err := e.db.Model(&runLog).Update("members_fetched", len(members)).Error; err != nil {
		e.fail(&runLog, err)
		return Result{}, fmt.Errorf("record fetch count: %w", err)
	}

	p, err := e.diff(members)
	if err != nil {
		e.fail(&runLog, err)
		return Result{}, fmt.Errorf("diff members: %w", err)
	}

	if err := e.apply(p); err != nil {
		e.fail(&runLog, err)
		return Result{}, fmt.Errorf("apply membership changes: %w", err)
	}

	completed := time.Now().UTC()
	runLog.MembersAdded = len(p.added)
	runLog.MembersUpdated = len(p.updated)
	runLog.MembersRemoved = len(p.removed)
	runLog.Status = types.SyncCompleted
	runLog.CompletedAt = &completed
	if err := e.db.Save(&runLog).Error; err != nil {
		return Result{}, fmt.Errorf("finalize sync log: %w", err)
	}

	result := Result{
		SyncID:  runLog.ID,
		Fetched: runLog.MembersFetched,
		Added:   runLog.MembersAdded,
		Updated: runLog.MembersUpdated,
		Removed: runLog.MembersRemoved,
	}
	log.Printf("sync: run %d completed: fetched %d, added %d, updated %d, removed %d",
		runLog.ID, result.Fetched, result.Added, result.Updated, result.Removed)
	return result, nil
}

// plan is the classification of one run, computed entirely from snapshots taken
// before any mutation.
type plan struct {
	added     []types.ListMember
	updated   []types.ListMember
	refreshed []uint64
	removed   []uint64
	syncedAt  time.Time
}

func (e *Engine) diff(remote []twitter.Member) (plan, error) {
	var local []types.ListMember
	if err := e.db.Find(&local).Error; err != nil {
		return plan{}, fmt.Errorf("load local members: %w", err)
	}

	localByID := make(map[string]types.ListMember, len(local))
	for _, lm := range local {
		localByID[lm.TwitterUserID] = lm
	}

	p := plan{syncedAt: time.Now().UTC()}
	remoteIDs := make(map[string]struct{}, len(remote))

	for _, rm := range remote {
		remoteIDs[rm.ID] = struct{}{}

		lm, known := localByID[rm.ID]
		if !known {
			source, subID, err := e.classify(rm.ID)
			if err != nil {
				return plan{}, err
			}
			p.added = append(p.added, types.ListMember{
				TwitterUserID: rm.ID,
				Username:      rm.Username,
				Name:          rm.Name,
				Source:        source,
				SubmissionID:  subID,
				AddedAt:       p.syncedAt,
				SyncedAt:      p.syncedAt,
			})
			log.Printf("sync: new member @%s (source: %s)", rm.Username, source)
			continue
		}

		if lm.Username != rm.Username || lm.Name != rm.Name {
			lm.Username = rm.Username
			lm.Name = rm.Name
			p.updated = append(p.updated, lm)
			log.Printf("sync: member @%s changed", rm.Username)
		} else {
			p.refreshed = append(p.refreshed, lm.ID)
		}
	}

	for id, lm := range localByID {
		if _, stillThere := remoteIDs[id]; !stillThere {
			p.removed = append(p.removed, lm.ID)
			log.Printf("sync: removing @%s, no longer on remote list", lm.Username)
		}
	}

	return p, nil
}

// classify resolves the provenance of a newly discovered member: a submission with
// the bulk-import marker makes it bulk_added, any other submission app_submitted,
// and no submission at all pre_existing.
func (e *Engine) classify(userID string) (string, *uint64, error) {
	var sub types.Submission
	err := e.db.Where("twitter_user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.SourcePreExisting, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("classify member %s: %w", userID, err)
	}
	if sub.Email == types.BulkAddEmail {
		return types.SourceBulkAdded, &sub.ID, nil
	}
	return types.SourceAppSubmitted, &sub.ID, nil
}

// apply commits the whole plan in one transaction.
func (e *Engine) apply(p plan) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		for i := range p.added {
			if err := tx.Create(&p.added[i]).Error; err != nil {
				return err
			}
		}
		for _, lm := range p.updated {
			err := tx.Model(&types.ListMember{}).Where("id = ?", lm.ID).
				Updates(map[string]interface{}{
					"username":  lm.Username,
					"name":      lm.Name,
					"synced_at": p.syncedAt,
				}).Error
			if err != nil {
				return err
			}
		}
		if len(p.refreshed) > 0 {
			err := tx.Model(&types.ListMember{}).Where("id IN ?", p.refreshed).
				Update("synced_at", p.syncedAt).Error
			if err != nil {
				return err
			}
		}
		if len(p.removed) > 0 {
			if err := tx.Delete(&types.ListMember{}, p.removed).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) fail(runLog *types.SyncLog, cause error) {
	completed := time.Now().UTC()
	runLog.Status = types.SyncFailed
	runLog.ErrorMessage = cause.Error()
	runLog.CompletedAt = &completed
	if err := e.db.Save(runLog).Error; err != nil {
		log.Printf("sync: run %d failed and the failure could not be recorded: %v", runLog.ID, err)
		return
	}
	log.Printf("sync: run %d failed: %v", runLog.ID, cause)
}
