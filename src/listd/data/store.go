package data

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/types"
)

// SubmitOutcome reports what happened to one submitted handle.
type SubmitOutcome struct {
	Handle  string `json:"handle"`
	Created bool   `json:"created"`
	Reason  string `json:"reason,omitempty"`
}

// CreateSubmission records a new submission for a normalized handle, enforcing the
// one-submission-per-handle rule: a pending or approved submission blocks the new
// one, a rejected submission is deleted and replaced.
func CreateSubmission(db *gorm.DB, email, handle string) (SubmitOutcome, error) {
	handle = types.NormalizeHandle(handle)
	email = types.NormalizeEmail(email)

	var existing types.Submission
	err := db.Where("handle = ?", handle).First(&existing).Error
	switch {
	case err == nil:
		switch existing.Status {
		case types.StatusPending:
			return SubmitOutcome{Handle: handle, Reason: "already submitted, pending review"}, nil
		case types.StatusApproved:
			return SubmitOutcome{Handle: handle, Reason: "already approved"}, nil
		}
		// rejected: delete and fall through to a fresh submission
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return SubmitOutcome{Handle: handle}, err
	}

	txErr := db.Transaction(func(tx *gorm.DB) error {
		if err == nil {
			if err := tx.Delete(&types.Submission{}, existing.ID).Error; err != nil {
				return fmt.Errorf("replace rejected submission: %w", err)
			}
		}
		sub := types.Submission{
			Email:       email,
			Handle:      handle,
			Status:      types.StatusPending,
			SubmittedAt: time.Now().UTC(),
		}
		return tx.Create(&sub).Error
	})
	if txErr != nil {
		return SubmitOutcome{Handle: handle}, txErr
	}
	return SubmitOutcome{Handle: handle, Created: true}, nil
}

// PendingSubmissions returns pending submissions, oldest first.
func PendingSubmissions(db *gorm.DB, page, perPage int) ([]types.Submission, int64, error) {
	var total int64
	if err := db.Model(&types.Submission{}).Where("status = ?", types.StatusPending).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var subs []types.Submission
	err := db.Where("status = ?", types.StatusPending).
		Order("submitted_at asc").
		Offset(offset(page, perPage)).Limit(perPage).
		Find(&subs).Error
	return subs, total, err
}

// SearchSubmissions filters by handle/email substring and optional status,
// newest first.
func SearchSubmissions(db *gorm.DB, query, status string, page, perPage int) ([]types.Submission, int64, error) {
	q := db.Model(&types.Submission{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("email LIKE ? OR handle LIKE ?", like, like)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var subs []types.Submission
	err := q.Order("submitted_at desc").Offset(offset(page, perPage)).Limit(perPage).Find(&subs).Error
	return subs, total, err
}

// Members returns the roster page ordered by last sync, newest first.
func Members(db *gorm.DB, page, perPage int) ([]types.ListMember, int64, error) {
	var total int64
	if err := db.Model(&types.ListMember{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var members []types.ListMember
	err := db.Order("synced_at desc").Offset(offset(page, perPage)).Limit(perPage).Find(&members).Error
	return members, total, err
}

// MemberStats counts members per provenance source.
func MemberStats(db *gorm.DB) (map[string]int64, error) {
	type row struct {
		Source string
		N      int64
	}
	var rows []row
	if err := db.Model(&types.ListMember{}).Select("source, count(*) as n").Group("source").Find(&rows).Error; err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(rows))
	var total int64
	for _, r := range rows {
		stats[r.Source] = r.N
		total += r.N
	}
	stats["total"] = total
	return stats, nil
}

// LastSync returns the most recent sync log by start time, or nil.
func LastSync(db *gorm.DB) (*types.SyncLog, error) {
	var sl types.SyncLog
	err := db.Order("started_at desc").First(&sl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sl, nil
}

// SyncHistory returns sync logs ordered by start time descending.
func SyncHistory(db *gorm.DB, page, perPage int) ([]types.SyncLog, int64, error) {
	var total int64
	if err := db.Model(&types.SyncLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []types.SyncLog
	err := db.Order("started_at desc").Offset(offset(page, perPage)).Limit(perPage).Find(&logs).Error
	return logs, total, err
}

func offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}
