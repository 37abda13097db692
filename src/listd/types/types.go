package types

import (
	"strings"
	"time"
)

// Submission statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ListMember sources
const (
	SourceAppSubmitted = "app_submitted"
	SourcePreExisting  = "pre_existing"
	SourceSynced       = "synced"
	SourceBulkAdded    = "bulk_added"
)

// Sync statuses
const (
	SyncInProgress = "in_progress"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

// BulkAddEmail marks submissions created by the bulk-add tool rather than the form.
const BulkAddEmail = "bulk-added@system"

// Requests to join the list, one per normalized handle
type Submission struct {
	ID            uint64  `gorm:"primaryKey"`
	Email         string  `gorm:"size:255;index;not null"`
	Handle        string  `gorm:"size:50;unique;index;not null"`
	Status        string  `gorm:"size:20;index;not null;default:pending"`
	TwitterUserID *string `gorm:"size:50"`
	SubmittedAt   time.Time
	ProcessedAt   *time.Time
	ProcessedBy   string `gorm:"size:100"`
	Notes         string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Local belief about who is on the remote list
type ListMember struct {
	ID            uint64 `gorm:"primaryKey"`
	TwitterUserID string `gorm:"size:50;unique;index;not null"`
	Username      string `gorm:"size:50;index;not null"`
	Name          string `gorm:"size:255"`
	Source        string `gorm:"size:20;index;not null;default:synced"`
	SubmissionID  *uint64
	AddedAt       time.Time
	SyncedAt      time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Audit record for one reconciliation run
type SyncLog struct {
	ID             uint64    `gorm:"primaryKey"`
	StartedAt      time.Time `gorm:"index;not null"`
	CompletedAt    *time.Time
	MembersFetched int    `gorm:"default:0"`
	MembersAdded   int    `gorm:"default:0"`
	MembersUpdated int    `gorm:"default:0"`
	MembersRemoved int    `gorm:"default:0"`
	Status         string `gorm:"size:20;default:in_progress"`
	ErrorMessage   string `gorm:"type:text"`
	CreatedAt      time.Time
}

// Operator-tunable settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}

// NormalizeHandle strips a leading @ and lowercases, matching the unique key rule.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// NormalizeEmail lowercases and trims.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
