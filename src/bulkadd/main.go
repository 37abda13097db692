package main

import (
	"context"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/config"
	"github.com/example/listkeeper/src/listd/data"
	"github.com/example/listkeeper/src/listd/types"
	"github.com/example/listkeeper/src/shared/twitter"
)

// bulkadd looks up each handle and adds it straight to the list, bypassing the
// approval queue. A marker submission is recorded so the next sync run tags the
// member bulk_added instead of pre_existing.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: bulkadd <handle> [handle ...]")
	}

	cfg := config.Load()
	db := data.MustMySQL(cfg.MySQLDSN)
	tw := twitter.NewClient(twitter.Config{
		BaseURL:     cfg.TwitterBaseURL,
		ListID:      cfg.ListID,
		BearerToken: cfg.TwitterBearer,
	})

	ctx := context.Background()
	for _, arg := range os.Args[1:] {
		handle := types.NormalizeHandle(arg)
		if handle == "" {
			continue
		}

		log.Printf("looking up @%s", handle)
		userID, _, err := tw.LookupUserID(ctx, handle)
		if err != nil {
			log.Printf("skipping @%s: %v", handle, err)
			continue
		}

		res, _, err := tw.AddMember(ctx, userID)
		if err != nil {
			log.Printf("add @%s failed: %v", handle, err)
			continue
		}
		if res.AlreadyMember {
			log.Printf("@%s is already on the list", handle)
		} else {
			log.Printf("added @%s (user id %s)", handle, userID)
		}

		if err := recordBulkSubmission(db, handle, userID); err != nil {
			log.Printf("record marker submission for @%s: %v", handle, err)
		}
	}
}

func recordBulkSubmission(db *gorm.DB, handle, userID string) error {
	outcome, err := data.CreateSubmission(db, types.BulkAddEmail, handle)
	if err != nil {
		return err
	}
	if !outcome.Created {
		log.Printf("@%s already has a submission (%s)", handle, outcome.Reason)
		return nil
	}
	now := time.Now().UTC()
	return db.Model(&types.Submission{}).Where("handle = ?", handle).
		Updates(map[string]interface{}{
			"status":          types.StatusApproved,
			"twitter_user_id": userID,
			"processed_at":    now,
			"processed_by":    "bulkadd",
		}).Error
}
