package sync

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/listkeeper/src/listd/data"
)

// CooloffError is returned when a run is requested inside the cooloff window.
type CooloffError struct {
	Remaining time.Duration
}

func (e *CooloffError) Error() string {
	return fmt.Sprintf("sync cooloff active: wait %d more minute(s)", int(e.Remaining.Minutes()))
}

// CanRun checks the newest sync log's start time against the cooloff interval.
// A run exactly at the interval boundary is allowed. The remaining duration is
// zero whenever allowed is true.
func CanRun(db *gorm.DB, cooloff time.Duration, now time.Time) (bool, time.Duration, error) {
	last, err := data.LastSync(db)
	if err != nil {
		return false, 0, fmt.Errorf("load last sync: %w", err)
	}
	if last == nil {
		return true, 0, nil
	}

	elapsed := now.Sub(last.StartedAt)
	if elapsed >= cooloff {
		return true, 0, nil
	}
	return false, cooloff - elapsed, nil
}
