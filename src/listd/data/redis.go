package data

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/listkeeper/src/shared/twitter"
)

const rateStatusKey = "listkeeper:ratelimit"

// rateStatusTTL keeps stale telemetry from outliving its usefulness.
const rateStatusTTL = 30 * time.Minute

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// PublishRateStatus records the latest observed quota telemetry. Advisory only;
// a nil client or a write failure never blocks the caller.
func PublishRateStatus(ctx context.Context, rdb *redis.Client, rs twitter.RateStatus) {
	if rdb == nil || rs.Observed.IsZero() {
		return
	}
	payload, err := json.Marshal(rs)
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, rateStatusKey, payload, rateStatusTTL).Err(); err != nil {
		log.Printf("redis: publish rate status: %v", err)
	}
}

// ReadRateStatus returns the last observed quota telemetry, if any.
func ReadRateStatus(ctx context.Context, rdb *redis.Client) (twitter.RateStatus, bool) {
	if rdb == nil {
		return twitter.RateStatus{}, false
	}
	payload, err := rdb.Get(ctx, rateStatusKey).Bytes()
	if err != nil {
		return twitter.RateStatus{}, false
	}
	var rs twitter.RateStatus
	if err := json.Unmarshal(payload, &rs); err != nil {
		return twitter.RateStatus{}, false
	}
	return rs, true
}
