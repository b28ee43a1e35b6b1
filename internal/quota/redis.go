package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"translate_broker/internal/models"
)

// RedisLedger keeps the daily count in Redis under a date-suffixed key.
// INCR is atomic, so concurrent callers never lose updates; rollover is
// implicit because a new day uses a new key and stale keys expire.
type RedisLedger struct {
	client    *redis.Client
	installID string
	now       func() time.Time
}

var _ Ledger = (*RedisLedger)(nil)

// Keep yesterday's key around briefly for inspection, then let it expire.
const redisKeyTTL = 48 * time.Hour

// NewRedisLedger creates a Redis-backed ledger for the given installation.
func NewRedisLedger(client *redis.Client, installID string) *RedisLedger {
	return &RedisLedger{client: client, installID: installID, now: time.Now}
}

func (l *RedisLedger) key() string {
	return fmt.Sprintf("usage:%s:%s", l.installID, l.now().Format(models.DateFormat))
}

func (l *RedisLedger) TodayCount(ctx context.Context) (int, error) {
	count, err := l.client.Get(ctx, l.key()).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read daily usage: %w", err)
	}
	return count, nil
}

func (l *RedisLedger) Increment(ctx context.Context) (int, error) {
	key := l.key()

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, redisKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment daily usage: %w", err)
	}

	return int(incr.Val()), nil
}
