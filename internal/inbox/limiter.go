package inbox

import (
	"context"
	"errors"
	"time"

	"crm-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var ErrBusy = errors.New("inbox: too many concurrent loads")

// Limiter caps concurrent inbox loads per operator using a Redis counter.
// A nil *Limiter allows everything.
type Limiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewLimiter(rdb *redis.Client, limit int, ttl time.Duration) *Limiter {
	if rdb == nil || limit <= 0 {
		return nil
	}
	return &Limiter{rdb: rdb, limit: limit, ttl: ttl}
}

// Acquire takes a slot for operator. The returned release must be called
// once the load is done; the TTL frees slots leaked by a crash.
func (l *Limiter) Acquire(ctx context.Context, operator string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	key := "inbox:loads:" + operator
	ok, err := utils.AcquireSlot(ctx, l.rdb, key, l.limit, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		_ = utils.ReleaseSlot(context.WithoutCancel(ctx), l.rdb, key)
	}, nil
}
