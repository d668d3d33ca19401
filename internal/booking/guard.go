package booking

import (
	"context"
	"time"

	"workshop-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SubmitGuard rejects a second registration submit for the same (user, workshop) while
// the first is still running.
type SubmitGuard interface {
	Acquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// RedisGuard is a SubmitGuard backed by a one-slot Redis counter. The TTL bounds how long
// a crashed request can block its user.
type RedisGuard struct {
	rdb redis.Scripter
	ttl time.Duration
}

func NewRedisGuard(rdb redis.Scripter, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	ok, err := utils.AcquireSlot(ctx, g.rdb, key, 1, g.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = utils.ReleaseSlot(rctx, g.rdb, key)
	}, true, nil
}

func submitKey(workshopID, userID string) string {
	return "submit:" + workshopID + ":" + userID
}
