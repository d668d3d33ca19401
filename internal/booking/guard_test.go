package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// slotCounter answers the acquire (limit, ttl) and release scripts from a counter map.
type slotCounter struct {
	count map[string]int
	err   error
}

func (s *slotCounter) run(keys []string, args ...interface{}) *redis.Cmd {
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	key := keys[0]
	if len(args) == 2 {
		if s.count[key] >= args[0].(int) {
			return redis.NewCmdResult(int64(0), nil)
		}
		s.count[key]++
		return redis.NewCmdResult(int64(1), nil)
	}
	if s.count[key] > 0 {
		s.count[key]--
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (s *slotCounter) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *slotCounter) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *slotCounter) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *slotCounter) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *slotCounter) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (s *slotCounter) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisGuard_OneSubmitAtATime(t *testing.T) {
	rdb := &slotCounter{count: map[string]int{}}
	g := NewRedisGuard(rdb, time.Second)
	ctx := context.Background()
	key := submitKey("w1", "u1")

	release, ok, err := g.Acquire(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected acquire, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := g.Acquire(ctx, key); err != nil || ok {
		t.Fatalf("second submit must be refused, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := g.Acquire(ctx, submitKey("w1", "u2")); !ok {
		t.Fatalf("other users are not blocked")
	}

	release()
	if rdb.count[key] != 0 {
		t.Fatalf("expected slot released, count=%d", rdb.count[key])
	}
	if _, ok, _ := g.Acquire(ctx, key); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestRedisGuard_ErrorIsReported(t *testing.T) {
	rdb := &slotCounter{count: map[string]int{}, err: errors.New("connection refused")}
	release, ok, err := NewRedisGuard(rdb, time.Second).Acquire(context.Background(), submitKey("w1", "u1"))
	if err == nil || ok {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
	release()
}
