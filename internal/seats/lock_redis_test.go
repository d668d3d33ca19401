package seats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptStore answers the redislock obtain (3 args) and release (1 arg) scripts from a map.
type scriptStore struct {
	held map[string]string
	err  error
}

func (s *scriptStore) run(keys []string, args ...interface{}) *redis.Cmd {
	if s.err != nil {
		return redis.NewCmdResult(nil, s.err)
	}
	key := keys[0]
	switch len(args) {
	case 3:
		if _, ok := s.held[key]; ok {
			return redis.NewCmdResult(nil, redis.Nil)
		}
		s.held[key] = args[0].(string)
		return redis.NewCmdResult("OK", nil)
	case 1:
		if s.held[key] == args[0].(string) {
			delete(s.held, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, errors.New("unexpected script"))
}

func (s *scriptStore) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *scriptStore) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *scriptStore) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *scriptStore) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return s.run(keys, args...)
}

func (s *scriptStore) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (s *scriptStore) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisLocker_ObtainAndRelease(t *testing.T) {
	rdb := &scriptStore{held: map[string]string{}}
	l := NewRedisLocker(rdb, time.Second)
	ctx := context.Background()

	release, ok, err := l.Lock(ctx, "seats:w1")
	if err != nil || !ok {
		t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
	}

	_, ok, err = l.Lock(ctx, "seats:w1")
	if err != nil || ok {
		t.Fatalf("second lock must report not obtained without error, got ok=%v err=%v", ok, err)
	}

	release()
	if len(rdb.held) != 0 {
		t.Fatalf("expected lock released, held=%v", rdb.held)
	}
	release2, ok, err := l.Lock(ctx, "seats:w1")
	if err != nil || !ok {
		t.Fatalf("expected lock after release, got ok=%v err=%v", ok, err)
	}
	release2()
}

func TestRedisLocker_ErrorSurfaces(t *testing.T) {
	rdb := &scriptStore{held: map[string]string{}, err: errors.New("connection refused")}
	release, ok, err := NewRedisLocker(rdb, time.Second).Lock(context.Background(), "seats:w1")
	if err == nil || ok {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
	release()
}
