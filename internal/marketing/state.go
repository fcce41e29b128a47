package marketing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisdb "github.com/vendaops/console/internal/database/redis"
)

const (
	cursorKey   = "marketing:sync:cursor"
	failuresKey = "marketing:sync:failures"
)

// State keeps the sync cursor and the consecutive-failure counter in Redis
// so a restart resumes where the last cycle stopped.
type State struct {
	rdb *redisdb.Client
}

func NewState(rdb *redisdb.Client) *State {
	return &State{rdb: rdb}
}

// Cursor returns the creation instant of the newest lead already pushed.
// Zero time means no lead was ever synced.
func (s *State) Cursor(ctx context.Context) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, cursorKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync cursor: %w", err)
	}

	cursor, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt sync cursor %q: %w", raw, err)
	}
	return cursor, nil
}

func (s *State) SetCursor(ctx context.Context, cursor time.Time) error {
	if err := s.rdb.Set(ctx, cursorKey, cursor.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to store sync cursor: %w", err)
	}
	return nil
}

func (s *State) IncrementFailures(ctx context.Context) (int, error) {
	n, err := s.rdb.Incr(ctx, failuresKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sync failure: %w", err)
	}
	return int(n), nil
}

func (s *State) ResetFailures(ctx context.Context) error {
	return s.rdb.Del(ctx, failuresKey).Err()
}
