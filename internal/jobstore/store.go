package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redisdb "github.com/vendaops/console/internal/database/redis"
)

var ErrNotFound = errors.New("importacao nao encontrada")

const (
	jobKeyPrefix     = "import:job:"
	jobIndexKey      = "import:jobs"
	cancelKeySuffix  = ":cancel"
	channelSuffix    = ":events"
	cancelMarkerTTL  = 24 * time.Hour
	watchChannelSize = 16
)

type Store struct {
	rdb    *redisdb.Client
	logger *zap.Logger
}

func NewStore(rdb *redisdb.Client, logger *zap.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

func jobKey(id string) string     { return jobKeyPrefix + id }
func cancelKey(id string) string  { return jobKey(id) + cancelKeySuffix }
func jobChannel(id string) string { return jobKey(id) + channelSuffix }

// Create stores a fresh job document, registers it in the job index and
// returns the stored copy with its timestamps set.
func (s *Store) Create(ctx context.Context, job Job) (Job, error) {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.write(ctx, job); err != nil {
		return Job{}, err
	}
	if err := s.rdb.SAdd(ctx, jobIndexKey, job.ID).Err(); err != nil {
		return Job{}, fmt.Errorf("failed to index job: %w", err)
	}
	return job, nil
}

func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	raw, err := s.rdb.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to load job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, fmt.Errorf("corrupt job document %s: %w", id, err)
	}
	return job, nil
}

// Update applies a partial mutation to the stored document and republishes
// it. When mutate returns an error nothing is written. Only the lease holder
// writes to a job, so load-mutate-store is safe without a transaction.
func (s *Store) Update(ctx context.Context, id string, mutate func(*Job) error) (Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}

	if err := mutate(&job); err != nil {
		return Job{}, err
	}
	job.ID = id
	job.UpdatedAt = time.Now()

	if err := s.write(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (s *Store) write(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	// watchers miss nothing fatal if publish fails; they re-read on reconnect
	if err := s.rdb.Publish(ctx, jobChannel(job.ID), raw).Err(); err != nil {
		s.logger.Warn("failed to publish job update", zap.String("job_id", job.ID), zap.Error(err))
	}
	return nil
}

// Delete removes the document, its cancel marker and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.Del(ctx, cancelKey(id))
	pipe.SRem(ctx, jobIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// List returns every known job document, newest first.
func (s *Store) List(ctx context.Context) ([]Job, error) {
	ids, err := s.rdb.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// stale index entry, drop it
			s.rdb.SRem(ctx, jobIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			if jobs[j].CreatedAt.After(jobs[i].CreatedAt) {
				jobs[i], jobs[j] = jobs[j], jobs[i]
			}
		}
	}
	return jobs, nil
}

// Watch subscribes to a job's update channel. The returned channel delivers
// each stored document as it is written; the cleanup func must be called
// when the watcher is done.
func (s *Store) Watch(ctx context.Context, id string) (<-chan Job, func(), error) {
	sub := s.rdb.Subscribe(ctx, jobChannel(id))
	// force the subscription before returning so no update slips past
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to job: %w", err)
	}

	out := make(chan Job, watchChannelSize)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var job Job
			if err := json.Unmarshal([]byte(msg.Payload), &job); err != nil {
				s.logger.Warn("dropping malformed job event", zap.String("job_id", id), zap.Error(err))
				continue
			}
			select {
			case out <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	cleanup := func() { sub.Close() }
	return out, cleanup, nil
}

// RequestCancel raises the side-channel marker the driver polls between
// rows. The driver itself moves the job to cancelled when it stops.
func (s *Store) RequestCancel(ctx context.Context, id string) error {
	if err := s.rdb.Set(ctx, cancelKey(id), "1", cancelMarkerTTL).Err(); err != nil {
		return fmt.Errorf("failed to request cancellation: %w", err)
	}
	return nil
}

// CancelRequested reports whether a cancel marker is set for the job.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cancellation: %w", err)
	}
	return n > 0, nil
}

// ClearCancel removes the marker once the driver has honored it.
func (s *Store) ClearCancel(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, cancelKey(id)).Err()
}
