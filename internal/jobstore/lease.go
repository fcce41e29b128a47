package jobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaseKey = "import:lock"

// ErrLeaseLost means the lease expired or was taken over while the driver
// still held its token. The driver must abort: another instance may be
// writing the job.
var ErrLeaseLost = errors.New("posse da importacao perdida")

// LeaseHeldError is returned when an import is refused because another one
// holds the lease. JobID names the running import.
type LeaseHeldError struct {
	JobID string
}

func (e *LeaseHeldError) Error() string {
	return "ja existe uma importacao em andamento"
}

// Lease is the exclusive right to drive imports for this deployment,
// identified by an owner token and bound to one job id. It expires unless
// refreshed, so a crashed driver cannot wedge the console.
type Lease struct {
	Token string
	JobID string
}

func (l *Lease) payload() string {
	return l.Token + "|" + l.JobID
}

func parseLease(raw string) (*Lease, bool) {
	token, jobID, ok := strings.Cut(raw, "|")
	if !ok || token == "" {
		return nil, false
	}
	return &Lease{Token: token, JobID: jobID}, true
}

// releaseScript deletes the lock only if the caller still owns it, so a
// slow driver cannot release a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only while the caller still owns it.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// AcquireLease atomically claims the import lock for jobID. When another
// import holds it, a LeaseHeldError carrying that job's id is returned.
func (s *Store) AcquireLease(ctx context.Context, jobID string, ttl time.Duration) (*Lease, error) {
	lease := &Lease{Token: uuid.NewString(), JobID: jobID}

	ok, err := s.rdb.SetNX(ctx, leaseKey, lease.payload(), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if ok {
		return lease, nil
	}

	held := &LeaseHeldError{}
	if raw, err := s.rdb.Get(ctx, leaseKey).Result(); err == nil {
		if current, ok := parseLease(raw); ok {
			held.JobID = current.JobID
		}
	}
	return nil, held
}

// RefreshLease extends the lease TTL. ErrLeaseLost means ownership is gone
// and the driver must stop writing.
func (s *Store) RefreshLease(ctx context.Context, lease *Lease, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, s.rdb, []string{leaseKey}, lease.payload(), ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh import lock: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// ReleaseLease gives the lock up if still owned. Releasing a lease that
// already expired is not an error.
func (s *Store) ReleaseLease(ctx context.Context, lease *Lease) error {
	if _, err := releaseScript.Run(ctx, s.rdb, []string{leaseKey}, lease.payload()).Int(); err != nil {
		return fmt.Errorf("failed to release import lock: %w", err)
	}
	return nil
}

// CurrentLease reports the active lease, if any.
func (s *Store) CurrentLease(ctx context.Context) (*Lease, bool, error) {
	raw, err := s.rdb.Get(ctx, leaseKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read import lock: %w", err)
	}
	lease, ok := parseLease(raw)
	return lease, ok, nil
}
