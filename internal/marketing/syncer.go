// Package marketing mirrors newly created CRM leads into the marketing
// platform's contact base. A cron-driven syncer pages leads created after a
// Redis-held cursor, pushes each one and advances the cursor per push, so a
// failed cycle resumes exactly where it stopped.
package marketing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vendaops/console/internal/crm"
	"github.com/vendaops/console/internal/jobstore"
)

// LeadSource pages CRM leads by creation instant.
type LeadSource interface {
	ListLeadsCreatedAfter(ctx context.Context, after time.Time) ([]crm.Lead, error)
}

// ContactSink receives synced contacts on the marketing side.
type ContactSink interface {
	CreateContact(ctx context.Context, contact Contact) error
}

// SyncState persists the cursor and the consecutive-failure counter between
// cycles.
type SyncState interface {
	Cursor(ctx context.Context) (time.Time, error)
	SetCursor(ctx context.Context, cursor time.Time) error
	IncrementFailures(ctx context.Context) (int, error)
	ResetFailures(ctx context.Context) error
}

// LeaseChecker reports whether an import holds the exclusive lease. The
// syncer steps aside while one runs so the two never compete for the CRM.
type LeaseChecker interface {
	CurrentLease(ctx context.Context) (*jobstore.Lease, bool, error)
}

// Report summarizes one sync cycle.
type Report struct {
	Skipped             bool
	Pushed              int
	Cursor              time.Time
	ConsecutiveFailures int
}

type Syncer struct {
	leads    LeadSource
	contacts ContactSink
	state    SyncState
	leases   LeaseChecker
	logger   *zap.Logger
}

func NewSyncer(leads LeadSource, contacts ContactSink, state SyncState, leases LeaseChecker, logger *zap.Logger) *Syncer {
	return &Syncer{
		leads:    leads,
		contacts: contacts,
		state:    state,
		leases:   leases,
		logger:   logger,
	}
}

// RunCycle pushes every CRM lead created after the cursor and advances it.
// The cursor moves after each successful push, never past a failed one, so
// no lead is lost and none is pushed twice. A non-nil error increments the
// consecutive-failure counter; a clean cycle resets it.
func (s *Syncer) RunCycle(ctx context.Context) (Report, error) {
	var report Report

	_, held, err := s.leases.CurrentLease(ctx)
	if err != nil {
		return s.fail(ctx, report, fmt.Errorf("failed to check import lock: %w", err))
	}
	if held {
		report.Skipped = true
		return report, nil
	}

	cursor, err := s.state.Cursor(ctx)
	if err != nil {
		return s.fail(ctx, report, err)
	}

	for {
		leads, err := s.leads.ListLeadsCreatedAfter(ctx, cursor)
		if err != nil {
			report.Cursor = cursor
			return s.fail(ctx, report, fmt.Errorf("failed to list new leads: %w", err))
		}
		if len(leads) == 0 {
			break
		}

		// oldest first, so a mid-page failure leaves the cursor below
		// every unpushed lead
		sort.Slice(leads, func(i, j int) bool {
			return leads[i].CreatedAt.Before(leads[j].CreatedAt)
		})

		advanced := false
		for _, lead := range leads {
			if !lead.CreatedAt.After(cursor) {
				// the CRM pages inclusively; this lead went out on a
				// previous pass
				continue
			}

			if err := s.contacts.CreateContact(ctx, contactFor(lead)); err != nil {
				report.Cursor = cursor
				return s.fail(ctx, report, fmt.Errorf("failed to push lead %s: %w", lead.Email, err))
			}

			cursor = lead.CreatedAt
			if err := s.state.SetCursor(ctx, cursor); err != nil {
				report.Cursor = cursor
				return s.fail(ctx, report, err)
			}
			report.Pushed++
			advanced = true

			s.logger.Debug("contact pushed",
				zap.String("email", lead.Email),
				zap.Time("created_at", lead.CreatedAt),
			)
		}
		if !advanced {
			break
		}
	}

	report.Cursor = cursor
	if err := s.state.ResetFailures(ctx); err != nil {
		s.logger.Warn("failed to reset sync failure counter", zap.Error(err))
	}
	return report, nil
}

func (s *Syncer) fail(ctx context.Context, report Report, err error) (Report, error) {
	n, incErr := s.state.IncrementFailures(ctx)
	if incErr != nil {
		s.logger.Warn("failed to count sync failure", zap.Error(incErr))
	}
	report.ConsecutiveFailures = n
	return report, err
}

func contactFor(lead crm.Lead) Contact {
	return Contact{
		Email: lead.Email,
		Name:  lead.Name,
		Phone: lead.Phone,
	}
}
