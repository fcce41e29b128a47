package importer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vendaops/console/internal/crm"
	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/jobstore"
	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/internal/sales"
)

// fakeStore is an in-memory stand-in for the Redis job store, shared by the
// driver and service tests.
type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]jobstore.Job
	cancelFlags map[string]bool

	lease    *jobstore.Lease
	released bool

	failRefresh  bool
	refreshCalls int

	// cancelAfter raises the cancel flag once that many polls happened
	cancelAfter  int
	cancelChecks int

	updateCalls int
	clearCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        make(map[string]jobstore.Job),
		cancelFlags: make(map[string]bool),
	}
}

func (f *fakeStore) Create(ctx context.Context, job jobstore.Job) (jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return jobstore.Job{}, jobstore.ErrNotFound
	}
	return job, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, mutate func(*jobstore.Job) error) (jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return jobstore.Job{}, jobstore.ErrNotFound
	}
	if err := mutate(&job); err != nil {
		return jobstore.Job{}, err
	}
	job.UpdatedAt = time.Now()
	f.jobs[id] = job
	f.updateCalls++
	return job, nil
}

func (f *fakeStore) List(ctx context.Context) ([]jobstore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := make([]jobstore.Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	delete(f.cancelFlags, id)
	return nil
}

func (f *fakeStore) Watch(ctx context.Context, id string) (<-chan jobstore.Job, func(), error) {
	ch := make(chan jobstore.Job)
	close(ch)
	return ch, func() {}, nil
}

func (f *fakeStore) RequestCancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelFlags[id] = true
	return nil
}

func (f *fakeStore) CancelRequested(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelChecks++
	if f.cancelAfter > 0 && f.cancelChecks > f.cancelAfter {
		return true, nil
	}
	return f.cancelFlags[id], nil
}

func (f *fakeStore) ClearCancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	delete(f.cancelFlags, id)
	return nil
}

func (f *fakeStore) AcquireLease(ctx context.Context, jobID string, ttl time.Duration) (*jobstore.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lease != nil {
		return nil, &jobstore.LeaseHeldError{JobID: f.lease.JobID}
	}
	f.lease = &jobstore.Lease{Token: "tok", JobID: jobID}
	return f.lease, nil
}

func (f *fakeStore) RefreshLease(ctx context.Context, lease *jobstore.Lease, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.failRefresh {
		return jobstore.ErrLeaseLost
	}
	return nil
}

func (f *fakeStore) ReleaseLease(ctx context.Context, lease *jobstore.Lease) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lease = nil
	f.released = true
	return nil
}

func (f *fakeStore) leaseReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeStore) seed(job jobstore.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

// mockResolver records every upserted sale and answers with configurable
// outcomes, defaulting to created.
type mockResolver struct {
	mu       sync.Mutex
	calls    []string
	stageID  string
	source   string
	outcomes map[string]crm.Outcome
	failIDs  map[string]bool
}

func (m *mockResolver) UpsertSale(ctx context.Context, row sales.NormalizedRow, stageID, source string) (crm.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, row.TransactionID)
	m.stageID = stageID
	m.source = source

	if m.failIDs[row.TransactionID] {
		return "", errors.New("falha no crm")
	}
	if outcome, ok := m.outcomes[row.TransactionID]; ok {
		return outcome, nil
	}
	return crm.OutcomeCreated, nil
}

func (m *mockResolver) callList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// panicResolver blows up on a chosen transaction id.
type panicResolver struct {
	mockResolver
	panicID string
}

func (p *panicResolver) UpsertSale(ctx context.Context, row sales.NormalizedRow, stageID, source string) (crm.Outcome, error) {
	if row.TransactionID == p.panicID {
		panic("estado inconsistente")
	}
	return p.mockResolver.UpsertSale(ctx, row, stageID, source)
}

var testMap = mapping.ColumnMapping{
	Email:         "Email",
	Name:          "Nome",
	TransactionID: "ID",
	Status:        "Status",
	StatusFilter:  "Aprovado",
}

func paidRow(email, name, id string) csvio.Row {
	return csvio.Row{"Email": email, "Nome": name, "ID": id, "Status": "Aprovado"}
}

func testBatch(jobID string, rows []csvio.Row) Batch {
	return Batch{
		JobID:      jobID,
		StageID:    "stage-1",
		Source:     "CSV Hotmart",
		Mapping:    testMap,
		Rows:       rows,
		StartAfter: -1,
		Lease:      &jobstore.Lease{Token: "tok", JobID: jobID},
	}
}

func TestDriverRun_CountsOutcomes(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{ID: "job-1", Status: jobstore.StatusPending, LastProcessedIndex: -1})

	resolver := &mockResolver{
		outcomes: map[string]crm.Outcome{"T2": crm.OutcomeExists, "T5": crm.OutcomeSkipped},
		failIDs:  map[string]bool{"T3": true},
	}
	driver := NewDriver(store, resolver, zap.NewNop())

	rows := []csvio.Row{
		paidRow("a@x.com", "Ana", "T1"),
		paidRow("b@x.com", "Bia", "T2"),
		paidRow("c@x.com", "Caio", "T3"),
		paidRow("nope", "Davi", "T4"), // invalid email, skipped before the CRM
		paidRow("e@x.com", "Eva", "T5"),
	}

	if err := driver.Run(context.Background(), testBatch("job-1", rows)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusCompleted {
		t.Errorf("expected status completed, got %s", job.Status)
	}
	if job.Processed != 5 || job.Created != 1 || job.Existing != 1 || job.Errors != 1 || job.Skipped != 2 {
		t.Errorf("unexpected counters: processed=%d created=%d existing=%d errors=%d skipped=%d",
			job.Processed, job.Created, job.Existing, job.Errors, job.Skipped)
	}
	if job.LastProcessedIndex != 4 {
		t.Errorf("expected last processed index 4, got %d", job.LastProcessedIndex)
	}
	if len(job.ErrorDetails) != 1 || job.ErrorDetails[0].Email != "c@x.com" {
		t.Errorf("unexpected error details: %+v", job.ErrorDetails)
	}

	calls := resolver.callList()
	if len(calls) != 4 {
		t.Fatalf("expected 4 resolver calls, got %d", len(calls))
	}
	if calls[0] != "T1" || calls[3] != "T5" {
		t.Errorf("expected rows resolved in file order, got %v", calls)
	}
	if resolver.stageID != "stage-1" || resolver.source != "CSV Hotmart" {
		t.Errorf("expected stage and source forwarded, got %s/%s", resolver.stageID, resolver.source)
	}
}

func TestDriverRun_ResumeSkipsProcessedRows(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{
		ID:                 "job-1",
		Status:             jobstore.StatusError,
		TotalRows:          4,
		Processed:          2,
		Created:            2,
		LastProcessedIndex: 1,
	})

	resolver := &mockResolver{}
	driver := NewDriver(store, resolver, zap.NewNop())

	rows := []csvio.Row{
		paidRow("a@x.com", "Ana", "T1"),
		paidRow("b@x.com", "Bia", "T2"),
		paidRow("c@x.com", "Caio", "T3"),
		paidRow("d@x.com", "Davi", "T4"),
	}
	batch := testBatch("job-1", rows)
	batch.StartAfter = 1

	if err := driver.Run(context.Background(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := resolver.callList()
	if len(calls) != 2 || calls[0] != "T3" || calls[1] != "T4" {
		t.Errorf("expected only rows after the checkpoint, got %v", calls)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusCompleted {
		t.Errorf("expected status completed, got %s", job.Status)
	}
	if job.Processed != 4 || job.Created != 4 {
		t.Errorf("expected counters to accumulate over the stored ones, got processed=%d created=%d", job.Processed, job.Created)
	}
	if job.LastProcessedIndex != 3 {
		t.Errorf("expected last processed index 3, got %d", job.LastProcessedIndex)
	}
}

func TestDriverRun_CancelStopsBetweenRows(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{ID: "job-1", Status: jobstore.StatusPending, LastProcessedIndex: -1})
	store.cancelAfter = 1

	resolver := &mockResolver{}
	driver := NewDriver(store, resolver, zap.NewNop())

	rows := []csvio.Row{
		paidRow("a@x.com", "Ana", "T1"),
		paidRow("b@x.com", "Bia", "T2"),
		paidRow("c@x.com", "Caio", "T3"),
		paidRow("d@x.com", "Davi", "T4"),
	}

	if err := driver.Run(context.Background(), testBatch("job-1", rows)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls := resolver.callList(); len(calls) != 1 {
		t.Fatalf("expected 1 row before the cancel, got %v", calls)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", job.Status)
	}
	if job.Processed != 1 || job.LastProcessedIndex != 0 {
		t.Errorf("expected progress persisted up to the cancel, got processed=%d index=%d", job.Processed, job.LastProcessedIndex)
	}
	if store.clearCalls != 1 {
		t.Errorf("expected the cancel marker cleared, got %d clears", store.clearCalls)
	}
}

func TestDriverRun_LeaseLostStopsWrites(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{ID: "job-1", Status: jobstore.StatusPending, LastProcessedIndex: -1})
	store.failRefresh = true

	resolver := &mockResolver{}
	driver := NewDriver(store, resolver, zap.NewNop())

	rows := []csvio.Row{
		paidRow("a@x.com", "Ana", "T1"),
		paidRow("b@x.com", "Bia", "T2"),
		paidRow("c@x.com", "Caio", "T3"),
	}

	err := driver.Run(context.Background(), testBatch("job-1", rows))
	if !errors.Is(err, jobstore.ErrLeaseLost) {
		t.Fatalf("expected lease lost error, got %v", err)
	}

	// the first checkpoint failed, so nothing past the initial transition is stored
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusProcessing {
		t.Errorf("expected job left processing for a resume, got %s", job.Status)
	}
	if job.Processed != 0 {
		t.Errorf("expected no progress persisted after losing the lease, got %d", job.Processed)
	}
}

func TestDriverRun_PanicMarksJobError(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{ID: "job-1", Status: jobstore.StatusPending, LastProcessedIndex: -1})

	resolver := &panicResolver{panicID: "T2"}
	driver := NewDriver(store, resolver, zap.NewNop())

	rows := []csvio.Row{
		paidRow("a@x.com", "Ana", "T1"),
		paidRow("b@x.com", "Bia", "T2"),
		paidRow("c@x.com", "Caio", "T3"),
	}

	if err := driver.Run(context.Background(), testBatch("job-1", rows)); err != nil {
		t.Fatalf("expected a recovered run, got %v", err)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusError {
		t.Errorf("expected status error, got %s", job.Status)
	}
	if job.LastMessage != "falha inesperada durante a importacao" {
		t.Errorf("unexpected message: %q", job.LastMessage)
	}
	if job.Processed != 1 {
		t.Errorf("expected checkpointed progress preserved, got %d", job.Processed)
	}
	if calls := resolver.callList(); len(calls) != 1 || calls[0] != "T1" {
		t.Errorf("expected the run to stop at the panicking row, got %v", calls)
	}
}

func TestDriverRun_ContextCancelLeavesJobResumable(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{ID: "job-1", Status: jobstore.StatusPending, LastProcessedIndex: -1})

	resolver := &mockResolver{}
	driver := NewDriver(store, resolver, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []csvio.Row{paidRow("a@x.com", "Ana", "T1")}
	err := driver.Run(ctx, testBatch("job-1", rows))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}

	if calls := resolver.callList(); len(calls) != 0 {
		t.Errorf("expected no rows resolved, got %v", calls)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusProcessing {
		t.Errorf("expected job left processing for a resume, got %s", job.Status)
	}
}

func TestDriverRun_RefusesCompletedJob(t *testing.T) {
	store := newFakeStore()
	store.seed(jobstore.Job{ID: "job-1", Status: jobstore.StatusCompleted})

	resolver := &mockResolver{}
	driver := NewDriver(store, resolver, zap.NewNop())

	err := driver.Run(context.Background(), testBatch("job-1", []csvio.Row{paidRow("a@x.com", "Ana", "T1")}))
	if err == nil {
		t.Fatal("expected an error starting a completed job")
	}

	if calls := resolver.callList(); len(calls) != 0 {
		t.Errorf("expected no rows resolved, got %v", calls)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobstore.StatusCompleted {
		t.Errorf("expected status untouched, got %s", job.Status)
	}
}

func TestCheckpointInterval_Clamps(t *testing.T) {
	cases := []struct {
		total, want int
	}{
		{0, 10},
		{50, 10},
		{999, 10},
		{2000, 20},
		{50000, 500},
		{500000, 500},
	}
	for _, c := range cases {
		if got := checkpointInterval(c.total); got != c.want {
			t.Errorf("checkpointInterval(%d): expected %d, got %d", c.total, c.want, got)
		}
	}
}
