package jobstore

import (
	"fmt"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusError, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusProcessing, true}, // crashed run taken over by a resume
		{StatusProcessing, StatusPending, false},
		{StatusError, StatusProcessing, true},     // resume
		{StatusCancelled, StatusProcessing, true}, // resume
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusError, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.allowed, got)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusError, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusProcessing} {
		if s.Terminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestAppendError_BoundedTail(t *testing.T) {
	var job Job
	for i := 0; i < maxErrorDetails+20; i++ {
		job.AppendError(ErrorDetail{Email: fmt.Sprintf("u%d@x.com", i), Error: "falha"})
	}

	if len(job.ErrorDetails) != maxErrorDetails {
		t.Fatalf("expected tail capped at %d, got %d", maxErrorDetails, len(job.ErrorDetails))
	}
	// oldest entries dropped: the first surviving one is entry 20
	if job.ErrorDetails[0].Email != "u20@x.com" {
		t.Errorf("expected oldest entries dropped, tail starts at %s", job.ErrorDetails[0].Email)
	}
	last := job.ErrorDetails[len(job.ErrorDetails)-1]
	if last.Email != fmt.Sprintf("u%d@x.com", maxErrorDetails+19) {
		t.Errorf("expected newest entry kept, got %s", last.Email)
	}
}

func TestParseLease(t *testing.T) {
	lease := &Lease{Token: "tok-1", JobID: "job-9"}

	parsed, ok := parseLease(lease.payload())

	if !ok {
		t.Fatal("expected payload to parse")
	}
	if parsed.Token != "tok-1" || parsed.JobID != "job-9" {
		t.Errorf("unexpected parse result: %+v", parsed)
	}

	if _, ok := parseLease("garbage"); ok {
		t.Error("expected malformed payload rejected")
	}
}
