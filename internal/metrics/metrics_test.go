package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.SubmissionAccepted()
	r.SubmissionAccepted()
	r.SubmissionRejected("Points mismatch")
	r.MistakesIngested(3)
	r.CacheLookup("all_tables", true)

	if got := testutil.ToFloat64(r.submissions.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("expected 2 accepted submissions, got %v", got)
	}
	if got := testutil.ToFloat64(r.submissions.WithLabelValues("Points mismatch")); got != 1 {
		t.Fatalf("expected 1 rejected submission, got %v", got)
	}
	if got := testutil.ToFloat64(r.mistakes); got != 3 {
		t.Fatalf("expected 3 mistakes, got %v", got)
	}
	if got := testutil.ToFloat64(r.boardCache.WithLabelValues("all_tables", "hit")); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.SubmissionAccepted()
	r.SubmissionRejected("Invalid time")
	r.MistakesIngested(1)
	r.CacheLookup("mistakes", false)
	if r.Handler() == nil {
		t.Fatalf("expected a handler even without a recorder")
	}
}
