package usage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openmcp/data-gateway/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_SubmitUsageAndTouch_DrainedOnClose(t *testing.T) {
	s := store.NewMockStore()
	s.SeedEndpoint(store.Endpoint{ID: "ep-1", CredentialID: "cred-1"}, store.Credential{ID: "cred-1"})

	q := New(s, testLogger(), 16, 2)
	q.SubmitUsage(store.UsageRecord{ID: "u-1", CredentialID: "cred-1", Tool: "list_tables"})
	q.SubmitTouch("ep-1", time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := len(s.UsageRecords()); got != 1 {
		t.Errorf("usage records = %d, want 1", got)
	}
}

func TestQueue_DropsJobsAfterClose(t *testing.T) {
	s := store.NewMockStore()
	q := New(s, testLogger(), 4, 1)

	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	q.SubmitUsage(store.UsageRecord{ID: "late"})
	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	s := store.NewMockStore()
	q := New(s, testLogger(), 4, 1)

	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestQueue_DropsWhenBufferFull(t *testing.T) {
	s := store.NewMockStore()
	// Zero workers: nothing drains the channel, so the buffer fills up
	// and subsequent submits must drop rather than block.
	q := New(s, testLogger(), 1, 0)

	q.SubmitUsage(store.UsageRecord{ID: "a"})
	q.SubmitUsage(store.UsageRecord{ID: "b"})
	q.SubmitUsage(store.UsageRecord{ID: "c"})

	if q.Dropped() == 0 {
		t.Error("expected at least one dropped job when buffer is full and no workers drain it")
	}

	close(q.jobs)
}
