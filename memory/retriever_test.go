package memory

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"
)

func TestRetrieveRanksBySimilarity(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	insertChunk(t, gdb, 1, "about cats", []float64{1, 0, 0}, 1, now)
	insertChunk(t, gdb, 1, "about dogs", []float64{0, 1, 0}, 1, now)
	insertChunk(t, gdb, 1, "about fish", []float64{0, 0, 1}, 1, now)

	r := NewRetriever(store, 0, 100)
	r.now = func() time.Time { return now }

	got, err := r.Retrieve(context.Background(), 1, []float64{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0] != "about cats" {
		t.Fatalf("top result = %q, want about cats", got[0])
	}
	if got[1] != "about dogs" {
		t.Fatalf("second result = %q, want about dogs", got[1])
	}
}

func TestRetrieveDecayPrefersRecent(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Same embedding, ten days apart.
	insertChunk(t, gdb, 1, "stale", []float64{1, 0}, 1, now.Add(-240*time.Hour))
	insertChunk(t, gdb, 1, "fresh", []float64{1, 0}, 1, now.Add(-time.Hour))

	r := NewRetriever(store, 0.5, 100)
	r.now = func() time.Time { return now }

	got, err := r.Retrieve(context.Background(), 1, []float64{1, 0}, 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got[0] != "fresh" || got[1] != "stale" {
		t.Fatalf("order = %v, want fresh before stale", got)
	}
}

func TestRetrieveImportanceOutweighsAge(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// A weighted summary a day old versus a plain chunk from the same time.
	insertChunk(t, gdb, 1, "summary", []float64{1, 0}, 1.5, now.Add(-24*time.Hour))
	insertChunk(t, gdb, 1, "plain", []float64{1, 0}, 1, now.Add(-24*time.Hour))

	r := NewRetriever(store, 0.1, 100)
	r.now = func() time.Time { return now }

	got, err := r.Retrieve(context.Background(), 1, []float64{1, 0}, 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got[0] != "summary" {
		t.Fatalf("top result = %q, want the weighted summary", got[0])
	}
}

func TestRetrieveZeroTopN(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())

	r := NewRetriever(store, 0, 100)
	got, err := r.Retrieve(context.Background(), 1, []float64{1}, 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got != nil {
		t.Fatalf("topN=0 should return nil, got %v", got)
	}
}

func TestDecayCurve(t *testing.T) {
	r := NewRetriever(nil, 0.5, 100)
	if got := r.decay(0); got != 1 {
		t.Fatalf("decay at age 0 = %v, want 1", got)
	}
	if got := r.decay(-5); got != 1 {
		t.Fatalf("negative age should clamp to 1, got %v", got)
	}
	day := r.decay(24)
	want := math.Exp(-0.5)
	if math.Abs(day-want) > 1e-12 {
		t.Fatalf("decay at 24h = %v, want %v", day, want)
	}
	if r.decay(48) >= day {
		t.Fatalf("decay must be monotonically decreasing")
	}

	flat := NewRetriever(nil, 0, 100)
	if got := flat.decay(1000); got != 1 {
		t.Fatalf("zero rate should disable decay, got %v", got)
	}
}
