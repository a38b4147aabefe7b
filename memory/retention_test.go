package memory

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bobberdolle1/Puppeteer/db/models"
)

type fakeSummarizer struct {
	calls [][]string
	out   string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, texts []string) (string, error) {
	f.calls = append(f.calls, texts)
	return f.out, nil
}

func TestRetentionTrimKeepsNewest(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		insertChunk(t, gdb, 1, string(rune('a'+i)), []float64{1}, 1, base.Add(time.Duration(i)*time.Minute))
	}
	// Another chat must be untouched.
	insertChunk(t, gdb, 2, "other", []float64{1}, 1, base)

	ret := NewRetention(store, slog.Default(), 3, 0)
	if err := ret.Run(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	chunks, err := store.RecentChunks(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks after trim = %d, want 3", len(chunks))
	}
	if chunks[0].Text != "j" || chunks[2].Text != "h" {
		t.Fatalf("trim kept %q..%q, want the newest three", chunks[0].Text, chunks[2].Text)
	}

	other, _ := store.RecentChunks(context.Background(), 2, 100)
	if len(other) != 1 {
		t.Fatalf("other chat chunks = %d, want 1", len(other))
	}
}

func TestRetentionSummarizeRollsOldChunks(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var ids []uint
	for i := 0; i < 5; i++ {
		id := insertChunk(t, gdb, 1, string(rune('a'+i)), []float64{1}, 1, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, id)
	}

	summ := &fakeSummarizer{out: "they talked about a through c"}
	ret := NewRetention(store, slog.Default(), 1000, 2)
	ret.Summarizer = summ
	ret.Embed = func(ctx context.Context, text string) ([]float64, error) {
		return []float64{0.5}, nil
	}

	if err := ret.Run(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(summ.calls) != 1 {
		t.Fatalf("summarizer calls = %d, want 1", len(summ.calls))
	}
	if got := strings.Join(summ.calls[0], ""); got != "abc" {
		t.Fatalf("summarized texts = %q, want the oldest three", got)
	}

	chunks, err := store.RecentChunks(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	// Two survivors plus the summary row.
	if len(chunks) != 3 {
		t.Fatalf("chunks after summarize = %d, want 3", len(chunks))
	}
	var summary *Chunk
	for i := range chunks {
		if chunks[i].Text == summ.out {
			summary = &chunks[i]
		}
	}
	if summary == nil {
		t.Fatalf("summary chunk missing, got %+v", chunks)
	}
	if summary.Importance != 1.5 {
		t.Fatalf("summary importance = %v, want 1.5", summary.Importance)
	}

	var wm models.MemoryWatermark
	if err := gdb.First(&wm, "chat_id = ?", int64(1)).Error; err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if wm.ThroughID != ids[2] {
		t.Fatalf("watermark = %d, want newest rolled id %d", wm.ThroughID, ids[2])
	}
}

func TestRetentionSummarizeSurvivorsEligibleNextPass(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertChunk(t, gdb, 1, string(rune('a'+i)), []float64{1}, 1, base.Add(time.Duration(i)*time.Minute))
	}

	summ := &fakeSummarizer{out: "rolled"}
	ret := NewRetention(store, slog.Default(), 1000, 2)
	ret.Summarizer = summ
	ret.Embed = func(ctx context.Context, text string) ([]float64, error) {
		return []float64{0.5}, nil
	}

	if err := ret.Run(context.Background(), 1); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// New arrivals push the first pass's survivors over the threshold again.
	insertChunk(t, gdb, 1, "f", []float64{1}, 1, base.Add(10*time.Minute))
	insertChunk(t, gdb, 1, "g", []float64{1}, 1, base.Add(11*time.Minute))

	if err := ret.Run(context.Background(), 1); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(summ.calls) != 2 {
		t.Fatalf("summarizer calls = %d, want 2", len(summ.calls))
	}
	if len(summ.calls[1]) != 3 || summ.calls[1][0] != "d" || summ.calls[1][1] != "e" {
		t.Fatalf("second pass rolled %v, want the survivors d and e first", summ.calls[1])
	}
}

func TestRetentionSummarizeBelowThresholdNoop(t *testing.T) {
	gdb := newTestDB(t)
	store := NewStore(gdb, slog.Default())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	insertChunk(t, gdb, 1, "a", []float64{1}, 1, base)
	insertChunk(t, gdb, 1, "b", []float64{1}, 1, base.Add(time.Minute))

	summ := &fakeSummarizer{out: "unused"}
	ret := NewRetention(store, slog.Default(), 1000, 5)
	ret.Summarizer = summ
	ret.Embed = func(ctx context.Context, text string) ([]float64, error) {
		return []float64{1}, nil
	}

	if err := ret.Run(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summ.calls) != 0 {
		t.Fatalf("summarizer should not run below the threshold")
	}
}
