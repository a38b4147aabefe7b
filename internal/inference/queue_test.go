package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobberdolle1/Puppeteer/llm"
)

// fakeClient counts concurrent Generate calls and blocks until released.
type fakeClient struct {
	mu         sync.Mutex
	inFlight   int32
	maxSeen    int32
	release    chan struct{}
	generate   func(ctx context.Context, model, prompt string, opts llm.GenerateOptions) (llm.Result, error)
	embedErr   error
	embedCalls int32
}

func (f *fakeClient) Generate(ctx context.Context, model, prompt string, opts llm.GenerateOptions) (llm.Result, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if cur > f.maxSeen {
		f.maxSeen = cur
	}
	f.mu.Unlock()

	if f.generate != nil {
		return f.generate(ctx, model, prompt, opts)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return llm.Result{}, ctx.Err()
		}
	}
	return llm.Result{Text: "ok"}, nil
}

func (f *fakeClient) Embed(ctx context.Context, model, text string) ([]float64, error) {
	atomic.AddInt32(&f.embedCalls, 1)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float64{1, 2}, nil
}

func (f *fakeClient) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeClient) Health(ctx context.Context) bool                 { return true }

func TestGenerateBoundsConcurrency(t *testing.T) {
	fc := &fakeClient{release: make(chan struct{})}
	q := NewQueue(fc, 2, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Generate(context.Background(), "m", "p", llm.GenerateOptions{})
		}()
	}

	// Let the callers pile up against the semaphore.
	deadline := time.Now().Add(2 * time.Second)
	for q.InFlight() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := q.InFlight(); got != 2 {
		t.Fatalf("in flight = %d, want 2", got)
	}

	close(fc.release)
	wg.Wait()

	fc.mu.Lock()
	max := fc.maxSeen
	fc.mu.Unlock()
	if max > 2 {
		t.Fatalf("backend saw %d concurrent calls, want at most 2", max)
	}
	st := q.Stats()
	if st.Total != 8 || st.Succeeded != 8 {
		t.Fatalf("stats = %+v, want 8 successes", st)
	}
}

func TestGenerateTimeoutMapsToSentinel(t *testing.T) {
	fc := &fakeClient{generate: func(ctx context.Context, model, prompt string, opts llm.GenerateOptions) (llm.Result, error) {
		<-ctx.Done()
		return llm.Result{}, ctx.Err()
	}}
	q := NewQueue(fc, 1, 20*time.Millisecond)

	_, err := q.Generate(context.Background(), "m", "p", llm.GenerateOptions{})
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("err = %v, want llm.ErrTimeout", err)
	}
	st := q.Stats()
	if st.Timeouts != 1 || st.Failed != 1 || st.Succeeded != 0 {
		t.Fatalf("stats = %+v, want one timeout failure", st)
	}
	if got := q.InFlight(); got != 0 {
		t.Fatalf("permit leaked after timeout, in flight = %d", got)
	}
}

func TestGenerateBackendErrorPassesThrough(t *testing.T) {
	backendErr := &llm.BackendError{Status: 500, Body: "boom"}
	fc := &fakeClient{generate: func(ctx context.Context, model, prompt string, opts llm.GenerateOptions) (llm.Result, error) {
		return llm.Result{}, backendErr
	}}
	q := NewQueue(fc, 1, time.Minute)

	_, err := q.Generate(context.Background(), "m", "p", llm.GenerateOptions{})
	var be *llm.BackendError
	if !errors.As(err, &be) || be.Status != 500 {
		t.Fatalf("err = %v, want the backend error", err)
	}
	if errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("backend error must not classify as timeout")
	}
}

func TestGenerateCanceledWhileQueued(t *testing.T) {
	fc := &fakeClient{release: make(chan struct{})}
	q := NewQueue(fc, 1, time.Minute)

	// Occupy the only permit.
	go func() { _, _ = q.Generate(context.Background(), "m", "p", llm.GenerateOptions{}) }()
	deadline := time.Now().Add(2 * time.Second)
	for q.InFlight() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Generate(ctx, "m", "p", llm.GenerateOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("queued caller should observe cancellation, got %v", err)
	}

	close(fc.release)
}

func TestEmbedBypassesGateAndCounts(t *testing.T) {
	fc := &fakeClient{release: make(chan struct{})}
	q := NewQueue(fc, 1, time.Minute)

	// Permit held by a generate call; embed must still complete.
	go func() { _, _ = q.Generate(context.Background(), "m", "p", llm.GenerateOptions{}) }()
	deadline := time.Now().Add(2 * time.Second)
	for q.InFlight() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	vec, err := q.Embed(context.Background(), "m", "text")
	if err != nil || len(vec) != 2 {
		t.Fatalf("embed = %v, %v", vec, err)
	}
	if st := q.Stats(); st.EmbedCount != 1 {
		t.Fatalf("embed count = %d, want 1", st.EmbedCount)
	}

	close(fc.release)
}
