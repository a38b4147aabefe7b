// Package inference is the admission-controlled gateway to the LLM backend.
// A process-wide channel semaphore bounds concurrent generate calls; callers
// without a permit queue instead of failing.
package inference

import (
	"context"
	"sync"
	"time"

	"github.com/bobberdolle1/Puppeteer/llm"
)

// Stats is the process-wide counter set, updated on every completion.
type Stats struct {
	Total           int64
	Succeeded       int64
	Failed          int64
	Timeouts        int64
	AvgLatencyMs    float64
	EmbedCount      int64
	EmbedAvgLatency float64
}

type Queue struct {
	client  llm.Client
	sem     chan struct{}
	timeout time.Duration

	mu    sync.Mutex
	stats Stats
}

func NewQueue(client llm.Client, concurrency int, timeout time.Duration) *Queue {
	if concurrency <= 0 {
		concurrency = 3
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Queue{
		client:  client,
		sem:     make(chan struct{}, concurrency),
		timeout: timeout,
	}
}

// Generate acquires a permit (blocking while the queue is full), issues the
// backend call under the configured timeout, and records the outcome. On
// timeout the permit is released and llm.ErrTimeout is returned; no partial
// result is surfaced. No retry happens at this layer.
func (q *Queue) Generate(ctx context.Context, model, prompt string, opts llm.GenerateOptions) (string, error) {
	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-q.sem }()

	callCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	res, err := q.client.Generate(callCtx, model, prompt, opts)
	elapsed := time.Since(start)

	if err != nil {
		if llm.IsTimeout(err) || callCtx.Err() == context.DeadlineExceeded {
			q.record(elapsed, false, true)
			return "", llm.ErrTimeout
		}
		q.record(elapsed, false, false)
		return "", err
	}
	q.record(elapsed, true, false)
	return res.Text, nil
}

// Embed is not subject to the concurrency gate (read-mostly, cheap) but
// records its own latency metric.
func (q *Queue) Embed(ctx context.Context, model, text string) ([]float64, error) {
	start := time.Now()
	vec, err := q.client.Embed(ctx, model, text)
	q.recordEmbed(time.Since(start))
	return vec, err
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// InFlight reports how many generate permits are currently held.
func (q *Queue) InFlight() int {
	return len(q.sem)
}

func (q *Queue) record(elapsed time.Duration, ok, timedOut bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Total++
	switch {
	case ok:
		q.stats.Succeeded++
	case timedOut:
		q.stats.Timeouts++
		q.stats.Failed++
	default:
		q.stats.Failed++
	}
	ms := float64(elapsed.Milliseconds())
	q.stats.AvgLatencyMs += (ms - q.stats.AvgLatencyMs) / float64(q.stats.Total)
}

func (q *Queue) recordEmbed(elapsed time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.EmbedCount++
	ms := float64(elapsed.Milliseconds())
	q.stats.EmbedAvgLatency += (ms - q.stats.EmbedAvgLatency) / float64(q.stats.EmbedCount)
}
