// Package debounce coalesces rapid consecutive messages from one chat into a
// single logical turn. The first message of a burst makes its handler the
// batch owner; the owner waits out the debounce window and consumes the
// batch. Later messages only append and return.
package debounce

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Key identifies one conversation, optionally scoped to a thread.
type Key struct {
	ChatID   int64
	ThreadID int64
}

// Batch is the consumed result of one burst.
type Batch struct {
	Text     string
	Count    int
	UserID   int64
	UserName string
}

type pendingBatch struct {
	messages    []string
	lastArrival time.Time
	userID      int64
	userName    string
}

type Aggregator struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[Key]*pendingBatch
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(window time.Duration) *Aggregator {
	if window <= 0 {
		window = 1500 * time.Millisecond
	}
	return &Aggregator{
		window:  window,
		pending: make(map[Key]*pendingBatch),
		now:     time.Now,
		sleep:   ctxSleep,
	}
}

// Submit records one arriving message. It returns true when the message
// opened a new batch; that caller must follow up with Collect. All other
// callers return immediately without side effects.
func (a *Aggregator) Submit(key Key, text string, userID int64, userName string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.pending[key]
	if !ok {
		b = &pendingBatch{userID: userID, userName: userName}
		a.pending[key] = b
	}
	b.messages = append(b.messages, text)
	b.lastArrival = a.now()
	return !ok
}

// Collect waits out the debounce window and consumes the batch. If messages
// were still arriving near the end of the window the wait is extended once;
// after the extension the batch is force-flushed regardless, so worst-case
// latency stays bounded at two windows. The batch is removed under the lock,
// so it is consumed exactly once.
func (a *Aggregator) Collect(ctx context.Context, key Key) (Batch, bool) {
	if err := a.sleep(ctx, a.window); err != nil {
		a.drop(key)
		return Batch{}, false
	}

	if batch, done := a.tryConsume(key, false); done {
		return batch, true
	}

	// Still hot; wait one more window, then flush no matter what.
	if err := a.sleep(ctx, a.window); err != nil {
		a.drop(key)
		return Batch{}, false
	}
	batch, done := a.tryConsume(key, true)
	return batch, done
}

// tryConsume removes and returns the batch unless arrivals are still recent
// and force is unset.
func (a *Aggregator) tryConsume(key Key, force bool) (Batch, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.pending[key]
	if !ok {
		return Batch{}, false
	}
	if !force && a.now().Sub(b.lastArrival) < a.window/2 {
		return Batch{}, false
	}
	delete(a.pending, key)
	return Batch{
		Text:     strings.Join(b.messages, "\n"),
		Count:    len(b.messages),
		UserID:   b.userID,
		UserName: b.userName,
	}, true
}

func (a *Aggregator) drop(key Key) {
	a.mu.Lock()
	delete(a.pending, key)
	a.mu.Unlock()
}

// PendingCount reports how many batches are currently open.
func (a *Aggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
