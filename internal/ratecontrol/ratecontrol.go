// Package ratecontrol gates reply attempts before any expensive work runs.
// It enforces a per-chat cooldown and a per-user sliding-window burst limit.
package ratecontrol

import (
	"sync"
	"time"
)

const (
	defaultBurstLimit  = 5
	defaultBurstWindow = 60 * time.Second
)

type Gate struct {
	mu          sync.Mutex
	lastReply   map[int64]time.Time
	userWindow  map[int64][]time.Time
	burstLimit  int
	burstWindow time.Duration
	now         func() time.Time
}

func NewGate(burstLimit int, burstWindow time.Duration) *Gate {
	if burstLimit <= 0 {
		burstLimit = defaultBurstLimit
	}
	if burstWindow <= 0 {
		burstWindow = defaultBurstWindow
	}
	return &Gate{
		lastReply:   make(map[int64]time.Time),
		userWindow:  make(map[int64][]time.Time),
		burstLimit:  burstLimit,
		burstWindow: burstWindow,
		now:         time.Now,
	}
}

// AllowChat reports whether the chat's cooldown has elapsed. The check and
// the timestamp update are one atomic unit, so two racing callers can never
// both pass.
func (g *Gate) AllowChat(chatID int64, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if last, ok := g.lastReply[chatID]; ok && now.Sub(last) < cooldown {
		return false
	}
	g.lastReply[chatID] = now
	return true
}

// AllowUser reports whether the user is under the burst limit. On allow, the
// attempt is stamped into the window; entries older than the window are
// pruned on every call.
func (g *Gate) AllowUser(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	cutoff := now.Add(-g.burstWindow)

	window := g.userWindow[userID]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= g.burstLimit {
		g.userWindow[userID] = kept
		return false
	}
	g.userWindow[userID] = append(kept, now)
	return true
}
