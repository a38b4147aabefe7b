// Package history keeps the bounded per-conversation recent-turn buffer used
// for prompt assembly. Within one conversation append order matches send
// order; the debounce/queue discipline guarantees a single appender.
package history

import (
	"sync"

	"github.com/bobberdolle1/Puppeteer/internal/prompt"
)

const DefaultMaxTurns = 20

type Buffer struct {
	mu    sync.Mutex
	max   int
	turns map[int64][]prompt.Turn
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxTurns
	}
	return &Buffer{max: max, turns: make(map[int64][]prompt.Turn)}
}

// Append adds a turn, evicting the oldest once the buffer is full.
func (b *Buffer) Append(chatID int64, t prompt.Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := append(b.turns[chatID], t)
	if len(cur) > b.max {
		cur = cur[len(cur)-b.max:]
	}
	b.turns[chatID] = cur
}

// Recent returns up to depth most recent turns, oldest first.
func (b *Buffer) Recent(chatID int64, depth int) []prompt.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.turns[chatID]
	if depth > 0 && len(cur) > depth {
		cur = cur[len(cur)-depth:]
	}
	out := make([]prompt.Turn, len(cur))
	copy(out, cur)
	return out
}

// Reset drops all turns for the chat.
func (b *Buffer) Reset(chatID int64) {
	b.mu.Lock()
	delete(b.turns, chatID)
	b.mu.Unlock()
}
