// Package humanize holds the timing math and text rules that make delivery
// look typed rather than generated.
package humanize

import (
	"math/rand"
	"strings"
	"time"
)

// NoReplySentinel is the token a prompt can instruct the model to return when
// a turn is not worth answering. A reply equal to it is dropped silently.
const NoReplySentinel = "[NO_REPLY]"

type Config struct {
	TypingSpeedCPM         int
	MinResponseDelay       time.Duration
	MaxResponseDelay       time.Duration
	ChunkDelimiter         string
	DistractionProbability float64
}

func DefaultConfig() Config {
	return Config{
		TypingSpeedCPM:         300,
		MinResponseDelay:       1 * time.Second,
		MaxResponseDelay:       5 * time.Second,
		ChunkDelimiter:         "||",
		DistractionProbability: 0.2,
	}
}

// SplitChunks splits a raw reply on the delimiter, trimming fragments and
// dropping empties and sentinel fragments. A raw reply that is itself the
// sentinel yields nil.
func SplitChunks(raw, delimiter string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == NoReplySentinel {
		return nil
	}
	if delimiter == "" {
		delimiter = "||"
	}
	parts := strings.Split(raw, delimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == NoReplySentinel {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TypingDuration derives how long the typing indicator should run for a
// chunk: length over typing speed, jittered by up to ±20%, clamped to 1..30s.
func TypingDuration(r *rand.Rand, cfg Config, chunk string) time.Duration {
	cpm := cfg.TypingSpeedCPM
	if cpm <= 0 {
		cpm = 300
	}
	seconds := float64(len(chunk)) / float64(cpm) * 60
	variance := seconds * 0.2
	if variance > 0 && r != nil {
		seconds += (r.Float64()*2 - 1) * variance
	}
	return clampSeconds(seconds, 1, 30)
}

// ResponseDelay simulates reading the inbound message before typing starts:
// a uniform draw between the configured bounds plus ~1s per 100 chars read.
func ResponseDelay(r *rand.Rand, cfg Config, inbound string) time.Duration {
	min := cfg.MinResponseDelay
	max := cfg.MaxResponseDelay
	if max < min {
		max = min
	}
	base := min
	if span := max - min; span > 0 && r != nil {
		base += time.Duration(r.Int63n(int64(span)))
	}
	reading := time.Duration(len(inbound)/100) * time.Second
	return base + reading
}

// InterChunkPause is the short breather between consecutive chunks, 0.5-1.5s.
func InterChunkPause(r *rand.Rand) time.Duration {
	if r == nil {
		return time.Second
	}
	return 500*time.Millisecond + time.Duration(r.Int63n(int64(time.Second)))
}

func clampSeconds(s, lo, hi float64) time.Duration {
	if s < lo {
		s = lo
	}
	if s > hi {
		s = hi
	}
	return time.Duration(s * float64(time.Second))
}

// behaviorReplacements scrub phrasings that reveal automation or read as
// canned before a reply goes out.
var behaviorReplacements = [][2]string{
	{"I am a bot", "I am an AI assistant"},
	{"I'm a bot", "I'm an AI assistant"},
	{"as a bot", "as an AI assistant"},
	{"as an AI assistant", "as an AI"},
	{"Sure, ", ""},
	{"Okay, ", ""},
	{"Certainly, ", ""},
	{"Absolutely, ", ""},
	{"personal information", "private details"},
	{"personal data", "private details"},
}

// ApplyBehaviorRules post-processes a generated reply so it reads naturally.
func ApplyBehaviorRules(response, botName string) string {
	out := response
	for _, r := range behaviorReplacements {
		out = strings.ReplaceAll(out, r[0], r[1])
	}
	if botName != "" {
		out = strings.ReplaceAll(out, "I am "+botName, "Hi, I'm an AI")
		out = strings.ReplaceAll(out, "I'm "+botName, "Hi, I'm an AI")
	}
	if strings.HasPrefix(out, "Yes, ") {
		out = strings.Replace(out, "Yes, ", "", 1)
	}
	if strings.HasPrefix(out, "No, ") {
		out = strings.Replace(out, "No, ", "", 1)
	}
	return out
}
