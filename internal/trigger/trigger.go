// Package trigger decides whether an inbound message should get a reply.
// The decision is an ordered list of named predicates; identity and
// direct-address signals always win over mode/probability policy.
package trigger

import (
	"math/rand"
	"strings"
)

const (
	ModeAllMessages = "all_messages"
	ModeMentionOnly = "mention_only"
)

// Options carries every signal the predicates look at. Rand must be set when
// Probability is between 0 and 1; tests seed it for determinism.
type Options struct {
	Text         string
	IsPrivate    bool
	IsReplyToBot bool
	HasMedia     bool

	BotName     string
	BotUsername string
	PersonaName string

	ChatKeywords    []string
	PersonaKeywords []string

	ReplyMode   string
	Probability float64
	Rand        *rand.Rand
}

// Decision is the outcome with the name of the predicate that settled it.
type Decision struct {
	Reply  bool
	Reason string
}

type predicate struct {
	name string
	// eval returns (settled, reply). The first settled predicate wins.
	eval func(o Options) (bool, bool)
}

var predicates = []predicate{
	{"private", func(o Options) (bool, bool) {
		return o.IsPrivate, true
	}},
	{"reply_to_bot", func(o Options) (bool, bool) {
		return o.IsReplyToBot, true
	}},
	{"name_mention", func(o Options) (bool, bool) {
		return mentionsBot(o), true
	}},
	{"keyword", func(o Options) (bool, bool) {
		return matchesKeyword(o), true
	}},
	{"media_all_messages", func(o Options) (bool, bool) {
		return o.HasMedia && o.ReplyMode == ModeAllMessages, true
	}},
	{"all_messages_probability", func(o Options) (bool, bool) {
		if o.ReplyMode != ModeAllMessages {
			return false, false
		}
		return true, rollProbability(o)
	}},
}

// Decide evaluates the predicate chain in order.
func Decide(o Options) Decision {
	for _, p := range predicates {
		settled, reply := p.eval(o)
		if settled && reply {
			return Decision{Reply: true, Reason: p.name}
		}
		if settled {
			return Decision{Reply: false, Reason: p.name}
		}
	}
	return Decision{Reply: false, Reason: ModeMentionOnly}
}

func mentionsBot(o Options) bool {
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if name := strings.ToLower(strings.TrimSpace(o.PersonaName)); name != "" && strings.Contains(lower, name) {
		return true
	}
	if name := strings.ToLower(strings.TrimSpace(o.BotName)); name != "" && strings.Contains(lower, name) {
		return true
	}
	if user := strings.TrimSpace(o.BotUsername); user != "" {
		if strings.Contains(lower, "@"+strings.ToLower(user)) {
			return true
		}
	}
	return false
}

func matchesKeyword(o Options) bool {
	lower := strings.ToLower(o.Text)
	for _, kw := range o.ChatKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range o.PersonaKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func rollProbability(o Options) bool {
	switch {
	case o.Probability <= 0:
		return false
	case o.Probability >= 1:
		return true
	case o.Rand == nil:
		return false
	default:
		return o.Rand.Float64() < o.Probability
	}
}
