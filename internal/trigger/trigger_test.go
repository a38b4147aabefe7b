package trigger

import (
	"math/rand"
	"testing"
)

func TestDecidePredicateOrder(t *testing.T) {
	cases := []struct {
		name       string
		opts       Options
		wantReply  bool
		wantReason string
	}{
		{
			name:       "private always replies",
			opts:       Options{Text: "hi", IsPrivate: true, ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "private",
		},
		{
			name:       "reply to bot wins over mode",
			opts:       Options{Text: "ok", IsReplyToBot: true, ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "reply_to_bot",
		},
		{
			name:       "persona display name mention",
			opts:       Options{Text: "hey Masha, what's up", PersonaName: "Masha", ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "name_mention",
		},
		{
			name:       "bot name mention case insensitive",
			opts:       Options{Text: "I think BORIS knows", BotName: "boris", ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "name_mention",
		},
		{
			name:       "username mention",
			opts:       Options{Text: "ask @helper_bot about it", BotUsername: "helper_bot", ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "name_mention",
		},
		{
			name:       "chat keyword",
			opts:       Options{Text: "the weather is awful", ChatKeywords: []string{"weather"}, ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "keyword",
		},
		{
			name:       "persona keyword",
			opts:       Options{Text: "let's talk crypto", PersonaKeywords: []string{"crypto"}, ReplyMode: ModeMentionOnly},
			wantReply:  true,
			wantReason: "keyword",
		},
		{
			name:       "media in all_messages mode",
			opts:       Options{Text: "[Image]: a cat", HasMedia: true, ReplyMode: ModeAllMessages},
			wantReply:  true,
			wantReason: "media_all_messages",
		},
		{
			name:       "media in mention_only is ignored",
			opts:       Options{Text: "[Image]: a cat", HasMedia: true, ReplyMode: ModeMentionOnly},
			wantReply:  false,
			wantReason: ModeMentionOnly,
		},
		{
			name:       "all_messages with probability one",
			opts:       Options{Text: "random chatter", ReplyMode: ModeAllMessages, Probability: 1},
			wantReply:  true,
			wantReason: "all_messages_probability",
		},
		{
			name:       "all_messages with probability zero",
			opts:       Options{Text: "random chatter", ReplyMode: ModeAllMessages, Probability: 0},
			wantReply:  false,
			wantReason: "all_messages_probability",
		},
		{
			name:       "mention_only with no signal stays silent",
			opts:       Options{Text: "nothing to see", ReplyMode: ModeMentionOnly, Probability: 1},
			wantReply:  false,
			wantReason: ModeMentionOnly,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.opts)
			if got.Reply != tc.wantReply {
				t.Fatalf("reply = %v, want %v (reason %q)", got.Reply, tc.wantReply, got.Reason)
			}
			if got.Reason != tc.wantReason {
				t.Fatalf("reason = %q, want %q", got.Reason, tc.wantReason)
			}
		})
	}
}

func TestDecidePrivateShortCircuitsRateOfOtherSignals(t *testing.T) {
	// Private wins even when later predicates would decline.
	got := Decide(Options{Text: "??", IsPrivate: true, ReplyMode: ModeAllMessages, Probability: 0})
	if !got.Reply || got.Reason != "private" {
		t.Fatalf("got %+v, want private accept", got)
	}
}

func TestRollProbabilityDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	hits := 0
	const n = 10000
	for i := 0; i < n; i++ {
		d := Decide(Options{Text: "x", ReplyMode: ModeAllMessages, Probability: 0.25, Rand: r})
		if d.Reply {
			hits++
		}
	}
	ratio := float64(hits) / n
	if ratio < 0.20 || ratio > 0.30 {
		t.Fatalf("hit ratio = %.3f, want about 0.25", ratio)
	}
}

func TestRollProbabilityNilRandNeverPanics(t *testing.T) {
	d := Decide(Options{Text: "x", ReplyMode: ModeAllMessages, Probability: 0.5, Rand: nil})
	if d.Reply {
		t.Fatalf("nil rand with fractional probability should decline")
	}
}
