package botruntime

import (
	"testing"

	"github.com/bobberdolle1/Puppeteer/internal/telegram"
)

func TestIsReplyToSelf(t *testing.T) {
	const botID = int64(42)

	cases := []struct {
		name string
		msg  *telegram.Message
		want bool
	}{
		{
			name: "reply_to_this_account",
			msg:  &telegram.Message{ReplyTo: &telegram.Message{From: &telegram.User{ID: botID, IsBot: true}}},
			want: true,
		},
		{
			name: "reply_to_other_bot",
			msg:  &telegram.Message{ReplyTo: &telegram.Message{From: &telegram.User{ID: 7, IsBot: true}}},
			want: false,
		},
		{
			name: "reply_to_human",
			msg:  &telegram.Message{ReplyTo: &telegram.Message{From: &telegram.User{ID: 7}}},
			want: false,
		},
		{
			name: "reply_without_sender",
			msg:  &telegram.Message{ReplyTo: &telegram.Message{}},
			want: false,
		},
		{
			name: "not_a_reply",
			msg:  &telegram.Message{},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isReplyToSelf(tc.msg, botID); got != tc.want {
				t.Fatalf("isReplyToSelf = %v, want %v", got, tc.want)
			}
		})
	}
}
