package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendMarkdownEscapeRetryOnParseError(t *testing.T) {
	var parseModes []string
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var req sendMessageRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		parseModes = append(parseModes, req.ParseMode)
		texts = append(texts, req.Text)

		w.Header().Set("Content-Type", "application/json")
		if len(parseModes) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Character '.' is reserved and must be escaped"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")
	if err := c.SendMarkdown(context.Background(), 1001, "v1.2 released", 0); err != nil {
		t.Fatalf("SendMarkdown() error = %v", err)
	}

	if len(parseModes) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(parseModes))
	}
	if parseModes[0] != "MarkdownV2" || parseModes[1] != "MarkdownV2" {
		t.Fatalf("parse modes = %v", parseModes)
	}
	if texts[1] != "v1\\.2 released" {
		t.Fatalf("retry should send the escaped text, got %q", texts[1])
	}
}

func TestSendMarkdownNonParseErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")
	err := c.SendMarkdown(context.Background(), 1, "hi", 0)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.ErrorCode != 429 {
		t.Fatalf("err = %v, want RequestError 429", err)
	}
	if IsMarkdownParseError(err) {
		t.Fatalf("rate limit must not classify as a markup rejection")
	}
}

func TestSendPlainCarriesReplyTo(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")
	if err := c.SendPlain(context.Background(), 7, "pong", 55); err != nil {
		t.Fatalf("SendPlain() error = %v", err)
	}
	if got.ChatID != 7 || got.ReplyToMessageID != 55 {
		t.Fatalf("request = %+v", got)
	}
	if got.ParseMode != "" {
		t.Fatalf("plain send must not set parse_mode, got %q", got.ParseMode)
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":5,"type":"private"},"text":"a"}},
			{"update_id":12,"message":{"message_id":2,"chat":{"id":5,"type":"private"},"text":"b"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")
	updates, next, err := c.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	if next != 13 {
		t.Fatalf("next offset = %d, want 13", next)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "a" {
		t.Fatalf("first update = %+v", updates[0])
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user *User
		want string
	}{
		{"full name", &User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", &User{FirstName: "Ada"}, "Ada"},
		{"username fallback", &User{Username: "ada42"}, "@ada42"},
		{"nil", nil, ""},
		{"empty", &User{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayName(tc.user); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
