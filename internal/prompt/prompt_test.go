package prompt

import (
	"strings"
	"testing"
)

func TestBuildFullPrompt(t *testing.T) {
	got := Build(
		"You are sarcastic but kind.",
		[]string{"Alice likes tea", " Bob moved to Berlin "},
		[]Turn{
			{Speaker: "Alice", Text: "hey"},
			{Speaker: "Masha", Text: "hi!"},
		},
		"Masha",
	)

	if !strings.HasPrefix(got, "System: Your name is Masha.") {
		t.Fatalf("missing identity preamble:\n%s", got)
	}
	if !strings.Contains(got, "You are sarcastic but kind.") {
		t.Fatalf("persona prompt missing:\n%s", got)
	}
	if !strings.Contains(got, "### Relevant Past Memories (for context):\n- Alice likes tea\n- Bob moved to Berlin\n") {
		t.Fatalf("memory block wrong:\n%s", got)
	}
	if !strings.Contains(got, "### Current Conversation:\nAlice: hey\nMasha: hi!\n") {
		t.Fatalf("history block wrong:\n%s", got)
	}
	if !strings.HasSuffix(got, "\nMasha: ") {
		t.Fatalf("missing trailing cue:\n%q", got[len(got)-20:])
	}
}

func TestBuildNoMemoriesOmitsSection(t *testing.T) {
	got := Build("persona", nil, []Turn{{Speaker: "A", Text: "x"}}, "Bot")
	if strings.Contains(got, "Relevant Past Memories") {
		t.Fatalf("memory header must be absent when there are no memories")
	}
	if strings.Contains(got, "Current Conversation") {
		t.Fatalf("conversation header is paired with the memory block")
	}
	if !strings.Contains(got, "A: x\n") {
		t.Fatalf("history line missing:\n%s", got)
	}
}

func TestBuildEmptyHistoryStillCues(t *testing.T) {
	got := Build("persona", nil, nil, "Bot")
	if !strings.HasSuffix(got, "Bot: ") {
		t.Fatalf("prompt must end with the identity cue:\n%q", got)
	}
}
