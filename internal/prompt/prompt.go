// Package prompt renders persona, retrieved memory, and recent history into a
// single inference prompt.
package prompt

import (
	"strings"
)

// Turn is one line of recent conversation history.
type Turn struct {
	Speaker string
	Text    string
}

// Build assembles the prompt deterministically:
// identity preamble, persona prompt, optional memories block, history as
// "speaker: text" lines oldest first, trailing cue naming the identity.
// No memory section is emitted when memories are empty.
func Build(personaPrompt string, memories []string, history []Turn, identityName string) string {
	var b strings.Builder

	b.WriteString("System: Your name is ")
	b.WriteString(identityName)
	b.WriteString(". This is your own name - use it when you introduce yourself or when someone asks who you are. ")
	b.WriteString("You respond to the name \"")
	b.WriteString(identityName)
	b.WriteString("\" and its variations. ")
	b.WriteString("When addressed by this name, answer as if it is your real name.\n\n")
	b.WriteString(personaPrompt)
	b.WriteString("\n\n")

	if len(memories) > 0 {
		b.WriteString("### Relevant Past Memories (for context):\n")
		for _, m := range memories {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(m))
			b.WriteString("\n")
		}
		b.WriteString("\n### Current Conversation:\n")
	}

	for _, t := range history {
		b.WriteString(t.Speaker)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	b.WriteString(identityName)
	b.WriteString(": ")
	return b.String()
}
