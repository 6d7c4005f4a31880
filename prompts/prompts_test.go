package prompts

import (
	"strings"
	"testing"

	"personachat/models"
)

func TestSanitizeReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Plain text", input: "Hello there.", expected: "Hello there."},
		{name: "Wrapping quotes", input: `"Hello there."`, expected: "Hello there."},
		{name: "Whitespace and quotes", input: "  \"Hello.\" \n", expected: "Hello."},
		{name: "Interior quotes kept", input: `He said "hi" to me`, expected: `He said "hi" to me`},
		{name: "Single quote char", input: `"`, expected: `"`},
		{name: "Empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeReply(tt.input); got != tt.expected {
				t.Errorf("SanitizeReply(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatHistory(t *testing.T) {
	messages := []models.Message{
		{Sender: models.UserSender, Text: "hi all"},
		{Sender: "yoda", Text: "Greetings, I bring."},
		{Sender: "stranger", Text: "who am I"},
	}
	names := map[string]string{"yoda": "Yoda"}

	out := FormatHistory(messages, names)

	if !strings.Contains(out, "User: hi all") {
		t.Errorf("user line missing from history: %q", out)
	}
	if !strings.Contains(out, "Yoda: Greetings, I bring.") {
		t.Errorf("named character line missing from history: %q", out)
	}
	if !strings.Contains(out, "stranger: who am I") {
		t.Errorf("unknown sender should fall back to its key: %q", out)
	}

	if FormatHistory(nil, names) != "" {
		t.Error("empty history should format to empty string")
	}
}

func TestBuildSelectionPromptMentionsAllKeys(t *testing.T) {
	characters := []models.CharacterProfile{
		{Key: "iron_man", Name: "Iron Man", Personality: []string{"witty"}, SpeakingStyle: "Sarcastic"},
		{Key: "yoda", Name: "Yoda", Personality: []string{"wise"}, SpeakingStyle: "Inverted"},
	}
	msg := models.Message{Sender: models.UserSender, Text: "who wants pizza?"}

	prompt := BuildSelectionPrompt(characters, nil, msg, 2)

	for _, key := range []string{"iron_man", "yoda"} {
		if !strings.Contains(prompt, key) {
			t.Errorf("selection prompt missing character key %q", key)
		}
	}
	if !strings.Contains(prompt, "who wants pizza?") {
		t.Error("selection prompt missing the new message")
	}
	if !strings.Contains(prompt, "JSON array") {
		t.Error("selection prompt does not ask for a JSON array")
	}
}

func TestBuildTurnPromptKinds(t *testing.T) {
	speaker := models.CharacterProfile{Key: "yoda", Name: "Yoda", Personality: []string{"wise"}, SpeakingStyle: "Inverted", Catchphrases: []string{"Do or do not."}}
	others := []models.CharacterProfile{{Key: "iron_man", Name: "Iron Man"}}

	debate := BuildTurnPrompt(speaker, others, "the force", nil, true, 3)
	if !strings.Contains(debate, "debate about \"the force\"") {
		t.Errorf("debate prompt missing framing: %q", debate)
	}
	if !strings.Contains(debate, "turn 3") {
		t.Error("debate prompt missing turn number")
	}
	if !strings.Contains(debate, "Do or do not.") {
		t.Error("debate prompt missing catchphrases")
	}

	discussion := BuildTurnPrompt(speaker, others, "the force", nil, false, 3)
	if !strings.Contains(discussion, "discussion about \"the force\"") {
		t.Errorf("discussion prompt missing framing: %q", discussion)
	}
	if !strings.Contains(discussion, "Iron Man") {
		t.Error("discussion prompt missing other participants")
	}
}
