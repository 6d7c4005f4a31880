package selector

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"personachat/llm"
	"personachat/models"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testCharacters() []models.CharacterProfile {
	return []models.CharacterProfile{
		{Key: "iron_man", Name: "Iron Man", Personality: []string{"witty", "arrogant"}, SpeakingStyle: "Sarcastic one-liners"},
		{Key: "yoda", Name: "Yoda", Personality: []string{"wise", "patient"}, SpeakingStyle: "Inverted sentences"},
		{Key: "joker", Name: "Joker", Personality: []string{"chaotic", "theatrical"}, SpeakingStyle: "Manic monologues"},
	}
}

func userMessage(text string) models.Message {
	return models.Message{Sender: models.UserSender, Text: text, Timestamp: time.Now()}
}

func TestSelectRespondersModelRanked(t *testing.T) {
	gen := &stubGenerator{response: `[{"key": "yoda", "reason": "asked about wisdom"}, {"key": "iron_man", "reason": "tech topic"}]`}
	sel := New(gen)

	result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("what is the meaning of life?"), 2)

	expected := []string{"yoda", "iron_man"}
	if !reflect.DeepEqual(result.Keys(), expected) {
		t.Errorf("SelectResponders() keys = %v, want %v", result.Keys(), expected)
	}
	if result.Responders[0].Reason != "asked about wisdom" {
		t.Errorf("first responder reason = %q, want %q", result.Responders[0].Reason, "asked about wisdom")
	}
}

func TestSelectRespondersFiltersUnknownKeys(t *testing.T) {
	gen := &stubGenerator{response: `[{"key": "batman"}, {"key": "joker"}, {"key": "joker"}]`}
	sel := New(gen)

	result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("tell me a joke"), 3)

	expected := []string{"joker"}
	if !reflect.DeepEqual(result.Keys(), expected) {
		t.Errorf("SelectResponders() keys = %v, want %v", result.Keys(), expected)
	}
}

func TestSelectRespondersCodeFencedOutput(t *testing.T) {
	gen := &stubGenerator{response: "```json\n[{\"key\": \"iron_man\"}]\n```"}
	sel := New(gen)

	result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("how do repulsors work?"), 1)

	expected := []string{"iron_man"}
	if !reflect.DeepEqual(result.Keys(), expected) {
		t.Errorf("SelectResponders() keys = %v, want %v", result.Keys(), expected)
	}
}

func TestSelectRespondersMalformedOutputFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "Prose instead of JSON", response: "I think Yoda should definitely respond to this one!"},
		{name: "Empty array", response: "[]"},
		{name: "Only unknown keys", response: `[{"key": "gandalf"}]`},
		{name: "Truncated JSON", response: `[{"key": "yo`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{response: tt.response}
			sel := New(gen)

			result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("anything interesting happen today?"), 2)

			assertValidSelection(t, result, testCharacters(), 2)
		})
	}
}

func TestSelectRespondersModelFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "Transport error", err: &llm.TransportError{Err: errors.New("connection refused")}},
		{name: "Rate limited", err: llm.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{err: tt.err}
			sel := New(gen)

			result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("hey yoda, what do you think?"), 2)

			expected := []string{"yoda"}
			if !reflect.DeepEqual(result.Keys(), expected) {
				t.Errorf("SelectResponders() keys = %v, want %v", result.Keys(), expected)
			}
		})
	}
}

func TestHeuristicGreetingSelectsMultiple(t *testing.T) {
	gen := &stubGenerator{err: llm.ErrRateLimited}
	sel := New(gen)

	result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("hello everyone!"), 2)

	if len(result.Responders) != 2 {
		t.Fatalf("SelectResponders() returned %d responders, want 2", len(result.Responders))
	}
	assertValidSelection(t, result, testCharacters(), 2)
}

func TestHeuristicLeastRecentSpeaker(t *testing.T) {
	gen := &stubGenerator{err: llm.ErrRateLimited}
	sel := New(gen)

	history := &models.ChatHistory{}
	history.Append(models.Message{Sender: "yoda", Text: "Patience you must have."})
	history.Append(models.Message{Sender: models.UserSender, Text: "ok"})
	history.Append(models.Message{Sender: "iron_man", Text: "Or just build a time machine."})

	// Joker never spoke, so the balance heuristic picks him
	result := sel.SelectResponders(context.Background(), testCharacters(), history, userMessage("so that happened"), 1)

	expected := []string{"joker"}
	if !reflect.DeepEqual(result.Keys(), expected) {
		t.Errorf("SelectResponders() keys = %v, want %v", result.Keys(), expected)
	}
}

func TestHeuristicLeastRecentAmongSpoken(t *testing.T) {
	gen := &stubGenerator{err: llm.ErrRateLimited}
	sel := New(gen)

	characters := testCharacters()[:2] // iron_man and yoda
	history := &models.ChatHistory{}
	history.Append(models.Message{Sender: "yoda", Text: "Begun, this chat has."})
	history.Append(models.Message{Sender: "iron_man", Text: "Great intro."})

	result := sel.SelectResponders(context.Background(), characters, history, userMessage("so that happened"), 1)

	expected := []string{"yoda"}
	if !reflect.DeepEqual(result.Keys(), expected) {
		t.Errorf("SelectResponders() keys = %v, want %v", result.Keys(), expected)
	}
}

func TestHeuristicDefaultPickIsReproducible(t *testing.T) {
	gen := &stubGenerator{err: llm.ErrRateLimited}
	sel := New(gen)
	msg := userMessage("mrrp")

	first := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, msg, 1)
	second := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, msg, 1)

	if !reflect.DeepEqual(first.Keys(), second.Keys()) {
		t.Errorf("default pick not reproducible: %v vs %v", first.Keys(), second.Keys())
	}
	assertValidSelection(t, first, testCharacters(), 1)
}

func TestSelectRespondersMaxOne(t *testing.T) {
	gen := &stubGenerator{response: `[{"key": "yoda"}, {"key": "iron_man"}, {"key": "joker"}]`}
	sel := New(gen)

	result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage("everyone, thoughts?"), 1)

	if len(result.Responders) != 1 {
		t.Errorf("SelectResponders() with maxResponders=1 returned %d responders, want exactly 1", len(result.Responders))
	}
}

func TestSelectRespondersEmptyGroup(t *testing.T) {
	gen := &stubGenerator{response: `[{"key": "yoda"}]`}
	sel := New(gen)

	result := sel.SelectResponders(context.Background(), nil, &models.ChatHistory{}, userMessage("hello?"), 2)

	if len(result.Responders) != 0 {
		t.Errorf("SelectResponders() with empty group returned %d responders, want 0", len(result.Responders))
	}
	if gen.calls != 0 {
		t.Errorf("SelectResponders() with empty group made %d model calls, want 0", gen.calls)
	}
}

func TestSelectRespondersInvariants(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		err           error
		message       string
		maxResponders int
	}{
		{name: "Valid ranked output", response: `[{"key": "joker"}, {"key": "yoda"}]`, message: "scare me", maxResponders: 2},
		{name: "Garbage output", response: "no thanks", message: "scare me", maxResponders: 3},
		{name: "Transport failure with mention", err: &llm.TransportError{Err: errors.New("timeout")}, message: "iron man, suit status?", maxResponders: 2},
		{name: "Transport failure plain message", err: llm.ErrRateLimited, message: "it rained today", maxResponders: 1},
		{name: "Oversized maxResponders clamps", response: `[{"key": "yoda"}]`, message: "hm", maxResponders: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{response: tt.response, err: tt.err}
			sel := New(gen)

			result := sel.SelectResponders(context.Background(), testCharacters(), &models.ChatHistory{}, userMessage(tt.message), tt.maxResponders)

			assertValidSelection(t, result, testCharacters(), tt.maxResponders)
		})
	}
}

// assertValidSelection checks the selector guarantees: non-empty, no
// duplicates, only group keys, at most maxResponders entries.
func assertValidSelection(t *testing.T, result models.SelectionResult, characters []models.CharacterProfile, maxResponders int) {
	t.Helper()

	if len(result.Responders) == 0 {
		t.Fatal("selection is empty for a non-empty group")
	}
	if maxResponders > len(characters) {
		maxResponders = len(characters)
	}
	if len(result.Responders) > maxResponders {
		t.Errorf("selection has %d responders, want at most %d", len(result.Responders), maxResponders)
	}

	valid := make(map[string]bool, len(characters))
	for _, char := range characters {
		valid[char.Key] = true
	}

	seen := make(map[string]bool)
	for _, responder := range result.Responders {
		if !valid[responder.Key] {
			t.Errorf("selection contains key %q not in the group", responder.Key)
		}
		if seen[responder.Key] {
			t.Errorf("selection contains duplicate key %q", responder.Key)
		}
		seen[responder.Key] = true
	}
}
