package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"personachat/llm"
)

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestCreateFromNameParsesProfile(t *testing.T) {
	gen := &stubGenerator{response: "```json\n" + `{
		"personality": ["stoic", "dutiful"],
		"speaking_style": "Short formal sentences",
		"backstory": "A knight sworn to a fallen house.",
		"catchphrases": ["Honor above all."]
	}` + "\n```"}

	reg := New(gen)
	profile := reg.CreateFromName(context.Background(), "Ser Aldric")

	if profile.Key != "ser_aldric" {
		t.Errorf("profile key = %q, want %q", profile.Key, "ser_aldric")
	}
	if !reflect.DeepEqual(profile.Personality, []string{"stoic", "dutiful"}) {
		t.Errorf("personality = %v, want [stoic dutiful]", profile.Personality)
	}
	if profile.SpeakingStyle != "Short formal sentences" {
		t.Errorf("speaking style = %q", profile.SpeakingStyle)
	}
	if profile.AvatarURL == "" {
		t.Error("avatar URL not filled in")
	}

	registered, ok := reg.Get("ser_aldric")
	if !ok || registered.Name != "Ser Aldric" {
		t.Error("profile not registered under its key")
	}
}

func TestCreateFromNameSalvagesBadJSON(t *testing.T) {
	gen := &stubGenerator{response: "Ser Aldric is a knight of the old order who wanders the realm."}

	reg := New(gen)
	profile := reg.CreateFromName(context.Background(), "Ser Aldric")

	if !strings.Contains(profile.Backstory, "knight of the old order") {
		t.Errorf("salvaged backstory = %q, want raw text carried over", profile.Backstory)
	}
	if len(profile.Personality) == 0 {
		t.Error("salvaged profile has no personality traits")
	}
	if _, ok := reg.Get("ser_aldric"); !ok {
		t.Error("salvaged profile not registered")
	}
}

func TestCreateFromNameDefaultsOnFailure(t *testing.T) {
	gen := &stubGenerator{err: &llm.TransportError{Err: errors.New("timeout")}}

	reg := New(gen)
	profile := reg.CreateFromName(context.Background(), "Ser Aldric")

	if profile == nil {
		t.Fatal("CreateFromName() returned nil on generator failure")
	}
	if profile.Name != "Ser Aldric" || profile.Key != "ser_aldric" {
		t.Errorf("default profile identity = %q/%q", profile.Name, profile.Key)
	}
	if profile.Backstory == "" || profile.SpeakingStyle == "" {
		t.Error("default profile has empty fields")
	}
}

func TestLoadSeedFile(t *testing.T) {
	seed := `characters:
  - name: Iron Man
    personality: [witty, arrogant]
    speaking_style: Sarcastic one-liners
    backstory: Billionaire engineer turned armored hero.
    catchphrases: ["I am Iron Man."]
  - name: Yoda
    personality: [wise]
    speaking_style: Inverted sentences
`
	path := filepath.Join(t.TempDir(), "characters.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(nil)
	count, err := reg.LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile() error = %v", err)
	}
	if count != 2 {
		t.Errorf("LoadSeedFile() count = %d, want 2", count)
	}

	profile, ok := reg.Get("iron_man")
	if !ok {
		t.Fatal("iron_man not registered from seed file")
	}
	if !reflect.DeepEqual(profile.Personality, []string{"witty", "arrogant"}) {
		t.Errorf("personality = %v", profile.Personality)
	}
	if profile.AvatarURL == "" {
		t.Error("seeded profile has no fallback avatar URL")
	}
}

func TestLoadSeedFileErrors(t *testing.T) {
	reg := New(nil)

	if _, err := reg.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSeedFile() with missing file returned nil error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("characters: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.LoadSeedFile(bad); err == nil {
		t.Error("LoadSeedFile() with invalid YAML returned nil error")
	}
}

func TestKeyFromName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{name: "Iron Man", expected: "iron_man"},
		{name: "  Yoda  ", expected: "yoda"},
		{name: "Mary Jane Watson", expected: "mary_jane_watson"},
	}

	for _, tt := range tests {
		if got := KeyFromName(tt.name); got != tt.expected {
			t.Errorf("KeyFromName(%q) = %q, want %q", tt.name, got, tt.expected)
		}
	}
}
