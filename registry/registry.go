package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"

	"personachat/llm"
	"personachat/models"
	"personachat/prompts"
)

// Registry holds the character profiles known to the application. Profiles
// are immutable once added.
type Registry struct {
	gen llm.Generator

	mu         sync.Mutex
	characters map[string]*models.CharacterProfile
}

// New creates an empty registry. The generator is used only by
// CreateFromName.
func New(gen llm.Generator) *Registry {
	return &Registry{
		gen:        gen,
		characters: make(map[string]*models.CharacterProfile),
	}
}

// Get returns the profile for a character key.
func (r *Registry) Get(key string) (*models.CharacterProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.characters[key]
	return profile, ok
}

// List returns all registered profiles sorted by key.
func (r *Registry) List() []*models.CharacterProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	profiles := make([]*models.CharacterProfile, 0, len(r.characters))
	for _, profile := range r.characters {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Key < profiles[j].Key })

	return profiles
}

// Add registers a profile, filling in the key and avatar URL if missing.
func (r *Registry) Add(profile *models.CharacterProfile) {
	if profile.Key == "" {
		profile.Key = KeyFromName(profile.Name)
	}
	if profile.AvatarURL == "" {
		profile.AvatarURL = AvatarURL(profile.Name)
	}

	r.mu.Lock()
	r.characters[profile.Key] = profile
	r.mu.Unlock()
}

// CreateFromName generates a profile for the named character with one model
// call and registers it. Unparsable output is salvaged from the raw text; a
// failed call yields a deterministic default profile. Either way a usable
// profile is always returned.
func (r *Registry) CreateFromName(ctx context.Context, name string) *models.CharacterProfile {
	profile := r.generateProfile(ctx, name)
	r.Add(profile)
	return profile
}

type generatedProfile struct {
	Personality   []string `json:"personality"`
	SpeakingStyle string   `json:"speaking_style"`
	Backstory     string   `json:"backstory"`
	Catchphrases  []string `json:"catchphrases"`
}

func (r *Registry) generateProfile(ctx context.Context, name string) *models.CharacterProfile {
	raw, err := r.gen.Generate(ctx, prompts.BuildProfilePrompt(name), 800, 0.7)
	if err != nil {
		log.Printf("[REGISTRY_FALLBACK] profile generation failed for %q: %v", name, err)
		return defaultProfile(name)
	}

	var gen generatedProfile
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &gen); err != nil {
		log.Printf("[REGISTRY_FALLBACK] unparsable profile for %q, salvaging text: %v", name, err)
		return salvageProfile(name, raw)
	}

	profile := &models.CharacterProfile{
		Key:           KeyFromName(name),
		Name:          name,
		Personality:   gen.Personality,
		SpeakingStyle: gen.SpeakingStyle,
		Backstory:     gen.Backstory,
		Catchphrases:  gen.Catchphrases,
	}
	if len(profile.Personality) == 0 {
		profile.Personality = []string{"engaging", "distinctive"}
	}
	if profile.SpeakingStyle == "" {
		profile.SpeakingStyle = "Natural conversation with characteristic expressions"
	}

	return profile
}

// salvageProfile builds a profile from raw model text that failed JSON
// parsing.
func salvageProfile(name, raw string) *models.CharacterProfile {
	backstory := strings.TrimSpace(raw)
	if len(backstory) > 300 {
		backstory = backstory[:300] + "..."
	}

	return &models.CharacterProfile{
		Key:           KeyFromName(name),
		Name:          name,
		Personality:   []string{"engaging", "distinctive"},
		SpeakingStyle: "Unique speech patterns with characteristic expressions",
		Backstory:     backstory,
		Catchphrases:  []string{fmt.Sprintf("Hello, I'm %s!", name)},
	}
}

func defaultProfile(name string) *models.CharacterProfile {
	return &models.CharacterProfile{
		Key:           KeyFromName(name),
		Name:          name,
		Personality:   []string{"charismatic", "intelligent", "engaging"},
		SpeakingStyle: "Clear, characteristic speech with memorable expressions",
		Backstory:     fmt.Sprintf("%s is a fascinating fictional character with a rich background story.", name),
		Catchphrases:  []string{fmt.Sprintf("Greetings! I am %s.", name), "The adventure begins now!"},
	}
}

// KeyFromName derives a character key from a display name.
func KeyFromName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// AvatarURL returns the fallback avatar for a character name.
func AvatarURL(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random&color=fff&size=200&rounded=true",
		url.QueryEscape(name))
}
