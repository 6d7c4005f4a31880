package selector

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"log"
	"math/rand"
	"regexp"
	"strings"

	"personachat/llm"
	"personachat/models"
	"personachat/prompts"
)

// Keywords that typically indicate messages directed at the whole group
var groupMessageIndicators = []string{
	"everyone", "all of you", "you all", "guys", "team", "both",
	"introduce yourselves", "tell me about yourselves",
	"what does everyone", "your thoughts", "opinions",
}

// Greeting patterns that usually get a multi-character response
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey|greetings?)(\s+(everyone|all|guys|team))?[!.]?$`),
	regexp.MustCompile(`^good\s+(morning|afternoon|evening|day)(\s+(everyone|all))?[!.]?$`),
	regexp.MustCompile(`^what'?s\s+up(\s+(everyone|all|guys))?[!.]?$`),
}

// Selector decides which characters respond to a message in a group chat. It
// asks the model for a ranked selection and falls back to deterministic
// heuristics when the call fails or the output is unparsable.
type Selector struct {
	gen           llm.Generator
	historyWindow int
}

// New creates a Selector backed by the given generator.
func New(gen llm.Generator) *Selector {
	return &Selector{
		gen:           gen,
		historyWindow: prompts.HistoryWindow,
	}
}

// SelectResponders picks which of the given characters should respond to
// newMessage, ranked by relevance. The result is non-empty whenever
// characters is non-empty, contains no duplicates, only keys from the group,
// and at most maxResponders entries. Model failures never propagate; the
// heuristic fallback answers instead.
func (s *Selector) SelectResponders(ctx context.Context, characters []models.CharacterProfile, history *models.ChatHistory, newMessage models.Message, maxResponders int) models.SelectionResult {
	if len(characters) == 0 {
		return models.SelectionResult{}
	}
	if maxResponders < 1 {
		maxResponders = 1
	}
	if maxResponders > len(characters) {
		maxResponders = len(characters)
	}

	result, err := s.modelSelection(ctx, characters, history, newMessage, maxResponders)
	if err != nil {
		log.Printf("[SELECTOR_FALLBACK] model selection failed, using heuristics: %v", err)
		return s.heuristicSelection(characters, history, newMessage, maxResponders)
	}

	return result
}

func (s *Selector) modelSelection(ctx context.Context, characters []models.CharacterProfile, history *models.ChatHistory, newMessage models.Message, maxResponders int) (models.SelectionResult, error) {
	var recent []models.Message
	if history != nil {
		recent = history.Recent(s.historyWindow)
	}
	prompt := prompts.BuildSelectionPrompt(characters, recent, newMessage, maxResponders)

	raw, err := s.gen.Generate(ctx, prompt, 200, 0.3)
	if err != nil {
		return models.SelectionResult{}, err
	}

	var ranked []models.Responder
	cleaned := llm.StripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &ranked); err != nil {
		return models.SelectionResult{}, &llm.ParseError{Output: raw, Err: err}
	}

	// Validate returned keys against the group, drop anything else
	validKeys := make(map[string]bool, len(characters))
	for _, char := range characters {
		validKeys[char.Key] = true
	}

	seen := make(map[string]bool)
	var responders []models.Responder
	for _, r := range ranked {
		if !validKeys[r.Key] {
			log.Printf("[SELECTOR_WARNING] model returned unknown character key: %s", r.Key)
			continue
		}
		if seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		responders = append(responders, r)
		if len(responders) == maxResponders {
			break
		}
	}

	if len(responders) == 0 {
		return models.SelectionResult{}, &llm.ParseError{Output: raw, Err: errors.New("no valid responder keys")}
	}

	return models.SelectionResult{Responders: responders}, nil
}

// heuristicSelection is the deterministic fallback chain: direct name
// mentions, then greetings and group-directed messages, then the character
// who spoke least recently, then a reproducible pseudo-random pick.
func (s *Selector) heuristicSelection(characters []models.CharacterProfile, history *models.ChatHistory, newMessage models.Message, maxResponders int) models.SelectionResult {
	messageLower := strings.ToLower(strings.TrimSpace(newMessage.Text))

	if mentioned := detectMentions(messageLower, characters); len(mentioned) > 0 {
		if len(mentioned) > maxResponders {
			mentioned = mentioned[:maxResponders]
		}
		return withReason(mentioned, "mentioned by name")
	}

	if isGreeting(messageLower) || isGroupDirected(messageLower) {
		keys := make([]string, 0, maxResponders)
		for _, char := range characters[:maxResponders] {
			keys = append(keys, char.Key)
		}
		return withReason(keys, "group-directed message")
	}

	if key, ok := leastRecentSpeaker(characters, history); ok {
		return withReason([]string{key}, "spoke least recently")
	}

	// Reproducible per call: seeded by the message itself
	h := fnv.New64a()
	h.Write([]byte(newMessage.Sender))
	h.Write([]byte(newMessage.Text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	pick := characters[rng.Intn(len(characters))]

	return withReason([]string{pick.Key}, "default pick")
}

func withReason(keys []string, reason string) models.SelectionResult {
	responders := make([]models.Responder, 0, len(keys))
	for _, key := range keys {
		responders = append(responders, models.Responder{Key: key, Reason: reason})
	}
	return models.SelectionResult{Responders: responders}
}

// detectMentions finds characters addressed by name in the message, in group
// order.
func detectMentions(messageLower string, characters []models.CharacterProfile) []string {
	var mentioned []string
	for _, char := range characters {
		name := strings.ToLower(char.Name)
		if name == "" {
			continue
		}
		if strings.Contains(messageLower, name) || strings.Contains(messageLower, "@"+strings.ReplaceAll(name, " ", "")) {
			mentioned = append(mentioned, char.Key)
		}
	}
	return mentioned
}

func isGreeting(messageLower string) bool {
	for _, pattern := range greetingPatterns {
		if pattern.MatchString(messageLower) {
			return true
		}
	}
	return false
}

func isGroupDirected(messageLower string) bool {
	for _, indicator := range groupMessageIndicators {
		if strings.Contains(messageLower, indicator) {
			return true
		}
	}
	return false
}

// leastRecentSpeaker returns the character whose last message is oldest,
// preferring characters who have not spoken at all. Reports false when no
// character has spoken yet.
func leastRecentSpeaker(characters []models.CharacterProfile, history *models.ChatHistory) (string, bool) {
	if history == nil || history.Len() == 0 {
		return "", false
	}

	lastSpoke := make(map[string]int, len(characters))
	anySpoke := false
	for i, msg := range history.Messages() {
		lastSpoke[msg.Sender] = i
	}
	for _, char := range characters {
		if _, ok := lastSpoke[char.Key]; ok {
			anySpoke = true
			break
		}
	}
	if !anySpoke {
		return "", false
	}

	best := ""
	bestIdx := history.Len()
	for _, char := range characters {
		idx, ok := lastSpoke[char.Key]
		if !ok {
			// Never spoke: most overdue
			return char.Key, true
		}
		if idx < bestIdx {
			bestIdx = idx
			best = char.Key
		}
	}

	return best, best != ""
}
