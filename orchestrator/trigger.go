package orchestrator

import (
	"regexp"
	"strings"
)

// Trigger describes an autonomous conversation a user message asked for.
type Trigger struct {
	Kind            Kind
	Topic           string
	ParticipantKeys []string
	MaxTurns        int
}

var debateTriggerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`debate about (.+)`),
	regexp.MustCompile(`argue about (.+)`),
	regexp.MustCompile(`fight about (.+)`),
	regexp.MustCompile(`(.+?) vs\.? (.+)`),
}

var discussionKeywords = []string{
	"discuss", "talk about", "chat about", "have a conversation",
	"what do you think about",
}

var interruptionKeywords = []string{
	"stop", "enough", "pause", "end", "quit", "finish",
}

// DetectTrigger recognizes debate and discussion requests in a user message.
// Debates take the first two participants and alternate; discussions take the
// whole group. Returns nil when the message asks for neither.
func DetectTrigger(message string, participantKeys []string) *Trigger {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, pattern := range debateTriggerPatterns {
		m := pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		topic := strings.TrimSpace(m[1])
		if len(m) > 2 {
			topic = topic + " vs " + strings.TrimSpace(m[2])
		}
		keys := participantKeys
		if len(keys) > 2 {
			keys = keys[:2]
		}
		return &Trigger{
			Kind:            KindDebate,
			Topic:           topic,
			ParticipantKeys: keys,
			MaxTurns:        DefaultDebateTurns,
		}
	}

	for _, keyword := range discussionKeywords {
		if strings.Contains(lower, keyword) {
			return &Trigger{
				Kind:            KindDiscussion,
				Topic:           strings.TrimSpace(message),
				ParticipantKeys: participantKeys,
				MaxTurns:        DefaultDiscussionTurns,
			}
		}
	}

	return nil
}

// IsInterruption reports whether a user message asks to halt a running
// autonomous conversation.
func IsInterruption(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range interruptionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
