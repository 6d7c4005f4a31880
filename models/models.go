package models

import "time"

// UserSender is the sentinel sender key for messages written by the human user.
const UserSender = "user"

// CharacterProfile describes a simulated persona. Profiles are immutable once
// registered; the registry owns them.
type CharacterProfile struct {
	Key           string   `json:"key" bson:"key"`
	Name          string   `json:"name" bson:"name"`
	Personality   []string `json:"personality" bson:"personality"`
	SpeakingStyle string   `json:"speaking_style" bson:"speaking_style"`
	Backstory     string   `json:"backstory" bson:"backstory"`
	Catchphrases  []string `json:"catchphrases,omitempty" bson:"catchphrases,omitempty"`
	AvatarURL     string   `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
}

// Message is one entry in a chat. Sender is a character key or UserSender.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatHistory is the append-only message sequence for one chat. The host owns
// it and passes it by reference into the selector (read) and the orchestrator
// (append).
type ChatHistory struct {
	messages []Message
}

// Append adds a message to the end of the history.
func (h *ChatHistory) Append(m Message) {
	h.messages = append(h.messages, m)
}

// Messages returns the full message sequence in order.
func (h *ChatHistory) Messages() []Message {
	return h.messages
}

// Recent returns up to the last n messages in order.
func (h *ChatHistory) Recent(n int) []Message {
	if n <= 0 || len(h.messages) == 0 {
		return nil
	}
	if len(h.messages) <= n {
		return h.messages
	}
	return h.messages[len(h.messages)-n:]
}

// Len returns the number of messages in the history.
func (h *ChatHistory) Len() int {
	return len(h.messages)
}

// Responder is one chosen character with an optional one-line reason. The
// reason is diagnostic only.
type Responder struct {
	Key    string `json:"key"`
	Reason string `json:"reason,omitempty"`
}

// SelectionResult is the ordered set of characters chosen to respond to a
// message. Keys are always a subset of the group the selector was given,
// with no duplicates.
type SelectionResult struct {
	Responders []Responder `json:"responders"`
}

// Keys returns the responder keys in selection order.
func (r SelectionResult) Keys() []string {
	keys := make([]string, 0, len(r.Responders))
	for _, resp := range r.Responders {
		keys = append(keys, resp.Key)
	}
	return keys
}

// Group is a named chat of 2-4 characters.
type Group struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CharacterKeys []string  `json:"character_keys"`
	CreatedAt     time.Time `json:"created_at"`
}
