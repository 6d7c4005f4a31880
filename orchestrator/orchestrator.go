package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"personachat/llm"
	"personachat/models"
	"personachat/prompts"
)

// State is the lifecycle state of an autonomous session.
type State string

const (
	StateRunning        State = "running"
	StateCompleted      State = "completed"
	StateStoppedByUser  State = "stopped_by_user"
	StateStoppedByLimit State = "stopped_by_limit"
	StateStoppedByError State = "stopped_by_error"
)

// Kind is the flavor of an autonomous conversation.
type Kind string

const (
	KindDiscussion Kind = "discussion"
	KindDebate     Kind = "debate"
)

// Default turn caps per conversation kind.
const (
	DefaultDebateTurns     = 8
	DefaultDiscussionTurns = 6
)

// ErrSessionEnded is returned by Step once a session has reached a terminal
// state. The session's State and Diagnostic say why.
var ErrSessionEnded = errors.New("orchestrator: session ended")

// ConfigError reports invalid session parameters, surfaced before any model
// call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "orchestrator: " + e.Reason
}

// ProfileLookup is the read-only character registry the orchestrator needs.
type ProfileLookup interface {
	Get(key string) (*models.CharacterProfile, bool)
}

// TurnResult is one completed autonomous turn.
type TurnResult struct {
	SpeakerKey string `json:"speaker_key"`
	Text       string `json:"text"`
	Turn       int    `json:"turn"`
	State      State  `json:"state"`
}

// Session is one bounded autonomous run. It is created Running and ends in
// exactly one terminal state. The shared history is appended to by Step and
// never rewritten.
type Session struct {
	ID           string
	Topic        string
	Kind         Kind
	Participants []string
	MaxTurns     int

	mu         sync.Mutex
	state      State
	turn       int
	diagnostic string
	history    *models.ChatHistory
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turn returns the number of completed turns.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Diagnostic returns the failure description for a session that ended in
// StateStoppedByError, empty otherwise.
func (s *Session) Diagnostic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagnostic
}

// History returns the shared chat history the session appends to.
func (s *Session) History() *models.ChatHistory {
	return s.history
}

// Orchestrator runs bounded autonomous conversations among fixed character
// groups. Turns are strictly sequential; the only blocking work per turn is
// the outbound model call.
type Orchestrator struct {
	gen      llm.Generator
	profiles ProfileLookup

	// RepetitionThreshold tunes convergence detection: the session completes
	// when the unique share of the last few replies drops below it.
	RepetitionThreshold float64

	retryDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Orchestrator backed by the given generator and registry.
func New(gen llm.Generator, profiles ProfileLookup) *Orchestrator {
	return &Orchestrator{
		gen:                 gen,
		profiles:            profiles,
		RepetitionThreshold: 0.7,
		retryDelay:          500 * time.Millisecond,
		sessions:            make(map[string]*Session),
	}
}

// Start validates the participants and creates a Running session around the
// topic. The shared history may already contain earlier chat; a nil history
// starts empty. No model call is made here.
func (o *Orchestrator) Start(topic string, kind Kind, participantKeys []string, maxTurns int, history *models.ChatHistory) (*Session, error) {
	if len(participantKeys) < 2 || len(participantKeys) > 4 {
		return nil, &ConfigError{Reason: fmt.Sprintf("need 2-4 participants, got %d", len(participantKeys))}
	}
	for _, key := range participantKeys {
		if _, ok := o.profiles.Get(key); !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("no profile for participant %q", key)}
		}
	}
	if maxTurns <= 0 {
		if kind == KindDebate {
			maxTurns = DefaultDebateTurns
		} else {
			maxTurns = DefaultDiscussionTurns
		}
	}
	if kind == "" {
		kind = KindDiscussion
	}
	if history == nil {
		history = &models.ChatHistory{}
	}

	session := &Session{
		ID:           fmt.Sprintf("session-%d", rand.Intn(1000000)),
		Topic:        topic,
		Kind:         kind,
		Participants: append([]string(nil), participantKeys...),
		MaxTurns:     maxTurns,
		state:        StateRunning,
		history:      history,
	}

	o.mu.Lock()
	o.sessions[session.ID] = session
	o.mu.Unlock()

	return session, nil
}

// Get looks up a live session by ID.
func (o *Orchestrator) Get(id string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session, ok := o.sessions[id]
	return session, ok
}

// Stop ends a running session cooperatively. A turn already in flight
// finishes first; no further turn is produced.
func (o *Orchestrator) Stop(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		s.state = StateStoppedByUser
	}
}

// Step runs exactly one turn: pick the next speaker, generate their reply,
// append it to the shared history, then check whether the conversation has
// concluded. A failed model call is retried once with backoff; a second
// failure ends the session with a diagnostic. Ended sessions return
// ErrSessionEnded.
func (o *Orchestrator) Step(ctx context.Context, s *Session) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return nil, ErrSessionEnded
	}

	speakerKey := s.Participants[s.turn%len(s.Participants)]
	speaker, ok := o.profiles.Get(speakerKey)
	if !ok {
		s.state = StateStoppedByError
		s.diagnostic = fmt.Sprintf("participant %q disappeared from registry", speakerKey)
		return nil, ErrSessionEnded
	}

	others := make([]models.CharacterProfile, 0, len(s.Participants)-1)
	for _, key := range s.Participants {
		if key == speakerKey {
			continue
		}
		if profile, ok := o.profiles.Get(key); ok {
			others = append(others, *profile)
		}
	}

	prompt := prompts.BuildTurnPrompt(*speaker, others, s.Topic,
		s.history.Recent(prompts.HistoryWindow), s.Kind == KindDebate, s.turn+1)

	text, err := o.gen.Generate(ctx, prompt, 150, 0.8)
	if err != nil {
		log.Printf("[ORCH_TURN_RETRY] session %s turn %d: %v", s.ID, s.turn+1, err)
		time.Sleep(o.retryDelay)
		text, err = o.gen.Generate(ctx, prompt, 150, 0.8)
		if err != nil {
			s.state = StateStoppedByError
			s.diagnostic = fmt.Sprintf("turn %d failed after retry: %v", s.turn+1, err)
			log.Printf("[ORCH_TURN_ERROR] session %s: %s", s.ID, s.diagnostic)
			return nil, ErrSessionEnded
		}
	}

	text = prompts.SanitizeReply(text)
	s.history.Append(models.Message{
		Sender:    speakerKey,
		Text:      text,
		Timestamp: time.Now(),
	})
	s.turn++

	if s.turn >= s.MaxTurns {
		s.state = StateStoppedByLimit
	} else if o.concluded(ctx, s) {
		s.state = StateCompleted
	}

	return &TurnResult{
		SpeakerKey: speakerKey,
		Text:       text,
		Turn:       s.turn,
		State:      s.state,
	}, nil
}

// concluded reports whether the conversation has naturally ended: either the
// recent replies are too repetitive, or the conclusion-check call says so.
// Callers hold s.mu.
func (o *Orchestrator) concluded(ctx context.Context, s *Session) bool {
	if o.repetitive(s) {
		log.Printf("[ORCH_CONVERGED] session %s: repetitive replies after turn %d", s.ID, s.turn)
		return true
	}

	names := make(map[string]string, len(s.Participants))
	for _, key := range s.Participants {
		if profile, ok := o.profiles.Get(key); ok {
			names[key] = profile.Name
		}
	}

	prompt := prompts.BuildConclusionPrompt(s.Topic, s.history.Recent(prompts.HistoryWindow), names)
	answer, err := o.gen.Generate(ctx, prompt, 10, 0.1)
	if err != nil {
		// A failed conclusion check never ends the session
		log.Printf("[ORCH_CONCLUSION_SKIP] session %s: %v", s.ID, err)
		return false
	}

	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), "YES")
}

// repetitive checks the last four participant replies for near-duplication.
func (o *Orchestrator) repetitive(s *Session) bool {
	var texts []string
	messages := s.history.Messages()
	for i := len(messages) - 1; i >= 0 && len(texts) < 4; i-- {
		for _, key := range s.Participants {
			if messages[i].Sender == key {
				texts = append(texts, strings.ToLower(strings.TrimSpace(messages[i].Text)))
				break
			}
		}
	}
	if len(texts) < 4 {
		return false
	}

	unique := make(map[string]bool, len(texts))
	for _, t := range texts {
		unique[t] = true
	}

	return float64(len(unique)) < float64(len(texts))*o.RepetitionThreshold
}
