package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"personachat/config"
	"personachat/orchestrator"
)

type StartAutonomousRequest struct {
	GroupID string `json:"group_id"`
	Topic   string `json:"topic"`
	Kind    string `json:"kind,omitempty"`
	// Message lets the caller pass a raw chat message and have the trigger
	// detected instead of supplying Topic/Kind
	Message  string `json:"message,omitempty"`
	MaxTurns int    `json:"max_turns,omitempty"`
}

type AutonomousSessionResponse struct {
	SessionID  string `json:"session_id,omitempty"`
	State      string `json:"state,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Turn       int    `json:"turn,omitempty"`
	MaxTurns   int    `json:"max_turns,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Error      string `json:"error,omitempty"`
}

type StepAutonomousRequest struct {
	SessionID string `json:"session_id"`
}

type StepAutonomousResponse struct {
	SessionID     string `json:"session_id"`
	State         string `json:"state"`
	Ended         bool   `json:"ended"`
	Turn          int    `json:"turn,omitempty"`
	SpeakerKey    string `json:"speaker_key,omitempty"`
	SpeakerName   string `json:"speaker_name,omitempty"`
	Text          string `json:"text,omitempty"`
	Diagnostic    string `json:"diagnostic,omitempty"`
	TurnsTotalMax int    `json:"max_turns,omitempty"`
}

// StartAutonomousHandler starts a bounded autonomous conversation among a
// group's characters. Participant validation happens before any model call.
func (a *API) StartAutonomousHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartAutonomousRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	gs, ok := a.getGroup(req.GroupID)
	if !ok {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.session != nil && gs.session.State() == orchestrator.StateRunning {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(AutonomousSessionResponse{Error: "an autonomous session is already running for this group"})
		return
	}

	topic := req.Topic
	kind := orchestrator.Kind(req.Kind)
	participants := gs.group.CharacterKeys
	maxTurns := req.MaxTurns

	if topic == "" && req.Message != "" {
		trigger := orchestrator.DetectTrigger(req.Message, participants)
		if trigger == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(AutonomousSessionResponse{Error: "no debate or discussion trigger detected in message"})
			return
		}
		topic = trigger.Topic
		kind = trigger.Kind
		participants = trigger.ParticipantKeys
		if maxTurns <= 0 {
			maxTurns = trigger.MaxTurns
		}
	}
	if topic == "" {
		http.Error(w, "Topic is required", http.StatusBadRequest)
		return
	}
	if ceiling := config.GetMaxAutonomousTurns(); maxTurns > ceiling {
		maxTurns = ceiling
	}

	session, err := a.Orch.Start(topic, kind, participants, maxTurns, gs.history)
	if err != nil {
		var cfgErr *orchestrator.ConfigError
		status := http.StatusInternalServerError
		if errors.As(err, &cfgErr) {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(AutonomousSessionResponse{Error: err.Error()})
		return
	}

	gs.session = session
	a.mu.Lock()
	a.sessionGroup[session.ID] = gs.group.ID
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AutonomousSessionResponse{
		SessionID: session.ID,
		State:     string(session.State()),
		Topic:     session.Topic,
		Kind:      string(session.Kind),
		MaxTurns:  session.MaxTurns,
	})
}

// StepAutonomousHandler runs one turn of an autonomous session. The host
// calls it repeatedly; once the session reaches a terminal state the
// response reports ended with the final state and any diagnostic.
func (a *API) StepAutonomousHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StepAutonomousRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	session, ok := a.Orch.Get(req.SessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	// Hold the group lock so the turn's history append does not interleave
	// with direct replies or stats reads
	a.mu.Lock()
	groupID := a.sessionGroup[session.ID]
	gs := a.groups[groupID]
	a.mu.Unlock()
	if gs != nil {
		gs.mu.Lock()
		defer gs.mu.Unlock()
	}

	result, err := a.Orch.Step(r.Context(), session)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSessionEnded) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(StepAutonomousResponse{
				SessionID:  session.ID,
				State:      string(session.State()),
				Ended:      true,
				Turn:       session.Turn(),
				Diagnostic: session.Diagnostic(),
			})
			return
		}
		http.Error(w, "Failed to step session", http.StatusInternalServerError)
		return
	}

	if gs != nil {
		a.persist(r.Context(), groupID, result.SpeakerKey, result.Text, gs.history.Len()-1)
	}

	speakerName := result.SpeakerKey
	if profile, ok := a.Registry.Get(result.SpeakerKey); ok {
		speakerName = profile.Name
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StepAutonomousResponse{
		SessionID:     session.ID,
		State:         string(result.State),
		Ended:         result.State != orchestrator.StateRunning,
		Turn:          result.Turn,
		SpeakerKey:    result.SpeakerKey,
		SpeakerName:   speakerName,
		Text:          result.Text,
		TurnsTotalMax: session.MaxTurns,
	})
}

// StopAutonomousHandler stops a session cooperatively between turns.
func (a *API) StopAutonomousHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StepAutonomousRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	session, ok := a.Orch.Get(req.SessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	a.Orch.Stop(session)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AutonomousSessionResponse{
		SessionID: session.ID,
		State:     string(session.State()),
		Turn:      session.Turn(),
	})
}

// AutonomousStatusHandler reports a session's current state.
func (a *API) AutonomousStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, ok := a.Orch.Get(r.URL.Query().Get("session_id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AutonomousSessionResponse{
		SessionID:  session.ID,
		State:      string(session.State()),
		Topic:      session.Topic,
		Kind:       string(session.Kind),
		Turn:       session.Turn(),
		MaxTurns:   session.MaxTurns,
		Diagnostic: session.Diagnostic(),
	})
}
