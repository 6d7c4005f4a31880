package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"personachat/models"
	"personachat/orchestrator"
	"personachat/prompts"
)

type GroupMessageRequest struct {
	GroupID       string `json:"group_id"`
	Message       string `json:"message"`
	MaxResponders int    `json:"max_responders"`
}

type CharacterReply struct {
	CharacterKey  string `json:"character_key"`
	CharacterName string `json:"character_name"`
	Text          string `json:"text"`
	Reason        string `json:"reason,omitempty"`
}

type GroupMessageResponse struct {
	Replies []CharacterReply `json:"replies,omitempty"`
	// Set when the message triggered an autonomous conversation instead of
	// direct replies
	SessionID string `json:"session_id,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Note      string `json:"note,omitempty"`
}

// GroupMessageHandler handles one user message to a group: the message is
// appended to the chat, the selector picks responders, and each responder's
// reply is generated in selection order. Messages asking for a debate or
// discussion start an autonomous session instead; messages asking to stop
// halt the active one.
func (a *API) GroupMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req GroupMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	gs, ok := a.getGroup(req.GroupID)
	if !ok {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()

	// A running autonomous session yields only to an explicit stop request;
	// a second debate or discussion cannot start until it ends
	if gs.session != nil && gs.session.State() == orchestrator.StateRunning {
		if orchestrator.IsInterruption(req.Message) {
			a.Orch.Stop(gs.session)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(GroupMessageResponse{
				SessionID: gs.session.ID,
				Note:      "autonomous conversation stopped",
			})
			return
		}
		if orchestrator.DetectTrigger(req.Message, gs.group.CharacterKeys) != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(GroupMessageResponse{
				SessionID: gs.session.ID,
				Note:      "an autonomous conversation is already running, ask to stop it first",
			})
			return
		}
	}

	// Debate/discussion requests start an autonomous session instead of
	// direct replies
	if trigger := orchestrator.DetectTrigger(req.Message, gs.group.CharacterKeys); trigger != nil {
		session, err := a.Orch.Start(trigger.Topic, trigger.Kind, trigger.ParticipantKeys, trigger.MaxTurns, gs.history)
		if err != nil {
			log.Printf("[GROUP_MESSAGE] trigger start failed for group %s: %v", gs.group.ID, err)
		} else {
			gs.history.Append(models.Message{
				Sender:    models.UserSender,
				Text:      req.Message,
				Timestamp: time.Now(),
			})
			a.persist(r.Context(), gs.group.ID, models.UserSender, req.Message, gs.history.Len()-1)

			gs.session = session
			a.mu.Lock()
			a.sessionGroup[session.ID] = gs.group.ID
			a.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(GroupMessageResponse{
				SessionID: session.ID,
				Topic:     session.Topic,
				Kind:      string(session.Kind),
			})
			return
		}
	}

	characters := a.groupProfiles(gs)
	userMessage := models.Message{Sender: models.UserSender, Text: req.Message}

	maxResponders := req.MaxResponders
	if maxResponders <= 0 {
		maxResponders = 2
	}

	// Selection and reply prompts see the history as it was before this
	// message; the new message is passed alongside
	recent := gs.history.Recent(prompts.HistoryWindow)
	selection := a.Selector.SelectResponders(r.Context(), characters, gs.history, userMessage, maxResponders)

	gs.history.Append(models.Message{
		Sender:    models.UserSender,
		Text:      req.Message,
		Timestamp: time.Now(),
	})
	a.persist(r.Context(), gs.group.ID, models.UserSender, req.Message, gs.history.Len()-1)

	var replies []CharacterReply
	for _, responder := range selection.Responders {
		speaker, ok := a.Registry.Get(responder.Key)
		if !ok {
			continue
		}

		others := make([]models.CharacterProfile, 0, len(characters)-1)
		for _, char := range characters {
			if char.Key != speaker.Key {
				others = append(others, char)
			}
		}

		prompt := prompts.BuildReplyPrompt(*speaker, others, recent, req.Message)

		text, err := a.Gen.Generate(r.Context(), prompt, 200, 0.8)
		if err != nil {
			// Degrade to a placeholder so one failed character doesn't
			// sink the whole response
			log.Printf("[GROUP_MESSAGE] reply failed for %s: %v", speaker.Key, err)
			text = fmt.Sprintf("*%s is thinking...*", speaker.Name)
		} else {
			text = prompts.SanitizeReply(text)
		}

		gs.history.Append(models.Message{
			Sender:    speaker.Key,
			Text:      text,
			Timestamp: time.Now(),
		})
		a.persist(r.Context(), gs.group.ID, speaker.Key, text, gs.history.Len()-1)

		replies = append(replies, CharacterReply{
			CharacterKey:  speaker.Key,
			CharacterName: speaker.Name,
			Text:          text,
			Reason:        responder.Reason,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GroupMessageResponse{Replies: replies})
}

func (a *API) groupProfiles(gs *groupState) []models.CharacterProfile {
	characters := make([]models.CharacterProfile, 0, len(gs.group.CharacterKeys))
	for _, key := range gs.group.CharacterKeys {
		if profile, ok := a.Registry.Get(key); ok {
			characters = append(characters, *profile)
		}
	}
	return characters
}
