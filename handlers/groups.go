package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	dbmodels "personachat/db/models"
	"personachat/models"
	"personachat/orchestrator"
)

type CreateGroupRequest struct {
	Name          string   `json:"name"`
	CharacterKeys []string `json:"character_keys"`
}

type CreateGroupResponse struct {
	Group models.Group `json:"group"`
	Error string       `json:"error,omitempty"`
}

type ListGroupsResponse struct {
	Groups []models.Group `json:"groups"`
	Count  int            `json:"count"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id"`
}

type DeleteGroupResponse struct {
	GroupID string `json:"group_id"`
	Deleted bool   `json:"deleted"`
}

type GroupStatsResponse struct {
	GroupID       string         `json:"group_id"`
	TotalMessages int            `json:"total_messages"`
	MessageCounts map[string]int `json:"character_message_counts"`
	GroupSize     int            `json:"group_size"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CreateGroupHandler creates a chat of 2-4 registered characters.
func (a *API) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if len(req.CharacterKeys) < 2 || len(req.CharacterKeys) > 4 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(CreateGroupResponse{
			Error: fmt.Sprintf("group needs 2-4 characters, got %d", len(req.CharacterKeys)),
		})
		return
	}
	for _, key := range req.CharacterKeys {
		if _, ok := a.Registry.Get(key); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(CreateGroupResponse{
				Error: fmt.Sprintf("unknown character key %q", key),
			})
			return
		}
	}

	group := models.Group{
		ID:            newGroupID(),
		Name:          req.Name,
		CharacterKeys: append([]string(nil), req.CharacterKeys...),
		CreatedAt:     time.Now(),
	}

	a.mu.Lock()
	a.groups[group.ID] = &groupState{
		group:   group,
		history: &models.ChatHistory{},
	}
	a.mu.Unlock()

	if a.Store != nil {
		err := a.Store.SaveGroup(r.Context(), &dbmodels.GroupDocument{
			GroupID:       group.ID,
			Name:          group.Name,
			CharacterKeys: group.CharacterKeys,
		})
		if err != nil {
			http.Error(w, "Failed to save group", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateGroupResponse{Group: group})
}

// ListGroupsHandler returns all live groups sorted by ID.
func (a *API) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.mu.Lock()
	groups := make([]models.Group, 0, len(a.groups))
	for _, gs := range a.groups {
		groups = append(groups, gs.group)
	}
	a.mu.Unlock()
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListGroupsResponse{
		Groups: groups,
		Count:  len(groups),
	})
}

// DeleteGroupHandler removes a group. A running autonomous session for the
// group is stopped first.
func (a *API) DeleteGroupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DeleteGroupRequest
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
	session := gs.session
	if session != nil && session.State() == orchestrator.StateRunning {
		a.Orch.Stop(session)
	}
	gs.mu.Unlock()

	a.mu.Lock()
	delete(a.groups, req.GroupID)
	if session != nil {
		delete(a.sessionGroup, session.ID)
	}
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DeleteGroupResponse{
		GroupID: req.GroupID,
		Deleted: true,
	})
}

// GroupStatsHandler reports message counts per character for a group.
func (a *API) GroupStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groupID := r.URL.Query().Get("group_id")
	gs, ok := a.getGroup(groupID)
	if !ok {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()

	counts := make(map[string]int, len(gs.group.CharacterKeys))
	for _, key := range gs.group.CharacterKeys {
		counts[key] = 0
	}
	for _, msg := range gs.history.Messages() {
		if _, ok := counts[msg.Sender]; ok {
			counts[msg.Sender]++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GroupStatsResponse{
		GroupID:       gs.group.ID,
		TotalMessages: gs.history.Len(),
		MessageCounts: counts,
		GroupSize:     len(gs.group.CharacterKeys),
		CreatedAt:     gs.group.CreatedAt,
	})
}
