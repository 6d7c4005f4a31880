package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"personachat/models"
)

type CreateCharacterRequest struct {
	Name string `json:"name"`
}

type CreateCharacterResponse struct {
	Character *models.CharacterProfile `json:"character"`
}

type ListCharactersResponse struct {
	Characters []*models.CharacterProfile `json:"characters"`
	Count      int                        `json:"count"`
}

// CreateCharacterHandler generates a profile for the named character and
// registers it. Generation failures degrade to a default profile, so this
// always succeeds for a valid name.
func (a *API) CreateCharacterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateCharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Character name is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	profile := a.Registry.CreateFromName(ctx, strings.TrimSpace(req.Name))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateCharacterResponse{Character: profile})
}

// ListCharactersHandler returns all registered characters.
func (a *API) ListCharactersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profiles := a.Registry.List()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListCharactersResponse{
		Characters: profiles,
		Count:      len(profiles),
	})
}
