package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

type HistoryRequest struct {
	GroupID string `json:"group_id"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

type HistoryMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	GroupID  string           `json:"group_id"`
	Messages []HistoryMessage `json:"messages"`
	Total    int64            `json:"total"`
	HasMore  bool             `json:"has_more"`
}

// HistoryHandler returns paginated persisted chat history for a group.
func (a *API) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req HistoryRequest
	if r.Method == http.MethodGet {
		req.GroupID = r.URL.Query().Get("group_id")
		req.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
		req.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	messages, total, err := a.Store.GroupHistory(ctx, req.GroupID, req.Limit, req.Offset)
	if err != nil {
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}

	historyMessages := make([]HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		historyMessages = append(historyMessages, HistoryMessage{
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		})
	}

	response := HistoryResponse{
		GroupID:  req.GroupID,
		Messages: historyMessages,
		Total:    total,
		HasMore:  int64(req.Offset+req.Limit) < total,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
