package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"personachat/orchestrator"
)

func listGroups(t *testing.T, api *API) ListGroupsResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	w := httptest.NewRecorder()
	api.ListGroupsHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ListGroupsHandler status = %d", w.Code)
	}
	var resp ListGroupsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestListGroups(t *testing.T) {
	gen := &stubGenerator{fn: func(string) (string, error) { return "", nil }}
	api, _ := newTestAPI(gen)

	if resp := listGroups(t, api); resp.Count != 0 {
		t.Errorf("count = %d, want 0 before any group exists", resp.Count)
	}

	first := createTestGroup(t, api, "iron_man", "yoda")
	second := createTestGroup(t, api, "yoda", "joker")

	resp := listGroups(t, api)
	if resp.Count != 2 || len(resp.Groups) != 2 {
		t.Fatalf("list returned %d groups, want 2", len(resp.Groups))
	}
	if resp.Groups[0].ID > resp.Groups[1].ID {
		t.Errorf("groups not sorted by ID: %q, %q", resp.Groups[0].ID, resp.Groups[1].ID)
	}

	found := map[string]bool{}
	for _, g := range resp.Groups {
		found[g.ID] = true
	}
	if !found[first] || !found[second] {
		t.Errorf("list is missing a created group: %v", found)
	}
}

func TestDeleteGroup(t *testing.T) {
	gen := &stubGenerator{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "natural conclusion") {
			return "NO", nil
		}
		return "still talking", nil
	}}
	api, _ := newTestAPI(gen)
	groupID := createTestGroup(t, api, "iron_man", "yoda")

	w := postJSON(t, api.StartAutonomousHandler, StartAutonomousRequest{GroupID: groupID, Topic: "farewell", MaxTurns: 5})
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	var started AutonomousSessionResponse
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	session, ok := api.Orch.Get(started.SessionID)
	if !ok {
		t.Fatal("session not registered")
	}

	w = postJSON(t, api.DeleteGroupHandler, DeleteGroupRequest{GroupID: groupID})
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	var resp DeleteGroupResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Deleted || resp.GroupID != groupID {
		t.Errorf("delete response = %+v", resp)
	}

	// Deletion stops the group's running session
	if session.State() != orchestrator.StateStoppedByUser {
		t.Errorf("session state = %v, want %v after group deletion", session.State(), orchestrator.StateStoppedByUser)
	}

	if resp := listGroups(t, api); resp.Count != 0 {
		t.Errorf("count = %d after deletion, want 0", resp.Count)
	}

	// The group is gone for subsequent calls
	w = postJSON(t, api.GroupMessageHandler, GroupMessageRequest{GroupID: groupID, Message: "anyone here?"})
	if w.Code != http.StatusNotFound {
		t.Errorf("message to deleted group status = %d, want 404", w.Code)
	}
	w = postJSON(t, api.DeleteGroupHandler, DeleteGroupRequest{GroupID: groupID})
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}
