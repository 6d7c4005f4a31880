package handlers

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"

	dbmodels "personachat/db/models"
	"personachat/llm"
	"personachat/models"
	"personachat/orchestrator"
	"personachat/registry"
	"personachat/selector"
)

// ChatStore persists groups and messages. The mongo implementation lives in
// the db package; tests use an in-memory one.
type ChatStore interface {
	SaveGroup(ctx context.Context, group *dbmodels.GroupDocument) error
	SaveMessage(ctx context.Context, groupID, sender, text string, index int) error
	GroupHistory(ctx context.Context, groupID string, limit, offset int) ([]dbmodels.MessageDocument, int64, error)
}

// groupState is one live group chat. Its mutex serializes all chat activity
// for the group: direct replies, autonomous steps, and stats reads all touch
// the shared history.
type groupState struct {
	mu      sync.Mutex
	group   models.Group
	history *models.ChatHistory
	session *orchestrator.Session
}

// API holds the handler dependencies and the live group chats.
type API struct {
	Gen      llm.Generator
	Registry *registry.Registry
	Selector *selector.Selector
	Orch     *orchestrator.Orchestrator
	Store    ChatStore

	mu           sync.Mutex
	groups       map[string]*groupState
	sessionGroup map[string]string
}

// NewAPI wires the handler set.
func NewAPI(gen llm.Generator, reg *registry.Registry, sel *selector.Selector, orch *orchestrator.Orchestrator, store ChatStore) *API {
	return &API{
		Gen:          gen,
		Registry:     reg,
		Selector:     sel,
		Orch:         orch,
		Store:        store,
		groups:       make(map[string]*groupState),
		sessionGroup: make(map[string]string),
	}
}

func (a *API) getGroup(groupID string) (*groupState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	gs, ok := a.groups[groupID]
	return gs, ok
}

func newGroupID() string {
	return fmt.Sprintf("group-%d", rand.Intn(1000000))
}

// persist writes one message through to the store. Persistence failures are
// logged, not surfaced: the in-memory chat stays authoritative for the
// session.
func (a *API) persist(ctx context.Context, groupID, sender, text string, index int) {
	if a.Store == nil {
		return
	}
	if err := a.Store.SaveMessage(ctx, groupID, sender, text, index); err != nil {
		log.Printf("[PERSIST_ERROR] group %s index %d: %v", groupID, index, err)
	}
}
