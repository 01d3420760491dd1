// internal/activity/activity.go
package activity

import (
	"sync"

	"github.com/google/uuid"
)

// Registry enforces that a user is engaged in at most one gameplay activity
// (lobby, matchmaking, ...) at a time. It is a cooperative check shared by
// sibling subsystems, each registering before claiming a user's client.
type Registry interface {
	// RegisterActiveClient claims the user for the given client. Returns
	// false if the user is already active somewhere else.
	RegisterActiveClient(userName string, clientID uuid.UUID) bool
	// UnregisterClientForUser releases the user's claim, if any.
	UnregisterClientForUser(userName string)
}

// MemoryRegistry is the single-process Registry.
type MemoryRegistry struct {
	mu     sync.Mutex
	active map[string]uuid.UUID
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{active: make(map[string]uuid.UUID)}
}

func (r *MemoryRegistry) RegisterActiveClient(userName string, clientID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[userName]; busy {
		return false
	}
	r.active[userName] = clientID
	return true
}

func (r *MemoryRegistry) UnregisterClientForUser(userName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, userName)
}
