package app

import (
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

// Role is what a connection is allowed to do inside its lobby.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

// Binding associates a live connection with an identity inside one lobby.
type Binding struct {
	ConnID        string
	Role          Role
	LobbyID       string
	AdminID       string
	ParticipantID string
}

// Registry is the connection <-> identity map. It never touches session state.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]Binding
	lobbies map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[string]Binding),
		lobbies: make(map[string]map[string]struct{}),
	}
}

// Bind registers b, replacing any earlier binding of the same connection.
func (r *Registry) Bind(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(b.ConnID)
	r.conns[b.ConnID] = b
	members, ok := r.lobbies[b.LobbyID]
	if !ok {
		members = make(map[string]struct{})
		r.lobbies[b.LobbyID] = members
	}
	members[b.ConnID] = struct{}{}
}

func (r *Registry) Lookup(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	return b, ok
}

// Remove drops the connection and returns what it was bound to.
func (r *Registry) Remove(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(connID)
}

func (r *Registry) removeLocked(connID string) (Binding, bool) {
	b, ok := r.conns[connID]
	if !ok {
		return Binding{}, false
	}
	delete(r.conns, connID)
	if members, ok := r.lobbies[b.LobbyID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.lobbies, b.LobbyID)
		}
	}
	return b, true
}

// Connections returns the ids of every connection bound to the lobby, sorted.
func (r *Registry) Connections(lobbyID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.lobbies[lobbyID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Authorize checks that the connection is bound to lobbyID with the given role.
// An empty role accepts any role.
func (r *Registry) Authorize(connID, lobbyID string, role Role) (Binding, error) {
	b, ok := r.Lookup(connID)
	if !ok || b.LobbyID != lobbyID {
		return Binding{}, domain.ErrAccessDenied
	}
	if role != "" && b.Role != role {
		return Binding{}, domain.ErrAccessDenied
	}
	return b, nil
}
