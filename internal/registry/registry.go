// internal/registry/registry.go
package registry

import (
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scope partitions connections: every browsing client sits in the lobby
// scope, every seated player additionally holds a match-scoped connection.
// The two scopes are independent; the same identity may live in both.
type Scope string

// ScopeLobby is the directory-browsing scope.
const ScopeLobby Scope = "lobby"

// MatchScope returns the scope for connections inside a specific match.
func MatchScope(matchID uuid.UUID) Scope {
	return Scope("match:" + matchID.String())
}

// ParseMatchScope extracts the match ID from a match scope.
func ParseMatchScope(s Scope) (uuid.UUID, bool) {
	const prefix = "match:"
	str := string(s)
	if len(str) <= len(prefix) || str[:len(prefix)] != prefix {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str[len(prefix):])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Registry maps (identity, scope) pairs to live handles. It is the only
// shared resource between the lobby manager and match sessions; all
// mutation happens under one mutex.
type Registry struct {
	mu     sync.Mutex
	scopes map[Scope]map[string]*Handle
	logger *logrus.Logger

	// OnDrop is invoked (outside the lock) when a write to a handle fails,
	// once per (identity, scope) the dead handle occupied. The registry has
	// already removed the entries by then.
	OnDrop func(identity string, scope Scope)
}

// New creates an empty registry.
func New(logger *logrus.Logger) *Registry {
	return &Registry{
		scopes: make(map[Scope]map[string]*Handle),
		logger: logger,
	}
}

// Register installs handle for (identity, scope), replacing and closing any
// prior handle for the same pair. Replacement is not an error; it is how a
// reconnect with a fresh socket takes over.
func (r *Registry) Register(identity string, scope Scope, h *Handle) {
	r.mu.Lock()
	set, ok := r.scopes[scope]
	if !ok {
		set = make(map[string]*Handle)
		r.scopes[scope] = set
	}
	prev := set[identity]
	set[identity] = h
	h.onDead = r.handleDead
	r.mu.Unlock()

	if prev != nil && prev != h {
		r.logger.Infof("registry: replacing handle for %s in scope %s", identity, scope)
		// The transport close waits on the peer's close echo, which can
		// take seconds against an unresponsive socket. Cancel the pump
		// now and let the close run off the reconnect path.
		prev.cancel()
		go prev.Close(websocket.StatusPolicyViolation, "superseded by a newer connection")
	}
}

// Unregister removes every entry pointing at h, in any scope. Idempotent.
// Reports whether h was still registered anywhere: a superseded handle's
// handler exiting late gets false and must not treat its exit as the
// identity leaving.
func (r *Registry) Unregister(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := false
	for scope, set := range r.scopes {
		if set[h.Identity] == h {
			delete(set, h.Identity)
			removed = true
		}
		if len(set) == 0 {
			delete(r.scopes, scope)
		}
	}
	return removed
}

// SendTo delivers msg to the identity's handle in scope. A missing
// recipient is silently dropped; the caller decides whether that matters.
func (r *Registry) SendTo(identity string, scope Scope, msg interface{}) {
	r.mu.Lock()
	h := r.scopes[scope][identity]
	r.mu.Unlock()
	if h != nil {
		h.Send(msg)
	}
}

// Broadcast sends msg to every handle in scope, except the optional
// excluded identities.
func (r *Registry) Broadcast(scope Scope, msg interface{}, exclude ...string) {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.scopes[scope]))
	for identity, h := range r.scopes[scope] {
		if contains(exclude, identity) {
			continue
		}
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Send(msg)
	}
}

// handleDead converts a failed write into the same cleanup an explicit
// close event performs, then notifies OnDrop per dropped scope.
func (r *Registry) handleDead(h *Handle) {
	r.mu.Lock()
	var dropped []Scope
	for scope, set := range r.scopes {
		if set[h.Identity] == h {
			delete(set, h.Identity)
			dropped = append(dropped, scope)
		}
		if len(set) == 0 {
			delete(r.scopes, scope)
		}
	}
	onDrop := r.OnDrop
	r.mu.Unlock()

	if onDrop != nil {
		for _, scope := range dropped {
			onDrop(h.Identity, scope)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
