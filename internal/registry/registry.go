// Package registry maps stable user identifiers to their current live
// signaling connection. One active connection per user; a re-register under
// the same user id replaces the previous mapping.
package registry

import (
	"sync"

	"github.com/pairwave/matchrelay/internal/protocol"
)

// Conn is a live client transport as seen by the core.
//
// Send is fire-and-forget: delivery failure is the transport's problem (the
// peer will separately observe a disconnect), so callers never block on it.
type Conn interface {
	// ID is a unique identifier for this transport connection, distinct from
	// the application-level user id.
	ID() string

	Send(msg protocol.ServerMessage) error
}

// Registry is the sole owner of the userID -> connection mapping.
type Registry struct {
	mu     sync.Mutex
	byUser map[string]Conn
}

func New() *Registry {
	return &Registry{byUser: make(map[string]Conn)}
}

// Register associates conn with userID, replacing any prior connection for
// that id. The old connection, if any, is returned so the caller may discard
// it; it is presumed already closing or stale.
func (r *Registry) Register(userID string, conn Conn) (old Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old = r.byUser[userID]
	r.byUser[userID] = conn
	return old
}

// Lookup returns the live connection for userID, or nil if the user is
// offline or was never registered.
func (r *Registry) Lookup(userID string) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser[userID]
}

// Remove drops the mapping for userID, but only if it still points at the
// connection with connID. This keeps a slow disconnect for a stale connection
// from tearing down a newer registration by the same user.
func (r *Registry) Remove(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byUser[userID]
	if !ok || conn.ID() != connID {
		return false
	}
	delete(r.byUser, userID)
	return true
}

// UserForConn resolves a connection id back to its user id by scanning the
// mapping once. O(n), acceptable because disconnects are rare relative to
// steady-state relay traffic. Returns "" when no user maps to connID.
func (r *Registry) UserForConn(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, conn := range r.byUser {
		if conn.ID() == connID {
			return userID
		}
	}
	return ""
}
