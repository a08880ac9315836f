// Package presence tracks each known user's matchmaking state.
//
// The tracker is the sole writer of status and partner fields. Other
// components read through StatusOf and mutate only via the transition
// methods, so the pairing symmetry invariant (A.partner == B iff
// B.partner == A) can be enforced in one place.
package presence

import "sync"

type Status int

const (
	StatusUnknown Status = iota
	StatusIdle
	StatusWaiting
	StatusPaired
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusWaiting:
		return "waiting"
	case StatusPaired:
		return "paired"
	}
	return "unknown"
}

type record struct {
	status  Status
	partner string
}

type Tracker struct {
	mu    sync.Mutex
	users map[string]record
}

func NewTracker() *Tracker {
	return &Tracker{users: make(map[string]record)}
}

// SetIdle transitions userID to Idle, clearing any partner pointer. The
// record is created if missing so a fresh registration is always known.
func (t *Tracker) SetIdle(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[userID] = record{status: StatusIdle}
}

func (t *Tracker) SetWaiting(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[userID] = record{status: StatusWaiting}
}

// SetPaired links a and b symmetrically in a single step. Callers must never
// pair one side independently: a window where only one side believes it is
// paired produces ghost partners.
func (t *Tracker) SetPaired(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[a] = record{status: StatusPaired, partner: b}
	t.users[b] = record{status: StatusPaired, partner: a}
}

// Unpair resets both members of a pairing to Idle in one step. If userID is
// not paired, it is a no-op and returns "".
func (t *Tracker) Unpair(userID string) (partner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[userID]
	if !ok || rec.status != StatusPaired {
		return ""
	}
	partner = rec.partner
	t.users[userID] = record{status: StatusIdle}
	if p, ok := t.users[partner]; ok && p.status == StatusPaired && p.partner == userID {
		t.users[partner] = record{status: StatusIdle}
	}
	return partner
}

// Clear forgets userID entirely (disconnect with no reconnect expected).
func (t *Tracker) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, userID)
}

// StatusOf returns the user's status and, when Paired, the partner id.
// StatusUnknown means the user was never registered (or has been cleared).
func (t *Tracker) StatusOf(userID string) (Status, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[userID]
	if !ok {
		return StatusUnknown, ""
	}
	return rec.status, rec.partner
}

// PartnerOf is a convenience for the relay path: the partner id if userID is
// currently paired, else "".
func (t *Tracker) PartnerOf(userID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[userID]
	if !ok || rec.status != StatusPaired {
		return ""
	}
	return rec.partner
}
