// Package registry tracks which users currently hold live transport sessions.
// It is process-local and rebuilt from nothing on restart: presence is a live,
// best-effort signal, not a durable fact.
package registry

import (
	"encoding/json"
	"sync"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Event types pushed over the real-time channel.
const (
	EventPresenceUpdated = "presenceUpdated"
	EventMessageReceived = "messageReceived"
	EventInviteReceived  = "inviteReceived"
	EventInviteAccepted  = "inviteAccepted"
	EventInviteDeclined  = "inviteDeclined"
)

// Session represents a single client connection. It's essentially a channel
// that the websocket write pump will listen to.
type Session chan []byte

// NewSession creates a session with enough buffer to absorb bursts.
func NewSession() Session {
	return make(Session, 32)
}

// Registry maps user ids to their live sessions. A user may hold several
// sessions at once (multiple devices); the user counts as online while at
// least one session is registered. No operation blocks on I/O.
type Registry struct {
	sessions map[uint]map[Session]bool
	mu       sync.RWMutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[uint]map[Session]bool),
	}
}

// Register adds a session for a user.
func (r *Registry) Register(userID uint, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[userID]; !ok {
		r.sessions[userID] = make(map[Session]bool)
	}
	r.sessions[userID][s] = true
}

// Unregister removes exactly the given session and closes it. It reports
// whether the user has no sessions left, i.e. has gone offline. Removing a
// session that was never registered is a no-op and never reports offline.
func (r *Registry) Unregister(userID uint, s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}

	delete(set, s)
	close(s) // Close the channel to signal the write pump to stop.

	if len(set) == 0 {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one registered session.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions[userID]) > 0
}

// SessionsFor returns a snapshot of the user's live sessions.
func (r *Registry) SessionsFor(userID uint) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	out := make([]Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// SendToUser pushes an event to every live session of a user. Delivery is
// best-effort: if the user is offline or a session's buffer is full the event
// is dropped, never an error — the durable write has already happened.
func (r *Registry) SendToUser(userID uint, event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for s := range r.sessions[userID] {
		// Use a non-blocking send to prevent a slow client from blocking the registry.
		select {
		case s <- b:
		default:
			// Session buffer is full; the disconnect path will clean it up.
		}
	}
}
