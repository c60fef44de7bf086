// Package presence turns connect/disconnect transitions into friend-scoped
// presenceUpdated pushes. Visibility is restricted to accepted friends: a user
// never learns the online status of anyone else.
package presence

import (
	"context"
	"log"
	"time"

	"pingpal/backend/internal/registry"
)

// FriendSource resolves the accepted-friend set of a user.
type FriendSource interface {
	AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

// LastSeenStore persists the durable side of presence. A nil time means
// "currently online".
type LastSeenStore interface {
	SetLastSeen(ctx context.Context, userID uint, at *time.Time) error
}

// PresencePayload is the payload of a presenceUpdated event.
type PresencePayload struct {
	OnlineFriendIDs []uint `json:"onlineFriendIds"`
}

// Broadcaster computes online-friend views and pushes them when connectivity
// changes. All pushes are fire-and-forget.
type Broadcaster struct {
	registry *registry.Registry
	friends  FriendSource
	users    LastSeenStore
}

// New creates a Broadcaster.
func New(reg *registry.Registry, friends FriendSource, users LastSeenStore) *Broadcaster {
	return &Broadcaster{registry: reg, friends: friends, users: users}
}

// OnConnect handles a freshly registered session for userID: it clears the
// durable lastSeen marker, pushes the user their own online-friends view, and
// refreshes the view of every online friend that now includes this user.
func (b *Broadcaster) OnConnect(ctx context.Context, userID uint) {
	// Storage failure here must not abort the connection.
	if err := b.users.SetLastSeen(ctx, userID, nil); err != nil {
		log.Printf("presence: clearing lastSeen for user %d: %v", userID, err)
	}

	friendIDs, err := b.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		log.Printf("presence: loading friends of user %d: %v", userID, err)
		return
	}

	b.registry.SendToUser(userID, registry.Event{
		Type:    registry.EventPresenceUpdated,
		Payload: PresencePayload{OnlineFriendIDs: b.onlineSubset(friendIDs)},
	})

	b.refreshFriends(ctx, friendIDs)
}

// OnDisconnect removes exactly the closing session. Only when the last session
// is gone does the user transition to offline: lastSeen is persisted and every
// online friend gets a recomputed view. A disconnect that leaves other
// sessions behind is invisible to friends.
func (b *Broadcaster) OnDisconnect(ctx context.Context, userID uint, s registry.Session) {
	wentOffline := b.registry.Unregister(userID, s)
	if !wentOffline {
		return
	}

	now := time.Now().UTC()
	if err := b.users.SetLastSeen(ctx, userID, &now); err != nil {
		log.Printf("presence: setting lastSeen for user %d: %v", userID, err)
	}

	friendIDs, err := b.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		log.Printf("presence: loading friends of user %d: %v", userID, err)
		return
	}

	b.refreshFriends(ctx, friendIDs)
}

// refreshFriends recomputes and pushes the online-friends view of every friend
// that is currently online. Online status is read from the registry at the
// moment of computation, never cached, so connect/disconnect races across
// sessions cannot announce a stale state.
func (b *Broadcaster) refreshFriends(ctx context.Context, friendIDs []uint) {
	for _, friendID := range friendIDs {
		if !b.registry.IsOnline(friendID) {
			continue
		}

		theirFriends, err := b.friends.AcceptedFriendIDs(ctx, friendID)
		if err != nil {
			log.Printf("presence: loading friends of user %d: %v", friendID, err)
			continue
		}

		b.registry.SendToUser(friendID, registry.Event{
			Type:    registry.EventPresenceUpdated,
			Payload: PresencePayload{OnlineFriendIDs: b.onlineSubset(theirFriends)},
		})
	}
}

func (b *Broadcaster) onlineSubset(friendIDs []uint) []uint {
	online := make([]uint, 0, len(friendIDs))
	for _, id := range friendIDs {
		if b.registry.IsOnline(id) {
			online = append(online, id)
		}
	}
	return online
}
