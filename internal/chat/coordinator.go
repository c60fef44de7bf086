// Package chat persists direct messages and fans them out to live sessions.
// The store is the source of truth: a message is durably written before any
// delivery attempt, and a failed push is never reported to the sender.
package chat

import (
	"context"
	"sort"
	"time"

	"pingpal/backend/internal/apperr"
	"pingpal/backend/internal/models"
	"pingpal/backend/internal/registry"
)

// MessageStore is the durable, append-mostly log of messages per user pair.
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	// ListConversation returns all messages between the two users, oldest first.
	ListConversation(ctx context.Context, a, b uint) ([]models.Message, error)
	// MarkSeen flips seen=true on every unseen message from counterpartID to
	// viewerID and returns how many rows changed.
	MarkSeen(ctx context.Context, viewerID, counterpartID uint) (int64, error)
	// DeleteConversation removes every message between the two users, in both
	// directions, and returns how many rows were removed.
	DeleteConversation(ctx context.Context, a, b uint) (int64, error)
	// LatestPerPartner returns, for each conversation partner of userID, the
	// most recent message exchanged with them.
	LatestPerPartner(ctx context.Context, userID uint) (map[uint]models.Message, error)
	// UnseenCounts returns, per sender, how many unseen messages await viewerID.
	UnseenCounts(ctx context.Context, viewerID uint) (map[uint]int64, error)
}

// FriendSource answers social-graph questions. Messaging is gated on an
// accepted relationship.
type FriendSource interface {
	AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error)
	AreFriends(ctx context.Context, a, b uint) (bool, error)
}

// UserSource resolves partner profiles for the sidebar.
type UserSource interface {
	GetUsers(ctx context.Context, ids []uint) ([]models.User, error)
}

// Notifier pushes real-time events; *registry.Registry satisfies it.
type Notifier interface {
	SendToUser(userID uint, event registry.Event)
}

// SidebarEntry is one conversation partner in the client's list view.
type SidebarEntry struct {
	Partner       models.PublicProfile `json:"partner"`
	LastSeen      *time.Time           `json:"lastSeen"`
	LatestMessage *models.Message      `json:"latestMessage"`
	UnseenCount   int64                `json:"unseenCount"`
}

// Coordinator implements send, seen-tracking, and the sidebar view.
type Coordinator struct {
	messages MessageStore
	friends  FriendSource
	users    UserSource
	notify   Notifier
}

// New creates a Coordinator.
func New(messages MessageStore, friends FriendSource, users UserSource, notify Notifier) *Coordinator {
	return &Coordinator{messages: messages, friends: friends, users: users, notify: notify}
}

// Send persists a message and then attempts live delivery to the receiver's
// sessions. Delivery failure is invisible to the sender: if the receiver is
// offline the message simply waits in the store for their next retrieval.
func (c *Coordinator) Send(ctx context.Context, senderID, receiverID uint, text, attachmentURL string) (*models.Message, error) {
	if text == "" && attachmentURL == "" {
		return nil, apperr.New(apperr.Validation, apperr.ReasonEmptyMessage, "Message must contain text or an attachment")
	}
	if senderID == receiverID {
		return nil, apperr.Validationf("Cannot message yourself")
	}

	ok, err := c.friends.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to check relationship", err)
	}
	if !ok {
		return nil, apperr.New(apperr.Authorization, apperr.ReasonNotFriends, "You can only message your friends")
	}

	msg := &models.Message{
		SenderID:      senderID,
		ReceiverID:    receiverID,
		Text:          text,
		AttachmentURL: attachmentURL,
	}
	if err := c.messages.Create(ctx, msg); err != nil {
		return nil, apperr.Dependencyf("failed to store message", err)
	}

	c.notify.SendToUser(receiverID, registry.Event{
		Type:    registry.EventMessageReceived,
		Payload: msg,
	})

	return msg, nil
}

// ListConversation returns the full message history between the user and a
// counterpart, oldest first.
func (c *Coordinator) ListConversation(ctx context.Context, userID, counterpartID uint) ([]models.Message, error) {
	msgs, err := c.messages.ListConversation(ctx, userID, counterpartID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load conversation", err)
	}
	return msgs, nil
}

// MarkSeen flips every unseen incoming message from counterpartID to seen and
// returns the number of rows updated. It is idempotent: a repeat call with no
// new messages reports zero.
func (c *Coordinator) MarkSeen(ctx context.Context, viewerID, counterpartID uint) (int64, error) {
	n, err := c.messages.MarkSeen(ctx, viewerID, counterpartID)
	if err != nil {
		return 0, apperr.Dependencyf("failed to mark messages seen", err)
	}
	return n, nil
}

// DeleteConversation removes all messages for the unordered pair and returns
// the number of rows removed. The relationship row is untouched.
func (c *Coordinator) DeleteConversation(ctx context.Context, userID, counterpartID uint) (int64, error) {
	n, err := c.messages.DeleteConversation(ctx, userID, counterpartID)
	if err != nil {
		return 0, apperr.Dependencyf("failed to delete conversation", err)
	}
	return n, nil
}

// ListSidebar returns one entry per accepted friend with the latest message
// and the unseen incoming count, ordered by most recent message first.
// Friends with no messages sort last, alphabetically by name.
func (c *Coordinator) ListSidebar(ctx context.Context, userID uint) ([]SidebarEntry, error) {
	friendIDs, err := c.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load friends", err)
	}

	friends, err := c.users.GetUsers(ctx, friendIDs)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load friend profiles", err)
	}

	latest, err := c.messages.LatestPerPartner(ctx, userID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load latest messages", err)
	}

	unseen, err := c.messages.UnseenCounts(ctx, userID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load unseen counts", err)
	}

	entries := make([]SidebarEntry, 0, len(friends))
	for _, friend := range friends {
		entry := SidebarEntry{
			Partner:     friend.Public(),
			LastSeen:    friend.LastSeen,
			UnseenCount: unseen[friend.ID],
		}
		if m, ok := latest[friend.ID]; ok {
			msg := m
			entry.LatestMessage = &msg
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		mi, mj := entries[i].LatestMessage, entries[j].LatestMessage
		switch {
		case mi != nil && mj != nil:
			return mi.CreatedAt.After(mj.CreatedAt)
		case mi != nil:
			return true
		case mj != nil:
			return false
		default:
			return entries[i].Partner.FullName < entries[j].Partner.FullName
		}
	})

	return entries, nil
}
