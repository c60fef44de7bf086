package client

import (
	"sort"
	"sync"
	"time"

	"pingpal/backend/internal/chat"
	"pingpal/backend/internal/models"
	"pingpal/backend/internal/presence"

	"github.com/aidarkhanov/nanoid/v2"
)

// ChatMessage is a message as the UI sees it: either a confirmed server row or
// a pending optimistic insert that has not been acknowledged yet.
type ChatMessage struct {
	models.Message

	// TempID is set while the message is an optimistic insert; it is cleared
	// when the server confirms the send. Pending entries carry no server ID.
	TempID  string `json:"tempId,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// SidebarItem is one conversation in the local sidebar.
type SidebarItem struct {
	Partner       models.PublicProfile
	LastSeen      *time.Time
	Online        bool
	LatestMessage *ChatMessage
	UnseenCount   int64
}

// State holds the client's local view of conversations, the sidebar, and
// friend presence, and reconciles it against optimistic sends and live
// events. All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	selfID uint

	// openPartner is the conversation currently on screen, or zero. Incoming
	// messages for the open conversation do not bump the unseen counter; they
	// trigger the seen callback instead.
	openPartner uint

	conversations map[uint][]ChatMessage
	sidebar       map[uint]*SidebarItem
	online        map[uint]bool

	// seenFn, when set, is invoked (on its own goroutine) whenever an incoming
	// message lands in the open conversation, so the server can be told it was
	// read immediately.
	seenFn func(partnerID uint)
}

// NewState creates a State for the given local user.
func NewState(selfID uint) *State {
	return &State{
		selfID:        selfID,
		conversations: make(map[uint][]ChatMessage),
		sidebar:       make(map[uint]*SidebarItem),
		online:        make(map[uint]bool),
	}
}

// OnConversationSeen registers the callback fired when an incoming message
// arrives in the open conversation.
func (s *State) OnConversationSeen(fn func(partnerID uint)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenFn = fn
}

// OpenConversation marks the conversation with partnerID as on screen and
// clears its unseen counter.
func (s *State) OpenConversation(partnerID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.openPartner = partnerID
	if item, ok := s.sidebar[partnerID]; ok {
		item.UnseenCount = 0
	}
}

// CloseConversation marks no conversation as on screen.
func (s *State) CloseConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openPartner = 0
}

// LoadSidebar replaces the sidebar with the server's view.
func (s *State) LoadSidebar(entries []chat.SidebarEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sidebar = make(map[uint]*SidebarItem, len(entries))
	for _, e := range entries {
		item := &SidebarItem{
			Partner:     e.Partner,
			LastSeen:    e.LastSeen,
			Online:      s.online[e.Partner.ID],
			UnseenCount: e.UnseenCount,
		}
		if e.LatestMessage != nil {
			item.LatestMessage = &ChatMessage{Message: *e.LatestMessage}
		}
		s.sidebar[e.Partner.ID] = item
	}
}

// LoadConversation replaces the history with partnerID with the server's
// view. Pending optimistic inserts for that partner are preserved at the tail
// so an in-flight send does not vanish during a refetch.
func (s *State) LoadConversation(partnerID uint, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []ChatMessage
	for _, m := range s.conversations[partnerID] {
		if m.Pending {
			pending = append(pending, m)
		}
	}

	list := make([]ChatMessage, 0, len(msgs)+len(pending))
	for _, m := range msgs {
		list = append(list, ChatMessage{Message: m})
	}
	s.conversations[partnerID] = append(list, pending...)
}

// BeginSend inserts an optimistic message into the conversation and the
// sidebar and returns its temp id. attachmentRef may be a local preview URL;
// it is shown until the confirmed message replaces it.
func (s *State) BeginSend(partnerID uint, text, attachmentRef string) string {
	id, _ := nanoid.New()
	tempID := "temp-" + id

	msg := ChatMessage{
		Message: models.Message{
			SenderID:      s.selfID,
			ReceiverID:    partnerID,
			Text:          text,
			AttachmentURL: attachmentRef,
			CreatedAt:     time.Now(),
		},
		TempID:  tempID,
		Pending: true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[partnerID] = append(s.conversations[partnerID], msg)
	s.bumpSidebar(partnerID, msg)
	return tempID
}

// ConfirmSend replaces the optimistic entry with the server's confirmed row.
// Confirming an unknown temp id is a no-op: the entry was already rolled back
// or the conversation was reloaded from the server in the meantime.
func (s *State) ConfirmSend(tempID string, confirmed models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partnerID := confirmed.ReceiverID
	list := s.conversations[partnerID]
	for i := range list {
		if list[i].TempID == tempID {
			list[i] = ChatMessage{Message: confirmed}
			if item, ok := s.sidebar[partnerID]; ok && item.LatestMessage != nil && item.LatestMessage.TempID == tempID {
				item.LatestMessage = &list[i]
			}
			return
		}
	}
}

// FailSend rolls back the optimistic entry. The sidebar's latest message
// falls back to the newest surviving entry of that conversation.
func (s *State) FailSend(partnerID uint, tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.conversations[partnerID]
	for i := range list {
		if list[i].TempID == tempID {
			s.conversations[partnerID] = append(list[:i], list[i+1:]...)
			break
		}
	}

	if item, ok := s.sidebar[partnerID]; ok && item.LatestMessage != nil && item.LatestMessage.TempID == tempID {
		item.LatestMessage = nil
		if rest := s.conversations[partnerID]; len(rest) > 0 {
			last := rest[len(rest)-1]
			item.LatestMessage = &last
		}
	}
}

// ApplyMessage merges a live incoming message. If its conversation is open the
// message is appended and the seen callback fires; otherwise the sidebar's
// unseen counter for the sender increments.
func (s *State) ApplyMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ReceiverID != s.selfID {
		return
	}
	partnerID := m.SenderID

	msg := ChatMessage{Message: m}
	if _, ok := s.conversations[partnerID]; ok || s.openPartner == partnerID {
		s.conversations[partnerID] = append(s.conversations[partnerID], msg)
	}
	s.bumpSidebar(partnerID, msg)

	if s.openPartner == partnerID {
		if fn := s.seenFn; fn != nil {
			go fn(partnerID)
		}
	} else if item, ok := s.sidebar[partnerID]; ok {
		item.UnseenCount++
	}
}

// ApplyPresence replaces the online-friend set from a presenceUpdated push.
func (s *State) ApplyPresence(p presence.PresencePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[uint]bool, len(p.OnlineFriendIDs))
	for _, id := range p.OnlineFriendIDs {
		s.online[id] = true
	}
	for id, item := range s.sidebar {
		item.Online = s.online[id]
	}
}

// IsOnline reports the last pushed presence of a friend.
func (s *State) IsOnline(userID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

// Conversation returns a snapshot of the history with partnerID.
func (s *State) Conversation(partnerID uint) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.conversations[partnerID]
	out := make([]ChatMessage, len(list))
	copy(out, list)
	return out
}

// Sidebar returns a snapshot ordered by most recent message first; partners
// without messages sort last, alphabetically.
func (s *State) Sidebar() []SidebarItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SidebarItem, 0, len(s.sidebar))
	for _, item := range s.sidebar {
		out = append(out, *item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := out[i].LatestMessage, out[j].LatestMessage
		switch {
		case mi != nil && mj != nil:
			return mi.CreatedAt.After(mj.CreatedAt)
		case mi != nil:
			return true
		case mj != nil:
			return false
		default:
			return out[i].Partner.FullName < out[j].Partner.FullName
		}
	})
	return out
}

// bumpSidebar sets msg as the latest message of partnerID, creating the entry
// if this is the first exchange with a partner the sidebar has not seen.
func (s *State) bumpSidebar(partnerID uint, msg ChatMessage) {
	item, ok := s.sidebar[partnerID]
	if !ok {
		item = &SidebarItem{
			Partner: models.PublicProfile{ID: partnerID},
			Online:  s.online[partnerID],
		}
		s.sidebar[partnerID] = item
	}
	m := msg
	item.LatestMessage = &m
}
