package chat

import (
	"context"
	"testing"
	"time"

	"pingpal/backend/internal/apperr"
	"pingpal/backend/internal/models"
	"pingpal/backend/internal/registry"
)

type memMessages struct {
	nextID uint
	rows   []models.Message
}

func (m *memMessages) Create(_ context.Context, msg *models.Message) error {
	m.nextID++
	msg.ID = m.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, *msg)
	return nil
}

func (m *memMessages) ListConversation(_ context.Context, a, b uint) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.rows {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMessages) MarkSeen(_ context.Context, viewerID, counterpartID uint) (int64, error) {
	var n int64
	for i := range m.rows {
		if m.rows[i].SenderID == counterpartID && m.rows[i].ReceiverID == viewerID && !m.rows[i].Seen {
			m.rows[i].Seen = true
			n++
		}
	}
	return n, nil
}

func (m *memMessages) DeleteConversation(_ context.Context, a, b uint) (int64, error) {
	var kept []models.Message
	var n int64
	for _, msg := range m.rows {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.rows = kept
	return n, nil
}

func (m *memMessages) LatestPerPartner(_ context.Context, userID uint) (map[uint]models.Message, error) {
	out := make(map[uint]models.Message)
	for _, msg := range m.rows {
		var partner uint
		switch userID {
		case msg.SenderID:
			partner = msg.ReceiverID
		case msg.ReceiverID:
			partner = msg.SenderID
		default:
			continue
		}
		if cur, ok := out[partner]; !ok || msg.CreatedAt.After(cur.CreatedAt) {
			out[partner] = msg
		}
	}
	return out, nil
}

func (m *memMessages) UnseenCounts(_ context.Context, viewerID uint) (map[uint]int64, error) {
	out := make(map[uint]int64)
	for _, msg := range m.rows {
		if msg.ReceiverID == viewerID && !msg.Seen {
			out[msg.SenderID]++
		}
	}
	return out, nil
}

type memFriends struct {
	pairs map[string]bool
}

func (f *memFriends) befriend(a, b uint) {
	if f.pairs == nil {
		f.pairs = make(map[string]bool)
	}
	f.pairs[models.PairKeyFor(a, b)] = true
}

func (f *memFriends) AreFriends(_ context.Context, a, b uint) (bool, error) {
	return f.pairs[models.PairKeyFor(a, b)], nil
}

func (f *memFriends) AcceptedFriendIDs(_ context.Context, userID uint) ([]uint, error) {
	var out []uint
	for id := uint(1); id <= 100; id++ {
		if id != userID && f.pairs[models.PairKeyFor(userID, id)] {
			out = append(out, id)
		}
	}
	return out, nil
}

type memProfiles struct {
	users map[uint]models.User
}

func (m *memProfiles) GetUsers(_ context.Context, ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type pushRecorder struct {
	events map[uint][]registry.Event
}

func (p *pushRecorder) SendToUser(userID uint, event registry.Event) {
	if p.events == nil {
		p.events = make(map[uint][]registry.Event)
	}
	p.events[userID] = append(p.events[userID], event)
}

func testChat() (*Coordinator, *memMessages, *memFriends, *pushRecorder) {
	messages := &memMessages{}
	friends := &memFriends{}
	users := &memProfiles{users: map[uint]models.User{
		1: {ID: 1, FullName: "Alice"},
		2: {ID: 2, FullName: "Bob"},
		3: {ID: 3, FullName: "Carol"},
	}}
	notify := &pushRecorder{}
	return New(messages, friends, users, notify), messages, friends, notify
}

func TestSendPersistsThenPushes(t *testing.T) {
	c, messages, friends, notify := testChat()
	friends.befriend(1, 2)

	msg, err := c.Send(context.Background(), 1, 2, "hello", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("message must get a durable id")
	}
	if len(messages.rows) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(messages.rows))
	}

	events := notify.events[2]
	if len(events) != 1 || events[0].Type != registry.EventMessageReceived {
		t.Fatalf("receiver expected a messageReceived push, got %v", events)
	}
	if len(notify.events[1]) != 0 {
		t.Fatal("sender must not be pushed their own message")
	}
}

func TestSendRequiresContent(t *testing.T) {
	c, _, friends, _ := testChat()
	friends.befriend(1, 2)

	_, err := c.Send(context.Background(), 1, 2, "", "")
	if apperr.KindOf(err) != apperr.Validation || apperr.ReasonOf(err) != apperr.ReasonEmptyMessage {
		t.Fatalf("expected empty-message validation error, got %v", err)
	}

	// An attachment alone is enough.
	if _, err := c.Send(context.Background(), 1, 2, "", "http://files/img.png"); err != nil {
		t.Fatalf("attachment-only message must be accepted, got %v", err)
	}
}

func TestSendRequiresFriendship(t *testing.T) {
	c, messages, _, notify := testChat()

	_, err := c.Send(context.Background(), 1, 2, "hello", "")
	if apperr.KindOf(err) != apperr.Authorization || apperr.ReasonOf(err) != apperr.ReasonNotFriends {
		t.Fatalf("expected not-friends authorization error, got %v", err)
	}
	if len(messages.rows) != 0 {
		t.Fatal("rejected message must not be stored")
	}
	if len(notify.events) != 0 {
		t.Fatal("rejected message must not be pushed")
	}
}

func TestSendToSelfRejected(t *testing.T) {
	c, _, _, _ := testChat()

	if _, err := c.Send(context.Background(), 1, 1, "hi me", ""); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _, friends, _ := testChat()
	friends.befriend(1, 2)

	for i := 0; i < 3; i++ {
		if _, err := c.Send(ctx, 2, 1, "msg", ""); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.MarkSeen(ctx, 1, 2)
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 updated, got %d", n)
	}

	n, err = c.MarkSeen(ctx, 1, 2)
	if err != nil {
		t.Fatalf("repeat MarkSeen: %v", err)
	}
	if n != 0 {
		t.Fatalf("repeat MarkSeen must report 0, got %d", n)
	}
}

func TestDeleteConversationRemovesBothDirections(t *testing.T) {
	ctx := context.Background()
	c, messages, friends, _ := testChat()
	friends.befriend(1, 2)
	friends.befriend(1, 3)

	c.Send(ctx, 1, 2, "a", "")
	c.Send(ctx, 2, 1, "b", "")
	c.Send(ctx, 1, 3, "keep", "")

	n, err := c.DeleteConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if len(messages.rows) != 1 || messages.rows[0].Text != "keep" {
		t.Fatal("other conversations must be untouched")
	}
}

func TestListSidebarOrderingAndCounts(t *testing.T) {
	ctx := context.Background()
	c, _, friends, _ := testChat()
	friends.befriend(1, 2)
	friends.befriend(1, 3)

	// Bob first, then Carol: Carol's conversation is the most recent.
	if _, err := c.Send(ctx, 2, 1, "from bob", ""); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := c.Send(ctx, 3, 1, "from carol", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Send(ctx, 3, 1, "again", ""); err != nil {
		t.Fatal(err)
	}

	entries, err := c.ListSidebar(ctx, 1)
	if err != nil {
		t.Fatalf("ListSidebar: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Partner.ID != 3 {
		t.Fatalf("most recently active partner must sort first, got %d", entries[0].Partner.ID)
	}
	if entries[0].UnseenCount != 2 || entries[1].UnseenCount != 1 {
		t.Fatalf("wrong unseen counts: %d, %d", entries[0].UnseenCount, entries[1].UnseenCount)
	}
	if entries[0].LatestMessage == nil || entries[0].LatestMessage.Text != "again" {
		t.Fatal("latest message must be the newest in the conversation")
	}
}

func TestListSidebarFriendsWithoutMessagesSortLastAlphabetically(t *testing.T) {
	ctx := context.Background()
	c, _, friends, _ := testChat()
	friends.befriend(1, 2) // Bob
	friends.befriend(1, 3) // Carol

	entries, err := c.ListSidebar(ctx, 1)
	if err != nil {
		t.Fatalf("ListSidebar: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Partner.FullName != "Bob" || entries[1].Partner.FullName != "Carol" {
		t.Fatalf("expected alphabetical order Bob, Carol; got %s, %s",
			entries[0].Partner.FullName, entries[1].Partner.FullName)
	}
	if entries[0].LatestMessage != nil {
		t.Fatal("friend without messages must have a nil latest message")
	}
}
