package relationship

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"pingpal/backend/internal/apperr"
	"pingpal/backend/internal/models"
	"pingpal/backend/internal/registry"
)

type memStore struct {
	nextID uint
	rows   map[string]*models.Relationship
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, rows: make(map[string]*models.Relationship)}
}

type dupErr struct{}

func (dupErr) Error() string       { return "duplicate pair" }
func (dupErr) DuplicatePair() bool { return true }

func (s *memStore) FindByPair(_ context.Context, a, b uint) (*models.Relationship, error) {
	rel, ok := s.rows[models.PairKeyFor(a, b)]
	if !ok {
		return nil, nil
	}
	cp := *rel
	return &cp, nil
}

func (s *memStore) Create(_ context.Context, rel *models.Relationship) error {
	if _, ok := s.rows[rel.PairKey]; ok {
		return dupErr{}
	}
	rel.ID = s.nextID
	s.nextID++
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	cp := *rel
	s.rows[rel.PairKey] = &cp
	return nil
}

func (s *memStore) Save(_ context.Context, rel *models.Relationship) error {
	cp := *rel
	s.rows[rel.PairKey] = &cp
	return nil
}

func (s *memStore) ListInvites(_ context.Context, recipientID uint, offset, limit int) ([]models.Relationship, int64, error) {
	var all []models.Relationship
	for _, rel := range s.rows {
		if rel.Status == models.StatusPending && rel.RecipientID == recipientID {
			all = append(all, *rel)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *memStore) RelatedUserIDs(_ context.Context, userID uint) ([]uint, error) {
	var out []uint
	for _, rel := range s.rows {
		if rel.Status != models.StatusDeclined && rel.Involves(userID) {
			out = append(out, rel.Other(userID))
		}
	}
	return out, nil
}

type memUsers struct {
	users map[uint]*models.User
}

func (m *memUsers) GetUser(_ context.Context, id uint) (*models.User, error) {
	return m.users[id], nil
}

func (m *memUsers) GetUsers(_ context.Context, ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) ListUsersExcluding(_ context.Context, excluded []uint, offset, limit int) ([]models.User, int64, error) {
	skip := make(map[uint]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}
	var all []models.User
	for _, u := range m.users {
		if !skip[u.ID] {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type capturingNotifier struct {
	events map[uint][]registry.Event
}

func (n *capturingNotifier) SendToUser(userID uint, event registry.Event) {
	if n.events == nil {
		n.events = make(map[uint][]registry.Event)
	}
	n.events[userID] = append(n.events[userID], event)
}

func testCoordinator(userIDs ...uint) (*Coordinator, *memStore, *capturingNotifier) {
	users := &memUsers{users: make(map[uint]*models.User)}
	for _, id := range userIDs {
		users.users[id] = &models.User{ID: id, FullName: "User", Email: "u@example.com"}
	}
	store := newMemStore()
	notify := &capturingNotifier{}
	return New(store, users, notify), store, notify
}

func wantConflict(t *testing.T, err error, reason, message string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("expected Conflict, got kind %v (%v)", apperr.KindOf(err), err)
	}
	if apperr.ReasonOf(err) != reason {
		t.Fatalf("expected reason %q, got %q", reason, apperr.ReasonOf(err))
	}
	if err.Error() != message {
		t.Fatalf("expected message %q, got %q", message, err.Error())
	}
}

func TestRequestCreatesPending(t *testing.T) {
	c, store, notify := testCoordinator(1, 2)

	rel, err := c.Request(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if rel.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", rel.Status)
	}
	if rel.RequesterID != 1 || rel.RecipientID != 2 {
		t.Fatalf("wrong direction: %d -> %d", rel.RequesterID, rel.RecipientID)
	}
	if _, ok := store.rows[models.PairKeyFor(1, 2)]; !ok {
		t.Fatal("row was not stored")
	}

	events := notify.events[2]
	if len(events) != 1 || events[0].Type != registry.EventInviteReceived {
		t.Fatalf("recipient expected an inviteReceived push, got %v", events)
	}
}

func TestRequestToSelfRejected(t *testing.T) {
	c, _, _ := testCoordinator(1)

	_, err := c.Request(context.Background(), 1, 1)
	if apperr.KindOf(err) != apperr.Validation || apperr.ReasonOf(err) != apperr.ReasonSelfRequest {
		t.Fatalf("expected self-request validation error, got %v", err)
	}
}

func TestRequestToUnknownUserRejected(t *testing.T) {
	c, _, _ := testCoordinator(1)

	_, err := c.Request(context.Background(), 1, 99)
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRequestConflictMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("already friends", func(t *testing.T) {
		c, store, _ := testCoordinator(1, 2)
		store.Create(ctx, &models.Relationship{
			RequesterID: 1, RecipientID: 2,
			PairKey: models.PairKeyFor(1, 2), Status: models.StatusAccepted,
		})
		_, err := c.Request(ctx, 1, 2)
		wantConflict(t, err, apperr.ReasonAlreadyFriends, "You are already friends")
	})

	t.Run("duplicate own pending", func(t *testing.T) {
		c, _, _ := testCoordinator(1, 2)
		if _, err := c.Request(ctx, 1, 2); err != nil {
			t.Fatal(err)
		}
		_, err := c.Request(ctx, 1, 2)
		wantConflict(t, err, apperr.ReasonDuplicateRequest, "Friend request already sent")
	})

	t.Run("pending from the other side", func(t *testing.T) {
		c, _, _ := testCoordinator(1, 2)
		if _, err := c.Request(ctx, 2, 1); err != nil {
			t.Fatal(err)
		}
		_, err := c.Request(ctx, 1, 2)
		wantConflict(t, err, apperr.ReasonRequestFromOther,
			"This user has already sent you a friend request. Please check your requests.")
	})

	t.Run("blocked by requester", func(t *testing.T) {
		c, store, _ := testCoordinator(1, 2)
		store.Create(ctx, &models.Relationship{
			RequesterID: 1, RecipientID: 2,
			PairKey: models.PairKeyFor(1, 2), Status: models.StatusBlocked,
		})
		_, err := c.Request(ctx, 1, 2)
		wantConflict(t, err, apperr.ReasonBlockedByYou, "You have blocked this user. Unblock them first.")
	})

	t.Run("blocked by recipient", func(t *testing.T) {
		c, store, _ := testCoordinator(1, 2)
		store.Create(ctx, &models.Relationship{
			RequesterID: 2, RecipientID: 1,
			PairKey: models.PairKeyFor(1, 2), Status: models.StatusBlocked,
		})
		_, err := c.Request(ctx, 1, 2)
		wantConflict(t, err, apperr.ReasonBlockedByThem, "Cannot send friend request to this user")
	})
}

func TestRequestRevivesDeclinedPairWithNewDirection(t *testing.T) {
	ctx := context.Background()
	c, store, notify := testCoordinator(1, 2)

	// 1 requested, 2 declined.
	if _, err := c.Request(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decline(ctx, 2, 1); err != nil {
		t.Fatal(err)
	}
	declinedAt := store.rows[models.PairKeyFor(1, 2)].CreatedAt

	// Now 2 re-requests: the same row flips direction and goes back to pending.
	rel, err := c.Request(ctx, 2, 1)
	if err != nil {
		t.Fatalf("re-request after decline must succeed, got %v", err)
	}
	if rel.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", rel.Status)
	}
	if rel.RequesterID != 2 || rel.RecipientID != 1 {
		t.Fatalf("direction must flip to the new requester, got %d -> %d", rel.RequesterID, rel.RecipientID)
	}
	if !rel.CreatedAt.After(declinedAt) {
		t.Fatal("revived request must carry a refreshed timestamp")
	}
	if len(store.rows) != 1 {
		t.Fatalf("pair must still hold exactly one row, got %d", len(store.rows))
	}

	events := notify.events[1]
	if len(events) == 0 || events[len(events)-1].Type != registry.EventInviteReceived {
		t.Fatal("new recipient expected an inviteReceived push")
	}
}

func TestConcurrentRequestsForSamePairCreateOneRow(t *testing.T) {
	ctx := context.Background()
	c, store, _ := testCoordinator(1, 2)

	// Both directions race through the per-pair critical section: neither may
	// observe "no row" after the other has inserted.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = c.Request(ctx, 1, 2)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = c.Request(ctx, 2, 1)
	}()
	wg.Wait()

	if len(store.rows) != 1 {
		t.Fatalf("pair must hold exactly one row, got %d", len(store.rows))
	}

	var created, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case apperr.KindOf(err) == apperr.Conflict:
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || conflicted != 1 {
		t.Fatalf("expected one created and one conflict, got %d created, %d conflicted (%v)",
			created, conflicted, errs)
	}
}

func TestAcceptByRecipient(t *testing.T) {
	ctx := context.Background()
	c, _, notify := testCoordinator(1, 2)

	if _, err := c.Request(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}

	rel, err := c.Accept(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if rel.Status != models.StatusAccepted {
		t.Fatalf("expected accepted, got %s", rel.Status)
	}

	events := notify.events[1]
	if len(events) == 0 || events[len(events)-1].Type != registry.EventInviteAccepted {
		t.Fatal("requester expected an inviteAccepted push")
	}
}

func TestDeclineByRecipient(t *testing.T) {
	ctx := context.Background()
	c, _, notify := testCoordinator(1, 2)

	if _, err := c.Request(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}

	rel, err := c.Decline(ctx, 2, 1)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if rel.Status != models.StatusDeclined {
		t.Fatalf("expected declined, got %s", rel.Status)
	}

	events := notify.events[1]
	if len(events) == 0 || events[len(events)-1].Type != registry.EventInviteDeclined {
		t.Fatal("requester expected an inviteDeclined push")
	}
}

func TestRequesterCannotAcceptOwnRequest(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testCoordinator(1, 2)

	if _, err := c.Request(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}

	// The requester tries to accept their own request: there is no pending
	// request *from user 2*, so this is not found.
	if _, err := c.Accept(ctx, 1, 2); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAcceptWithoutPendingRequest(t *testing.T) {
	c, _, _ := testCoordinator(1, 2)

	if _, err := c.Accept(context.Background(), 2, 1); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAcceptedPairCannotGoBackToPending(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testCoordinator(1, 2)

	if _, err := c.Request(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Accept(ctx, 2, 1); err != nil {
		t.Fatal(err)
	}

	for _, pair := range [][2]uint{{1, 2}, {2, 1}} {
		_, err := c.Request(ctx, pair[0], pair[1])
		wantConflict(t, err, apperr.ReasonAlreadyFriends, "You are already friends")
	}
}

func TestBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks an accepted pair", func(t *testing.T) {
		c, store, _ := testCoordinator(1, 2)
		if _, err := c.Request(ctx, 1, 2); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Accept(ctx, 2, 1); err != nil {
			t.Fatal(err)
		}

		rel, err := c.Block(ctx, 2, 1)
		if err != nil {
			t.Fatalf("Block: %v", err)
		}
		if rel.Status != models.StatusBlocked || rel.RequesterID != 2 {
			t.Fatalf("expected blocked with blocker 2, got %s blocker %d", rel.Status, rel.RequesterID)
		}
		if len(store.rows) != 1 {
			t.Fatalf("pair must still hold exactly one row, got %d", len(store.rows))
		}
	})

	t.Run("idempotent for the blocker", func(t *testing.T) {
		c, _, _ := testCoordinator(1, 2)
		if _, err := c.Block(ctx, 1, 2); err != nil {
			t.Fatal(err)
		}
		rel, err := c.Block(ctx, 1, 2)
		if err != nil {
			t.Fatalf("repeat Block must succeed, got %v", err)
		}
		if rel.Status != models.StatusBlocked {
			t.Fatalf("expected blocked, got %s", rel.Status)
		}
	})

	t.Run("conflict when the other side holds the block", func(t *testing.T) {
		c, _, _ := testCoordinator(1, 2)
		if _, err := c.Block(ctx, 1, 2); err != nil {
			t.Fatal(err)
		}
		_, err := c.Block(ctx, 2, 1)
		wantConflict(t, err, apperr.ReasonBlockedByThem, "Cannot block this user")
	})

	t.Run("silent", func(t *testing.T) {
		c, _, notify := testCoordinator(1, 2)
		if _, err := c.Block(ctx, 1, 2); err != nil {
			t.Fatal(err)
		}
		if len(notify.events[2]) != 0 {
			t.Fatal("blocking must not push anything to the blocked user")
		}
	})
}

func TestListInvites(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testCoordinator(1, 2, 3)

	if _, err := c.Request(ctx, 2, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Request(ctx, 3, 1); err != nil {
		t.Fatal(err)
	}

	invites, total, err := c.ListInvites(ctx, 1, 1, 10)
	if err != nil {
		t.Fatalf("ListInvites: %v", err)
	}
	if total != 2 || len(invites) != 2 {
		t.Fatalf("expected 2 invites, got %d (total %d)", len(invites), total)
	}
	for _, inv := range invites {
		if inv.Status != models.StatusPending {
			t.Fatalf("invite must be pending, got %s", inv.Status)
		}
		if inv.Requester.ID != 2 && inv.Requester.ID != 3 {
			t.Fatalf("unexpected requester %d", inv.Requester.ID)
		}
	}
}

func TestListSuggestionsExcludesActivePairsButNotDeclined(t *testing.T) {
	ctx := context.Background()
	c, _, _ := testCoordinator(1, 2, 3, 4, 5)

	// 1-2 pending, 1-3 accepted, 1-4 declined.
	if _, err := c.Request(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Request(ctx, 1, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Accept(ctx, 3, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Request(ctx, 1, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decline(ctx, 4, 1); err != nil {
		t.Fatal(err)
	}

	profiles, _, err := c.ListSuggestions(ctx, 1, 1, 10)
	if err != nil {
		t.Fatalf("ListSuggestions: %v", err)
	}

	got := make(map[uint]bool)
	for _, p := range profiles {
		got[p.ID] = true
	}
	if got[1] || got[2] || got[3] {
		t.Fatalf("self, pending, and accepted pairs must be excluded, got %v", got)
	}
	if !got[4] {
		t.Fatal("declined pair must be suggestable again")
	}
	if !got[5] {
		t.Fatal("unrelated user must be suggested")
	}
}
