// Package relationship implements the friend-request state machine: request,
// accept, decline, block, plus the invite and suggestion listings. All
// mutations are authorization-checked against the acting identity resolved
// from the session, never against request-body fields.
package relationship

import (
	"context"
	"errors"
	"sync"
	"time"

	"pingpal/backend/internal/apperr"
	"pingpal/backend/internal/models"
	"pingpal/backend/internal/registry"
)

// Store is the durable record of relationship rows.
type Store interface {
	// FindByPair returns the single row for the unordered pair, or (nil, nil)
	// when none exists.
	FindByPair(ctx context.Context, a, b uint) (*models.Relationship, error)
	// Create inserts a new row. It returns an error satisfying IsDuplicatePair
	// when a row for the pair already exists, in either direction.
	Create(ctx context.Context, rel *models.Relationship) error
	Save(ctx context.Context, rel *models.Relationship) error
	// ListInvites returns pending rows addressed to recipientID, most recent
	// first, plus the total count.
	ListInvites(ctx context.Context, recipientID uint, offset, limit int) ([]models.Relationship, int64, error)
	// RelatedUserIDs returns every counterpart with a non-declined row with
	// userID. Declined pairs are excluded on purpose: they may be suggested
	// again because re-requesting is allowed.
	RelatedUserIDs(ctx context.Context, userID uint) ([]uint, error)
}

// DuplicatePairError marks a create that lost the no-duplicate-row race.
type DuplicatePairError interface {
	DuplicatePair() bool
}

// UserSource resolves user records for validation and profile views.
type UserSource interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUsers(ctx context.Context, ids []uint) ([]models.User, error)
	// ListUsersExcluding returns users whose id is not in excluded, newest
	// account first, plus the total count.
	ListUsersExcluding(ctx context.Context, excluded []uint, offset, limit int) ([]models.User, int64, error)
}

// Notifier pushes real-time events to a user's live sessions. *registry.Registry
// satisfies it; pushes are fire-and-forget.
type Notifier interface {
	SendToUser(userID uint, event registry.Event)
}

// InviteView is the shape of a pending invite shown to its recipient and
// pushed as the inviteReceived payload.
type InviteView struct {
	ID        uint                      `json:"id"`
	Requester models.PublicProfile      `json:"requester"`
	Status    models.RelationshipStatus `json:"status"`
	CreatedAt time.Time                 `json:"createdAt"`
}

// DecisionPayload is pushed to the original requester when their request is
// accepted or declined.
type DecisionPayload struct {
	By           models.PublicProfile `json:"by"`
	Relationship *models.Relationship `json:"relationship"`
}

// Coordinator drives the relationship state machine.
type Coordinator struct {
	store  Store
	users  UserSource
	notify Notifier

	// pairLocks serializes check-and-create per unordered pair so two
	// concurrent requests cannot both observe "no row" and both insert.
	pairLocks sync.Map // pair key -> *sync.Mutex
}

// New creates a Coordinator.
func New(store Store, users UserSource, notify Notifier) *Coordinator {
	return &Coordinator{store: store, users: users, notify: notify}
}

func (c *Coordinator) lockPair(a, b uint) func() {
	mu, _ := c.pairLocks.LoadOrStore(models.PairKeyFor(a, b), &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Request creates a pending relationship from requester to recipient, or
// revives a declined pair with the new direction. Every other existing status
// is a conflict with a reason code precise enough for the client to render
// the right message.
func (c *Coordinator) Request(ctx context.Context, requesterID, recipientID uint) (*models.Relationship, error) {
	if requesterID == recipientID {
		return nil, apperr.New(apperr.Validation, apperr.ReasonSelfRequest, "Cannot send friend request to yourself")
	}

	requester, err := c.users.GetUser(ctx, requesterID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load requester", err)
	}
	if requester == nil {
		return nil, apperr.NotFoundf("User not found")
	}

	recipient, err := c.users.GetUser(ctx, recipientID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load recipient", err)
	}
	if recipient == nil {
		return nil, apperr.NotFoundf("User not found")
	}

	unlock := c.lockPair(requesterID, recipientID)
	defer unlock()

	existing, err := c.store.FindByPair(ctx, requesterID, recipientID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to look up relationship", err)
	}

	if existing != nil {
		switch existing.Status {
		case models.StatusAccepted:
			return nil, apperr.New(apperr.Conflict, apperr.ReasonAlreadyFriends, "You are already friends")

		case models.StatusPending:
			if existing.RequesterID == requesterID {
				return nil, apperr.New(apperr.Conflict, apperr.ReasonDuplicateRequest, "Friend request already sent")
			}
			return nil, apperr.New(apperr.Conflict, apperr.ReasonRequestFromOther,
				"This user has already sent you a friend request. Please check your requests.")

		case models.StatusBlocked:
			if existing.RequesterID == requesterID {
				return nil, apperr.New(apperr.Conflict, apperr.ReasonBlockedByYou,
					"You have blocked this user. Unblock them first.")
			}
			return nil, apperr.New(apperr.Conflict, apperr.ReasonBlockedByThem,
				"Cannot send friend request to this user")

		case models.StatusDeclined:
			// Re-request: the row flips back to pending with the new direction
			// and a refreshed timestamp, then proceeds as a fresh request.
			existing.RequesterID = requesterID
			existing.RecipientID = recipientID
			existing.Status = models.StatusPending
			existing.CreatedAt = time.Now().UTC()
			if err := c.store.Save(ctx, existing); err != nil {
				return nil, apperr.Dependencyf("failed to update relationship", err)
			}
			c.pushInvite(recipientID, existing, requester)
			return existing, nil
		}
	}

	rel := &models.Relationship{
		RequesterID: requesterID,
		RecipientID: recipientID,
		PairKey:     models.PairKeyFor(requesterID, recipientID),
		Status:      models.StatusPending,
	}
	if err := c.store.Create(ctx, rel); err != nil {
		var dup DuplicatePairError
		if errors.As(err, &dup) && dup.DuplicatePair() {
			return nil, apperr.New(apperr.Conflict, apperr.ReasonDuplicateRequest, "Relationship already exists")
		}
		return nil, apperr.Dependencyf("failed to create relationship", err)
	}

	c.pushInvite(recipientID, rel, requester)
	return rel, nil
}

// Accept transitions a pending request addressed to actingID into accepted and
// notifies the original requester if they are online.
func (c *Coordinator) Accept(ctx context.Context, actingID, requesterID uint) (*models.Relationship, error) {
	return c.decide(ctx, actingID, requesterID, models.StatusAccepted, registry.EventInviteAccepted)
}

// Decline transitions a pending request addressed to actingID into declined
// and notifies the original requester if they are online.
func (c *Coordinator) Decline(ctx context.Context, actingID, requesterID uint) (*models.Relationship, error) {
	return c.decide(ctx, actingID, requesterID, models.StatusDeclined, registry.EventInviteDeclined)
}

func (c *Coordinator) decide(ctx context.Context, actingID, requesterID uint, to models.RelationshipStatus, eventType string) (*models.Relationship, error) {
	unlock := c.lockPair(actingID, requesterID)
	defer unlock()

	rel, err := c.store.FindByPair(ctx, actingID, requesterID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to look up relationship", err)
	}
	if rel == nil || rel.Status != models.StatusPending || rel.RequesterID != requesterID {
		return nil, apperr.NotFoundf("Friend request not found")
	}
	if rel.RecipientID != actingID {
		return nil, apperr.Forbidden("Not authorized to answer this request")
	}

	rel.Status = to
	if err := c.store.Save(ctx, rel); err != nil {
		return nil, apperr.Dependencyf("failed to update relationship", err)
	}

	acting, err := c.users.GetUser(ctx, actingID)
	if err == nil && acting != nil {
		c.notify.SendToUser(requesterID, registry.Event{
			Type:    eventType,
			Payload: DecisionPayload{By: acting.Public(), Relationship: rel},
		})
	}

	return rel, nil
}

// Block moves the pair into blocked with the acting user recorded as the
// blocker. Blocking an already-blocked pair is idempotent for the blocker and
// a conflict when the other party holds the block. Blocking is silent: no
// push is emitted.
func (c *Coordinator) Block(ctx context.Context, actingID, targetID uint) (*models.Relationship, error) {
	if actingID == targetID {
		return nil, apperr.Validationf("Cannot block yourself")
	}

	target, err := c.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to load user", err)
	}
	if target == nil {
		return nil, apperr.NotFoundf("User not found")
	}

	unlock := c.lockPair(actingID, targetID)
	defer unlock()

	rel, err := c.store.FindByPair(ctx, actingID, targetID)
	if err != nil {
		return nil, apperr.Dependencyf("failed to look up relationship", err)
	}

	if rel != nil {
		if rel.Status == models.StatusBlocked {
			if rel.RequesterID == actingID {
				return rel, nil
			}
			return nil, apperr.New(apperr.Conflict, apperr.ReasonBlockedByThem, "Cannot block this user")
		}
		rel.RequesterID = actingID
		rel.RecipientID = targetID
		rel.Status = models.StatusBlocked
		if err := c.store.Save(ctx, rel); err != nil {
			return nil, apperr.Dependencyf("failed to update relationship", err)
		}
		return rel, nil
	}

	rel = &models.Relationship{
		RequesterID: actingID,
		RecipientID: targetID,
		PairKey:     models.PairKeyFor(actingID, targetID),
		Status:      models.StatusBlocked,
	}
	if err := c.store.Create(ctx, rel); err != nil {
		return nil, apperr.Dependencyf("failed to create relationship", err)
	}
	return rel, nil
}

// ListInvites returns the pending requests addressed to userID, most recent
// first, with the requester's public profile attached.
func (c *Coordinator) ListInvites(ctx context.Context, userID uint, page, limit int) ([]InviteView, int64, error) {
	offset := (page - 1) * limit

	rows, total, err := c.store.ListInvites(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, apperr.Dependencyf("failed to list invites", err)
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.RequesterID)
	}
	requesters, err := c.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, 0, apperr.Dependencyf("failed to load requester profiles", err)
	}
	byID := make(map[uint]models.User, len(requesters))
	for _, u := range requesters {
		byID[u.ID] = u
	}

	views := make([]InviteView, 0, len(rows))
	for _, r := range rows {
		views = append(views, InviteView{
			ID:        r.ID,
			Requester: byID[r.RequesterID].Public(),
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	return views, total, nil
}

// ListSuggestions returns candidate friends for userID: everyone except the
// user themself and anyone with a non-declined relationship row with them.
// Declined pairs reappear because re-requesting is allowed.
func (c *Coordinator) ListSuggestions(ctx context.Context, userID uint, page, limit int) ([]models.PublicProfile, int64, error) {
	offset := (page - 1) * limit

	related, err := c.store.RelatedUserIDs(ctx, userID)
	if err != nil {
		return nil, 0, apperr.Dependencyf("failed to load related users", err)
	}
	excluded := append([]uint{userID}, related...)

	users, total, err := c.users.ListUsersExcluding(ctx, excluded, offset, limit)
	if err != nil {
		return nil, 0, apperr.Dependencyf("failed to list suggestions", err)
	}

	profiles := make([]models.PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}
	return profiles, total, nil
}

func (c *Coordinator) pushInvite(recipientID uint, rel *models.Relationship, requester *models.User) {
	c.notify.SendToUser(recipientID, registry.Event{
		Type: registry.EventInviteReceived,
		Payload: InviteView{
			ID:        rel.ID,
			Requester: requester.Public(),
			Status:    rel.Status,
			CreatedAt: rel.CreatedAt,
		},
	})
}
