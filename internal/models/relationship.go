package models

import (
	"fmt"
	"time"
)

// RelationshipStatus defines the state of a relationship between two users.
type RelationshipStatus string

const (
	// StatusPending means a friend request has been sent but not yet answered.
	StatusPending RelationshipStatus = "pending"

	// StatusAccepted means the request was accepted and the users are friends.
	StatusAccepted RelationshipStatus = "accepted"

	// StatusDeclined means the recipient declined the request. A declined pair
	// may be re-requested, which flips the row back to pending.
	StatusDeclined RelationshipStatus = "declined"

	// StatusBlocked means one party blocked the other. The blocker is recorded
	// as the row's requester.
	StatusBlocked RelationshipStatus = "blocked"
)

// Relationship is the durable record of the friend-request state machine for
// one unordered pair of users. RequesterID/RecipientID carry the direction of
// the latest request; PairKey enforces that at most one row ever exists for
// the pair regardless of direction.
type Relationship struct {
	ID          uint               `gorm:"primarykey" json:"id"`
	RequesterID uint               `gorm:"not null;index" json:"requesterId"`
	RecipientID uint               `gorm:"not null;index" json:"recipientId"`
	PairKey     string             `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Status      RelationshipStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`

	Requester User `gorm:"foreignKey:RequesterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Recipient User `gorm:"foreignKey:RecipientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// PairKeyFor returns the direction-independent key for a user pair.
func PairKeyFor(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Other returns the counterpart of userID in the relationship.
func (r Relationship) Other(userID uint) uint {
	if r.RequesterID == userID {
		return r.RecipientID
	}
	return r.RequesterID
}

// Involves reports whether userID is a party to the relationship.
func (r Relationship) Involves(userID uint) bool {
	return r.RequesterID == userID || r.RecipientID == userID
}
