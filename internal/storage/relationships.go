package storage

import (
	"context"
	"errors"

	"pingpal/backend/internal/models"

	"gorm.io/gorm"
)

// RelationshipStore persists relationship rows. The pair_key unique index is
// the last line of defense for the one-row-per-pair invariant; the coordinator
// additionally serializes check-and-create per pair.
type RelationshipStore struct {
	db *gorm.DB
}

type duplicatePairError struct {
	err error
}

func (e *duplicatePairError) Error() string       { return "relationship already exists: " + e.err.Error() }
func (e *duplicatePairError) Unwrap() error       { return e.err }
func (e *duplicatePairError) DuplicatePair() bool { return true }

// FindByPair returns the single row for the unordered pair, or (nil, nil).
func (s *RelationshipStore) FindByPair(ctx context.Context, a, b uint) (*models.Relationship, error) {
	var rel models.Relationship
	err := s.db.WithContext(ctx).Where("pair_key = ?", models.PairKeyFor(a, b)).First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// Create inserts a new row. A unique-index violation on pair_key is reported
// as a DuplicatePair error so the coordinator can turn it into a conflict.
func (s *RelationshipStore) Create(ctx context.Context, rel *models.Relationship) error {
	if rel.PairKey == "" {
		rel.PairKey = models.PairKeyFor(rel.RequesterID, rel.RecipientID)
	}
	err := s.db.WithContext(ctx).Create(rel).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &duplicatePairError{err: err}
	}
	return err
}

// Save writes back a mutated row.
func (s *RelationshipStore) Save(ctx context.Context, rel *models.Relationship) error {
	return s.db.WithContext(ctx).Save(rel).Error
}

// ListInvites returns pending rows addressed to recipientID, most recent
// first, plus the total count.
func (s *RelationshipStore) ListInvites(ctx context.Context, recipientID uint, offset, limit int) ([]models.Relationship, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Relationship{}).
		Where("recipient_id = ? AND status = ?", recipientID, models.StatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Relationship
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// RelatedUserIDs returns every counterpart with a non-declined row with
// userID: friends, pending in either direction, and blocked pairs.
func (s *RelationshipStore) RelatedUserIDs(ctx context.Context, userID uint) ([]uint, error) {
	var rows []models.Relationship
	err := s.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status <> ?", userID, userID, models.StatusDeclined).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Other(userID))
	}
	return ids, nil
}

// AcceptedFriendIDs returns the ids of every accepted friend of userID.
func (s *RelationshipStore) AcceptedFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var rows []models.Relationship
	err := s.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.StatusAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Other(userID))
	}
	return ids, nil
}

// AreFriends reports whether the pair has an accepted relationship.
func (s *RelationshipStore) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Relationship{}).
		Where("pair_key = ? AND status = ?", models.PairKeyFor(a, b), models.StatusAccepted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
