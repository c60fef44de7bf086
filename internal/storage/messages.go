package storage

import (
	"context"

	"pingpal/backend/internal/models"

	"gorm.io/gorm"
)

// MessageStore persists direct messages.
type MessageStore struct {
	db *gorm.DB
}

// Create appends a message to the log.
func (s *MessageStore) Create(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// ListConversation returns all messages between the two users, oldest first.
func (s *MessageStore) ListConversation(ctx context.Context, a, b uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkSeen flips seen=true on every unseen message from counterpartID to
// viewerID. The rows-affected count makes the call observably idempotent.
func (s *MessageStore) MarkSeen(ctx context.Context, viewerID, counterpartID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", counterpartID, viewerID, false).
		Update("seen", true)
	return result.RowsAffected, result.Error
}

// DeleteConversation removes every message between the two users.
func (s *MessageStore) DeleteConversation(ctx context.Context, a, b uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Delete(&models.Message{})
	return result.RowsAffected, result.Error
}

// LatestPerPartner returns the most recent message per conversation partner.
// Messages are walked newest-first and the first one seen per partner wins,
// which keeps the query portable across postgres and the sqlite test driver.
func (s *MessageStore) LatestPerPartner(ctx context.Context, userID uint) (map[uint]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[uint]models.Message)
	for _, m := range msgs {
		partner := m.SenderID
		if partner == userID {
			partner = m.ReceiverID
		}
		if _, ok := latest[partner]; !ok {
			latest[partner] = m
		}
	}
	return latest, nil
}

// UnseenCounts returns, per sender, how many unseen messages await viewerID.
func (s *MessageStore) UnseenCounts(ctx context.Context, viewerID uint) (map[uint]int64, error) {
	type senderCount struct {
		SenderID uint
		Total    int64
	}
	var rows []senderCount
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS total").
		Where("receiver_id = ? AND seen = ?", viewerID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.SenderID] = r.Total
	}
	return counts, nil
}
