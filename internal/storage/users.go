package storage

import (
	"context"
	"errors"
	"time"

	"pingpal/backend/internal/models"

	"gorm.io/gorm"
)

// UserStore reads and updates user rows for the coordinators.
type UserStore struct {
	db *gorm.DB
}

// GetUser returns the user with id, or (nil, nil) when no such user exists.
func (s *UserStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsers returns the users with the given ids, in no particular order.
func (s *UserStore) GetUsers(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListUsersExcluding returns a page of users whose id is not in excluded,
// newest account first, plus the total count. The secondary id ordering keeps
// pagination stable across rows created in the same instant.
func (s *UserStore) ListUsersExcluding(ctx context.Context, excluded []uint, offset, limit int) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if len(excluded) > 0 {
		query = query.Where("id NOT IN ?", excluded)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SetLastSeen writes the durable presence marker. A nil time means the user
// is currently online.
func (s *UserStore) SetLastSeen(ctx context.Context, userID uint, at *time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen", at).Error
}
