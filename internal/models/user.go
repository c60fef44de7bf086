package models

import "time"

// User represents an account in the system.
type User struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	FullName     string `gorm:"size:255;not null" json:"fullName"`
	Email        string `gorm:"size:255;unique;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         string `gorm:"size:50;not null;default:'user';index" json:"role"`
	AvatarURL    string `gorm:"size:512" json:"avatarUrl"`

	// LastSeen is nil while the user has at least one live session; it is set to
	// the disconnect time when the last session closes. Presence itself is never
	// read from here — the connection registry is the live source of truth.
	LastSeen *time.Time `json:"lastSeen"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicProfile is the subset of a user's fields visible to other users.
type PublicProfile struct {
	ID        uint   `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// Public strips a User down to its shareable profile.
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}
