// Package storage provides the GORM-backed implementations of the store
// interfaces declared by the presence, relationship, and chat packages.
package storage

import (
	"gorm.io/gorm"
)

// Store bundles the per-entity stores over one database handle.
type Store struct {
	Users         *UserStore
	Relationships *RelationshipStore
	Messages      *MessageStore
}

// New creates a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{
		Users:         &UserStore{db: db},
		Relationships: &RelationshipStore{db: db},
		Messages:      &MessageStore{db: db},
	}
}
