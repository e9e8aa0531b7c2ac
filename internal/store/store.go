package store

import (
	"errors"

	"brickshelf/pkg/domain"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint.
// Callers do not pre-check uniqueness; a race between two writes with the
// same email surfaces here.
var ErrDuplicate = errors.New("duplicate record")

// Store defines persistence operations for users, creations, and photos.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// creations
	SaveCreation(domain.Creation) error
	GetCreation(id string) (domain.Creation, bool, error)
	ListCreations() ([]domain.Creation, error)
	ListCreationsByOwner(ownerID string) ([]domain.Creation, error)

	// photos
	SavePhoto(domain.Photo) error
}
