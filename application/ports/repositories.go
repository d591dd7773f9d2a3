package ports

import (
	"context"

	"mindlink-backend/domain/mindmap"
	"mindlink-backend/domain/user"
)

// MapRepository is the persistence port for mind map documents. The store
// performs whole-document reads and overwrites with no version check or
// row lock: concurrent read-modify-write cycles resolve last-writer-wins.
type MapRepository interface {
	// Create persists a new map.
	Create(ctx context.Context, m *mindmap.Map) error

	// FindByID loads the full document, or a not-found error.
	FindByID(ctx context.Context, id string) (*mindmap.Map, error)

	// FindByUser returns the maps the user owns or collaborates on.
	FindByUser(ctx context.Context, userID string) ([]*mindmap.Map, error)

	// Save overwrites the whole document.
	Save(ctx context.Context, m *mindmap.Map) error

	// Delete removes the document, or a not-found error.
	Delete(ctx context.Context, id string) error
}

// UserRepository is the persistence port for registered accounts.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	FindByID(ctx context.Context, id string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}
