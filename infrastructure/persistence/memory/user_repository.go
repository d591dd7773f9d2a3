package memory

import (
	"context"
	"sync"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/user"
	apperrors "mindlink-backend/pkg/errors"
)

// UserRepository is an in-memory UserRepository.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*user.User
	byEmail map[string]string
}

// NewUserRepository creates an empty in-memory user store.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*user.User),
		byEmail: make(map[string]string),
	}
}

var _ ports.UserRepository = (*UserRepository)(nil)

// Create persists a new user. Email uniqueness is enforced here.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[u.Email]; exists {
		return apperrors.NewValidationError("Username or Email already exists.")
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	return nil
}

// FindByID looks up a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("User")
	}
	cp := *u
	return &cp, nil
}

// FindByEmail looks up a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return nil, apperrors.NewNotFoundError("User")
	}
	cp := *r.byID[id]
	return &cp, nil
}
