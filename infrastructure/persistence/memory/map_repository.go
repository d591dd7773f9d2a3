// Package memory provides in-process repository implementations used in
// development and tests. Reads and writes exchange deep copies so the
// store behaves like a remote database: a caller's working copy never
// aliases stored state, and interleaved read-modify-write cycles exhibit
// the same last-writer-wins semantics as the DynamoDB store.
package memory

import (
	"context"
	"sync"
	"time"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/mindmap"
	apperrors "mindlink-backend/pkg/errors"
)

// MapRepository is an in-memory MapRepository.
type MapRepository struct {
	mu   sync.RWMutex
	maps map[string]*mindmap.Map
}

// NewMapRepository creates an empty in-memory map store.
func NewMapRepository() *MapRepository {
	return &MapRepository{maps: make(map[string]*mindmap.Map)}
}

var _ ports.MapRepository = (*MapRepository)(nil)

// Create persists a new map.
func (r *MapRepository) Create(ctx context.Context, m *mindmap.Map) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.maps[m.ID]; exists {
		return apperrors.NewConflictError("map already exists")
	}
	r.maps[m.ID] = m.Clone()
	return nil
}

// FindByID returns a deep copy of the stored document.
func (r *MapRepository) FindByID(ctx context.Context, id string) (*mindmap.Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Map")
	}
	return m.Clone(), nil
}

// FindByUser returns maps the user owns or collaborates on.
func (r *MapRepository) FindByUser(ctx context.Context, userID string) ([]*mindmap.Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*mindmap.Map
	for _, m := range r.maps {
		if m.Owner == userID || m.HasCollaborator(userID) {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

// Save overwrites the whole document, last writer wins.
func (r *MapRepository) Save(ctx context.Context, m *mindmap.Map) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := m.Clone()
	cp.UpdatedAt = time.Now().UTC()
	r.maps[m.ID] = cp
	return nil
}

// Delete removes the document.
func (r *MapRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.maps[id]; !ok {
		return apperrors.NewNotFoundError("Map")
	}
	delete(r.maps, id)
	return nil
}
