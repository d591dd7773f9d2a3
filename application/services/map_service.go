package services

import (
	"context"

	"go.uber.org/zap"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/mindmap"
	"mindlink-backend/domain/user"
	apperrors "mindlink-backend/pkg/errors"
)

// MapService implements the document lifecycle: list, create, fetch,
// update, delete and collaborator invites. Real-time operation traffic
// bypasses this service and goes through the collaboration hub.
type MapService struct {
	maps   ports.MapRepository
	users  ports.UserRepository
	logger *zap.Logger
}

// NewMapService creates a MapService.
func NewMapService(maps ports.MapRepository, users ports.UserRepository, logger *zap.Logger) *MapService {
	return &MapService{maps: maps, users: users, logger: logger}
}

// ListForUser returns every map the user owns or collaborates on.
func (s *MapService) ListForUser(ctx context.Context, userID string) ([]*mindmap.Map, error) {
	return s.maps.FindByUser(ctx, userID)
}

// Create persists a new map for the owner. Title defaults to
// "Untitled Map"; nodes and edges may seed the document (templates).
func (s *MapService) Create(ctx context.Context, ownerID, title string, nodes []mindmap.Node, edges []mindmap.Edge) (*mindmap.Map, error) {
	m := mindmap.New(ownerID, title)
	if nodes != nil {
		m.Nodes = nodes
	}
	if edges != nil {
		m.Edges = edges
	}
	if err := s.maps.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("map created", zap.String("mapID", m.ID), zap.String("owner", ownerID))
	return m, nil
}

// Get loads a map by id. Access is deliberately relaxed: any authenticated
// user who knows the id may read it (link-sharing model).
func (s *MapService) Get(ctx context.Context, id string) (*mindmap.Map, error) {
	return s.maps.FindByID(ctx, id)
}

// MapUpdate carries the optional fields of a document update. Nil fields
// are left untouched.
type MapUpdate struct {
	Title *string
	Nodes *[]mindmap.Node
	Edges *[]mindmap.Edge
}

// Update applies a partial update to title, nodes or edges and overwrites
// the stored document.
func (s *MapService) Update(ctx context.Context, id string, update MapUpdate) (*mindmap.Map, error) {
	m, err := s.maps.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Title != nil {
		m.Title = *update.Title
	}
	if update.Nodes != nil {
		m.Nodes = *update.Nodes
	}
	if update.Edges != nil {
		m.Edges = *update.Edges
	}
	if err := s.maps.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a map.
func (s *MapService) Delete(ctx context.Context, id string) error {
	if err := s.maps.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("map deleted", zap.String("mapID", id))
	return nil
}

// Invite adds a registered user, found by email, to the collaborator list.
// Only the owner may invite; inviting the owner or an existing
// collaborator is rejected.
func (s *MapService) Invite(ctx context.Context, mapID, callerID, email string) (*user.User, error) {
	m, err := s.maps.FindByID(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if m.Owner != callerID {
		return nil, apperrors.NewForbiddenError("Only the owner can invite collaborators.")
	}

	invitee, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("User")
		}
		return nil, err
	}

	if m.HasCollaborator(invitee.ID) {
		return nil, apperrors.NewValidationError("User is already a collaborator.")
	}
	if m.Owner == invitee.ID {
		return nil, apperrors.NewValidationError("You are the owner of this map.")
	}

	m.Collaborators = append(m.Collaborators, invitee.ID)
	if err := s.maps.Save(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("collaborator invited",
		zap.String("mapID", mapID),
		zap.String("invitee", invitee.ID),
	)
	return invitee, nil
}
