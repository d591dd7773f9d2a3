package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"mindlink-backend/application/services"
	"mindlink-backend/domain/mindmap"
	"mindlink-backend/pkg/auth"
	"mindlink-backend/pkg/common"
)

// MapHandler serves the map CRUD and invite endpoints. Reads, updates and
// deletes require only authentication, not membership: anyone logged in
// who knows a map id can act on it (link-sharing model).
type MapHandler struct {
	maps     *services.MapService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewMapHandler creates a MapHandler.
func NewMapHandler(maps *services.MapService, logger *zap.Logger) *MapHandler {
	return &MapHandler{
		maps:     maps,
		validate: validator.New(),
		logger:   logger,
	}
}

type createMapRequest struct {
	Title string         `json:"title"`
	Nodes []mindmap.Node `json:"nodes"`
	Edges []mindmap.Edge `json:"edges"`
}

type updateMapRequest struct {
	Title *string         `json:"title"`
	Nodes *[]mindmap.Node `json:"nodes"`
	Edges *[]mindmap.Edge `json:"edges"`
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// List handles GET /api/maps.
func (h *MapHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
		return
	}

	maps, err := h.maps.ListForUser(r.Context(), user.UserID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if maps == nil {
		maps = []*mindmap.Map{}
	}
	common.RespondJSON(w, http.StatusOK, maps)
}

// Create handles POST /api/maps.
func (h *MapHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
		return
	}

	var req createMapRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body.")
		return
	}

	m, err := h.maps.Create(r.Context(), user.UserID, req.Title, req.Nodes, req.Edges)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, m)
}

// Get handles GET /api/maps/{id}.
func (h *MapHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.maps.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, m)
}

// Update handles PUT /api/maps/{id}.
func (h *MapHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateMapRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body.")
		return
	}

	m, err := h.maps.Update(r.Context(), chi.URLParam(r, "id"), services.MapUpdate{
		Title: req.Title,
		Nodes: req.Nodes,
		Edges: req.Edges,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /api/maps/{id}.
func (h *MapHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.maps.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Map deleted successfully.",
	})
}

// Invite handles POST /api/maps/{id}/invite.
func (h *MapHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
		return
	}

	var req inviteRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "A valid email is required.")
		return
	}

	invitee, err := h.maps.Invite(r.Context(), chi.URLParam(r, "id"), user.UserID, req.Email)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Collaborator added successfully.",
		"user": map[string]string{
			"id":       invitee.ID,
			"username": invitee.Username,
			"email":    invitee.Email,
		},
	})
}
