package handlers

import (
	"net/http"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService         *services.UserService
	relationshipService *services.RelationshipService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, relationshipService *services.RelationshipService) *UserHandler {
	return &UserHandler{
		userService:         userService,
		relationshipService: relationshipService,
	}
}

// SignupResponse is returned by CreateUser
type SignupResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.userService.CreateUser(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("User created")

	respondJSON(w, http.StatusCreated, SignupResponse{User: user, Token: token})
}

// ListUsers handles GET /api/v1/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

// GetUser handles GET /api/v1/users/{user_id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if user.ID != currentUser(r) {
		public := user.Public()
		user = &public
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var update services.ProfileUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), currentUser(r), update)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// GetStats handles GET /api/v1/users/{user_id}/stats
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userService.ProfileStats(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetFollowers handles GET /api/v1/users/{user_id}/followers
func (h *UserHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	ids, err := h.relationshipService.Followers(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "followers": ids})
}

// GetFollowing handles GET /api/v1/users/{user_id}/following
func (h *UserHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	ids, err := h.relationshipService.Following(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "following": ids})
}

// Follow handles POST /api/v1/users/{user_id}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "user_id")
	if err := h.relationshipService.Follow(r.Context(), currentUser(r), targetID); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"following": true, "user_id": targetID})
}

// Unfollow handles DELETE /api/v1/users/{user_id}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "user_id")
	if err := h.relationshipService.Unfollow(r.Context(), currentUser(r), targetID); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"following": false, "user_id": targetID})
}
