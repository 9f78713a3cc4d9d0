package handlers

import (
	"net/http"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// EngagementHandler handles reactions and comments
type EngagementHandler struct {
	engagementService *services.EngagementService
}

// NewEngagementHandler creates a new engagement handler
func NewEngagementHandler(engagementService *services.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagementService: engagementService}
}

// ReactionRequest is the body of POST /reactions
type ReactionRequest struct {
	Target string              `json:"target"`
	Type   models.ReactionType `json:"type"`
}

// ReactionResponse reports the caller's reaction after a toggle
type ReactionResponse struct {
	Reaction *models.Reaction `json:"reaction"`
	Removed  bool             `json:"removed"`
}

// ReactionSummary holds the tally for one target
type ReactionSummary struct {
	Target string                      `json:"target"`
	Counts map[models.ReactionType]int `json:"counts"`
	Mine   *models.Reaction            `json:"mine,omitempty"`
}

// CommentRequest is the body of POST /comments
type CommentRequest struct {
	Target  string  `json:"target"`
	Content string  `json:"content"`
	ReplyTo *string `json:"reply_to,omitempty"`
}

func parseTarget(raw string) (models.Target, error) {
	t, err := models.ParseTarget(raw)
	if err != nil {
		return models.Target{}, apperr.Invalid("target", err.Error())
	}
	return t, nil
}

// ToggleReaction handles POST /api/v1/reactions
func (h *EngagementHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	var req ReactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		handleError(w, r, err)
		return
	}
	reaction, err := h.engagementService.ToggleReaction(r.Context(), currentUser(r), target, req.Type)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ReactionResponse{Reaction: reaction, Removed: reaction == nil})
}

// GetReactions handles GET /api/v1/reactions?target=kind:id
func (h *EngagementHandler) GetReactions(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r.URL.Query().Get("target"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	ctx := r.Context()
	counts, err := h.engagementService.ReactionCounts(ctx, target)
	if err != nil {
		handleError(w, r, err)
		return
	}
	mine, err := h.engagementService.MyReaction(ctx, currentUser(r), target)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ReactionSummary{Target: target.Key(), Counts: counts, Mine: mine})
}

// AddComment handles POST /api/v1/comments
func (h *EngagementHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := parseTarget(req.Target)
	if err != nil {
		handleError(w, r, err)
		return
	}
	comment, err := h.engagementService.AddComment(r.Context(), target, currentUser(r), req.Content, req.ReplyTo)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// GetComments handles GET /api/v1/comments?target=kind:id
func (h *EngagementHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r.URL.Query().Get("target"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	comments, err := h.engagementService.Comments(r.Context(), target)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// DeleteComment handles DELETE /api/v1/comments/{comment_id}
func (h *EngagementHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.engagementService.DeleteComment(r.Context(), currentUser(r), chi.URLParam(r, "comment_id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
