package handlers

import (
	"context"
	"net/http"
	"time"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AdminHandler serves health probes and maintenance endpoints
type AdminHandler struct {
	backend    repository.Backend
	users      *services.UserService
	reconciler *services.Reconciler
	hub        *services.WSHub
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(app *services.App) *AdminHandler {
	return &AdminHandler{
		backend:    app.Backend,
		users:      app.Users,
		reconciler: app.Reconciler,
		hub:        app.Hub,
	}
}

// Health handles GET /health
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": h.hub.Online(),
	})
}

// Ready handles GET /ready
func (h *AdminHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.backend.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Readiness check failed")
		respondError(w, "storage backend unavailable", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Reconcile handles POST /api/v1/admin/reconcile
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := h.users.Get(ctx, currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !actor.Role.Can(models.PermSystemAdmin) {
		respondError(w, "forbidden", http.StatusForbidden)
		return
	}

	report, err := h.reconciler.Repair(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", actor.ID).
		Int("checked", report.Checked).
		Int("fixes", len(report.Fixes)).
		Msg("Counters reconciled")

	respondJSON(w, http.StatusOK, report)
}
