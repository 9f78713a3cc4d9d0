package handlers

import (
	"net/http"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// EventHandler handles event and RSVP requests
type EventHandler struct {
	eventService *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// RSVPRequest is the body of POST /events/{event_id}/rsvp
type RSVPRequest struct {
	Status models.RSVPStatus `json:"status"`
}

// InviteRequest is the body of POST /events/{event_id}/invites
type InviteRequest struct {
	InviteeID string  `json:"invitee_id"`
	Message   *string `json:"message,omitempty"`
}

// RSVPSummary describes the caller's standing on an event
type RSVPSummary struct {
	EventID       string            `json:"event_id"`
	Status        models.RSVPStatus `json:"status"`
	AttendeeCount int               `json:"attendee_count"`
	DeclinedCount int               `json:"declined_count"`
}

// CreateEvent handles POST /api/v1/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req services.CreateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.eventService.CreateEvent(r.Context(), currentUser(r), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info().
		Str("event_id", event.ID).
		Str("host_id", event.HostID).
		Msg("Event created")

	respondJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/v1/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.VisibleEvents(r.Context(), currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetEvent handles GET /api/v1/events/{event_id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetVisible(r.Context(), chi.URLParam(r, "event_id"), currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /api/v1/events/{event_id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.eventService.UpdateEvent(r.Context(), currentUser(r), chi.URLParam(r, "event_id"), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/v1/events/{event_id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	if err := h.eventService.DeleteEvent(r.Context(), currentUser(r), eventID); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RSVP handles POST /api/v1/events/{event_id}/rsvp
func (h *EventHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	var req RSVPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	invite, err := h.eventService.RSVP(r.Context(), chi.URLParam(r, "event_id"), currentUser(r), req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, invite)
}

// GetRSVP handles GET /api/v1/events/{event_id}/rsvp
func (h *EventHandler) GetRSVP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "event_id")
	if _, err := h.eventService.GetVisible(ctx, eventID, currentUser(r)); err != nil {
		handleError(w, r, err)
		return
	}

	status, err := h.eventService.CurrentStatus(ctx, eventID, currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	attending, err := h.eventService.AttendeeCount(ctx, eventID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	declined, err := h.eventService.DeclinedCount(ctx, eventID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, RSVPSummary{
		EventID:       eventID,
		Status:        status,
		AttendeeCount: attending,
		DeclinedCount: declined,
	})
}

// GetAttendees handles GET /api/v1/events/{event_id}/attendees
func (h *EventHandler) GetAttendees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "event_id")
	if _, err := h.eventService.GetVisible(ctx, eventID, currentUser(r)); err != nil {
		handleError(w, r, err)
		return
	}
	users, err := h.eventService.Attendees(ctx, eventID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"attendees": users})
}

// Invite handles POST /api/v1/events/{event_id}/invites
func (h *EventHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	invite, err := h.eventService.Invite(r.Context(), chi.URLParam(r, "event_id"), currentUser(r), req.InviteeID, req.Message)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, invite)
}
