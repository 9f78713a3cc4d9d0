package handlers

import (
	"net/http"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// NotificationHandler lists and acknowledges notifications
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// NotificationList is returned by GetNotifications
type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// GetNotifications handles GET /api/v1/notifications
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	list, err := h.notificationService.List(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	unread := 0
	for _, n := range list {
		if !n.IsRead {
			unread++
		}
	}
	respondJSON(w, http.StatusOK, NotificationList{Notifications: list, Unread: unread})
}

// MarkRead handles POST /api/v1/notifications/{notification_id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notificationService.MarkRead(r.Context(), currentUser(r), chi.URLParam(r, "notification_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}
