package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// NotificationService stores in-app notifications and pushes them over the hub
type NotificationService struct {
	mu  sync.Mutex
	db  *repository.Tables
	hub *WSHub
	now func() time.Time
}

// NewNotificationService creates a new notification service. hub may be nil.
func NewNotificationService(db *repository.Tables, hub *WSHub, now func() time.Time) *NotificationService {
	return &NotificationService{db: db, hub: hub, now: now}
}

// Notify persists n and pushes it to the recipient if connected
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if n.UserID == "" {
		return nil, apperr.Invalid("user_id", "recipient is required")
	}
	if n.Title == "" {
		return nil, apperr.Invalid("title", "title is required")
	}
	n.ID = ""
	n.IsRead = false
	n.CreatedAt = s.now()

	stored, err := s.db.Notifications.Insert(ctx, n)
	if err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.PushNotification(stored)
	}
	return &stored, nil
}

// send records a notification on behalf of another operation. Failures are
// logged only; the operation that triggered it has already succeeded.
func (s *NotificationService) send(ctx context.Context, n models.Notification) {
	if s == nil || n.UserID == n.FromUserID {
		return
	}
	if _, err := s.Notify(ctx, n); err != nil {
		log.Warn().Err(err).
			Str("user_id", n.UserID).
			Str("type", string(n.Type)).
			Msg("Failed to record notification")
	}
}

// List returns the notifications of userID, newest first
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	items, err := s.db.Notifications.Where(ctx, repository.Eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.db.Notifications.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	if n.IsRead {
		return &n, nil
	}

	updated, err := s.db.Notifications.Update(ctx, notificationID, repository.Patch{"is_read": true})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UnreadCount returns how many of the user's notifications are unread
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	items, err := s.db.Notifications.Where(ctx, repository.Eq("user_id", userID))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range items {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}
