package handlers

import (
	"net/http"

	"townconnect-backend/internal/config"
	"townconnect-backend/internal/middleware"
	"townconnect-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// NewRouter builds the HTTP API over app
func NewRouter(app *services.App, cfg *config.Config) http.Handler {
	userHandler := NewUserHandler(app.Users, app.Relationships)
	eventHandler := NewEventHandler(app.Events)
	feedHandler := NewFeedHandler(app.Feed)
	engagementHandler := NewEngagementHandler(app.Engagement)
	photoHandler := NewPhotoHandler(app.Photos)
	notificationHandler := NewNotificationHandler(app.Notifications)
	adminHandler := NewAdminHandler(app)
	wsHandler := NewWebSocketHandler(app.Hub, app.Users)

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limit = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Get("/health", adminHandler.Health)
	r.Get("/ready", adminHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.With(limit).Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(app.Users))
			r.Use(limit)

			r.Get("/users", userHandler.ListUsers)
			r.Patch("/users/me", userHandler.UpdateMe)
			r.Route("/users/{user_id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Get("/stats", userHandler.GetStats)
				r.Get("/followers", userHandler.GetFollowers)
				r.Get("/following", userHandler.GetFollowing)
				r.Post("/follow", userHandler.Follow)
				r.Delete("/follow", userHandler.Unfollow)
			})

			r.Get("/events", eventHandler.ListEvents)
			r.Post("/events", eventHandler.CreateEvent)
			r.Route("/events/{event_id}", func(r chi.Router) {
				r.Get("/", eventHandler.GetEvent)
				r.Patch("/", eventHandler.UpdateEvent)
				r.Delete("/", eventHandler.DeleteEvent)
				r.Get("/rsvp", eventHandler.GetRSVP)
				r.Post("/rsvp", eventHandler.RSVP)
				r.Get("/attendees", eventHandler.GetAttendees)
				r.Post("/invites", eventHandler.Invite)
				r.Get("/photos", photoHandler.GetPhotos)
				r.Post("/photos/upload", photoHandler.UploadPhoto)
			})

			r.Get("/feed", feedHandler.GetFeed)
			r.Get("/explore", feedHandler.Explore)

			r.Get("/reactions", engagementHandler.GetReactions)
			r.Post("/reactions", engagementHandler.ToggleReaction)
			r.Get("/comments", engagementHandler.GetComments)
			r.Post("/comments", engagementHandler.AddComment)
			r.Delete("/comments/{comment_id}", engagementHandler.DeleteComment)

			r.Delete("/photos/{photo_id}", photoHandler.DeletePhoto)

			r.Get("/notifications", notificationHandler.GetNotifications)
			r.Post("/notifications/{notification_id}/read", notificationHandler.MarkRead)

			r.Post("/admin/reconcile", adminHandler.Reconcile)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
