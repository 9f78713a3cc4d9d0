package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"townconnect-backend/internal/config"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options configures an App
type Options struct {
	JWTSecret string
	AWS       config.AWSConfig
	// Presigner issues upload URLs; nil disables photo uploads.
	Presigner Presigner
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// App holds every service over one record store. It is built once at
// process start and passed to whatever needs store access.
type App struct {
	Backend repository.Backend
	DB      *repository.Tables

	Counters      *Counters
	Hub           *WSHub
	Notifications *NotificationService
	Users         *UserService
	Relationships *RelationshipService
	Events        *EventService
	Feed          *FeedService
	Engagement    *EngagementService
	Photos        *PhotoService
	Reconciler    *Reconciler
}

// NewApp wires the services over backend
func NewApp(backend repository.Backend, opts Options) *App {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	db := repository.NewTables(backend)
	counters := NewCounters(backend)
	hub := NewWSHub()
	notifications := NewNotificationService(db, hub, now)
	relationships := NewRelationshipService(db, counters, notifications, now)

	return &App{
		Backend:       backend,
		DB:            db,
		Counters:      counters,
		Hub:           hub,
		Notifications: notifications,
		Users:         NewUserService(db, opts.JWTSecret, now),
		Relationships: relationships,
		Events:        NewEventService(db, counters, notifications, now),
		Feed:          NewFeedService(db, relationships),
		Engagement:    NewEngagementService(db, counters, notifications, now),
		Photos:        NewPhotoService(db, counters, notifications, opts.Presigner, opts.AWS, now),
		Reconciler:    NewReconciler(db, counters),
	}
}

// Bootstrap checks the store is reachable and loads the record count of every kind
func (a *App) Bootstrap(ctx context.Context) (map[repository.Kind]int, error) {
	if err := a.Backend.Ping(ctx); err != nil {
		return nil, fmt.Errorf("record store unreachable: %w", err)
	}

	var mu sync.Mutex
	counts := make(map[repository.Kind]int, len(repository.AllKinds))

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range repository.AllKinds {
		kind := kind
		g.Go(func() error {
			docs, err := a.Backend.FetchAll(gctx, kind)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", kind, err)
			}
			mu.Lock()
			counts[kind] = len(docs)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ev := log.Info()
	for kind, n := range counts {
		ev = ev.Int(string(kind), n)
	}
	ev.Msg("Record store loaded")
	return counts, nil
}

// SeedDemo creates the demo community through the normal service paths.
// It does nothing when users already exist.
func (a *App) SeedDemo(ctx context.Context) error {
	users, err := a.DB.Users.All(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		log.Info().Int("users", len(users)).Msg("Store not empty, skipping demo seed")
		return nil
	}

	city := "Springfield"
	people := []CreateUserRequest{
		{Username: "jay", FullName: "Jay Patel", Role: models.RoleResident, Bio: "Trail runner and board game fan", Interests: []string{"hiking", "board games"}, City: &city},
		{Username: "sam", FullName: "Sam Rivera", Role: models.RoleEventOrganizer, Bio: "Organizing weekend hikes", Interests: []string{"hiking", "photography"}, City: &city},
		{Username: "mia", FullName: "Mia Chen", Role: models.RoleCommunityLeader, Bio: "Neighborhood council", Interests: []string{"community", "games"}, City: &city},
	}
	ids := make(map[string]string, len(people))
	for _, p := range people {
		u, _, err := a.Users.CreateUser(ctx, p)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", p.Username, err)
		}
		ids[p.Username] = u.ID
	}

	day := a.Events.now().Truncate(24 * time.Hour)
	hike, err := a.Events.CreateEvent(ctx, ids["sam"], CreateEventRequest{
		Title:     "Saturday Ridge Hike",
		Details:   "Easy 8 km loop, bring water",
		Location:  "North Trailhead",
		StartDate: day.Add(2*24*time.Hour + 9*time.Hour),
		EndDate:   day.Add(2*24*time.Hour + 12*time.Hour),
		Category:  models.CategorySports,
		Tags:      []string{"outdoors", "hiking"},
	})
	if err != nil {
		return fmt.Errorf("seed hike: %w", err)
	}
	if _, err := a.Events.RSVP(ctx, hike.ID, ids["jay"], models.RSVPAccepted); err != nil {
		return fmt.Errorf("seed hike rsvp: %w", err)
	}

	games, err := a.Events.CreateEvent(ctx, ids["mia"], CreateEventRequest{
		Title:     "Board Game Night",
		Details:   "Bring your favourite game",
		Location:  "Community Center, Room 2",
		StartDate: day.Add(5*24*time.Hour + 18*time.Hour),
		EndDate:   day.Add(5*24*time.Hour + 22*time.Hour),
		Category:  models.CategorySocial,
		Tags:      []string{"games"},
	})
	if err != nil {
		return fmt.Errorf("seed game night: %w", err)
	}
	msg := "Would love to see you there"
	if _, err := a.Events.Invite(ctx, games.ID, ids["mia"], ids["jay"], &msg); err != nil {
		return fmt.Errorf("seed invite: %w", err)
	}

	if err := a.Relationships.Follow(ctx, ids["jay"], ids["sam"]); err != nil {
		return fmt.Errorf("seed follow: %w", err)
	}

	log.Info().Int("users", len(ids)).Msg("Demo data seeded")
	return nil
}

// Close releases the hub connections and the record store
func (a *App) Close() error {
	a.Hub.CloseAll()
	return a.Backend.Close()
}
