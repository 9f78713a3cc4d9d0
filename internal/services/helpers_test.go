package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestApp(t *testing.T) (*App, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	app := NewApp(repository.NewMemoryBackend(), Options{
		JWTSecret: "test-secret",
		Now:       clock.Now,
	})
	return app, clock
}

func mustUser(t *testing.T, app *App, username string, role models.Role) *models.User {
	t.Helper()
	u, _, err := app.Users.CreateUser(context.Background(), CreateUserRequest{
		Username: username,
		FullName: "User " + username,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return u
}

func mustEvent(t *testing.T, app *App, hostID, title string, start time.Time) *models.Event {
	t.Helper()
	e, err := app.Events.CreateEvent(context.Background(), hostID, CreateEventRequest{
		Title:     title,
		Location:  "Town Hall",
		StartDate: start,
		EndDate:   start.Add(2 * time.Hour),
		Category:  models.CategoryCommunity,
	})
	if err != nil {
		t.Fatalf("CreateEvent(%s) failed: %v", title, err)
	}
	return e
}

func reloadUser(t *testing.T, app *App, id string) models.User {
	t.Helper()
	u, err := app.DB.Users.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return u
}

func reloadEvent(t *testing.T, app *App, id string) models.Event {
	t.Helper()
	e, err := app.DB.Events.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get event %s: %v", id, err)
	}
	return e
}

func assertValidation(t *testing.T, err error) {
	t.Helper()
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
