package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
)

func TestConcurrentEngagementKeepsCountersExact(t *testing.T) {
	ctx := context.Background()
	app, clock := newTestApp(t)
	host := mustUser(t, app, "host", models.RoleEventOrganizer)
	e := mustEvent(t, app, host.ID, "Street Fair", clock.Now().Add(24*time.Hour))

	const n = 20
	users := make([]*models.User, n)
	for i := range users {
		users[i] = mustUser(t, app, fmt.Sprintf("resident%02d", i), models.RoleResident)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3*n)
	for _, u := range users {
		u := u
		wg.Add(3)
		go func() {
			defer wg.Done()
			errs <- app.Relationships.Follow(ctx, u.ID, host.ID)
		}()
		go func() {
			defer wg.Done()
			_, err := app.Events.RSVP(ctx, e.ID, u.ID, models.RSVPAccepted)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := app.Engagement.ToggleReaction(ctx, u.ID, models.EventTarget(e.ID), models.ReactionLike)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call failed: %v", err)
		}
	}

	if got := reloadUser(t, app, host.ID).FollowerCount; got != n {
		t.Errorf("follower_count: got %d, want %d", got, n)
	}
	for _, u := range users {
		if got := reloadUser(t, app, u.ID).FollowingCount; got != 1 {
			t.Errorf("%s following_count: got %d, want 1", u.Username, got)
		}
	}

	event := reloadEvent(t, app, e.ID)
	if event.LikeCount != n {
		t.Errorf("like_count: got %d, want %d", event.LikeCount, n)
	}

	accepted, err := app.DB.Invites.Where(ctx, repository.Eq("event_id", e.ID), repository.Eq("status", string(models.RSVPAccepted)))
	if err != nil {
		t.Fatalf("Where failed: %v", err)
	}
	want := []string{host.ID}
	for _, inv := range accepted {
		if !slices.Contains(want, inv.InviteeID) {
			want = append(want, inv.InviteeID)
		}
	}
	got := slices.Clone(event.AttendeeIDs)
	slices.Sort(got)
	slices.Sort(want)
	if len(got) != n+1 || !slices.Equal(got, want) {
		t.Errorf("attendee_ids %v do not match accepted invites %v", got, want)
	}
}

// failingBackend rejects updates to the configured kinds once armed.
type failingBackend struct {
	repository.Backend

	mu    sync.Mutex
	kinds map[repository.Kind]bool
}

func (f *failingBackend) failUpdates(kinds ...repository.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = make(map[repository.Kind]bool, len(kinds))
	for _, k := range kinds {
		f.kinds[k] = true
	}
}

func (f *failingBackend) Update(ctx context.Context, kind repository.Kind, id string, patch repository.Patch) (repository.Document, error) {
	f.mu.Lock()
	fail := f.kinds[kind]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return f.Backend.Update(ctx, kind, id, patch)
}

func TestBackendFailuresSurfaceAsBackendErrors(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := &failingBackend{Backend: repository.NewMemoryBackend()}
	app := NewApp(backend, Options{JWTSecret: "test-secret", Now: clock.Now})

	host := mustUser(t, app, "host", models.RoleEventOrganizer)
	guest := mustUser(t, app, "guest", models.RoleResident)
	e := mustEvent(t, app, host.ID, "Cleanup", clock.Now().Add(time.Hour))

	backend.failUpdates(repository.KindUsers, repository.KindEvents)

	if err := app.Relationships.Follow(ctx, guest.ID, host.ID); !apperr.IsBackend(err) {
		t.Errorf("Follow: expected BackendError, got %v", err)
	}
	if _, err := app.Events.RSVP(ctx, e.ID, guest.ID, models.RSVPAccepted); !apperr.IsBackend(err) {
		t.Errorf("RSVP: expected BackendError, got %v", err)
	}

	backend.failUpdates()
	if got := reloadEvent(t, app, e.ID).AttendeeIDs; slices.Contains(got, guest.ID) {
		t.Errorf("failed RSVP must not add an attendee: %v", got)
	}
}
