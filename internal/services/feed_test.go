package services

import (
	"context"
	"testing"
	"time"

	"townconnect-backend/internal/models"
)

func ids(events []models.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestComposeFeed(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	event := func(id, host string, offset time.Duration, public bool) models.Event {
		return models.Event{ID: id, HostID: host, StartDate: base.Add(offset), IsPublic: public}
	}

	events := []models.Event{
		event("d1", "D", 1*time.Hour, true),
		event("c1", "C", 3*time.Hour, true),
		event("b1", "B", 2*time.Hour, true),
		event("a1", "A", 4*time.Hour, true),
		event("b2", "B", 5*time.Hour, false),
		event("c0", "C", 2*time.Hour, true),
	}
	following := map[string]struct{}{"B": {}, "C": {}}

	tests := []struct {
		name string
		snap FeedSnapshot
		user string
		want []string
	}{
		{
			name: "followed hosts and own events by start then id",
			snap: FeedSnapshot{Following: following, Events: events},
			user: "A",
			want: []string{"b1", "c0", "c1", "a1"},
		},
		{
			name: "follows no one",
			snap: FeedSnapshot{Events: events},
			user: "A",
			want: []string{"a1"},
		},
		{
			name: "no events",
			snap: FeedSnapshot{Following: following},
			user: "A",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(ComposeFeed(tt.snap, tt.user))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFeedFor_FollowedHosts(t *testing.T) {
	ctx := context.Background()
	app, clock := newTestApp(t)
	a := mustUser(t, app, "alice", models.RoleResident)
	b := mustUser(t, app, "bob", models.RoleResident)
	c := mustUser(t, app, "carol", models.RoleResident)
	d := mustUser(t, app, "dave", models.RoleResident)

	app.Relationships.Follow(ctx, a.ID, b.ID)
	app.Relationships.Follow(ctx, a.ID, c.ID)

	now := clock.Now()
	eb := mustEvent(t, app, b.ID, "Bob's", now.Add(3*time.Hour))
	ec := mustEvent(t, app, c.ID, "Carol's", now.Add(1*time.Hour))
	mustEvent(t, app, d.ID, "Dave's", now.Add(2*time.Hour))
	ea := mustEvent(t, app, a.ID, "Alice's", now.Add(4*time.Hour))

	private := false
	if _, err := app.Events.CreateEvent(ctx, b.ID, CreateEventRequest{
		Title: "Bob's private", Location: "Home", StartDate: now, EndDate: now.Add(time.Hour), IsPublic: &private,
	}); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	feed, err := app.Feed.FeedFor(ctx, a.ID)
	if err != nil {
		t.Fatalf("FeedFor failed: %v", err)
	}
	got := ids(feed)
	want := []string{ec.ID, eb.ID, ea.ID}
	if len(got) != len(want) {
		t.Fatalf("feed: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("feed: got %v, want %v", got, want)
		}
	}

	_, err = app.Feed.FeedFor(ctx, "nobody")
	assertNotFound(t, err)
}

func TestExplore(t *testing.T) {
	ctx := context.Background()
	app, clock := newTestApp(t)
	sam := mustUser(t, app, "sam_hikes", models.RoleEventOrganizer)
	mustUser(t, app, "mia", models.RoleResident)

	now := clock.Now()
	hike := mustEvent(t, app, sam.ID, "Ridge Hike", now.Add(time.Hour))
	mustEvent(t, app, sam.ID, "Book Club", now.Add(2*time.Hour))

	users, err := app.Feed.SearchUsers(ctx, "HIKE")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != sam.ID {
		t.Errorf("SearchUsers: got %+v", users)
	}

	events, err := app.Feed.SearchEvents(ctx, "hike")
	if err != nil {
		t.Fatalf("SearchEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != hike.ID {
		t.Errorf("SearchEvents: got %+v", events)
	}

	all, err := app.Feed.Explore(ctx, "")
	if err != nil {
		t.Fatalf("Explore failed: %v", err)
	}
	if len(all.Users) != 2 || len(all.Events) != 2 {
		t.Errorf("empty query: got %d users, %d events", len(all.Users), len(all.Events))
	}
}
