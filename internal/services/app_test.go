package services

import (
	"context"
	"testing"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
)

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)

	if err := app.SeedDemo(ctx); err != nil {
		t.Fatalf("SeedDemo failed: %v", err)
	}
	// Second run is a no-op.
	if err := app.SeedDemo(ctx); err != nil {
		t.Fatalf("second SeedDemo failed: %v", err)
	}

	counts, err := app.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	want := map[repository.Kind]int{
		repository.KindUsers:   3,
		repository.KindEvents:  2,
		repository.KindFollows: 1,
		// host invite for each event, jay's RSVP and jay's invitation
		repository.KindInvites: 4,
	}
	for kind, n := range want {
		if counts[kind] != n {
			t.Errorf("%s: got %d, want %d", kind, counts[kind], n)
		}
	}
	if len(counts) != len(repository.AllKinds) {
		t.Errorf("Bootstrap should report every kind, got %v", counts)
	}

	jay, found, err := app.DB.Users.First(ctx, repository.Eq("username", "jay"))
	if err != nil || !found {
		t.Fatalf("jay not seeded: %v", err)
	}
	feed, err := app.Feed.FeedFor(ctx, jay.ID)
	if err != nil {
		t.Fatalf("FeedFor failed: %v", err)
	}
	if len(feed) != 1 || feed[0].Title != "Saturday Ridge Hike" {
		t.Errorf("jay's feed: %+v", feed)
	}
	if !feed[0].HasAttendee(jay.ID) {
		t.Errorf("jay should attend the hike")
	}

	invites, _ := app.Events.InvitesFor(ctx, jay.ID)
	statuses := map[models.RSVPStatus]int{}
	for _, inv := range invites {
		statuses[inv.Status]++
	}
	if statuses[models.RSVPAccepted] != 1 || statuses[models.RSVPInvited] != 1 {
		t.Errorf("jay's invites: %+v", invites)
	}

	report, err := app.Reconciler.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if len(report.Fixes) != 0 {
		t.Errorf("seeded data should be consistent, fixes: %+v", report.Fixes)
	}
}
