package services

import (
	"context"
	"testing"
	"time"

	"townconnect-backend/internal/models"
)

func TestJWT_RoundTrip(t *testing.T) {
	app, clock := newTestApp(t)

	token, err := app.Users.GenerateJWT("user-123")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	userID, err := app.Users.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("got user %q", userID)
	}

	other := NewUserService(app.DB, "other-secret", clock.Now)
	if _, err := other.ValidateJWT(token); err == nil {
		t.Errorf("token signed with another secret must not validate")
	}
	if _, err := app.Users.ValidateJWT("not-a-token"); err == nil {
		t.Errorf("garbage token must not validate")
	}

	clock.Advance(366 * 24 * time.Hour)
	if _, err := app.Users.ValidateJWT(token); err == nil {
		t.Errorf("expired token must not validate")
	}
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t)

	u, token, err := app.Users.CreateUser(ctx, CreateUserRequest{
		Username:  "  Jay.P ",
		FullName:  "Jay <i>Patel</i>",
		Interests: []string{"hiking", " "},
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.Username != "jay.p" || u.FullName != "Jay Patel" || u.Role != models.RoleResident {
		t.Errorf("unexpected user: %+v", u)
	}
	if len(u.Interests) != 1 || !u.IsProfilePublic {
		t.Errorf("unexpected profile fields: %+v", u)
	}
	if id, err := app.Users.ValidateJWT(token); err != nil || id != u.ID {
		t.Errorf("token does not identify the new user: %q, %v", id, err)
	}

	_, _, err = app.Users.CreateUser(ctx, CreateUserRequest{Username: "JAY.P", FullName: "Other"})
	assertValidation(t, err)

	invalid := []CreateUserRequest{
		{Username: "ab", FullName: "Too Short"},
		{Username: "has space", FullName: "Space"},
		{Username: "valid_name", FullName: ""},
		{Username: "valid_name", FullName: "Name", Role: "mayor"},
	}
	for _, req := range invalid {
		_, _, err := app.Users.CreateUser(ctx, req)
		assertValidation(t, err)
	}

	users, _ := app.Users.List(ctx)
	if len(users) != 1 {
		t.Errorf("expected 1 stored user, got %d", len(users))
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	app, clock := newTestApp(t)
	u := mustUser(t, app, "ann", models.RoleResident)

	clock.Advance(time.Hour)
	bio := "Gardener"
	hide := false
	email := "ann@example.com"
	updated, err := app.Users.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Bio:             &bio,
		Email:           &email,
		IsProfilePublic: &hide,
		Interests:       &[]string{"plants"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Bio != bio || updated.IsProfilePublic || len(updated.Interests) != 1 {
		t.Errorf("unexpected profile: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updated_at not bumped: %v", updated.UpdatedAt)
	}
	if updated.Role != models.RoleResident || updated.FollowerCount != 0 {
		t.Errorf("role or counters changed: %+v", updated)
	}
	if pub := updated.Public(); pub.Email != nil {
		t.Errorf("email should be hidden without show_email")
	}

	empty := "  "
	_, err = app.Users.UpdateProfile(ctx, u.ID, ProfileUpdate{FullName: &empty})
	assertValidation(t, err)

	_, err = app.Users.UpdateProfile(ctx, "nobody", ProfileUpdate{Bio: &bio})
	assertNotFound(t, err)
}

func TestProfileStats(t *testing.T) {
	ctx := context.Background()
	app, clock := newTestApp(t)
	host := mustUser(t, app, "host", models.RoleEventOrganizer)
	fan := mustUser(t, app, "fan", models.RoleResident)
	app.Relationships.Follow(ctx, fan.ID, host.ID)

	now := clock.Now()
	mustEvent(t, app, host.ID, "Past", now.Add(-5*time.Hour))
	later := mustEvent(t, app, host.ID, "Later", now.Add(48*time.Hour))
	soon := mustEvent(t, app, host.ID, "Soon", now.Add(time.Hour))

	stats, err := app.Users.ProfileStats(ctx, host.ID)
	if err != nil {
		t.Fatalf("ProfileStats failed: %v", err)
	}
	if stats.FollowerCount != 1 || stats.EventCount != 3 {
		t.Errorf("counts: %+v", stats)
	}
	if len(stats.UpcomingEvents) != 2 || stats.UpcomingEvents[0].ID != soon.ID || stats.UpcomingEvents[1].ID != later.ID {
		t.Errorf("upcoming: %+v", stats.UpcomingEvents)
	}
}
