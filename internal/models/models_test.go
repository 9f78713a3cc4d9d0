package models

import (
	"testing"
	"time"
)

func TestPermissionsFor_Inheritance(t *testing.T) {
	resident := PermissionsFor(RoleResident)
	for _, p := range []Permission{PermViewEvents, PermCreateEvents, PermEditOwnEvents, PermDeleteOwnEvents, PermViewUsers, PermEditOwnProfile} {
		if !resident.Has(p) {
			t.Errorf("resident missing %s", p)
		}
	}
	if resident.Has(PermPromoteEvents) {
		t.Errorf("resident should not promote events")
	}

	for _, r := range []Role{RoleBusinessOwner, RoleEventOrganizer} {
		if !r.Can(PermPromoteEvents) || !r.Can(PermAccessAnalytics) {
			t.Errorf("%s should promote events and access analytics", r)
		}
		if r.Can(PermModerateContent) {
			t.Errorf("%s should not moderate", r)
		}
	}

	leader := PermissionsFor(RoleCommunityLeader)
	if !leader.Has(PermModerateContent) || !leader.Has(PermEditAllEvents) || !leader.Has(PermPromoteEvents) {
		t.Errorf("community leader set incomplete: %v", leader.Sorted())
	}
	if leader.Has(PermSystemAdmin) {
		t.Errorf("community leader should not be system admin")
	}

	if got := len(PermissionsFor(RoleAdmin)); got != len(allPermissions) {
		t.Errorf("admin permissions: got %d, want %d", got, len(allPermissions))
	}
}

func TestPermissionsFor_UnknownRole(t *testing.T) {
	if len(PermissionsFor(Role("pirate"))) != 0 {
		t.Errorf("expected empty set for unknown role")
	}
	if Role("pirate").Can(PermViewEvents) {
		t.Errorf("unknown role should not view events")
	}
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	s := PermissionsFor(RoleResident)
	s[PermSystemAdmin] = struct{}{}
	if RoleResident.Can(PermSystemAdmin) {
		t.Fatalf("mutating a returned set leaked into the role table")
	}
}

func TestDescriptorTables(t *testing.T) {
	if got := CategoryFood.Info().DisplayName; got != "Food & Dining" {
		t.Errorf("food display name: got %q", got)
	}
	if got := CategoryMusic.Info().Icon; got != "music.note" {
		t.Errorf("music icon: got %q", got)
	}
	if got := ReactionLove.Emoji(); got != "❤️" {
		t.Errorf("love emoji: got %q", got)
	}
	if got := RoleAdmin.Info().DisplayName; got != "Administrator" {
		t.Errorf("admin display name: got %q", got)
	}
	if EventCategory("karaoke").Valid() || ReactionType("meh").Valid() || Role("").Valid() {
		t.Errorf("unknown variants should be invalid")
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"event:e1", EventTarget("e1"), false},
		{"photo:p1", PhotoTarget("p1"), false},
		{"comment:c1", CommentTarget("c1"), false},
		{"event:", Target{}, true},
		{"user:u1", Target{}, true},
		{"e1", Target{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTarget(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestNewReaction_SingleTarget(t *testing.T) {
	r := NewReaction("u1", PhotoTarget("p1"), ReactionWow)
	if r.EventID != nil || r.CommentID != nil {
		t.Fatalf("expected only photo id set: %+v", r)
	}
	if r.PhotoID == nil || *r.PhotoID != "p1" {
		t.Fatalf("photo id not set")
	}
	if r.TargetKey != "photo:p1" {
		t.Errorf("TargetKey: got %q", r.TargetKey)
	}
	if r.Target() != PhotoTarget("p1") {
		t.Errorf("Target: got %+v", r.Target())
	}
}

func TestEvent_Helpers(t *testing.T) {
	now := time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC)
	limit := 2
	e := Event{
		EndDate:      now.Add(time.Hour),
		AttendeeIDs:  []string{"host1", "guest1"},
		MaxAttendees: &limit,
	}
	if e.HasEnded(now) {
		t.Errorf("event should not have ended")
	}
	if !e.HasEnded(now.Add(2 * time.Hour)) {
		t.Errorf("event should have ended")
	}
	if !e.HasAttendee("guest1") || e.HasAttendee("guest2") {
		t.Errorf("HasAttendee mismatch")
	}
	if !e.IsFull() {
		t.Errorf("event at capacity should be full")
	}
}

func TestUser_PublicHidesContacts(t *testing.T) {
	email := "jay@example.com"
	phone := "555-0100"
	u := User{Email: &email, PhoneNumber: &phone, ShowEmail: true}
	pub := u.Public()
	if pub.Email == nil {
		t.Errorf("email should stay visible")
	}
	if pub.PhoneNumber != nil {
		t.Errorf("phone should be hidden")
	}
	if u.PhoneNumber == nil {
		t.Errorf("Public must not modify the receiver")
	}
}
