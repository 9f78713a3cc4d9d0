package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"townconnect-backend/internal/config"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/services"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	app    *services.App
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	app := services.NewApp(repository.NewMemoryBackend(), services.Options{
		JWTSecret: "test-secret",
		Now:       func() time.Time { return testNow },
	})
	return &testServer{t: t, app: app, router: NewRouter(app, &config.Config{})}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signup(username, role string) (string, string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/users", "", map[string]any{
		"username":  username,
		"full_name": "User " + username,
		"role":      role,
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("signup %s: status %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		User  struct{ ID string } `json:"user"`
		Token string              `json:"token"`
	}
	decode(s.t, rec, &resp)
	return resp.User.ID, resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/ready"} {
		if rec := s.do(http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("%s: got %d", path, rec.Code)
		}
	}
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/users", "", map[string]any{"username": "X!", "role": "resident"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	decode(t, rec, &resp)
	if len(resp.Fields) == 0 {
		t.Errorf("expected field errors, got %+v", resp)
	}

	rec = s.do(http.MethodPost, "/api/v1/users", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: got %d, want 400", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/feed"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPost, "/api/v1/events"},
		{http.MethodPost, "/api/v1/admin/reconcile"},
	}
	for _, tt := range tests {
		if rec := s.do(tt.method, tt.path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: got %d, want 401", tt.method, tt.path, rec.Code)
		}
		if rec := s.do(tt.method, tt.path, "garbage", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token: got %d, want 401", tt.method, tt.path, rec.Code)
		}
	}
}

func TestEventFlow(t *testing.T) {
	s := newTestServer(t)
	hostID, hostToken := s.signup("sam", "event_organizer")
	jayID, jayToken := s.signup("jay", "resident")

	start := testNow.Add(24 * time.Hour)
	rec := s.do(http.MethodPost, "/api/v1/events", hostToken, map[string]any{
		"title":      "Ridge Hike",
		"location":   "Trailhead",
		"start_date": start,
		"end_date":   start.Add(3 * time.Hour),
		"category":   "sports",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", rec.Code, rec.Body.String())
	}
	var event struct {
		ID          string   `json:"id"`
		HostID      string   `json:"host_id"`
		AttendeeIDs []string `json:"attendee_ids"`
	}
	decode(t, rec, &event)
	if event.HostID != hostID || len(event.AttendeeIDs) != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}

	// Residents cannot create events.
	rec = s.do(http.MethodPost, "/api/v1/events", jayToken, map[string]any{
		"title":      "Picnic",
		"location":   "Park",
		"start_date": start,
		"end_date":   start.Add(time.Hour),
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("resident create: got %d, want 403", rec.Code)
	}

	if rec := s.do(http.MethodPost, "/api/v1/users/"+hostID+"/follow", jayToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("follow: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, "/api/v1/users/"+jayID+"/follow", jayToken, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("self follow: got %d, want 400", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/v1/feed", jayToken, nil)
	var feed struct {
		Events []struct{ ID string } `json:"events"`
	}
	decode(t, rec, &feed)
	if len(feed.Events) != 1 || feed.Events[0].ID != event.ID {
		t.Errorf("feed: %+v", feed)
	}

	rec = s.do(http.MethodPost, "/api/v1/events/"+event.ID+"/rsvp", jayToken, map[string]string{"status": "accepted"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rsvp: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodGet, "/api/v1/events/"+event.ID+"/rsvp", jayToken, nil)
	var summary RSVPSummary
	decode(t, rec, &summary)
	if summary.Status != "accepted" || summary.AttendeeCount != 2 {
		t.Errorf("rsvp summary: %+v", summary)
	}

	rec = s.do(http.MethodPost, "/api/v1/events/"+event.ID+"/rsvp", jayToken, map[string]string{"status": "sure"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad rsvp status: got %d, want 400", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/v1/events/missing", jayToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event: got %d, want 404", rec.Code)
	}

	rec = s.do(http.MethodDelete, "/api/v1/events/"+event.ID, jayToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("delete by non-host: got %d, want 403", rec.Code)
	}
}

func TestEngagementEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, hostToken := s.signup("sam", "event_organizer")
	_, jayToken := s.signup("jay", "resident")

	start := testNow.Add(24 * time.Hour)
	rec := s.do(http.MethodPost, "/api/v1/events", hostToken, map[string]any{
		"title":      "Market",
		"location":   "Square",
		"start_date": start,
		"end_date":   start.Add(time.Hour),
	})
	var event struct{ ID string }
	decode(t, rec, &event)
	target := "event:" + event.ID

	rec = s.do(http.MethodPost, "/api/v1/reactions", jayToken, map[string]string{"target": target, "type": "love"})
	if rec.Code != http.StatusOK {
		t.Fatalf("react: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodGet, "/api/v1/reactions?target="+target, jayToken, nil)
	var summary struct {
		Counts map[string]int `json:"counts"`
		Mine   *struct {
			Type string `json:"type"`
		} `json:"mine"`
	}
	decode(t, rec, &summary)
	if summary.Counts["love"] != 1 || len(summary.Counts) != 1 || summary.Mine == nil || summary.Mine.Type != "love" {
		t.Errorf("reaction summary: %+v", summary)
	}

	rec = s.do(http.MethodPost, "/api/v1/reactions", jayToken, map[string]string{"target": target, "type": "love"})
	var toggled ReactionResponse
	decode(t, rec, &toggled)
	if !toggled.Removed {
		t.Errorf("second identical reaction should remove it: %+v", toggled)
	}

	rec = s.do(http.MethodPost, "/api/v1/comments", jayToken, map[string]string{"target": target, "content": "See you there"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodGet, "/api/v1/comments?target="+target, hostToken, nil)
	var comments struct {
		Comments []struct{ Content string } `json:"comments"`
	}
	decode(t, rec, &comments)
	if len(comments.Comments) != 1 || comments.Comments[0].Content != "See you there" {
		t.Errorf("comments: %+v", comments)
	}

	if rec := s.do(http.MethodGet, "/api/v1/comments?target=bogus", jayToken, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad target: got %d, want 400", rec.Code)
	}

	// The host got a comment notification.
	rec = s.do(http.MethodGet, "/api/v1/notifications", hostToken, nil)
	var list NotificationList
	decode(t, rec, &list)
	if list.Unread == 0 || len(list.Notifications) != list.Unread {
		t.Fatalf("host notifications: %+v", list)
	}
	rec = s.do(http.MethodPost, "/api/v1/notifications/"+list.Notifications[0].ID+"/read", jayToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("marking someone else's notification: got %d, want 403", rec.Code)
	}
}

func TestPhotoUploadWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	_, hostToken := s.signup("sam", "event_organizer")
	start := testNow.Add(24 * time.Hour)
	rec := s.do(http.MethodPost, "/api/v1/events", hostToken, map[string]any{
		"title":      "Fair",
		"location":   "Green",
		"start_date": start,
		"end_date":   start.Add(time.Hour),
	})
	var event struct{ ID string }
	decode(t, rec, &event)

	rec = s.do(http.MethodPost, "/api/v1/events/"+event.ID+"/photos/upload", hostToken, map[string]string{"content_type": "image/jpeg"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("upload without presigner: got %d, want 502", rec.Code)
	}
	rec = s.do(http.MethodGet, "/api/v1/events/"+event.ID+"/photos", hostToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("list photos: got %d", rec.Code)
	}
}

func TestReconcileRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	_, jayToken := s.signup("jay", "resident")
	_, adminToken := s.signup("root", "admin")

	if rec := s.do(http.MethodPost, "/api/v1/admin/reconcile", jayToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("resident: got %d, want 403", rec.Code)
	}
	rec := s.do(http.MethodPost, "/api/v1/admin/reconcile", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: got %d %s", rec.Code, rec.Body.String())
	}
	var report services.RepairReport
	decode(t, rec, &report)
	if len(report.Fixes) != 0 {
		t.Errorf("fresh store should need no fixes: %+v", report)
	}
}

func TestPrivateEventVisibility(t *testing.T) {
	s := newTestServer(t)
	_, hostToken := s.signup("sam", "event_organizer")
	jayID, jayToken := s.signup("jay", "resident")
	_, kimToken := s.signup("kim", "resident")

	start := testNow.Add(24 * time.Hour)
	rec := s.do(http.MethodPost, "/api/v1/events", hostToken, map[string]any{
		"title":      "Board Meeting",
		"location":   "Town Hall",
		"start_date": start,
		"end_date":   start.Add(time.Hour),
		"is_public":  false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", rec.Code, rec.Body.String())
	}
	var event struct{ ID string }
	decode(t, rec, &event)

	paths := []string{
		"/api/v1/events/" + event.ID,
		"/api/v1/events/" + event.ID + "/rsvp",
		"/api/v1/events/" + event.ID + "/attendees",
	}
	for _, p := range paths {
		if rec := s.do(http.MethodGet, p, kimToken, nil); rec.Code != http.StatusNotFound {
			t.Errorf("outsider GET %s: got %d, want 404", p, rec.Code)
		}
		if rec := s.do(http.MethodGet, p, hostToken, nil); rec.Code != http.StatusOK {
			t.Errorf("host GET %s: got %d, want 200", p, rec.Code)
		}
	}

	rec = s.do(http.MethodPost, "/api/v1/events/"+event.ID+"/invites", hostToken, map[string]any{"invitee_id": jayID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite: %d %s", rec.Code, rec.Body.String())
	}
	for _, p := range paths {
		if rec := s.do(http.MethodGet, p, jayToken, nil); rec.Code != http.StatusOK {
			t.Errorf("invitee GET %s: got %d, want 200", p, rec.Code)
		}
	}

	var list struct {
		Events []struct{ ID string } `json:"events"`
	}
	decode(t, s.do(http.MethodGet, "/api/v1/events", kimToken, nil), &list)
	if len(list.Events) != 0 {
		t.Errorf("outsider list: %+v", list.Events)
	}
	decode(t, s.do(http.MethodGet, "/api/v1/events", jayToken, nil), &list)
	if len(list.Events) != 1 || list.Events[0].ID != event.ID {
		t.Errorf("invitee list: %+v", list.Events)
	}
}
