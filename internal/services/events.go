package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/sanitize"

	"github.com/rs/zerolog/log"
)

// EventService is the event/RSVP aggregator. It keeps every event's attendee
// list equal to the set of its invites with status accepted.
type EventService struct {
	mu       sync.Mutex
	db       *repository.Tables
	counters *Counters
	notifier *NotificationService
	now      func() time.Time
}

// NewEventService creates a new event service
func NewEventService(db *repository.Tables, counters *Counters, notifier *NotificationService, now func() time.Time) *EventService {
	return &EventService{
		db:       db,
		counters: counters,
		notifier: notifier,
		now:      now,
	}
}

// CreateEventRequest represents a request to create an event
type CreateEventRequest struct {
	Title        string               `json:"title"`
	Details      string               `json:"details"`
	Location     string               `json:"location"`
	StartDate    time.Time            `json:"start_date"`
	EndDate      time.Time            `json:"end_date"`
	Category     models.EventCategory `json:"category"`
	IsPublic     *bool                `json:"is_public,omitempty"`
	MaxAttendees *int                 `json:"max_attendees,omitempty"`
	Tags         []string             `json:"tags"`
}

// UpdateEventRequest holds the editable event fields; nil means unchanged
type UpdateEventRequest struct {
	Title        *string               `json:"title,omitempty"`
	Details      *string               `json:"details,omitempty"`
	Location     *string               `json:"location,omitempty"`
	StartDate    *time.Time            `json:"start_date,omitempty"`
	EndDate      *time.Time            `json:"end_date,omitempty"`
	Category     *models.EventCategory `json:"category,omitempty"`
	Status       *models.EventStatus   `json:"status,omitempty"`
	IsPublic     *bool                 `json:"is_public,omitempty"`
	MaxAttendees *int                  `json:"max_attendees,omitempty"`
	Tags         *[]string             `json:"tags,omitempty"`
}

func (req *CreateEventRequest) validate() error {
	req.Title = sanitize.Text(req.Title)
	req.Details = sanitize.Text(req.Details)
	req.Location = sanitize.Text(req.Location)
	req.Tags = sanitize.Texts(req.Tags)
	if req.Category == "" {
		req.Category = models.CategoryCommunity
	}

	var fields []apperr.FieldError
	if req.Title == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Msg: "is required"})
	}
	if req.Location == "" {
		fields = append(fields, apperr.FieldError{Field: "location", Msg: "is required"})
	}
	if !req.StartDate.Before(req.EndDate) {
		fields = append(fields, apperr.FieldError{Field: "end_date", Msg: "must be after start_date"})
	}
	if !req.Category.Valid() {
		fields = append(fields, apperr.FieldError{Field: "category", Msg: "unknown category"})
	}
	if req.MaxAttendees != nil && *req.MaxAttendees < 1 {
		fields = append(fields, apperr.FieldError{Field: "max_attendees", Msg: "must be at least 1"})
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// CreateEvent creates an event hosted by hostID. The host is the sole initial
// attendee and holds an accepted invite.
func (s *EventService) CreateEvent(ctx context.Context, hostID string, req CreateEventRequest) (*models.Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	host, err := s.db.Users.Get(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if !host.Role.Can(models.PermCreateEvents) {
		return nil, apperr.ErrForbidden
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	now := s.now()
	event, err := s.db.Events.Insert(ctx, models.Event{
		Title:        req.Title,
		Details:      req.Details,
		Location:     req.Location,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		HostID:       hostID,
		AttendeeIDs:  []string{hostID},
		Category:     req.Category,
		Status:       models.EventUpcoming,
		IsPublic:     isPublic,
		MaxAttendees: req.MaxAttendees,
		Tags:         req.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Invites.Insert(ctx, models.Invite{
		EventID:   event.ID,
		InviterID: hostID,
		InviteeID: hostID,
		Status:    models.RSVPAccepted,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, apperr.Backend("insert host invite", err)
	}

	if err := s.counters.AdjustUser(ctx, hostID, FieldEventCount, 1); err != nil {
		return nil, err
	}

	log.Info().Str("event_id", event.ID).Str("host_id", hostID).Msg("Event created")
	return &event, nil
}

// Get returns an event by ID
func (s *EventService) Get(ctx context.Context, eventID string) (*models.Event, error) {
	e, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns every event ordered by start time
func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.db.Events.All(ctx)
	if err != nil {
		return nil, err
	}
	sortEvents(events)
	return events, nil
}

// VisibleEvents returns the events viewerID may see ordered by start time.
// Private events are visible to their host, attendees and invitees.
func (s *EventService) VisibleEvents(ctx context.Context, viewerID string) ([]models.Event, error) {
	events, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	invites, err := s.InvitesFor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	invited := make(map[string]struct{}, len(invites))
	for _, inv := range invites {
		invited[inv.EventID] = struct{}{}
	}

	visible := make([]models.Event, 0, len(events))
	for _, e := range events {
		if _, ok := invited[e.ID]; ok || openTo(e, viewerID) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// GetVisible returns the event when viewerID may see it. A private event the
// viewer has no part in is reported as not found.
func (s *EventService) GetVisible(ctx context.Context, eventID, viewerID string) (*models.Event, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if openTo(*e, viewerID) {
		return e, nil
	}
	_, found, err := s.invite(ctx, eventID, viewerID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound(string(repository.KindEvents), eventID)
	}
	return e, nil
}

func openTo(e models.Event, viewerID string) bool {
	return e.IsPublic || e.HostID == viewerID || e.HasAttendee(viewerID)
}

func (s *EventService) invite(ctx context.Context, eventID, userID string) (models.Invite, bool, error) {
	return s.db.Invites.First(ctx,
		repository.Eq("event_id", eventID),
		repository.Eq("invitee_id", userID),
	)
}

func (s *EventService) checkOpen(e models.Event) error {
	if e.Status == models.EventCancelled {
		return apperr.Invalid("event_id", "event is cancelled")
	}
	if e.HasEnded(s.now()) {
		return apperr.Invalid("event_id", "event has ended")
	}
	return nil
}

// RSVP upserts the single invite of userID for eventID and keeps the
// attendee list in step with it. Repeating a status is a no-op.
func (s *EventService) RSVP(ctx context.Context, eventID, userID string, status models.RSVPStatus) (*models.Invite, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "unknown RSVP status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Users.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.checkOpen(event); err != nil {
		return nil, err
	}

	existing, found, err := s.invite(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	if status == models.RSVPAccepted && !event.HasAttendee(userID) && event.IsFull() {
		return nil, apperr.Invalid("status", "event is full")
	}

	now := s.now()
	var inv models.Invite
	switch {
	case !found:
		inv, err = s.db.Invites.Insert(ctx, models.Invite{
			EventID:   eventID,
			InviterID: event.HostID,
			InviteeID: userID,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		})
	case existing.Status != status:
		inv, err = s.db.Invites.Update(ctx, existing.ID, repository.Patch{
			"status":     status,
			"updated_at": now,
		})
	default:
		inv = existing
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.counters.SetAttendance(ctx, eventID, userID, status == models.RSVPAccepted); err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("status", string(status)).
		Msg("RSVP recorded")
	return &inv, nil
}

// Invite records an invitation for inviteeID. Inviting someone who already
// has an RSVP record returns that record unchanged.
func (s *EventService) Invite(ctx context.Context, eventID, inviterID, inviteeID string, message *string) (*models.Invite, error) {
	if message != nil {
		m := sanitize.Text(*message)
		message = &m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.db.Users.Get(ctx, inviterID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Users.Get(ctx, inviteeID); err != nil {
		return nil, err
	}
	if event.HostID != inviterID && !event.HasAttendee(inviterID) {
		return nil, apperr.ErrForbidden
	}
	if err := s.checkOpen(event); err != nil {
		return nil, err
	}

	existing, found, err := s.invite(ctx, eventID, inviteeID)
	if err != nil {
		return nil, err
	}
	if found {
		return &existing, nil
	}

	now := s.now()
	inv, err := s.db.Invites.Insert(ctx, models.Invite{
		EventID:   eventID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    models.RSVPInvited,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.send(ctx, models.Notification{
		UserID:     inviteeID,
		FromUserID: inviterID,
		Type:       models.NotifyEventInvite,
		Title:      "Event invitation",
		Message:    fmt.Sprintf("%s invited you to %s", inviter.FullName, event.Title),
		EventID:    &eventID,
	})
	return &inv, nil
}

func (req *UpdateEventRequest) validate() error {
	var fields []apperr.FieldError
	if req.Title != nil {
		t := sanitize.Text(*req.Title)
		req.Title = &t
		if t == "" {
			fields = append(fields, apperr.FieldError{Field: "title", Msg: "is required"})
		}
	}
	if req.Location != nil {
		l := sanitize.Text(*req.Location)
		req.Location = &l
		if l == "" {
			fields = append(fields, apperr.FieldError{Field: "location", Msg: "is required"})
		}
	}
	if req.Details != nil {
		d := sanitize.Text(*req.Details)
		req.Details = &d
	}
	if req.Tags != nil {
		tags := sanitize.Texts(*req.Tags)
		req.Tags = &tags
	}
	if req.Category != nil && !req.Category.Valid() {
		fields = append(fields, apperr.FieldError{Field: "category", Msg: "unknown category"})
	}
	if req.Status != nil && !req.Status.Valid() {
		fields = append(fields, apperr.FieldError{Field: "status", Msg: "unknown status"})
	}
	if req.MaxAttendees != nil && *req.MaxAttendees < 1 {
		fields = append(fields, apperr.FieldError{Field: "max_attendees", Msg: "must be at least 1"})
	}
	if req.StartDate != nil && req.EndDate != nil && !req.StartDate.Before(*req.EndDate) {
		fields = append(fields, apperr.FieldError{Field: "end_date", Msg: "must be after start_date"})
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func canManage(actor models.User, event models.Event, own, all models.Permission) bool {
	if actor.Role.Can(all) {
		return true
	}
	return actor.ID == event.HostID && actor.Role.Can(own)
}

// UpdateEvent edits an event. The host needs edit_own_events; anyone else needs edit_all_events.
func (s *EventService) UpdateEvent(ctx context.Context, actorID, eventID string, req UpdateEventRequest) (*models.Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	actor, err := s.db.Users.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, event, models.PermEditOwnEvents, models.PermEditAllEvents) {
		return nil, apperr.ErrForbidden
	}

	start, end := event.StartDate, event.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if !start.Before(end) {
		return nil, apperr.Invalid("end_date", "must be after start_date")
	}
	if req.MaxAttendees != nil && *req.MaxAttendees < len(event.AttendeeIDs) {
		return nil, apperr.Invalid("max_attendees", "is below the current attendee count")
	}

	patch := repository.Patch{"updated_at": s.now()}
	set := func(field string, v any) { patch[field] = v }
	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Details != nil {
		set("details", *req.Details)
	}
	if req.Location != nil {
		set("location", *req.Location)
	}
	if req.StartDate != nil {
		set("start_date", start)
	}
	if req.EndDate != nil {
		set("end_date", end)
	}
	if req.Category != nil {
		set("category", *req.Category)
	}
	if req.Status != nil {
		set("status", *req.Status)
	}
	if req.IsPublic != nil {
		set("is_public", *req.IsPublic)
	}
	if req.MaxAttendees != nil {
		set("max_attendees", *req.MaxAttendees)
	}
	if req.Tags != nil {
		set("tags", *req.Tags)
	}

	updated, err := s.db.Events.Update(ctx, eventID, patch)
	if err != nil {
		return nil, err
	}

	log.Info().Str("event_id", eventID).Str("actor_id", actorID).Msg("Event updated")

	for _, id := range updated.AttendeeIDs {
		s.notifier.send(ctx, models.Notification{
			UserID:     id,
			FromUserID: actorID,
			Type:       models.NotifyEventUpdate,
			Title:      "Event updated",
			Message:    updated.Title + " has new details",
			EventID:    &eventID,
		})
	}
	return &updated, nil
}

// DeleteEvent removes an event with its invites, photos, comments and
// reactions. The host needs delete_own_events; anyone else needs
// delete_all_events.
func (s *EventService) DeleteEvent(ctx context.Context, actorID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return err
	}
	actor, err := s.db.Users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if !canManage(actor, event, models.PermDeleteOwnEvents, models.PermDeleteAllEvents) {
		return apperr.ErrForbidden
	}

	photos, err := s.db.Photos.Where(ctx, repository.Eq("event_id", eventID))
	if err != nil {
		return err
	}
	for _, p := range photos {
		if err := s.purgeEngagement(ctx, models.PhotoTarget(p.ID)); err != nil {
			return err
		}
		if err := s.db.Photos.Delete(ctx, p.ID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return err
		}
		if err := s.counters.AdjustUser(ctx, p.UserID, FieldPhotoCount, -1); err != nil {
			return err
		}
	}
	if err := s.purgeEngagement(ctx, models.EventTarget(eventID)); err != nil {
		return err
	}

	invites, err := s.db.Invites.Where(ctx, repository.Eq("event_id", eventID))
	if err != nil {
		return err
	}
	for _, inv := range invites {
		if err := s.db.Invites.Delete(ctx, inv.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	if err := s.db.Events.Delete(ctx, eventID); err != nil {
		return err
	}
	if err := s.counters.AdjustUser(ctx, event.HostID, FieldEventCount, -1); err != nil {
		return err
	}

	log.Info().Str("event_id", eventID).Str("actor_id", actorID).Msg("Event deleted")
	return nil
}

// purgeEngagement deletes the comments and reactions on target, including
// reactions on those comments.
func (s *EventService) purgeEngagement(ctx context.Context, target models.Target) error {
	comments, err := s.db.Comments.Where(ctx, repository.Eq("target_key", target.Key()))
	if err != nil {
		return err
	}
	keys := []string{target.Key()}
	for _, c := range comments {
		keys = append(keys, models.CommentTarget(c.ID).Key())
	}
	for _, key := range keys {
		reactions, err := s.db.Reactions.Where(ctx, repository.Eq("target_key", key))
		if err != nil {
			return err
		}
		for _, r := range reactions {
			if err := s.db.Reactions.Delete(ctx, r.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}
	}
	for _, c := range comments {
		if err := s.db.Comments.Delete(ctx, c.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *EventService) countStatus(ctx context.Context, eventID string, status models.RSVPStatus) (int, error) {
	invites, err := s.db.Invites.Where(ctx,
		repository.Eq("event_id", eventID),
		repository.Eq("status", string(status)),
	)
	if err != nil {
		return 0, err
	}
	return len(uniqueIDs(invites, func(i models.Invite) string { return i.InviteeID })), nil
}

// AttendeeCount returns the number of accepted invites for the event
func (s *EventService) AttendeeCount(ctx context.Context, eventID string) (int, error) {
	return s.countStatus(ctx, eventID, models.RSVPAccepted)
}

// DeclinedCount returns the number of declined invites for the event
func (s *EventService) DeclinedCount(ctx context.Context, eventID string) (int, error) {
	return s.countStatus(ctx, eventID, models.RSVPDeclined)
}

// CurrentStatus returns the RSVP status of userID for eventID, or invited if they never responded
func (s *EventService) CurrentStatus(ctx context.Context, eventID, userID string) (models.RSVPStatus, error) {
	inv, found, err := s.invite(ctx, eventID, userID)
	if err != nil {
		return "", err
	}
	if !found {
		return models.RSVPInvited, nil
	}
	return inv.Status, nil
}

// Attendees returns the users attending the event in attendee-list order
func (s *EventService) Attendees(ctx context.Context, eventID string) ([]models.User, error) {
	event, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(event.AttendeeIDs))
	for _, id := range event.AttendeeIDs {
		u, err := s.db.Users.Get(ctx, id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, u.Public())
	}
	return users, nil
}

// InvitesFor returns every RSVP record of userID
func (s *EventService) InvitesFor(ctx context.Context, userID string) ([]models.Invite, error) {
	return s.db.Invites.Where(ctx, repository.Eq("invitee_id", userID))
}
