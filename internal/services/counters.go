package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// CounterField is a denormalized integer field on a stored record
type CounterField string

const (
	FieldFollowerCount  CounterField = "follower_count"
	FieldFollowingCount CounterField = "following_count"
	FieldEventCount     CounterField = "event_count"
	FieldPhotoCount     CounterField = "photo_count"
	FieldLikeCount      CounterField = "like_count"
	FieldCommentCount   CounterField = "comment_count"
)

// Counters is the only path that writes denormalized counters and attendee lists.
// A single mutex serializes every read-modify-write across all stores.
type Counters struct {
	mu      sync.Mutex
	backend repository.Backend
}

// NewCounters creates the counters path over backend
func NewCounters(backend repository.Backend) *Counters {
	return &Counters{backend: backend}
}

// AdjustUser adds delta to a user counter, flooring at zero
func (c *Counters) AdjustUser(ctx context.Context, userID string, field CounterField, delta int) error {
	_, err := c.adjust(ctx, repository.KindUsers, userID, field, delta)
	return err
}

// AdjustEvent adds delta to an event counter, flooring at zero
func (c *Counters) AdjustEvent(ctx context.Context, eventID string, field CounterField, delta int) error {
	_, err := c.adjust(ctx, repository.KindEvents, eventID, field, delta)
	return err
}

// AdjustPhoto adds delta to a photo counter, flooring at zero
func (c *Counters) AdjustPhoto(ctx context.Context, photoID string, field CounterField, delta int) error {
	_, err := c.adjust(ctx, repository.KindPhotos, photoID, field, delta)
	return err
}

// AdjustComment adds delta to a comment counter, flooring at zero
func (c *Counters) AdjustComment(ctx context.Context, commentID string, field CounterField, delta int) error {
	_, err := c.adjust(ctx, repository.KindComments, commentID, field, delta)
	return err
}

// AdjustTarget adds delta to a counter on whatever entity target names
func (c *Counters) AdjustTarget(ctx context.Context, target models.Target, field CounterField, delta int) error {
	kind, ok := targetKinds[target.Kind]
	if !ok {
		return apperr.Invalid("target", "unknown target kind")
	}
	_, err := c.adjust(ctx, kind, target.ID, field, delta)
	return err
}

// Set overwrites a counter with an absolute value. Used by the reconciler.
func (c *Counters) Set(ctx context.Context, kind repository.Kind, id string, field CounterField, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := fmt.Sprintf("set %s.%s", kind, field)
	if _, err := c.backend.Update(ctx, kind, id, repository.Patch{string(field): max(value, 0)}); err != nil {
		return c.fail(op, id, err)
	}
	return nil
}

// SetAttendance adds or removes userID from the event attendee list and
// returns the resulting list. The list never holds duplicates.
func (c *Counters) SetAttendance(ctx context.Context, eventID, userID string, attending bool) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := "update events.attendee_ids"
	doc, err := c.backend.FetchByID(ctx, repository.KindEvents, eventID)
	if err != nil {
		return nil, c.fail(op, eventID, err)
	}
	ids := attendeeList(doc)
	has := slices.Contains(ids, userID)

	switch {
	case attending && !has:
		ids = append(ids, userID)
	case !attending && has:
		ids = slices.DeleteFunc(ids, func(id string) bool { return id == userID })
	default:
		return ids, nil
	}

	if _, err := c.backend.Update(ctx, repository.KindEvents, eventID, repository.Patch{"attendee_ids": ids}); err != nil {
		return nil, c.fail(op, eventID, err)
	}
	return ids, nil
}

// SetAttendees replaces the event attendee list. Used by the reconciler.
func (c *Counters) SetAttendees(ctx context.Context, eventID string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ids == nil {
		ids = []string{}
	}
	if _, err := c.backend.Update(ctx, repository.KindEvents, eventID, repository.Patch{"attendee_ids": ids}); err != nil {
		return c.fail("set events.attendee_ids", eventID, err)
	}
	return nil
}

func (c *Counters) adjust(ctx context.Context, kind repository.Kind, id string, field CounterField, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := fmt.Sprintf("adjust %s.%s", kind, field)
	doc, err := c.backend.FetchByID(ctx, kind, id)
	if err != nil {
		return 0, c.fail(op, id, err)
	}
	current, _ := doc[string(field)].(float64)
	next := max(int(current)+delta, 0)

	if _, err := c.backend.Update(ctx, kind, id, repository.Patch{string(field): next}); err != nil {
		return 0, c.fail(op, id, err)
	}
	return next, nil
}

// fail logs a counter write that did not land and surfaces it as a BackendError.
func (c *Counters) fail(op, id string, err error) error {
	log.Error().Err(err).Str("op", op).Str("id", id).Msg("Counter update failed, records and counters may diverge")
	return apperr.Backend(op, err)
}

var targetKinds = map[models.TargetKind]repository.Kind{
	models.TargetEvent:   repository.KindEvents,
	models.TargetPhoto:   repository.KindPhotos,
	models.TargetComment: repository.KindComments,
}

func attendeeList(doc repository.Document) []string {
	raw, _ := doc["attendee_ids"].([]any)
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && !slices.Contains(ids, s) {
			ids = append(ids, s)
		}
	}
	return ids
}
