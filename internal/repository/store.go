package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"townconnect-backend/internal/apperr"
)

// Kind names a collection of records in the backing store
type Kind string

const (
	KindUsers         Kind = "users"
	KindEvents        Kind = "events"
	KindInvites       Kind = "invites"
	KindFollows       Kind = "follows"
	KindReactions     Kind = "reactions"
	KindComments      Kind = "comments"
	KindPhotos        Kind = "photos"
	KindNotifications Kind = "notifications"
)

// AllKinds lists every kind the application stores.
var AllKinds = []Kind{
	KindUsers, KindEvents, KindInvites, KindFollows,
	KindReactions, KindComments, KindPhotos, KindNotifications,
}

// Document is a record in its JSON object form. The "id" field holds its identity.
type Document map[string]any

// ID returns the record identity, or "" if unset.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Patch is a partial record: top-level fields to overwrite.
type Patch map[string]any

// Filter is an equality condition on a top-level string field.
type Filter struct {
	Field string
	Value string
}

// Eq builds a Filter.
func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ErrDuplicate is returned by Insert when the id is already taken.
var ErrDuplicate = errors.New("duplicate id")

// Backend is the record store every aggregate reads and writes through.
// Two calls are never atomic together.
type Backend interface {
	FetchAll(ctx context.Context, kind Kind) ([]Document, error)
	// FetchByID returns an error matching apperr.ErrNotFound when absent.
	FetchByID(ctx context.Context, kind Kind, id string) (Document, error)
	// Insert stores doc, assigning a new id when doc has none.
	Insert(ctx context.Context, kind Kind, doc Document) (Document, error)
	// Update merges patch into the stored record and returns the result.
	Update(ctx context.Context, kind Kind, id string, patch Patch) (Document, error)
	Delete(ctx context.Context, kind Kind, id string) error
	// Query returns records matching every filter.
	Query(ctx context.Context, kind Kind, filters ...Filter) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
	}
	return nil
}

func validatePatch(patch Patch) error {
	for k := range patch {
		if !fieldName.MatchString(k) {
			return fmt.Errorf("invalid patch field %q", k)
		}
		if k == "id" {
			return fmt.Errorf("patch may not change id")
		}
	}
	return nil
}

// normalize converts any JSON-encodable value into its generic JSON form.
func normalize(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return m, nil
}

func toDocument(v any) (Document, error) {
	m, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return Document(m), nil
}

func toPatch(p Patch) (Patch, error) {
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	m, err := normalize(map[string]any(p))
	if err != nil {
		return nil, err
	}
	return Patch(m), nil
}

func fromDocument[T any](doc Document) (T, error) {
	var v T
	data, err := json.Marshal(doc)
	if err != nil {
		return v, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode document: %w", err)
	}
	return v, nil
}

func notFound(kind Kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field].(string)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}
