package repository

import (
	"context"
	"errors"
	"fmt"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
)

// Table is a typed view of one kind in a Backend
type Table[T any] struct {
	backend Backend
	kind    Kind
}

// NewTable creates a typed table over backend
func NewTable[T any](backend Backend, kind Kind) *Table[T] {
	return &Table[T]{backend: backend, kind: kind}
}

// Kind returns the kind this table reads and writes.
func (t *Table[T]) Kind() Kind { return t.kind }

// All returns every record of the kind
func (t *Table[T]) All(ctx context.Context) ([]T, error) {
	docs, err := t.backend.FetchAll(ctx, t.kind)
	if err != nil {
		return nil, apperr.Backend(fmt.Sprintf("fetch %s", t.kind), err)
	}
	return decodeAll[T](docs)
}

// Get retrieves a record by ID
func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := t.backend.FetchByID(ctx, t.kind, id)
	if err != nil {
		return zero, t.wrap("get", id, err)
	}
	return fromDocument[T](doc)
}

// Insert stores a new record and returns it with its assigned ID
func (t *Table[T]) Insert(ctx context.Context, v T) (T, error) {
	var zero T
	doc, err := toDocument(v)
	if err != nil {
		return zero, err
	}
	stored, err := t.backend.Insert(ctx, t.kind, doc)
	if err != nil {
		return zero, apperr.Backend(fmt.Sprintf("insert %s", t.kind), err)
	}
	return fromDocument[T](stored)
}

// Update merges patch into a record and returns the stored result
func (t *Table[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	var zero T
	p, err := toPatch(patch)
	if err != nil {
		return zero, err
	}
	doc, err := t.backend.Update(ctx, t.kind, id, p)
	if err != nil {
		return zero, t.wrap("update", id, err)
	}
	return fromDocument[T](doc)
}

// Delete removes a record by ID
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if err := t.backend.Delete(ctx, t.kind, id); err != nil {
		return t.wrap("delete", id, err)
	}
	return nil
}

// Where returns the records matching every filter
func (t *Table[T]) Where(ctx context.Context, filters ...Filter) ([]T, error) {
	docs, err := t.backend.Query(ctx, t.kind, filters...)
	if err != nil {
		return nil, apperr.Backend(fmt.Sprintf("query %s", t.kind), err)
	}
	return decodeAll[T](docs)
}

// First returns the first record matching every filter, if any
func (t *Table[T]) First(ctx context.Context, filters ...Filter) (T, bool, error) {
	var zero T
	items, err := t.Where(ctx, filters...)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

func (t *Table[T]) wrap(op, id string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound(string(t.kind), id)
	}
	return apperr.Backend(fmt.Sprintf("%s %s", op, t.kind), err)
}

func decodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := fromDocument[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Tables groups the typed tables of every entity
type Tables struct {
	Backend       Backend
	Users         *Table[models.User]
	Events        *Table[models.Event]
	Invites       *Table[models.Invite]
	Follows       *Table[models.Follow]
	Reactions     *Table[models.Reaction]
	Comments      *Table[models.Comment]
	Photos        *Table[models.EventPhoto]
	Notifications *Table[models.Notification]
}

// NewTables creates typed tables over backend
func NewTables(backend Backend) *Tables {
	return &Tables{
		Backend:       backend,
		Users:         NewTable[models.User](backend, KindUsers),
		Events:        NewTable[models.Event](backend, KindEvents),
		Invites:       NewTable[models.Invite](backend, KindInvites),
		Follows:       NewTable[models.Follow](backend, KindFollows),
		Reactions:     NewTable[models.Reaction](backend, KindReactions),
		Comments:      NewTable[models.Comment](backend, KindComments),
		Photos:        NewTable[models.EventPhoto](backend, KindPhotos),
		Notifications: NewTable[models.Notification](backend, KindNotifications),
	}
}
