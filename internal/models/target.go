package models

import (
	"fmt"
	"strings"
)

// TargetKind names the entity type a reaction or comment points at.
type TargetKind string

const (
	TargetEvent   TargetKind = "event"
	TargetPhoto   TargetKind = "photo"
	TargetComment TargetKind = "comment"
)

// Target identifies one event, photo or comment.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// EventTarget, PhotoTarget and CommentTarget are shorthands for building targets.
func EventTarget(id string) Target   { return Target{Kind: TargetEvent, ID: id} }
func PhotoTarget(id string) Target   { return Target{Kind: TargetPhoto, ID: id} }
func CommentTarget(id string) Target { return Target{Kind: TargetComment, ID: id} }

// Key is the single-field form stored on records for filtering, e.g. "event:1234".
func (t Target) Key() string {
	return string(t.Kind) + ":" + t.ID
}

func (t Target) String() string { return t.Key() }

// IsZero reports whether the target is unset.
func (t Target) IsZero() bool { return t.Kind == "" && t.ID == "" }

// Valid reports whether the target has a known kind and an id.
func (t Target) Valid() bool {
	switch t.Kind {
	case TargetEvent, TargetPhoto, TargetComment:
		return t.ID != ""
	}
	return false
}

// ParseTarget parses the "kind:id" form.
func ParseTarget(s string) (Target, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Target{}, fmt.Errorf("target %q: expected kind:id", s)
	}
	t := Target{Kind: TargetKind(kind), ID: id}
	if !t.Valid() {
		return Target{}, fmt.Errorf("target %q: unknown kind or empty id", s)
	}
	return t, nil
}
