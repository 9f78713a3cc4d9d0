package services

import (
	"context"
	"slices"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Fix describes one denormalized value the reconciler corrected
type Fix struct {
	Kind  repository.Kind `json:"kind"`
	ID    string          `json:"id"`
	Field string          `json:"field"`
	Was   any             `json:"was"`
	Now   any             `json:"now"`
}

// RepairReport lists what a repair pass changed
type RepairReport struct {
	Checked int   `json:"checked"`
	Fixes   []Fix `json:"fixes"`
}

// Reconciler recomputes denormalized counters and attendee lists from the
// records they derive from. It reads a non-atomic snapshot, so a pass that
// overlaps with writes may need to be repeated.
type Reconciler struct {
	db       *repository.Tables
	counters *Counters
}

// NewReconciler creates a new reconciler
func NewReconciler(db *repository.Tables, counters *Counters) *Reconciler {
	return &Reconciler{db: db, counters: counters}
}

type reconcileSnapshot struct {
	users     []models.User
	events    []models.Event
	invites   []models.Invite
	follows   []models.Follow
	photos    []models.EventPhoto
	comments  []models.Comment
	reactions []models.Reaction
}

func (r *Reconciler) load(ctx context.Context) (*reconcileSnapshot, error) {
	var snap reconcileSnapshot
	var err error
	if snap.users, err = r.db.Users.All(ctx); err != nil {
		return nil, err
	}
	if snap.events, err = r.db.Events.All(ctx); err != nil {
		return nil, err
	}
	if snap.invites, err = r.db.Invites.All(ctx); err != nil {
		return nil, err
	}
	if snap.follows, err = r.db.Follows.All(ctx); err != nil {
		return nil, err
	}
	if snap.photos, err = r.db.Photos.All(ctx); err != nil {
		return nil, err
	}
	if snap.comments, err = r.db.Comments.All(ctx); err != nil {
		return nil, err
	}
	if snap.reactions, err = r.db.Reactions.All(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Repair brings every counter and attendee list back in line with the records
func (r *Reconciler) Repair(ctx context.Context) (*RepairReport, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	followers := map[string]int{}
	following := map[string]int{}
	seenEdge := map[[2]string]bool{}
	for _, f := range snap.follows {
		edge := [2]string{f.FollowerID, f.FollowingID}
		if seenEdge[edge] {
			continue
		}
		seenEdge[edge] = true
		following[f.FollowerID]++
		followers[f.FollowingID]++
	}

	hosted := map[string]int{}
	for _, e := range snap.events {
		hosted[e.HostID]++
	}

	uploads := map[string]int{}
	eventPhotos := map[string]int{}
	for _, p := range snap.photos {
		uploads[p.UserID]++
		eventPhotos[p.EventID]++
	}

	likes := map[string]int{}
	for _, re := range snap.reactions {
		likes[re.TargetKey]++
	}
	commentCounts := map[string]int{}
	for _, c := range snap.comments {
		commentCounts[c.TargetKey]++
	}

	// Latest invite per (event, invitee) decides attendance.
	accepted := map[string][]string{}
	latest := map[[2]string]models.Invite{}
	for _, inv := range snap.invites {
		key := [2]string{inv.EventID, inv.InviteeID}
		if cur, ok := latest[key]; !ok || inv.UpdatedAt.After(cur.UpdatedAt) {
			latest[key] = inv
		}
	}
	for _, inv := range latest {
		if inv.Status == models.RSVPAccepted {
			accepted[inv.EventID] = append(accepted[inv.EventID], inv.InviteeID)
		}
	}

	report := &RepairReport{}
	fix := func(kind repository.Kind, id string, field CounterField, was, want int) error {
		if was == want {
			return nil
		}
		if err := r.counters.Set(ctx, kind, id, field, want); err != nil {
			return err
		}
		report.Fixes = append(report.Fixes, Fix{Kind: kind, ID: id, Field: string(field), Was: was, Now: want})
		return nil
	}

	for _, u := range snap.users {
		report.Checked++
		if err := fix(repository.KindUsers, u.ID, FieldFollowerCount, u.FollowerCount, followers[u.ID]); err != nil {
			return nil, err
		}
		if err := fix(repository.KindUsers, u.ID, FieldFollowingCount, u.FollowingCount, following[u.ID]); err != nil {
			return nil, err
		}
		if err := fix(repository.KindUsers, u.ID, FieldEventCount, u.EventCount, hosted[u.ID]); err != nil {
			return nil, err
		}
		if err := fix(repository.KindUsers, u.ID, FieldPhotoCount, u.PhotoCount, uploads[u.ID]); err != nil {
			return nil, err
		}
	}

	for _, e := range snap.events {
		report.Checked++
		key := models.EventTarget(e.ID).Key()
		if err := fix(repository.KindEvents, e.ID, FieldLikeCount, e.LikeCount, likes[key]); err != nil {
			return nil, err
		}
		if err := fix(repository.KindEvents, e.ID, FieldCommentCount, e.CommentCount, commentCounts[key]); err != nil {
			return nil, err
		}
		if err := fix(repository.KindEvents, e.ID, FieldPhotoCount, e.PhotoCount, eventPhotos[e.ID]); err != nil {
			return nil, err
		}

		want := orderedAttendees(e.AttendeeIDs, accepted[e.ID])
		if !slices.Equal(e.AttendeeIDs, want) {
			if err := r.counters.SetAttendees(ctx, e.ID, want); err != nil {
				return nil, err
			}
			report.Fixes = append(report.Fixes, Fix{Kind: repository.KindEvents, ID: e.ID, Field: "attendee_ids", Was: e.AttendeeIDs, Now: want})
		}
	}

	for _, p := range snap.photos {
		report.Checked++
		key := models.PhotoTarget(p.ID).Key()
		if err := fix(repository.KindPhotos, p.ID, FieldLikeCount, p.LikeCount, likes[key]); err != nil {
			return nil, err
		}
		if err := fix(repository.KindPhotos, p.ID, FieldCommentCount, p.CommentCount, commentCounts[key]); err != nil {
			return nil, err
		}
	}

	for _, c := range snap.comments {
		report.Checked++
		if err := fix(repository.KindComments, c.ID, FieldLikeCount, c.LikeCount, likes[models.CommentTarget(c.ID).Key()]); err != nil {
			return nil, err
		}
	}

	for _, f := range report.Fixes {
		log.Warn().Str("kind", string(f.Kind)).Str("id", f.ID).Str("field", f.Field).Interface("was", f.Was).Interface("now", f.Now).Msg("Repaired drifted value")
	}
	log.Info().Int("checked", report.Checked).Int("fixed", len(report.Fixes)).Msg("Reconciliation finished")
	return report, nil
}

// orderedAttendees keeps the current order for ids that remain and appends new ones sorted.
func orderedAttendees(current, accepted []string) []string {
	want := make(map[string]bool, len(accepted))
	for _, id := range accepted {
		want[id] = true
	}
	out := make([]string, 0, len(accepted))
	for _, id := range current {
		if want[id] && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	var added []string
	for id := range want {
		if !slices.Contains(out, id) {
			added = append(added, id)
		}
	}
	slices.Sort(added)
	return append(out, added...)
}
