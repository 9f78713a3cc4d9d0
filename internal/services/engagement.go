package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/sanitize"

	"github.com/rs/zerolog/log"
)

// EngagementService tallies reactions and comments on events, photos and comments
type EngagementService struct {
	mu       sync.Mutex
	db       *repository.Tables
	counters *Counters
	notifier *NotificationService
	now      func() time.Time
}

// NewEngagementService creates a new engagement service
func NewEngagementService(db *repository.Tables, counters *Counters, notifier *NotificationService, now func() time.Time) *EngagementService {
	return &EngagementService{
		db:       db,
		counters: counters,
		notifier: notifier,
		now:      now,
	}
}

// owner returns the user who owns the target entity, failing if it does not exist
func (s *EngagementService) owner(ctx context.Context, target models.Target) (string, error) {
	switch target.Kind {
	case models.TargetEvent:
		e, err := s.db.Events.Get(ctx, target.ID)
		return e.HostID, err
	case models.TargetPhoto:
		p, err := s.db.Photos.Get(ctx, target.ID)
		return p.UserID, err
	case models.TargetComment:
		c, err := s.db.Comments.Get(ctx, target.ID)
		return c.UserID, err
	}
	return "", apperr.Invalid("target", "unknown target kind")
}

func (s *EngagementService) reactionsBy(ctx context.Context, userID string, target models.Target) ([]models.Reaction, error) {
	return s.db.Reactions.Where(ctx,
		repository.Eq("target_key", target.Key()),
		repository.Eq("user_id", userID),
	)
}

// ToggleReaction adds, replaces or removes the reaction of userID on target.
// Reacting again with the same type removes it. The returned reaction is nil
// when the toggle removed it.
func (s *EngagementService) ToggleReaction(ctx context.Context, userID string, target models.Target, typ models.ReactionType) (*models.Reaction, error) {
	var fields []apperr.FieldError
	if !target.Valid() {
		fields = append(fields, apperr.FieldError{Field: "target", Msg: "must be event, photo or comment with an id"})
	}
	if !typ.Valid() {
		fields = append(fields, apperr.FieldError{Field: "type", Msg: "unknown reaction type"})
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.db.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	ownerID, err := s.owner(ctx, target)
	if err != nil {
		return nil, err
	}

	existing, err := s.reactionsBy(ctx, userID, target)
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		current := existing[0]
		// Extra records can only come from a lost race; collapse them.
		for _, extra := range existing[1:] {
			if err := s.deleteReaction(ctx, extra); err != nil {
				return nil, err
			}
		}

		if current.Type == typ {
			if err := s.deleteReaction(ctx, current); err != nil {
				return nil, err
			}
			log.Info().Str("user_id", userID).Str("target", target.Key()).Msg("Reaction removed")
			return nil, nil
		}

		updated, err := s.db.Reactions.Update(ctx, current.ID, repository.Patch{"type": typ})
		if err != nil {
			return nil, err
		}
		log.Info().Str("user_id", userID).Str("target", target.Key()).Str("type", string(typ)).Msg("Reaction changed")
		return &updated, nil
	}

	r := models.NewReaction(userID, target, typ)
	r.CreatedAt = s.now()
	stored, err := s.db.Reactions.Insert(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := s.counters.AdjustTarget(ctx, target, FieldLikeCount, 1); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("target", target.Key()).Str("type", string(typ)).Msg("Reaction added")

	n := models.Notification{
		UserID:     ownerID,
		FromUserID: userID,
		Type:       models.NotifyLike,
		Title:      "New reaction",
		Message:    user.FullName + " reacted " + typ.Emoji(),
	}
	setNotificationTarget(&n, target)
	s.notifier.send(ctx, n)

	return &stored, nil
}

func (s *EngagementService) deleteReaction(ctx context.Context, r models.Reaction) error {
	if err := s.db.Reactions.Delete(ctx, r.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.counters.AdjustTarget(ctx, r.Target(), FieldLikeCount, -1)
}

// ReactionCounts groups the reactions on target by type. Types nobody used are absent.
func (s *EngagementService) ReactionCounts(ctx context.Context, target models.Target) (map[models.ReactionType]int, error) {
	if !target.Valid() {
		return nil, apperr.Invalid("target", "must be event, photo or comment with an id")
	}
	reactions, err := s.db.Reactions.Where(ctx, repository.Eq("target_key", target.Key()))
	if err != nil {
		return nil, err
	}
	counts := make(map[models.ReactionType]int)
	for _, r := range reactions {
		counts[r.Type]++
	}
	return counts, nil
}

// MyReaction returns the reaction of userID on target, or nil
func (s *EngagementService) MyReaction(ctx context.Context, userID string, target models.Target) (*models.Reaction, error) {
	existing, err := s.reactionsBy(ctx, userID, target)
	if err != nil || len(existing) == 0 {
		return nil, err
	}
	return &existing[0], nil
}

// AddComment appends a comment by authorID to an event or photo
func (s *EngagementService) AddComment(ctx context.Context, target models.Target, authorID, content string, replyTo *string) (*models.Comment, error) {
	content = sanitize.Text(content)

	var fields []apperr.FieldError
	if !target.Valid() || target.Kind == models.TargetComment {
		fields = append(fields, apperr.FieldError{Field: "target", Msg: "must be an event or photo"})
	}
	if content == "" {
		fields = append(fields, apperr.FieldError{Field: "content", Msg: "must not be empty"})
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	author, err := s.db.Users.Get(ctx, authorID)
	if err != nil {
		return nil, err
	}
	ownerID, err := s.owner(ctx, target)
	if err != nil {
		return nil, err
	}
	if replyTo != nil {
		parent, err := s.db.Comments.Get(ctx, *replyTo)
		if err != nil {
			return nil, err
		}
		if parent.TargetKey != target.Key() {
			return nil, apperr.Invalid("reply_to_comment_id", "must be a comment on the same target")
		}
	}

	now := s.now()
	c := models.Comment{
		UserID:           authorID,
		Content:          content,
		ReplyToCommentID: replyTo,
		TargetKey:        target.Key(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id := target.ID
	if target.Kind == models.TargetEvent {
		c.EventID = &id
	} else {
		c.PhotoID = &id
	}

	stored, err := s.db.Comments.Insert(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.counters.AdjustTarget(ctx, target, FieldCommentCount, 1); err != nil {
		return nil, err
	}

	log.Info().Str("comment_id", stored.ID).Str("target", target.Key()).Msg("Comment added")

	n := models.Notification{
		UserID:     ownerID,
		FromUserID: authorID,
		Type:       models.NotifyComment,
		Title:      "New comment",
		Message:    author.FullName + ": " + content,
		CommentID:  &stored.ID,
	}
	setNotificationTarget(&n, target)
	s.notifier.send(ctx, n)

	return &stored, nil
}

// Comments returns the comments on target in creation order
func (s *EngagementService) Comments(ctx context.Context, target models.Target) ([]models.Comment, error) {
	if !target.Valid() {
		return nil, apperr.Invalid("target", "must be event, photo or comment with an id")
	}
	comments, err := s.db.Comments.Where(ctx, repository.Eq("target_key", target.Key()))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// DeleteComment removes a comment. Only its author or a moderator may delete it.
func (s *EngagementService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.db.Comments.Get(ctx, commentID)
	if err != nil {
		return err
	}
	actor, err := s.db.Users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if c.UserID != actorID && !actor.Role.Can(models.PermModerateContent) {
		return apperr.ErrForbidden
	}

	reactions, err := s.db.Reactions.Where(ctx, repository.Eq("target_key", models.CommentTarget(commentID).Key()))
	if err != nil {
		return err
	}
	for _, r := range reactions {
		if err := s.db.Reactions.Delete(ctx, r.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}

	if err := s.db.Comments.Delete(ctx, commentID); err != nil {
		return err
	}
	if err := s.counters.AdjustTarget(ctx, c.Target(), FieldCommentCount, -1); err != nil {
		return err
	}

	log.Info().Str("comment_id", commentID).Str("actor_id", actorID).Msg("Comment deleted")
	return nil
}

func setNotificationTarget(n *models.Notification, target models.Target) {
	id := target.ID
	switch target.Kind {
	case models.TargetEvent:
		n.EventID = &id
	case models.TargetPhoto:
		n.PhotoID = &id
	case models.TargetComment:
		n.CommentID = &id
	}
}
