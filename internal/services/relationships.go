package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// RelationshipService owns the follow graph
type RelationshipService struct {
	mu       sync.Mutex
	db       *repository.Tables
	counters *Counters
	notifier *NotificationService
	now      func() time.Time
}

// NewRelationshipService creates a new relationship service
func NewRelationshipService(db *repository.Tables, counters *Counters, notifier *NotificationService, now func() time.Time) *RelationshipService {
	return &RelationshipService{
		db:       db,
		counters: counters,
		notifier: notifier,
		now:      now,
	}
}

func (s *RelationshipService) edges(ctx context.Context, followerID, targetID string) ([]models.Follow, error) {
	return s.db.Follows.Where(ctx,
		repository.Eq("follower_id", followerID),
		repository.Eq("following_id", targetID),
	)
}

// IsFollowing reports whether followerID follows targetID
func (s *RelationshipService) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	edges, err := s.edges(ctx, followerID, targetID)
	if err != nil {
		return false, err
	}
	return len(edges) > 0, nil
}

// Follow creates the edge followerID -> targetID. Following twice is a no-op.
func (s *RelationshipService) Follow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return apperr.Invalid("following_id", "users cannot follow themselves")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	follower, err := s.db.Users.Get(ctx, followerID)
	if err != nil {
		return err
	}
	if _, err := s.db.Users.Get(ctx, targetID); err != nil {
		return err
	}

	edges, err := s.edges(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if len(edges) > 0 {
		return nil
	}

	if _, err := s.db.Follows.Insert(ctx, models.Follow{
		FollowerID:  followerID,
		FollowingID: targetID,
		CreatedAt:   s.now(),
	}); err != nil {
		return err
	}

	if err := s.counters.AdjustUser(ctx, followerID, FieldFollowingCount, 1); err != nil {
		return err
	}
	if err := s.counters.AdjustUser(ctx, targetID, FieldFollowerCount, 1); err != nil {
		return err
	}

	log.Info().Str("follower_id", followerID).Str("following_id", targetID).Msg("Follow created")

	s.notifier.send(ctx, models.Notification{
		UserID:     targetID,
		FromUserID: followerID,
		Type:       models.NotifyFollow,
		Title:      "New follower",
		Message:    follower.FullName + " started following you",
	})
	return nil
}

// Unfollow removes the edge followerID -> targetID. Unfollowing twice is a no-op.
func (s *RelationshipService) Unfollow(ctx context.Context, followerID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Users.Get(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.db.Users.Get(ctx, targetID); err != nil {
		return err
	}

	edges, err := s.edges(ctx, followerID, targetID)
	if err != nil {
		return err
	}

	removed := 0
	for _, e := range edges {
		if err := s.db.Follows.Delete(ctx, e.ID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return err
		}
		removed++
	}
	if removed == 0 {
		return nil
	}

	if err := s.counters.AdjustUser(ctx, followerID, FieldFollowingCount, -removed); err != nil {
		return err
	}
	if err := s.counters.AdjustUser(ctx, targetID, FieldFollowerCount, -removed); err != nil {
		return err
	}

	log.Info().Str("follower_id", followerID).Str("following_id", targetID).Msg("Follow removed")
	return nil
}

// FollowingSet returns the ids userID follows
func (s *RelationshipService) FollowingSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	edges, err := s.db.Follows.Where(ctx, repository.Eq("follower_id", userID))
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		set[e.FollowingID] = struct{}{}
	}
	return set, nil
}

// Following returns the ids userID follows, oldest edge first
func (s *RelationshipService) Following(ctx context.Context, userID string) ([]string, error) {
	edges, err := s.db.Follows.Where(ctx, repository.Eq("follower_id", userID))
	if err != nil {
		return nil, err
	}
	return uniqueIDs(edges, func(f models.Follow) string { return f.FollowingID }), nil
}

// Followers returns the ids following userID, oldest edge first
func (s *RelationshipService) Followers(ctx context.Context, userID string) ([]string, error) {
	edges, err := s.db.Follows.Where(ctx, repository.Eq("following_id", userID))
	if err != nil {
		return nil, err
	}
	return uniqueIDs(edges, func(f models.Follow) string { return f.FollowerID }), nil
}

func uniqueIDs[T any](items []T, id func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		v := id(it)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
