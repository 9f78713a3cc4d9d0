package services

import (
	"context"
	"sort"
	"strings"

	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
)

// FeedSnapshot is the already-fetched state a feed is composed from
type FeedSnapshot struct {
	Following map[string]struct{}
	Events    []models.Event
}

// ComposeFeed returns the public events hosted by userID or by someone in
// snap.Following, ascending by start time with ties broken by id. It does no I/O.
func ComposeFeed(snap FeedSnapshot, userID string) []models.Event {
	feed := make([]models.Event, 0, len(snap.Events))
	for _, e := range snap.Events {
		if !e.IsPublic {
			continue
		}
		_, followed := snap.Following[e.HostID]
		if e.HostID == userID || followed {
			feed = append(feed, e)
		}
	}
	sortEvents(feed)
	return feed
}

func sortEvents(events []models.Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
}

// FeedService fetches feed snapshots and explore results
type FeedService struct {
	db            *repository.Tables
	relationships *RelationshipService
}

// NewFeedService creates a new feed service
func NewFeedService(db *repository.Tables, relationships *RelationshipService) *FeedService {
	return &FeedService{db: db, relationships: relationships}
}

// Snapshot reads the state the feed of userID is composed from
func (s *FeedService) Snapshot(ctx context.Context, userID string) (FeedSnapshot, error) {
	if _, err := s.db.Users.Get(ctx, userID); err != nil {
		return FeedSnapshot{}, err
	}
	following, err := s.relationships.FollowingSet(ctx, userID)
	if err != nil {
		return FeedSnapshot{}, err
	}
	events, err := s.db.Events.All(ctx)
	if err != nil {
		return FeedSnapshot{}, err
	}
	return FeedSnapshot{Following: following, Events: events}, nil
}

// FeedFor returns the home feed of userID
func (s *FeedService) FeedFor(ctx context.Context, userID string) ([]models.Event, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ComposeFeed(snap, userID), nil
}

// ExploreResult is the result of an explore search
type ExploreResult struct {
	Users  []models.User  `json:"users"`
	Events []models.Event `json:"events"`
}

// SearchUsers returns users whose username or full name contains query, ignoring case
func (s *FeedService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	users, err := s.db.Users.All(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if q == "" || strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			out = append(out, u.Public())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// SearchEvents returns public events whose title or location contains query, ignoring case
func (s *FeedService) SearchEvents(ctx context.Context, query string) ([]models.Event, error) {
	events, err := s.db.Events.All(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if !e.IsPublic {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.Location), q) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

// Explore runs both searches
func (s *FeedService) Explore(ctx context.Context, query string) (*ExploreResult, error) {
	users, err := s.SearchUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	events, err := s.SearchEvents(ctx, query)
	if err != nil {
		return nil, err
	}
	return &ExploreResult{Users: users, Events: events}, nil
}
