package models

import (
	"slices"
	"time"
)

// User represents a community member
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	Bio         string   `json:"bio"`
	Interests   []string `json:"interests"`
	Role        Role     `json:"role"`
	Email       *string  `json:"email,omitempty"`
	PhoneNumber *string  `json:"phone_number,omitempty"`
	City        *string  `json:"city,omitempty"`

	// Denormalized counters, written only through the counters path.
	FollowerCount  int `json:"follower_count"`
	FollowingCount int `json:"following_count"`
	EventCount     int `json:"event_count"`
	PhotoCount     int `json:"photo_count"`

	IsProfilePublic bool `json:"is_profile_public"`
	ShowEmail       bool `json:"show_email"`
	ShowPhone       bool `json:"show_phone"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public returns a copy with contact fields hidden according to the privacy flags.
func (u User) Public() User {
	if !u.ShowEmail {
		u.Email = nil
	}
	if !u.ShowPhone {
		u.PhoneNumber = nil
	}
	return u
}

// Event represents a community event hosted by exactly one user
type Event struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Details      string        `json:"details"`
	Location     string        `json:"location"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	HostID       string        `json:"host_id"`
	AttendeeIDs  []string      `json:"attendee_ids"`
	Category     EventCategory `json:"category"`
	Status       EventStatus   `json:"status"`
	IsPublic     bool          `json:"is_public"`
	MaxAttendees *int          `json:"max_attendees,omitempty"`
	Tags         []string      `json:"tags"`
	LikeCount    int           `json:"like_count"`
	CommentCount int           `json:"comment_count"`
	PhotoCount   int           `json:"photo_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// HasAttendee reports whether userID is in the attendee list.
func (e Event) HasAttendee(userID string) bool {
	return slices.Contains(e.AttendeeIDs, userID)
}

// HasEnded reports whether the event end time is before now.
func (e Event) HasEnded(now time.Time) bool {
	return e.EndDate.Before(now)
}

// IsFull reports whether accepting one more attendee would exceed capacity.
func (e Event) IsFull() bool {
	return e.MaxAttendees != nil && len(e.AttendeeIDs) >= *e.MaxAttendees
}

// Invite is the persisted RSVP state of one user for one event
type Invite struct {
	ID        string     `json:"id"`
	EventID   string     `json:"event_id"`
	InviterID string     `json:"inviter_id"`
	InviteeID string     `json:"invitee_id"`
	Status    RSVPStatus `json:"status"`
	Message   *string    `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Follow is a directed edge: follower sees following's public activity
type Follow struct {
	ID          string    `json:"id"`
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reaction is a typed annotation on exactly one event, photo or comment
type Reaction struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	EventID   *string      `json:"event_id,omitempty"`
	PhotoID   *string      `json:"photo_id,omitempty"`
	CommentID *string      `json:"comment_id,omitempty"`
	TargetKey string       `json:"target_key"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewReaction builds a reaction with exactly one target id set.
func NewReaction(userID string, target Target, typ ReactionType) Reaction {
	r := Reaction{UserID: userID, TargetKey: target.Key(), Type: typ}
	id := target.ID
	switch target.Kind {
	case TargetEvent:
		r.EventID = &id
	case TargetPhoto:
		r.PhotoID = &id
	case TargetComment:
		r.CommentID = &id
	}
	return r
}

// Target returns the entity this reaction annotates.
func (r Reaction) Target() Target {
	return targetOf(r.EventID, r.PhotoID, r.CommentID)
}

// Comment is a text reply on an event or photo
type Comment struct {
	ID               string    `json:"id"`
	EventID          *string   `json:"event_id,omitempty"`
	PhotoID          *string   `json:"photo_id,omitempty"`
	UserID           string    `json:"user_id"`
	Content          string    `json:"content"`
	ReplyToCommentID *string   `json:"reply_to_comment_id,omitempty"`
	TargetKey        string    `json:"target_key"`
	LikeCount        int       `json:"like_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Target returns the entity this comment belongs to.
func (c Comment) Target() Target {
	return targetOf(c.EventID, c.PhotoID, nil)
}

// EventPhoto represents a photo shared on an event
type EventPhoto struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	UserID        string    `json:"user_id"`
	Caption       string    `json:"caption"`
	ImageURL      string    `json:"image_url"`
	ObjectKey     string    `json:"object_key"`
	TaggedUserIDs []string  `json:"tagged_user_ids,omitempty"`
	IsVisible     bool      `json:"is_visible"`
	LikeCount     int       `json:"like_count"`
	CommentCount  int       `json:"comment_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notification is an in-app message for one recipient
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	FromUserID string           `json:"from_user_id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message,omitempty"`
	EventID    *string          `json:"event_id,omitempty"`
	PhotoID    *string          `json:"photo_id,omitempty"`
	CommentID  *string          `json:"comment_id,omitempty"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  time.Time        `json:"created_at"`
}

func targetOf(eventID, photoID, commentID *string) Target {
	switch {
	case eventID != nil:
		return Target{Kind: TargetEvent, ID: *eventID}
	case photoID != nil:
		return Target{Kind: TargetPhoto, ID: *photoID}
	case commentID != nil:
		return Target{Kind: TargetComment, ID: *commentID}
	}
	return Target{}
}
