package models

// Role is the user type chosen at onboarding
type Role string

const (
	RoleResident        Role = "resident"
	RoleBusinessOwner   Role = "business_owner"
	RoleEventOrganizer  Role = "event_organizer"
	RoleCommunityLeader Role = "community_leader"
	RoleAdmin           Role = "admin"
)

// RoleInfo describes a role for display
type RoleInfo struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

var roleInfo = map[Role]RoleInfo{
	RoleResident:        {"Resident", "Connect with neighbors and join local events"},
	RoleBusinessOwner:   {"Business Owner", "Promote your business and engage with the community"},
	RoleEventOrganizer:  {"Event Organizer", "Create and manage community events"},
	RoleCommunityLeader: {"Community Leader", "Lead community initiatives and moderate content"},
	RoleAdmin:           {"Administrator", "Full system administration access"},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleInfo[r]
	return ok
}

// Info returns the display descriptor for r.
func (r Role) Info() RoleInfo { return roleInfo[r] }

// RSVPStatus is a user's response to an event
type RSVPStatus string

const (
	RSVPInvited  RSVPStatus = "invited"
	RSVPAccepted RSVPStatus = "accepted"
	RSVPDeclined RSVPStatus = "declined"
	RSVPMaybe    RSVPStatus = "maybe"
)

// Valid reports whether s is a known RSVP status.
func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPInvited, RSVPAccepted, RSVPDeclined, RSVPMaybe:
		return true
	}
	return false
}

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// EventCategory groups events for browsing
type EventCategory string

const (
	CategoryCommunity EventCategory = "community"
	CategorySports    EventCategory = "sports"
	CategoryCulture   EventCategory = "culture"
	CategoryFood      EventCategory = "food"
	CategoryBusiness  EventCategory = "business"
	CategoryEducation EventCategory = "education"
	CategoryFamily    EventCategory = "family"
	CategoryMusic     EventCategory = "music"
	CategoryArt       EventCategory = "art"
	CategorySocial    EventCategory = "social"
)

// CategoryInfo describes a category for display
type CategoryInfo struct {
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon"`
}

var categoryInfo = map[EventCategory]CategoryInfo{
	CategoryCommunity: {"Community", "building.2.fill"},
	CategorySports:    {"Sports", "sportscourt.fill"},
	CategoryCulture:   {"Culture", "theatermasks.fill"},
	CategoryFood:      {"Food & Dining", "fork.knife"},
	CategoryBusiness:  {"Business", "briefcase.fill"},
	CategoryEducation: {"Education", "book.fill"},
	CategoryFamily:    {"Family", "house.fill"},
	CategoryMusic:     {"Music", "music.note"},
	CategoryArt:       {"Art", "paintpalette.fill"},
	CategorySocial:    {"Social", "person.3.fill"},
}

// Valid reports whether c is a known category.
func (c EventCategory) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Info returns the display descriptor for c.
func (c EventCategory) Info() CategoryInfo { return categoryInfo[c] }

// ReactionType is an emoji-backed reaction
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionLaugh ReactionType = "laugh"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

var reactionEmoji = map[ReactionType]string{
	ReactionLike:  "👍",
	ReactionLove:  "❤️",
	ReactionLaugh: "😂",
	ReactionWow:   "😮",
	ReactionSad:   "😢",
	ReactionAngry: "😠",
}

// Valid reports whether t is a known reaction type.
func (t ReactionType) Valid() bool {
	_, ok := reactionEmoji[t]
	return ok
}

// Emoji returns the emoji shown for t.
func (t ReactionType) Emoji() string { return reactionEmoji[t] }

// NotificationType classifies in-app notifications
type NotificationType string

const (
	NotifyFollow      NotificationType = "follow"
	NotifyLike        NotificationType = "like"
	NotifyComment     NotificationType = "comment"
	NotifyEventInvite NotificationType = "event_invite"
	NotifyEventUpdate NotificationType = "event_update"
	NotifyPhotoTag    NotificationType = "photo_tag"
)
