package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/sanitize"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const jwtExpDays = 365

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// UserService handles user-related business logic
type UserService struct {
	mu        sync.Mutex
	db        *repository.Tables
	jwtSecret string
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(db *repository.Tables, jwtSecret string, now func() time.Time) *UserService {
	return &UserService{
		db:        db,
		jwtSecret: jwtSecret,
		now:       now,
	}
}

// CreateUserRequest represents a signup request
type CreateUserRequest struct {
	Username    string      `json:"username"`
	FullName    string      `json:"full_name"`
	Role        models.Role `json:"role"`
	Bio         string      `json:"bio"`
	Interests   []string    `json:"interests"`
	Email       *string     `json:"email,omitempty"`
	PhoneNumber *string     `json:"phone_number,omitempty"`
	City        *string     `json:"city,omitempty"`
}

// ProfileUpdate holds the editable profile fields; nil means unchanged
type ProfileUpdate struct {
	FullName        *string   `json:"full_name,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	Interests       *[]string `json:"interests,omitempty"`
	City            *string   `json:"city,omitempty"`
	Email           *string   `json:"email,omitempty"`
	PhoneNumber     *string   `json:"phone_number,omitempty"`
	IsProfilePublic *bool     `json:"is_profile_public,omitempty"`
	ShowEmail       *bool     `json:"show_email,omitempty"`
	ShowPhone       *bool     `json:"show_phone,omitempty"`
}

// ProfileStats is the derived profile view
type ProfileStats struct {
	UserID         string         `json:"user_id"`
	FollowerCount  int            `json:"follower_count"`
	FollowingCount int            `json:"following_count"`
	EventCount     int            `json:"event_count"`
	PhotoCount     int            `json:"photo_count"`
	UpcomingEvents []models.Event `json:"upcoming_events"`
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

func (req *CreateUserRequest) validate() error {
	var fields []apperr.FieldError
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.FullName = sanitize.Text(req.FullName)
	if req.Role == "" {
		req.Role = models.RoleResident
	}

	if !usernamePattern.MatchString(req.Username) {
		fields = append(fields, apperr.FieldError{Field: "username", Msg: "must be 3-30 characters of a-z, 0-9, '_' or '.'"})
	}
	if req.FullName == "" {
		fields = append(fields, apperr.FieldError{Field: "full_name", Msg: "is required"})
	}
	if !req.Role.Valid() {
		fields = append(fields, apperr.FieldError{Field: "role", Msg: "unknown role"})
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// CreateUser registers a new user and returns it with an access token
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, string, error) {
	if err := req.validate(); err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, taken, err := s.db.Users.First(ctx, repository.Eq("username", req.Username))
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", apperr.Invalid("username", "is already taken")
	}

	now := s.now()
	user, err := s.db.Users.Insert(ctx, models.User{
		Username:        req.Username,
		FullName:        req.FullName,
		Bio:             sanitize.Text(req.Bio),
		Interests:       sanitize.Texts(req.Interests),
		Role:            req.Role,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		City:            req.City,
		IsProfilePublic: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User created")
	return &user, token, nil
}

// Get returns a user by ID
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.db.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user ordered by username
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.db.Users.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// UpdateProfile applies the editable fields of update. Counters and role are never touched.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	patch := repository.Patch{}
	if update.FullName != nil {
		name := sanitize.Text(*update.FullName)
		if name == "" {
			return nil, apperr.Invalid("full_name", "is required")
		}
		patch["full_name"] = name
	}
	if update.Bio != nil {
		patch["bio"] = sanitize.Text(*update.Bio)
	}
	if update.Interests != nil {
		patch["interests"] = sanitize.Texts(*update.Interests)
	}
	if update.City != nil {
		patch["city"] = sanitize.Text(*update.City)
	}
	if update.Email != nil {
		patch["email"] = strings.TrimSpace(*update.Email)
	}
	if update.PhoneNumber != nil {
		patch["phone_number"] = strings.TrimSpace(*update.PhoneNumber)
	}
	if update.IsProfilePublic != nil {
		patch["is_profile_public"] = *update.IsProfilePublic
	}
	if update.ShowEmail != nil {
		patch["show_email"] = *update.ShowEmail
	}
	if update.ShowPhone != nil {
		patch["show_phone"] = *update.ShowPhone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(patch) == 0 {
		return s.Get(ctx, userID)
	}
	patch["updated_at"] = s.now()

	u, err := s.db.Users.Update(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Msg("Profile updated")
	return &u, nil
}

// ProfileStats returns the user's counters and the events they host that have not ended
func (s *UserService) ProfileStats(ctx context.Context, userID string) (*ProfileStats, error) {
	u, err := s.db.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	hosted, err := s.db.Events.Where(ctx, repository.Eq("host_id", userID))
	if err != nil {
		return nil, err
	}

	now := s.now()
	upcoming := make([]models.Event, 0, len(hosted))
	for _, e := range hosted {
		if !e.HasEnded(now) && e.Status != models.EventCancelled {
			upcoming = append(upcoming, e)
		}
	}
	sortEvents(upcoming)

	return &ProfileStats{
		UserID:         u.ID,
		FollowerCount:  u.FollowerCount,
		FollowingCount: u.FollowingCount,
		EventCount:     u.EventCount,
		PhotoCount:     u.PhotoCount,
		UpcomingEvents: upcoming,
	}, nil
}
