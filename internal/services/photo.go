package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/config"
	"townconnect-backend/internal/models"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/sanitize"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const uploadExpiry = 5 * time.Minute

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/heic": "heic",
	"image/webp": "webp",
}

// Presigner issues presigned S3 PUT requests
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Presigner builds a presign client from the AWS configuration
func NewS3Presigner(ctx context.Context, cfg config.AWSConfig) (*s3.PresignClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// PhotoService handles photo-related business logic
type PhotoService struct {
	mu        sync.Mutex
	db        *repository.Tables
	counters  *Counters
	notifier  *NotificationService
	presigner Presigner
	aws       config.AWSConfig
	now       func() time.Time
}

// NewPhotoService creates a new photo service. presigner may be nil when
// object storage is not configured; uploads then fail.
func NewPhotoService(db *repository.Tables, counters *Counters, notifier *NotificationService, presigner Presigner, awsCfg config.AWSConfig, now func() time.Time) *PhotoService {
	return &PhotoService{
		db:        db,
		counters:  counters,
		notifier:  notifier,
		presigner: presigner,
		aws:       awsCfg,
		now:       now,
	}
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	Caption     string `json:"caption"`
	ContentType string `json:"content_type"`
	// TaggedUserIDs are notified once the photo record exists.
	TaggedUserIDs []string `json:"tagged_user_ids,omitempty"`
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string            `json:"upload_url"`
	Photo     models.EventPhoto `json:"photo"`
	ExpiresIn int               `json:"expires_in"`
}

func (s *PhotoService) objectURL(key string) string {
	if s.aws.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.aws.Endpoint, "/"), s.aws.S3Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.aws.S3Bucket, s.aws.Region, key)
}

// RequestUpload stores a photo record for the event and returns a pre-signed
// URL the client uploads the bytes to. Only the host and attendees may upload.
func (s *PhotoService) RequestUpload(ctx context.Context, userID, eventID string, req UploadRequest) (*UploadResponse, error) {
	ext, ok := imageExtensions[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, apperr.Invalid("content_type", "must be image/jpeg, image/png, image/heic or image/webp")
	}
	if s.presigner == nil {
		return nil, apperr.Backend("presign upload", errors.New("object storage is not configured"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.db.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	uploader, err := s.db.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if event.HostID != userID && !event.HasAttendee(userID) {
		return nil, apperr.ErrForbidden
	}
	tagged := uniqueIDs(req.TaggedUserIDs, func(id string) string { return id })
	for _, id := range tagged {
		if _, err := s.db.Users.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	photoID := uuid.New().String()
	key := fmt.Sprintf("events/%s/%s.%s", eventID, photoID, ext)

	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.aws.S3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadExpiry
	})
	if err != nil {
		return nil, apperr.Backend("presign upload", err)
	}

	now := s.now()
	photo, err := s.db.Photos.Insert(ctx, models.EventPhoto{
		ID:            photoID,
		EventID:       eventID,
		UserID:        userID,
		Caption:       sanitize.Text(req.Caption),
		ImageURL:      s.objectURL(key),
		ObjectKey:     key,
		TaggedUserIDs: tagged,
		IsVisible:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.counters.AdjustUser(ctx, userID, FieldPhotoCount, 1); err != nil {
		return nil, err
	}
	if err := s.counters.AdjustEvent(ctx, eventID, FieldPhotoCount, 1); err != nil {
		return nil, err
	}

	log.Info().Str("photo_id", photoID).Str("event_id", eventID).Str("user_id", userID).Msg("Photo upload requested")

	for _, id := range tagged {
		s.notifier.send(ctx, models.Notification{
			UserID:     id,
			FromUserID: userID,
			Type:       models.NotifyPhotoTag,
			Title:      "You were tagged in a photo",
			Message:    uploader.FullName + " tagged you at " + event.Title,
			PhotoID:    &photo.ID,
		})
	}

	return &UploadResponse{
		UploadURL: request.URL,
		Photo:     photo,
		ExpiresIn: int(uploadExpiry.Seconds()),
	}, nil
}

// Get returns a photo by ID
func (s *PhotoService) Get(ctx context.Context, photoID string) (*models.EventPhoto, error) {
	p, err := s.db.Photos.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPhotos returns the visible photos of an event, newest first
func (s *PhotoService) ListPhotos(ctx context.Context, eventID string) ([]models.EventPhoto, error) {
	if _, err := s.db.Events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	photos, err := s.db.Photos.Where(ctx, repository.Eq("event_id", eventID))
	if err != nil {
		return nil, err
	}
	visible := photos[:0]
	for _, p := range photos {
		if p.IsVisible {
			visible = append(visible, p)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	return visible, nil
}

// DeletePhoto removes a photo. Only its uploader or a moderator may delete it.
func (s *PhotoService) DeletePhoto(ctx context.Context, actorID, photoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo, err := s.db.Photos.Get(ctx, photoID)
	if err != nil {
		return err
	}
	actor, err := s.db.Users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if photo.UserID != actorID && !actor.Role.Can(models.PermModerateContent) {
		return apperr.ErrForbidden
	}

	if err := s.db.Photos.Delete(ctx, photoID); err != nil {
		return err
	}
	if err := s.counters.AdjustUser(ctx, photo.UserID, FieldPhotoCount, -1); err != nil {
		return err
	}
	if err := s.counters.AdjustEvent(ctx, photo.EventID, FieldPhotoCount, -1); err != nil {
		return err
	}

	log.Info().Str("photo_id", photoID).Str("actor_id", actorID).Msg("Photo deleted")
	return nil
}
