package handlers

import (
	"net/http"

	"townconnect-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PhotoHandler handles event photo requests
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
	}
}

// UploadPhoto handles POST /api/v1/events/{event_id}/photos/upload
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := currentUser(r)
	resp, err := h.photoService.RequestUpload(r.Context(), userID, chi.URLParam(r, "event_id"), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("photo_id", resp.Photo.ID).
		Str("event_id", resp.Photo.EventID).
		Msg("Upload URL generated")

	respondJSON(w, http.StatusOK, resp)
}

// GetPhotos handles GET /api/v1/events/{event_id}/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photoService.ListPhotos(r.Context(), chi.URLParam(r, "event_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

// DeletePhoto handles DELETE /api/v1/photos/{photo_id}
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.photoService.DeletePhoto(r.Context(), currentUser(r), chi.URLParam(r, "photo_id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
