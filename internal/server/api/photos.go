// Package api provides HTTP API handlers for the Facepalm camera.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/facepalm/internal/log"
	"github.com/ayusman/facepalm/internal/store"
)

// PhotoHandler handles HTTP requests for photo resources.
type PhotoHandler struct {
	store *store.Store
}

// NewPhotoHandler creates a new PhotoHandler with the given store.
func NewPhotoHandler(s *store.Store) *PhotoHandler {
	return &PhotoHandler{store: s}
}

// ServeHTTP routes /api/photos, /api/photos/{id} and /api/photos/{id}/image.
func (h *PhotoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/photos")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/image"); ok {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, id)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type photoResponse struct {
	ID       string `json:"id"`
	IntentID string `json:"intent_id"`
	Path     string `json:"path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	TakenAt  string `json:"taken_at"`
	ImageURL string `json:"image_url"`
}

type listPhotosResponse struct {
	Photos []photoResponse `json:"photos"`
	Total  int             `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(p *store.Photo) photoResponse {
	return photoResponse{
		ID:       p.ID,
		IntentID: p.IntentID,
		Path:     p.Path,
		Width:    p.Width,
		Height:   p.Height,
		TakenAt:  p.TakenAt.Format(time.RFC3339Nano),
		ImageURL: "/api/photos/" + p.ID + "/image",
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// lookup fetches a photo, writing the error response when it fails.
func (h *PhotoHandler) lookup(w http.ResponseWriter, id string) (*store.Photo, bool) {
	p, err := h.store.Photos().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get photo")
		return nil, false
	}
	return p, true
}

// list handles GET /api/photos?limit=N and returns photos newest first.
func (h *PhotoHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	photos, err := h.store.Photos().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list photos")
		return
	}
	total, err := h.store.Photos().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count photos")
		return
	}

	response := listPhotosResponse{
		Photos: make([]photoResponse, 0, len(photos)),
		Total:  total,
	}
	for _, p := range photos {
		response.Photos = append(response.Photos, toResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/photos/{id}.
func (h *PhotoHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// image handles GET /api/photos/{id}/image and serves the JPEG file.
func (h *PhotoHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.lookup(w, id)
	if !ok {
		return
	}
	if _, err := os.Stat(p.Path); err != nil {
		writeError(w, http.StatusNotFound, "Photo file missing")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, p.Path)
}

// delete handles DELETE /api/photos/{id} and removes the record and the file.
func (h *PhotoHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.lookup(w, id)
	if !ok {
		return
	}

	if err := h.store.Photos().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Photo not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete photo")
		return
	}

	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("photo file not removed", "component", "api", "path", p.Path, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
