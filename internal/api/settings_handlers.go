package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/courserank/internal/middleware"
	"github.com/onnwee/courserank/internal/ranking"
)

const maxSettingsBodyBytes = 4 << 10

// SettingsService reads and updates the ranking settings.
type SettingsService interface {
	Current(ctx context.Context) (*ranking.Settings, error)
	Update(ctx context.Context, s *ranking.Settings) (*ranking.Settings, error)
}

// SettingsHandlers holds dependencies for settings HTTP handlers.
type SettingsHandlers struct {
	settings SettingsService
}

// NewSettingsHandlers creates a new SettingsHandlers instance.
func NewSettingsHandlers(settings SettingsService) *SettingsHandlers {
	return &SettingsHandlers{settings: settings}
}

// SettingsResponse wraps the settings with their human-readable formula.
type SettingsResponse struct {
	Settings *ranking.Settings `json:"settings"`
	Formula  string            `json:"formula"`
}

// Get handles GET /settings.
func (h *SettingsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Current(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SettingsResponse{Settings: s, Formula: s.Formula()})
}

// Put handles PUT /settings. Fields omitted from the body keep their current
// values; the merged settings are validated before saving.
func (h *SettingsHandlers) Put(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Current(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	next := *current
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&next); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	saved, err := h.settings.Update(r.Context(), &next)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SettingsResponse{Settings: saved, Formula: saved.Formula()})
}
