// Package api provides the HTTP handlers and router for the course ranking
// service, with a standard JSON error envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/courserank/internal/catalog"
	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/middleware"
	"github.com/onnwee/courserank/internal/promotion"
	"github.com/onnwee/courserank/internal/ranking"
)

// Common error codes used throughout the API.
const (
	// ErrCodeInvalidInput indicates a value outside its allowed domain.
	ErrCodeInvalidInput = "invalid_input"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeQualityFloor indicates a promotion was refused for a low rating.
	ErrCodeQualityFloor = "quality_floor_rejected"

	// ErrCodePromotionCap indicates a promotion was refused because too many
	// other promotions are active.
	ErrCodePromotionCap = "promotion_cap_exceeded"

	// ErrCodeConflict indicates a write lost a concurrent-update race after retries.
	ErrCodeConflict = "conflict"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records the code
// for the logging middleware.
//
// Example:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Course not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeQualityFloor:
		return http.StatusUnprocessableEntity
	case ErrCodePromotionCap, ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// errorCode classifies a service error into an API error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		return ErrCodeNotFound
	case errors.Is(err, promotion.ErrQualityFloor):
		return ErrCodeQualityFloor
	case errors.Is(err, promotion.ErrPromotionCapExceeded):
		return ErrCodePromotionCap
	case errors.Is(err, course.ErrPromotionConflict):
		return ErrCodeConflict
	case errors.Is(err, ranking.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidQuery),
		errors.Is(err, course.ErrInvalidCourse):
		return ErrCodeInvalidInput
	default:
		// Includes ranking.ErrMissingSettings: a caller bug, not a client error.
		return ErrCodeInternal
	}
}

// writeServiceError maps err to a status and code. Internal errors are logged
// and their message is not exposed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	ctx := middleware.SetErrorCode(r.Context(), code)
	message := err.Error()
	if code == ErrCodeInternal {
		slog.ErrorContext(ctx, "request failed", "error", err, "path", r.URL.Path)
		message = "Internal server error"
	}
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
