package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/courserank/internal/catalog"
	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/middleware"
	"github.com/onnwee/courserank/internal/promotion"
)

// maxPromotionBodyBytes bounds promotion request bodies.
const maxPromotionBodyBytes = 4 << 10

// CatalogService serves ranked listings and single courses.
type CatalogService interface {
	Ranked(ctx context.Context, q catalog.Query) (*catalog.Listing, error)
	Course(ctx context.Context, id string) (*course.Course, error)
}

// PromotionService applies promotion requests.
type PromotionService interface {
	Apply(ctx context.Context, courseID string, req promotion.Request) (*promotion.Result, error)
}

// CourseHandlers holds dependencies for course HTTP handlers.
type CourseHandlers struct {
	catalog    CatalogService
	promotions PromotionService
}

// NewCourseHandlers creates a new CourseHandlers instance.
func NewCourseHandlers(catalog CatalogService, promotions PromotionService) *CourseHandlers {
	return &CourseHandlers{catalog: catalog, promotions: promotions}
}

// PromotionResponse is the body of a successful promotion update.
type PromotionResponse struct {
	OK     bool           `json:"ok"`
	Reason string         `json:"reason"`
	Course *course.Course `json:"course"`
}

// parseQuery reads ranked listing parameters. Values are case-insensitive;
// category "All" means no category filter.
func parseQuery(r *http.Request) (catalog.Query, string) {
	values := r.URL.Query()

	q := catalog.Query{
		Category:  strings.TrimSpace(values.Get("category")),
		Price:     catalog.PriceFilter(strings.ToLower(values.Get("price"))),
		Practice:  catalog.PracticeFilter(strings.ToLower(values.Get("practice"))),
		Placement: catalog.PlacementFilter(strings.ToLower(values.Get("placement"))),
		Sort:      catalog.SortOption(strings.ToLower(values.Get("sort"))),
	}
	if strings.EqualFold(q.Category, "all") {
		q.Category = ""
	}
	if q.Price == "all" {
		q.Price = catalog.PriceAny
	}
	if q.Practice == "all" {
		q.Practice = catalog.PracticeAny
	}
	if q.Placement == "all" {
		q.Placement = catalog.PlacementAny
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, "limit must be an integer"
		}
		q.Limit = limit
	}
	return q, ""
}

// Ranked handles GET /courses/ranked.
func (h *CourseHandlers) Ranked(w http.ResponseWriter, r *http.Request) {
	q, errMsg := parseQuery(r)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidInput)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidInput, errMsg)
		return
	}

	listing, err := h.catalog.Ranked(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, listing)
}

// Get handles GET /courses/{id}.
func (h *CourseHandlers) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.Course(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// Promote handles POST /courses/{id}/promotion.
//
// Accepted requests return 200 with the updated course. A course below the
// quality floor returns 422 quality_floor_rejected; a full promotion cap
// returns 409 promotion_cap_exceeded.
func (h *CourseHandlers) Promote(w http.ResponseWriter, r *http.Request) {
	var req promotion.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPromotionBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	result, err := h.promotions.Apply(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !result.Decision.Accepted {
		code := errorCode(result.Decision.Err)
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, StatusCodeMapping(code), code, result.Decision.Reason)
		return
	}

	writeJSON(w, r, http.StatusOK, PromotionResponse{
		OK:     true,
		Reason: result.Decision.Reason,
		Course: result.Course,
	})
}
