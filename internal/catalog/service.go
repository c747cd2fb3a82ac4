// Package catalog serves ranked course listings. The whole catalog is ranked
// as one batch, so popularity is always relative to every stored course, and
// display filters are applied afterwards.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/ranking"
	"github.com/onnwee/courserank/internal/tracing"
)

// SettingsSource provides the ranking settings in effect.
type SettingsSource interface {
	Current(ctx context.Context) (*ranking.Settings, error)
}

// Listing is a ranked, filtered view of the catalog.
type Listing struct {
	Courses     []ranking.RankedCourse `json:"courses"`
	Settings    ranking.Settings       `json:"settings"`
	Categories  []string               `json:"categories"`
	Total       int                    `json:"total"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Service ranks and filters the catalog.
type Service struct {
	courses  course.Repository
	settings SettingsSource
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a catalog service. metrics may be nil.
func NewService(courses course.Repository, settings SettingsSource, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		courses:  courses,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ranked ranks the full catalog and returns the courses matching q.
// Total is the number of matches before the limit is applied.
func (s *Service) Ranked(ctx context.Context, q Query) (listing *Listing, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "catalog.ranked",
		attribute.String("catalog.sort", string(q.Sort)),
		attribute.String("catalog.category", q.Category),
	)
	var batchSize int
	defer func() {
		endSpan(err)
		if s.metrics != nil {
			s.metrics.observe(time.Since(start).Seconds(), batchSize, err)
		}
	}()

	if err := q.Validate(); err != nil {
		return nil, err
	}

	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}
	batchSize = len(courses)

	now := s.now()
	ranked, err := ranking.Rank(courses, settings, now)
	if err != nil {
		return nil, err
	}

	unlimited := q
	unlimited.Limit = 0
	matched := unlimited.Apply(ranked)
	visible := matched
	if q.Limit > 0 && len(visible) > q.Limit {
		visible = visible[:q.Limit]
	}

	tracing.SetAttributes(ctx,
		attribute.Int("catalog.batch_size", batchSize),
		attribute.Int("catalog.matched", len(matched)),
	)
	s.logger.Debug("ranked catalog",
		"batch_size", batchSize,
		"matched", len(matched),
		"returned", len(visible),
		"sort", q.Sort)

	return &Listing{
		Courses:     visible,
		Settings:    *settings,
		Categories:  categories(courses),
		Total:       len(matched),
		GeneratedAt: now.UTC(),
	}, nil
}

// Course returns a single course by ID.
func (s *Service) Course(ctx context.Context, id string) (c *course.Course, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "catalog.course", attribute.String("course.id", id))
	defer func() { endSpan(err) }()

	return s.courses.GetByID(ctx, id)
}

// categories returns the distinct non-empty categories, sorted.
func categories(courses []course.Course) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range courses {
		if c.Category == "" {
			continue
		}
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		out = append(out, c.Category)
	}
	sort.Strings(out)
	return out
}
