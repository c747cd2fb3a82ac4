package promotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/ranking"
	"github.com/onnwee/courserank/internal/tracing"
)

// errRejected aborts the store write when a request is rejected.
var errRejected = errors.New("promotion rejected")

// SettingsSource provides the ranking settings in effect.
type SettingsSource interface {
	Current(ctx context.Context) (*ranking.Settings, error)
}

// Result is the outcome of Apply. Course is set only when the request was accepted.
type Result struct {
	Decision Decision
	Course   *course.Course
}

// Service applies promotion requests.
type Service struct {
	store    course.PromotionStore
	settings SettingsSource
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a promotion service. metrics may be nil.
func NewService(store course.PromotionStore, settings SettingsSource, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
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

// Apply evaluates req for the course and persists it if accepted. The
// evaluation and write run atomically in the store, so concurrent requests
// cannot push the number of active promotions past the cap.
//
// A rejected request returns a Result with Decision.Accepted false and a nil
// error. Errors are returned for a missing course (course.ErrCourseNotFound),
// invalid input (ranking.ErrInvalidInput) and store failures.
func (s *Service) Apply(ctx context.Context, courseID string, req Request) (result *Result, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "promotion.apply",
		attribute.String("course.id", courseID),
		attribute.Bool("promotion.sponsored", req.IsSponsored),
		attribute.Bool("promotion.editors_choice", req.IsEditorsChoice),
	)
	defer func() {
		endSpan(err)
		if s.metrics != nil {
			s.metrics.ObserveApplyDuration(time.Since(start).Seconds())
			switch {
			case err != nil:
				s.metrics.IncDecision(OutcomeError)
			case result != nil:
				s.metrics.IncDecision(outcomeOf(result.Decision))
			}
		}
	}()

	settings, err := s.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var decision Decision
	updated, err := s.store.UpdatePromotion(ctx, courseID, func(target course.Course, others []course.Course) (course.Promotion, error) {
		d, err := Evaluate(&target, req, settings, others, s.now())
		if err != nil {
			return course.Promotion{}, err
		}
		decision = d
		if d.CapChecked && s.metrics != nil {
			s.metrics.SetActiveObserved(d.ActiveCount)
		}
		if !d.Accepted {
			return course.Promotion{}, errRejected
		}
		return d.Promotion, nil
	})

	if errors.Is(err, errRejected) {
		tracing.SetAttributes(ctx, attribute.Bool("promotion.accepted", false))
		s.logger.Info("promotion rejected",
			"course_id", courseID,
			"reason", decision.Reason,
			"active_count", decision.ActiveCount,
			"cap", decision.Cap)
		return &Result{Decision: decision}, nil
	}
	if err != nil {
		return nil, err
	}

	tracing.SetAttributes(ctx, attribute.Bool("promotion.accepted", true))
	s.logger.Info("promotion updated",
		"course_id", courseID,
		"sponsored", updated.IsSponsored,
		"editors_choice", updated.IsEditorsChoice,
		"reason", decision.Reason)
	return &Result{Decision: decision, Course: updated}, nil
}
