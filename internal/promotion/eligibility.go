// Package promotion decides whether a course may be sponsored or marked as
// editor's choice, and applies accepted decisions through an atomic store write.
//
// Two rules gate a promotion request:
//
//   - Quality floor: a course rated below Settings.QualityFloor can never be
//     promoted, even when promotions are uncapped.
//   - Promotion cap: when the requested promotion is active now, the number of
//     OTHER active promoted courses must be below Settings.PromotionCap.
//     A cap of 0 means uncapped.
//
// Requests that set neither flag (removing a promotion) are always accepted.
package promotion

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/ranking"
)

// Rejection reasons carried in Decision.Err.
var (
	// ErrQualityFloor indicates the course rating is below the quality floor.
	ErrQualityFloor = errors.New("quality floor rejected")

	// ErrPromotionCapExceeded indicates too many other promotions are active.
	// The condition is transient; it clears when another promotion ends.
	ErrPromotionCapExceeded = errors.New("promotion cap exceeded")

	// ErrInvalidWindow indicates a promotion window that ends before it starts.
	ErrInvalidWindow = fmt.Errorf("%w: promotion window ends before it starts", ranking.ErrInvalidInput)
)

// Reason messages for accepted decisions.
const (
	ReasonNotRequested = "No promotion requested"
	ReasonAccepted     = "Promotion accepted"
	ReasonInactive     = "Promotion accepted (outside active window)"
)

// Request is a requested change to a course's promotion state.
type Request struct {
	IsSponsored     bool       `json:"is_sponsored"`
	IsEditorsChoice bool       `json:"is_editors_choice"`
	IsAccredited    bool       `json:"is_accredited"`
	PromoStart      *time.Time `json:"promo_start,omitempty"`
	PromoEnd        *time.Time `json:"promo_end,omitempty"`
}

// Promotion converts the request to the state that is persisted when accepted.
func (r Request) Promotion() course.Promotion {
	return course.Promotion{
		IsSponsored:     r.IsSponsored,
		IsEditorsChoice: r.IsEditorsChoice,
		IsAccredited:    r.IsAccredited,
		Start:           r.PromoStart,
		End:             r.PromoEnd,
	}
}

// Decision is the outcome of evaluating a promotion request.
// A rejection is a decision, not a Go error.
type Decision struct {
	Accepted bool
	Reason   string

	// Err is ErrQualityFloor or ErrPromotionCapExceeded on rejection.
	Err error

	// ActiveCount is the number of other active promotions counted against
	// the cap. Zero when the cap was not checked.
	ActiveCount int
	Cap         int

	// CapChecked is set when other active promotions were counted, even if
	// the count was zero.
	CapChecked bool

	// Promotion holds the values to persist when Accepted.
	Promotion course.Promotion
}

// IsActive reports whether p carries a flag and its window includes now.
// Nil bounds are open; both bounds are inclusive.
func IsActive(p course.Promotion, now time.Time) bool {
	if !p.Flagged() {
		return false
	}
	if p.Start != nil && p.Start.After(now) {
		return false
	}
	if p.End != nil && p.End.Before(now) {
		return false
	}
	return true
}

// CountActive counts the courses in others, excluding excludeID, whose
// promotion is active at now.
func CountActive(others []course.Course, excludeID string, now time.Time) int {
	count := 0
	for i := range others {
		if others[i].ID == excludeID {
			continue
		}
		if IsActive(others[i].Promotion(), now) {
			count++
		}
	}
	return count
}

// Evaluate checks a promotion request for target against the quality floor
// and the promotion cap. others should hold every other course currently
// carrying a promotion flag; entries for target itself are ignored.
//
// Returns ranking.ErrMissingSettings when s is nil and an error wrapping
// ranking.ErrInvalidInput for invalid settings, an inverted window on a
// flagged request, or a NaN rating. A request with no flag set is accepted
// before any other check. Rejections are reported through the returned Decision.
func Evaluate(target *course.Course, req Request, s *ranking.Settings, others []course.Course, now time.Time) (Decision, error) {
	if s == nil {
		return Decision{}, ranking.ErrMissingSettings
	}
	if err := s.Validate(); err != nil {
		return Decision{}, err
	}

	promo := req.Promotion()
	if !promo.Flagged() {
		return Decision{Accepted: true, Reason: ReasonNotRequested, Cap: s.PromotionCap, Promotion: promo}, nil
	}

	if req.PromoStart != nil && req.PromoEnd != nil && req.PromoEnd.Before(*req.PromoStart) {
		return Decision{}, ErrInvalidWindow
	}
	if math.IsNaN(target.RatingAvg) {
		return Decision{}, fmt.Errorf("%w: course %s rating_avg is NaN", ranking.ErrInvalidInput, target.ID)
	}

	if target.RatingAvg < s.QualityFloor {
		return Decision{
			Reason: fmt.Sprintf("Quality too low for promotion (%.2f < %.2f)", target.RatingAvg, s.QualityFloor),
			Err:    ErrQualityFloor,
			Cap:    s.PromotionCap,
		}, nil
	}

	if !IsActive(promo, now) {
		return Decision{Accepted: true, Reason: ReasonInactive, Cap: s.PromotionCap, Promotion: promo}, nil
	}

	decision := Decision{Accepted: true, Reason: ReasonAccepted, Cap: s.PromotionCap, Promotion: promo}
	if s.PromotionCap == 0 {
		return decision, nil
	}

	active := CountActive(others, target.ID, now)
	decision.ActiveCount = active
	decision.CapChecked = true
	if active >= s.PromotionCap {
		return Decision{
			Reason:      fmt.Sprintf("Promotion cap reached (%d/%d)", active, s.PromotionCap),
			Err:         ErrPromotionCapExceeded,
			ActiveCount: active,
			Cap:         s.PromotionCap,
			CapChecked:  true,
		}, nil
	}
	return decision, nil
}
