// Package course provides the course catalog model and its storage backends,
// including the atomic promotion write used to enforce the promotion cap.
package course

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for course operations.
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrInvalidCourse  = errors.New("invalid course")
)

// MaxRating is the upper bound of a course rating average.
const MaxRating = 5.0

// Course is a catalog entry. Descriptive fields are passed through for display;
// the signal and promotion fields feed ranking and promotion eligibility.
type Course struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Level    string `json:"level"`
	Language string `json:"language"`

	PriceCents      int  `json:"price_cents"`
	DurationMinutes int  `json:"duration_minutes"`
	HasPractice     bool `json:"has_practice"`
	HasCertificate  bool `json:"has_certificate"`

	RatingAvg     float64   `json:"rating_avg"`
	RatingCount   int       `json:"rating_count"`
	Enrollments   int       `json:"enrollments"`
	LastUpdatedAt time.Time `json:"last_updated_at"`

	IsSponsored     bool       `json:"is_sponsored"`
	IsEditorsChoice bool       `json:"is_editors_choice"`
	IsAccredited    bool       `json:"is_accredited"`
	PromoStart      *time.Time `json:"promo_start,omitempty"`
	PromoEnd        *time.Time `json:"promo_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Promotion is the mutable promotion state of a course.
type Promotion struct {
	IsSponsored     bool
	IsEditorsChoice bool
	IsAccredited    bool
	Start           *time.Time
	End             *time.Time
}

// Flagged reports whether either promotion flag is set.
func (p Promotion) Flagged() bool {
	return p.IsSponsored || p.IsEditorsChoice
}

// Promotion returns the course's current promotion state.
func (c *Course) Promotion() Promotion {
	return Promotion{
		IsSponsored:     c.IsSponsored,
		IsEditorsChoice: c.IsEditorsChoice,
		IsAccredited:    c.IsAccredited,
		Start:           c.PromoStart,
		End:             c.PromoEnd,
	}
}

// ApplyPromotion overwrites the promotion fields with p.
func (c *Course) ApplyPromotion(p Promotion) {
	c.IsSponsored = p.IsSponsored
	c.IsEditorsChoice = p.IsEditorsChoice
	c.IsAccredited = p.IsAccredited
	c.PromoStart = copyTime(p.Start)
	c.PromoEnd = copyTime(p.End)
}

// IsFree reports whether the course has no price.
func (c *Course) IsFree() bool {
	return c.PriceCents == 0
}

// Validate checks the numeric domain of the signal fields.
func (c *Course) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCourse)
	}
	if !(c.RatingAvg >= 0 && c.RatingAvg <= MaxRating) {
		return fmt.Errorf("%w: course %s rating_avg %.2f outside [0, %.0f]", ErrInvalidCourse, c.ID, c.RatingAvg, MaxRating)
	}
	if c.RatingCount < 0 {
		return fmt.Errorf("%w: course %s rating_count %d is negative", ErrInvalidCourse, c.ID, c.RatingCount)
	}
	if c.Enrollments < 0 {
		return fmt.Errorf("%w: course %s enrollments %d is negative", ErrInvalidCourse, c.ID, c.Enrollments)
	}
	if c.PriceCents < 0 {
		return fmt.Errorf("%w: course %s price_cents %d is negative", ErrInvalidCourse, c.ID, c.PriceCents)
	}
	return nil
}

// Clone returns a deep copy of the course.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	copied := *c
	copied.PromoStart = copyTime(c.PromoStart)
	copied.PromoEnd = copyTime(c.PromoEnd)
	return &copied
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
