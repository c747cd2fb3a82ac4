package ranking

import (
	"fmt"
	"sort"
	"time"

	"github.com/onnwee/courserank/internal/course"
)

// RankingBreakdown explains how a course's final score was computed.
type RankingBreakdown struct {
	QualityScore    float64 `json:"quality_score"`
	PopularityScore float64 `json:"popularity_score"`
	FreshnessScore  float64 `json:"freshness_score"`
	EditorialBoost  float64 `json:"editorial_boost"`
	BaseScore       float64 `json:"base_score"`
	FinalScore      float64 `json:"final_score"`

	QualityWeight    float64 `json:"quality_weight"`
	PopularityWeight float64 `json:"popularity_weight"`
	FreshnessWeight  float64 `json:"freshness_weight"`
	EditorialWeight  float64 `json:"editorial_weight"`
	Formula          string  `json:"formula"`
}

// RankedCourse is a course annotated with its score and explanation.
type RankedCourse struct {
	course.Course
	FinalScore float64          `json:"final_score"`
	Reason     string           `json:"reason"`
	Breakdown  RankingBreakdown `json:"breakdown"`
}

// EnrollmentBounds returns the min and max enrollments across courses.
// An empty batch yields zero bounds.
func EnrollmentBounds(courses []course.Course) Bounds {
	if len(courses) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinEnrollments: courses[0].Enrollments,
		MaxEnrollments: courses[0].Enrollments,
	}
	for _, c := range courses[1:] {
		if c.Enrollments < b.MinEnrollments {
			b.MinEnrollments = c.Enrollments
		}
		if c.Enrollments > b.MaxEnrollments {
			b.MaxEnrollments = c.Enrollments
		}
	}
	return b
}

// Score computes the breakdown for a single course against known batch bounds.
func Score(c *course.Course, s *Settings, bounds Bounds, now time.Time) RankingBreakdown {
	return Combine(Components{
		Quality:    QualityScore(c.RatingAvg, c.RatingCount, s.MinRatingsForConfidence),
		Popularity: PopularityScore(c.Enrollments, bounds),
		Freshness:  FreshnessScore(c.LastUpdatedAt, s.FreshnessMaxAgeDays, now),
		Editorial:  EditorialBoost(c, s),
	}, s)
}

// Rank scores every course in the batch and returns them ordered by final
// score, highest first. Courses with equal scores keep their input order.
//
// The input slice is not modified. Returns ErrMissingSettings when s is nil
// and an error wrapping ErrInvalidInput when a course or setting is outside
// its numeric domain.
func Rank(courses []course.Course, s *Settings, now time.Time) ([]RankedCourse, error) {
	if s == nil {
		return nil, ErrMissingSettings
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	for i := range courses {
		if err := validateSignals(&courses[i]); err != nil {
			return nil, err
		}
	}
	if len(courses) == 0 {
		return []RankedCourse{}, nil
	}

	bounds := EnrollmentBounds(courses)

	ranked := make([]RankedCourse, len(courses))
	for i := range courses {
		c := courses[i].Clone()
		breakdown := Score(c, s, bounds, now)
		ranked[i] = RankedCourse{
			Course:     *c,
			FinalScore: breakdown.FinalScore,
			Reason:     Reason(c, breakdown),
			Breakdown:  breakdown,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	return ranked, nil
}

func validateSignals(c *course.Course) error {
	switch {
	case !(c.RatingAvg >= 0 && c.RatingAvg <= course.MaxRating):
		return fmt.Errorf("%w: course %s rating_avg %g outside [0, 5]", ErrInvalidInput, c.ID, c.RatingAvg)
	case c.RatingCount < 0:
		return fmt.Errorf("%w: course %s rating_count %d is negative", ErrInvalidInput, c.ID, c.RatingCount)
	case c.Enrollments < 0:
		return fmt.Errorf("%w: course %s enrollments %d is negative", ErrInvalidInput, c.ID, c.Enrollments)
	}
	return nil
}
