package ranking

import (
	"time"

	"github.com/onnwee/courserank/internal/course"
)

// lowConfidenceFloor is the share of the raw rating kept when a course has no ratings.
const lowConfidenceFloor = 0.2

// Rating scale used to normalize rating averages.
const (
	minRatingScale = 1.0
	maxRatingScale = 5.0
)

// Reason tags, in priority order.
const (
	ReasonSponsored       = "Sponsored course"
	ReasonEditorsChoice   = "Editor's Choice"
	ReasonRatedAndPopular = "Highly rated and popular"
	ReasonRecentlyUpdated = "Recently updated"
	ReasonStrongRating    = "Strong rating"
	ReasonBalancedRanking = "Balanced ranking"
)

// Confidence returns how much a rating average can be trusted given its
// rating count, saturating at 1 once count reaches minRatings.
func Confidence(ratingCount, minRatings int) float64 {
	if minRatings <= 0 {
		return 1.0
	}
	return Clamp(float64(ratingCount)/float64(minRatings), 0, 1)
}

// QualityScore computes a confidence-adjusted quality score in [0, 1].
//
// Formula: base = rescale(avg, 1, 5); quality = base*c + base*0.2*(1-c)
//
// A rating backed by few reviews decays toward 20% of its raw value rather
// than to zero. Averages below 1 (unrated courses) score 0.
func QualityScore(ratingAvg float64, ratingCount, minRatings int) float64 {
	confidence := Confidence(ratingCount, minRatings)
	base := Clamp(Rescale(ratingAvg, minRatingScale, maxRatingScale), 0, 1)
	return base*confidence + base*lowConfidenceFloor*(1-confidence)
}

// Bounds holds the enrollment range of a ranking batch.
type Bounds struct {
	MinEnrollments int
	MaxEnrollments int
}

// PopularityScore rescales enrollments against the batch bounds.
// Returns 0 when every course in the batch has the same enrollment count.
func PopularityScore(enrollments int, bounds Bounds) float64 {
	score := Rescale(float64(enrollments), float64(bounds.MinEnrollments), float64(bounds.MaxEnrollments))
	return Clamp(score, 0, 1)
}

// FreshnessScore computes a linear recency score in [0, 1].
// Returns 1.0 for a course updated at (or after) now and 0.0 once it is
// maxAgeDays old.
//
// Formula: 1 - clamp(ageDays / maxAgeDays, 0, 1)
func FreshnessScore(lastUpdatedAt time.Time, maxAgeDays float64, now time.Time) float64 {
	if maxAgeDays <= 0 {
		return 0
	}
	ageDays := now.Sub(lastUpdatedAt).Hours() / 24
	return 1 - Clamp(ageDays/maxAgeDays, 0, 1)
}

// EditorialBoost computes the additive boost for promotion flags.
// Courses below the quality floor receive no boost whatever their flags.
func EditorialBoost(c *course.Course, s *Settings) float64 {
	if c.RatingAvg < s.QualityFloor {
		return 0
	}

	boost := 0.0
	if c.IsSponsored {
		boost += s.SponsoredBoost
	}
	if c.IsEditorsChoice {
		boost += s.EditorsChoiceBoost
	}
	return boost
}

// Components holds the per-signal scores of one course.
type Components struct {
	Quality    float64
	Popularity float64
	Freshness  float64
	Editorial  float64
}

// Combine merges the component scores with the configured weights.
//
// Formula: base = q*wq + p*wp + f*wf; final = base + e*we
func Combine(c Components, s *Settings) RankingBreakdown {
	base := c.Quality*s.QualityWeight +
		c.Popularity*s.PopularityWeight +
		c.Freshness*s.FreshnessWeight

	return RankingBreakdown{
		QualityScore:     c.Quality,
		PopularityScore:  c.Popularity,
		FreshnessScore:   c.Freshness,
		EditorialBoost:   c.Editorial,
		BaseScore:        base,
		FinalScore:       base + c.Editorial*s.EditorialWeight,
		Formula:          s.Formula(),
		QualityWeight:    s.QualityWeight,
		PopularityWeight: s.PopularityWeight,
		FreshnessWeight:  s.FreshnessWeight,
		EditorialWeight:  s.EditorialWeight,
	}
}

// Reason returns the display reason for a scored course. The first matching
// rule wins.
func Reason(c *course.Course, b RankingBreakdown) string {
	switch {
	case c.IsSponsored:
		return ReasonSponsored
	case c.IsEditorsChoice:
		return ReasonEditorsChoice
	case b.QualityScore > 0.7 && b.PopularityScore > 0.5:
		return ReasonRatedAndPopular
	case b.FreshnessScore > 0.7:
		return ReasonRecentlyUpdated
	case b.QualityScore > 0.6:
		return ReasonStrongRating
	default:
		return ReasonBalancedRanking
	}
}
