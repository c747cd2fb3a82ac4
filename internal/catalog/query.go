package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/onnwee/courserank/internal/ranking"
)

// ErrInvalidQuery is returned for unknown filter or sort values.
var ErrInvalidQuery = errors.New("invalid catalog query")

// PriceFilter restricts results by price.
type PriceFilter string

const (
	PriceAny  PriceFilter = ""
	PriceFree PriceFilter = "free"
	PricePaid PriceFilter = "paid"
)

// PracticeFilter restricts results by the presence of practice material.
type PracticeFilter string

const (
	PracticeAny     PracticeFilter = ""
	PracticeWith    PracticeFilter = "with"
	PracticeWithout PracticeFilter = "without"
)

// PlacementFilter restricts results to sponsored or organic courses.
type PlacementFilter string

const (
	PlacementAny       PlacementFilter = ""
	PlacementSponsored PlacementFilter = "sponsored"
	PlacementOrganic   PlacementFilter = "organic"
)

// SortOption selects the display order.
type SortOption string

const (
	SortRank       SortOption = "rank"
	SortPriceAsc   SortOption = "price-asc"
	SortPriceDesc  SortOption = "price-desc"
	SortFreshness  SortOption = "freshness"
	SortNewest     SortOption = "newest"
	SortRating     SortOption = "rating"
	SortPopularity SortOption = "popularity"
)

// Query holds display filters and ordering for a ranked listing.
// Zero values mean "no filter" and rank order.
type Query struct {
	Category  string
	Price     PriceFilter
	Practice  PracticeFilter
	Placement PlacementFilter
	Sort      SortOption

	// Limit keeps the first Limit results after sorting. 0 returns all.
	Limit int
}

// Validate checks every field against its allowed values.
func (q Query) Validate() error {
	switch q.Price {
	case PriceAny, PriceFree, PricePaid:
	default:
		return fmt.Errorf("%w: price must be free or paid (got %q)", ErrInvalidQuery, q.Price)
	}
	switch q.Practice {
	case PracticeAny, PracticeWith, PracticeWithout:
	default:
		return fmt.Errorf("%w: practice must be with or without (got %q)", ErrInvalidQuery, q.Practice)
	}
	switch q.Placement {
	case PlacementAny, PlacementSponsored, PlacementOrganic:
	default:
		return fmt.Errorf("%w: placement must be sponsored or organic (got %q)", ErrInvalidQuery, q.Placement)
	}
	switch q.Sort {
	case "", SortRank, SortPriceAsc, SortPriceDesc, SortFreshness, SortNewest, SortRating, SortPopularity:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, q.Sort)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0 (got %d)", ErrInvalidQuery, q.Limit)
	}
	return nil
}

// matches reports whether a ranked course passes every filter.
func (q Query) matches(rc *ranking.RankedCourse) bool {
	if q.Category != "" && rc.Category != q.Category {
		return false
	}
	switch q.Price {
	case PriceFree:
		if !rc.IsFree() {
			return false
		}
	case PricePaid:
		if rc.IsFree() {
			return false
		}
	}
	switch q.Practice {
	case PracticeWith:
		if !rc.HasPractice {
			return false
		}
	case PracticeWithout:
		if rc.HasPractice {
			return false
		}
	}
	switch q.Placement {
	case PlacementSponsored:
		if !rc.IsSponsored {
			return false
		}
	case PlacementOrganic:
		if rc.IsSponsored {
			return false
		}
	}
	return true
}

// Apply filters, sorts and limits a ranked list. The input must already be in
// rank order; every sort is stable over it, so ties keep rank order.
func (q Query) Apply(ranked []ranking.RankedCourse) []ranking.RankedCourse {
	out := make([]ranking.RankedCourse, 0, len(ranked))
	for i := range ranked {
		if q.matches(&ranked[i]) {
			out = append(out, ranked[i])
		}
	}

	if less := q.less(out); less != nil {
		sort.SliceStable(out, less)
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) less(s []ranking.RankedCourse) func(i, j int) bool {
	switch q.Sort {
	case SortPriceAsc:
		return func(i, j int) bool { return s[i].PriceCents < s[j].PriceCents }
	case SortPriceDesc:
		return func(i, j int) bool { return s[i].PriceCents > s[j].PriceCents }
	case SortFreshness:
		return func(i, j int) bool { return s[i].LastUpdatedAt.After(s[j].LastUpdatedAt) }
	case SortNewest:
		return func(i, j int) bool { return s[i].CreatedAt.After(s[j].CreatedAt) }
	case SortRating:
		return func(i, j int) bool { return s[i].RatingAvg > s[j].RatingAvg }
	case SortPopularity:
		return func(i, j int) bool { return s[i].Enrollments > s[j].Enrollments }
	default:
		return nil
	}
}
