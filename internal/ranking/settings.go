package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Engine errors.
var (
	// ErrInvalidInput indicates a value outside its declared numeric domain.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingSettings indicates an engine call was made without settings.
	ErrMissingSettings = errors.New("ranking settings are required")
)

// Settings holds the ranking weights and promotion rules.
//
// The weights are not required to sum to 1. PromotionCap == 0 means the number
// of simultaneously active promotions is UNCAPPED; it does not disable
// promotions. Use a quality floor above MaxRating to disable promotions.
type Settings struct {
	QualityWeight    float64 `json:"quality_weight"`    // Weight for confidence-adjusted rating (default: 0.45)
	PopularityWeight float64 `json:"popularity_weight"` // Weight for batch-relative enrollments (default: 0.25)
	FreshnessWeight  float64 `json:"freshness_weight"`  // Weight for recency of last update (default: 0.2)
	EditorialWeight  float64 `json:"editorial_weight"`  // Weight applied to the editorial boost (default: 0.1)

	QualityFloor float64 `json:"quality_floor"` // Minimum rating average for any promotion (default: 3.5)
	PromotionCap int     `json:"promotion_cap"` // Max simultaneously active promotions, 0 = uncapped (default: 5)

	SponsoredBoost     float64 `json:"sponsored_boost"`      // Boost units for sponsored courses (default: 0.2)
	EditorsChoiceBoost float64 `json:"editors_choice_boost"` // Boost units for editor's choice (default: 0.15)

	MinRatingsForConfidence int     `json:"min_ratings_for_confidence"` // Rating count where confidence saturates (default: 30)
	FreshnessMaxAgeDays     float64 `json:"freshness_max_age_days"`     // Age where freshness reaches 0 (default: 365)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version  string   `json:"version"`
	Settings Settings `json:"settings"`
}

// DefaultSettings returns the default ranking configuration.
//
// Formula: final = (quality * 0.45) + (popularity * 0.25) + (freshness * 0.2) + (boost * 0.1)
func DefaultSettings() *Settings {
	return &Settings{
		QualityWeight:           0.45,
		PopularityWeight:        0.25,
		FreshnessWeight:         0.2,
		EditorialWeight:         0.1,
		QualityFloor:            3.5,
		PromotionCap:            5,
		SponsoredBoost:          0.2,
		EditorsChoiceBoost:      0.15,
		MinRatingsForConfidence: 30,
		FreshnessMaxAgeDays:     365,
	}
}

// Validate checks the settings against their declared domains. NaN values
// fail every range check.
// Returns an error wrapping ErrInvalidInput describing every violation.
func (s *Settings) Validate() error {
	if s == nil {
		return ErrMissingSettings
	}

	var errs []error
	weights := map[string]float64{
		"quality_weight":    s.QualityWeight,
		"popularity_weight": s.PopularityWeight,
		"freshness_weight":  s.FreshnessWeight,
		"editorial_weight":  s.EditorialWeight,
	}
	for _, name := range []string{"quality_weight", "popularity_weight", "freshness_weight", "editorial_weight"} {
		if !(weights[name] >= 0) {
			errs = append(errs, fmt.Errorf("%s must be >= 0 (got %g)", name, weights[name]))
		}
	}
	if !(s.QualityFloor >= 0 && s.QualityFloor <= 5) {
		errs = append(errs, fmt.Errorf("quality_floor must be between 0 and 5 (got %g)", s.QualityFloor))
	}
	if s.PromotionCap < 0 {
		errs = append(errs, fmt.Errorf("promotion_cap must be >= 0 (got %d)", s.PromotionCap))
	}
	if !(s.SponsoredBoost >= 0) {
		errs = append(errs, fmt.Errorf("sponsored_boost must be >= 0 (got %g)", s.SponsoredBoost))
	}
	if !(s.EditorsChoiceBoost >= 0) {
		errs = append(errs, fmt.Errorf("editors_choice_boost must be >= 0 (got %g)", s.EditorsChoiceBoost))
	}
	if s.MinRatingsForConfidence <= 0 {
		errs = append(errs, fmt.Errorf("min_ratings_for_confidence must be > 0 (got %d)", s.MinRatingsForConfidence))
	}
	if !(s.FreshnessMaxAgeDays > 0) {
		errs = append(errs, fmt.Errorf("freshness_max_age_days must be > 0 (got %g)", s.FreshnessMaxAgeDays))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
}

// Formula renders the combination formula with the configured weights.
func (s *Settings) Formula() string {
	return fmt.Sprintf("Final = (Q*%.2f) + (P*%.2f) + (F*%.2f) + (E*%.2f)",
		s.QualityWeight, s.PopularityWeight, s.FreshnessWeight, s.EditorialWeight)
}

// LoadCalibration loads ranking settings from a JSON calibration file.
// An empty path yields the defaults. Partial files are merged over the
// defaults; on read or parse failure the defaults are returned with the error.
func LoadCalibration(filePath string) (*Settings, error) {
	if filePath == "" {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultSettings(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultSettings(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultSettings()
	merged := MergeCalibration(defaults, &config.Settings)
	if err := merged.Validate(); err != nil {
		return DefaultSettings(), fmt.Errorf("invalid calibration file %s: %w", filePath, err)
	}
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration returns base with every non-zero field of override applied.
// A zero in the override means "keep the base value", so a calibration file
// cannot set PromotionCap to 0 (uncapped); use the settings API for that.
func MergeCalibration(base *Settings, override *Settings) *Settings {
	if base == nil {
		return DefaultSettings()
	}

	result := *base
	if override == nil {
		return &result
	}

	if override.QualityWeight != 0 {
		result.QualityWeight = override.QualityWeight
	}
	if override.PopularityWeight != 0 {
		result.PopularityWeight = override.PopularityWeight
	}
	if override.FreshnessWeight != 0 {
		result.FreshnessWeight = override.FreshnessWeight
	}
	if override.EditorialWeight != 0 {
		result.EditorialWeight = override.EditorialWeight
	}
	if override.QualityFloor != 0 {
		result.QualityFloor = override.QualityFloor
	}
	if override.PromotionCap != 0 {
		result.PromotionCap = override.PromotionCap
	}
	if override.SponsoredBoost != 0 {
		result.SponsoredBoost = override.SponsoredBoost
	}
	if override.EditorsChoiceBoost != 0 {
		result.EditorsChoiceBoost = override.EditorsChoiceBoost
	}
	if override.MinRatingsForConfidence != 0 {
		result.MinRatingsForConfidence = override.MinRatingsForConfidence
	}
	if override.FreshnessMaxAgeDays != 0 {
		result.FreshnessMaxAgeDays = override.FreshnessMaxAgeDays
	}

	return &result
}

// logCalibrationOverrides logs which settings differ from the defaults.
func logCalibrationOverrides(defaults *Settings, loaded *Settings) {
	var overrides []string

	floats := []struct {
		name      string
		def, load float64
	}{
		{"quality_weight", defaults.QualityWeight, loaded.QualityWeight},
		{"popularity_weight", defaults.PopularityWeight, loaded.PopularityWeight},
		{"freshness_weight", defaults.FreshnessWeight, loaded.FreshnessWeight},
		{"editorial_weight", defaults.EditorialWeight, loaded.EditorialWeight},
		{"quality_floor", defaults.QualityFloor, loaded.QualityFloor},
		{"sponsored_boost", defaults.SponsoredBoost, loaded.SponsoredBoost},
		{"editors_choice_boost", defaults.EditorsChoiceBoost, loaded.EditorsChoiceBoost},
		{"freshness_max_age_days", defaults.FreshnessMaxAgeDays, loaded.FreshnessMaxAgeDays},
	}
	for _, f := range floats {
		if f.def != f.load {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", f.name, f.def, f.load))
		}
	}
	if defaults.PromotionCap != loaded.PromotionCap {
		overrides = append(overrides, fmt.Sprintf("promotion_cap: %d -> %d", defaults.PromotionCap, loaded.PromotionCap))
	}
	if defaults.MinRatingsForConfidence != loaded.MinRatingsForConfidence {
		overrides = append(overrides, fmt.Sprintf("min_ratings_for_confidence: %d -> %d",
			defaults.MinRatingsForConfidence, loaded.MinRatingsForConfidence))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
