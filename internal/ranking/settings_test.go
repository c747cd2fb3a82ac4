package ranking

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultSettings verifies the default configuration.
func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.QualityWeight != 0.45 {
		t.Errorf("expected quality_weight 0.45, got %f", s.QualityWeight)
	}
	if s.PopularityWeight != 0.25 {
		t.Errorf("expected popularity_weight 0.25, got %f", s.PopularityWeight)
	}
	if s.FreshnessWeight != 0.2 {
		t.Errorf("expected freshness_weight 0.2, got %f", s.FreshnessWeight)
	}
	if s.EditorialWeight != 0.1 {
		t.Errorf("expected editorial_weight 0.1, got %f", s.EditorialWeight)
	}
	if s.QualityFloor != 3.5 {
		t.Errorf("expected quality_floor 3.5, got %f", s.QualityFloor)
	}
	if s.PromotionCap != 5 {
		t.Errorf("expected promotion_cap 5, got %d", s.PromotionCap)
	}
	if s.MinRatingsForConfidence != 30 {
		t.Errorf("expected min_ratings_for_confidence 30, got %d", s.MinRatingsForConfidence)
	}
	if s.FreshnessMaxAgeDays != 365 {
		t.Errorf("expected freshness_max_age_days 365, got %f", s.FreshnessMaxAgeDays)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

// TestSettingsValidate tests domain checks.
func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
		field   string
	}{
		{"defaults", func(*Settings) {}, false, ""},
		{"uncapped promotions", func(s *Settings) { s.PromotionCap = 0 }, false, ""},
		{"weights need not sum to one", func(s *Settings) { s.QualityWeight = 2 }, false, ""},
		{"negative weight", func(s *Settings) { s.FreshnessWeight = -0.1 }, true, "freshness_weight"},
		{"floor above five", func(s *Settings) { s.QualityFloor = 5.5 }, true, "quality_floor"},
		{"negative cap", func(s *Settings) { s.PromotionCap = -1 }, true, "promotion_cap"},
		{"negative boost", func(s *Settings) { s.SponsoredBoost = -1 }, true, "sponsored_boost"},
		{"zero min ratings", func(s *Settings) { s.MinRatingsForConfidence = 0 }, true, "min_ratings_for_confidence"},
		{"zero max age", func(s *Settings) { s.FreshnessMaxAgeDays = 0 }, true, "freshness_max_age_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %s, got %v", tt.field, err)
			}
		})
	}
}

// TestSettingsValidate_Nil returns ErrMissingSettings.
func TestSettingsValidate_Nil(t *testing.T) {
	var s *Settings
	if err := s.Validate(); !errors.Is(err, ErrMissingSettings) {
		t.Errorf("expected ErrMissingSettings, got %v", err)
	}
}

// TestLoadCalibration_DefaultFile tests loading the shipped calibration file.
func TestLoadCalibration_DefaultFile(t *testing.T) {
	configPath := filepath.Join("..", "..", "configs", "ranking.calibration.json")
	s, err := LoadCalibration(configPath)
	if err != nil {
		t.Fatalf("expected no error loading default calibration file, got: %v", err)
	}
	if *s != *DefaultSettings() {
		t.Errorf("loaded settings don't match defaults:\nloaded: %+v\ndefaults: %+v", s, DefaultSettings())
	}
}

// TestLoadCalibration_EmptyPath tests loading with empty file path.
func TestLoadCalibration_EmptyPath(t *testing.T) {
	s, err := LoadCalibration("")
	if err != nil {
		t.Errorf("expected no error with empty path, got: %v", err)
	}
	if *s != *DefaultSettings() {
		t.Error("should return defaults when path is empty")
	}
}

// TestLoadCalibration_NonExistentFile tests loading a non-existent file.
func TestLoadCalibration_NonExistentFile(t *testing.T) {
	s, err := LoadCalibration("/nonexistent/path/to/file.json")
	if err == nil {
		t.Error("expected error when file doesn't exist")
	}
	if *s != *DefaultSettings() {
		t.Error("should return defaults when file doesn't exist")
	}
}

// TestLoadCalibration_PartialOverride tests merging a partial file over the defaults.
func TestLoadCalibration_PartialOverride(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.json")

	data, err := json.Marshal(map[string]any{
		"version": "1.1",
		"settings": map[string]any{
			"quality_weight": 0.6,
			"promotion_cap":  3,
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	s, err := LoadCalibration(tmpFile)
	if err != nil {
		t.Fatalf("expected no error loading custom file, got: %v", err)
	}
	if s.QualityWeight != 0.6 {
		t.Errorf("expected quality_weight 0.6, got %f", s.QualityWeight)
	}
	if s.PromotionCap != 3 {
		t.Errorf("expected promotion_cap 3, got %d", s.PromotionCap)
	}
	if s.PopularityWeight != 0.25 {
		t.Errorf("expected default popularity_weight 0.25, got %f", s.PopularityWeight)
	}
}

// TestLoadCalibration_InvalidJSON tests loading invalid JSON.
func TestLoadCalibration_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(tmpFile, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	s, err := LoadCalibration(tmpFile)
	if err == nil {
		t.Error("expected error when JSON is invalid")
	}
	if *s != *DefaultSettings() {
		t.Error("should return defaults when JSON is invalid")
	}
}

// TestLoadCalibration_InvalidValues rejects out-of-domain overrides.
func TestLoadCalibration_InvalidValues(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(tmpFile, []byte(`{"settings":{"quality_floor":9}}`), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	s, err := LoadCalibration(tmpFile)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if *s != *DefaultSettings() {
		t.Error("should return defaults when values are invalid")
	}
}

// TestMergeCalibration tests that zero overrides keep the base value.
func TestMergeCalibration(t *testing.T) {
	base := DefaultSettings()

	result := MergeCalibration(base, &Settings{EditorsChoiceBoost: 0.3, FreshnessMaxAgeDays: 180})
	if result.EditorsChoiceBoost != 0.3 {
		t.Errorf("expected editors_choice_boost 0.3, got %f", result.EditorsChoiceBoost)
	}
	if result.FreshnessMaxAgeDays != 180 {
		t.Errorf("expected freshness_max_age_days 180, got %f", result.FreshnessMaxAgeDays)
	}
	if result.QualityFloor != base.QualityFloor {
		t.Errorf("expected quality_floor kept at %f, got %f", base.QualityFloor, result.QualityFloor)
	}
	if base.EditorsChoiceBoost != 0.15 {
		t.Error("merge must not modify the base settings")
	}

	if got := MergeCalibration(base, nil); *got != *base {
		t.Error("nil override should return a copy of base")
	}
	if got := MergeCalibration(nil, nil); *got != *DefaultSettings() {
		t.Error("nil base should return defaults")
	}
}

// TestFormula renders weights with two decimals.
func TestFormula(t *testing.T) {
	s := &Settings{QualityWeight: 0.5, PopularityWeight: 0.3, FreshnessWeight: 0.126, EditorialWeight: 1}
	want := "Final = (Q*0.50) + (P*0.30) + (F*0.13) + (E*1.00)"
	if got := s.Formula(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
