package settings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onnwee/courserank/internal/ranking"
)

// Provider resolves the settings in effect: the stored record when present,
// otherwise the configured defaults.
type Provider struct {
	repo     Repository
	defaults ranking.Settings
	logger   *slog.Logger
}

// NewProvider creates a settings provider. A nil defaults uses
// ranking.DefaultSettings.
func NewProvider(repo Repository, defaults *ranking.Settings, logger *slog.Logger) *Provider {
	if defaults == nil {
		defaults = ranking.DefaultSettings()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		repo:     repo,
		defaults: *defaults,
		logger:   logger,
	}
}

// Current returns the stored settings, or a copy of the defaults when none
// have been saved.
func (p *Provider) Current(ctx context.Context) (*ranking.Settings, error) {
	s, err := p.repo.Get(ctx)
	if errors.Is(err, ErrSettingsNotFound) {
		defaults := p.defaults
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update validates and saves new settings.
func (p *Provider) Update(ctx context.Context, s *ranking.Settings) (*ranking.Settings, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := p.repo.Save(ctx, s); err != nil {
		return nil, err
	}
	p.logger.Info("ranking settings updated",
		"formula", s.Formula(),
		"quality_floor", s.QualityFloor,
		"promotion_cap", s.PromotionCap)

	saved := *s
	return &saved, nil
}
