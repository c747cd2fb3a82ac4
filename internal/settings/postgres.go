package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/courserank/internal/ranking"
	"github.com/onnwee/courserank/internal/tracing"
)

// settingsRowID is the primary key of the singleton settings row.
const settingsRowID = 1

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get reads the singleton settings row.
func (r *PostgresRepository) Get(ctx context.Context) (s *ranking.Settings, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "ranking_settings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT quality_weight, popularity_weight, freshness_weight, editorial_weight,
			quality_floor, promotion_cap, sponsored_boost, editors_choice_boost,
			min_ratings_for_confidence, freshness_max_age_days
		FROM ranking_settings
		WHERE id = $1
	`
	var out ranking.Settings
	err = r.db.QueryRowContext(ctx, query, settingsRowID).Scan(
		&out.QualityWeight, &out.PopularityWeight, &out.FreshnessWeight, &out.EditorialWeight,
		&out.QualityFloor, &out.PromotionCap, &out.SponsoredBoost, &out.EditorsChoiceBoost,
		&out.MinRatingsForConfidence, &out.FreshnessMaxAgeDays,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &out, nil
}

// Save validates and upserts the singleton settings row.
func (r *PostgresRepository) Save(ctx context.Context, s *ranking.Settings) (err error) {
	if err := s.Validate(); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "ranking_settings", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO ranking_settings (
			id, quality_weight, popularity_weight, freshness_weight, editorial_weight,
			quality_floor, promotion_cap, sponsored_boost, editors_choice_boost,
			min_ratings_for_confidence, freshness_max_age_days, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			quality_weight = EXCLUDED.quality_weight,
			popularity_weight = EXCLUDED.popularity_weight,
			freshness_weight = EXCLUDED.freshness_weight,
			editorial_weight = EXCLUDED.editorial_weight,
			quality_floor = EXCLUDED.quality_floor,
			promotion_cap = EXCLUDED.promotion_cap,
			sponsored_boost = EXCLUDED.sponsored_boost,
			editors_choice_boost = EXCLUDED.editors_choice_boost,
			min_ratings_for_confidence = EXCLUDED.min_ratings_for_confidence,
			freshness_max_age_days = EXCLUDED.freshness_max_age_days,
			updated_at = NOW()
	`
	_, err = r.db.ExecContext(ctx, query, settingsRowID,
		s.QualityWeight, s.PopularityWeight, s.FreshnessWeight, s.EditorialWeight,
		s.QualityFloor, s.PromotionCap, s.SponsoredBoost, s.EditorsChoiceBoost,
		s.MinRatingsForConfidence, s.FreshnessMaxAgeDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
