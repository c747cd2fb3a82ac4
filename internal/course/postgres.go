package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/courserank/internal/tracing"
)

// ErrPromotionConflict is returned when a promotion write keeps losing
// serialization conflicts after all retries.
var ErrPromotionConflict = errors.New("promotion update conflicted with a concurrent write")

// Postgres error codes that indicate the transaction can be retried.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// DefaultPromotionRetries is the number of times a conflicted promotion
// transaction is retried.
const DefaultPromotionRetries = 3

const courseColumns = `id, title, category, level, language,
	price_cents, duration_minutes, has_practice, has_certificate,
	rating_avg, rating_count, enrollments, last_updated_at,
	is_sponsored, is_editors_choice, is_accredited, promo_start, promo_end,
	created_at`

// PostgresRepository implements Store using PostgreSQL.
type PostgresRepository struct {
	db         *sql.DB
	maxRetries int
	logger     *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
// maxRetries <= 0 uses DefaultPromotionRetries.
func NewPostgresRepository(db *sql.DB, maxRetries int, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultPromotionRetries
	}
	return &PostgresRepository{
		db:         db,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*Course, error) {
	var (
		c          Course
		start, end sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Category, &c.Level, &c.Language,
		&c.PriceCents, &c.DurationMinutes, &c.HasPractice, &c.HasCertificate,
		&c.RatingAvg, &c.RatingCount, &c.Enrollments, &c.LastUpdatedAt,
		&c.IsSponsored, &c.IsEditorsChoice, &c.IsAccredited, &start, &end,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		c.PromoStart = &t
	}
	if end.Valid {
		t := end.Time
		c.PromoEnd = &t
	}
	return &c, nil
}

func queryCourses(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, query string, args ...any) ([]Course, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

// List returns every course ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) (courses []Course, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "courses", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	courses, err = queryCourses(ctx, r.db,
		`SELECT `+courseColumns+` FROM courses ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// GetByID returns a single course.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (c *Course, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "courses", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	c, err = scanCourse(r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course %s: %w", id, err)
	}
	return c, nil
}

// Upsert inserts or fully replaces a course.
func (r *PostgresRepository) Upsert(ctx context.Context, c *Course) (inserted bool, err error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "courses", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO courses (` + courseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			level = EXCLUDED.level,
			language = EXCLUDED.language,
			price_cents = EXCLUDED.price_cents,
			duration_minutes = EXCLUDED.duration_minutes,
			has_practice = EXCLUDED.has_practice,
			has_certificate = EXCLUDED.has_certificate,
			rating_avg = EXCLUDED.rating_avg,
			rating_count = EXCLUDED.rating_count,
			enrollments = EXCLUDED.enrollments,
			last_updated_at = EXCLUDED.last_updated_at,
			is_sponsored = EXCLUDED.is_sponsored,
			is_editors_choice = EXCLUDED.is_editors_choice,
			is_accredited = EXCLUDED.is_accredited,
			promo_start = EXCLUDED.promo_start,
			promo_end = EXCLUDED.promo_end
		RETURNING (xmax = 0) AS inserted
	`
	err = r.db.QueryRowContext(ctx, query,
		c.ID, c.Title, c.Category, c.Level, c.Language,
		c.PriceCents, c.DurationMinutes, c.HasPractice, c.HasCertificate,
		c.RatingAvg, c.RatingCount, c.Enrollments, c.LastUpdatedAt,
		c.IsSponsored, c.IsEditorsChoice, c.IsAccredited, nullTime(c.PromoStart), nullTime(c.PromoEnd),
		c.CreatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert course %s: %w", c.ID, err)
	}
	return inserted, nil
}

// UpdatePromotion runs the promotion decision in a SERIALIZABLE transaction
// with the target row locked. Serialization failures are retried up to
// maxRetries times before ErrPromotionConflict is returned.
func (r *PostgresRepository) UpdatePromotion(ctx context.Context, id string, decide Decider) (*Course, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		c, err := r.updatePromotionTx(ctx, id, decide)
		if err == nil {
			return c, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		r.logger.Warn("promotion transaction conflicted, retrying",
			"course_id", id,
			"attempt", attempt+1,
			"error", err)
	}
	return nil, fmt.Errorf("%w: course %s: %w", ErrPromotionConflict, id, lastErr)
}

func (r *PostgresRepository) updatePromotionTx(ctx context.Context, id string, decide Decider) (updated *Course, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "courses", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Error("failed to rollback transaction", "error", err)
		}
	}()

	target, err := scanCourse(tx.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock course %s: %w", id, err)
	}

	others, err := queryCourses(ctx, tx,
		`SELECT `+courseColumns+` FROM courses
		WHERE id <> $1 AND (is_sponsored OR is_editors_choice)
		ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load promoted courses: %w", err)
	}

	promo, err := decide(*target, others)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE courses
		SET is_sponsored = $2, is_editors_choice = $3, is_accredited = $4,
			promo_start = $5, promo_end = $6
		WHERE id = $1
	`, id, promo.IsSponsored, promo.IsEditorsChoice, promo.IsAccredited,
		nullTime(promo.Start), nullTime(promo.End))
	if err != nil {
		return nil, fmt.Errorf("failed to update promotion for %s: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion for %s: %w", id, err)
	}

	target.ApplyPromotion(promo)
	return target, nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
