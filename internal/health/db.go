package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBChecker implements health checking for the course database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db: db,
	}
}

// HealthCheck pings the database and confirms the courses table is readable.
// An empty table is healthy; a missing one means migrations have not run.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM courses LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("courses table: %w", err)
	}
	return nil
}
