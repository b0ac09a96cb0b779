package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
)

// SessionReportRepository executes compiled report plans.
type SessionReportRepository struct {
	db *sqlx.DB
}

// NewSessionReportRepository constructs a SessionReportRepository.
func NewSessionReportRepository(db *sqlx.DB) *SessionReportRepository {
	return &SessionReportRepository{db: db}
}

// List returns one page of the plan.
func (r *SessionReportRepository) List(ctx context.Context, plan *report.Plan, limit, offset int) ([]models.SessionRow, error) {
	query, args, err := bindNamed(r.db, plan.PageSQL(), plan.PageParams(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("bind session report: %w", err)
	}
	rows := make([]models.SessionRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list session report: %w", err)
	}
	return rows, nil
}

// ListAll returns every row of the plan; used by exports.
func (r *SessionReportRepository) ListAll(ctx context.Context, plan *report.Plan) ([]models.SessionRow, error) {
	query, args, err := bindNamed(r.db, plan.RowSQL(), plan.Params)
	if err != nil {
		return nil, fmt.Errorf("bind session report: %w", err)
	}
	rows := make([]models.SessionRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list session report: %w", err)
	}
	return rows, nil
}

// Count returns the number of sessions matching the plan.
func (r *SessionReportRepository) Count(ctx context.Context, plan *report.Plan) (int, error) {
	query, args, err := bindNamed(r.db, plan.CountSQL(), plan.Params)
	if err != nil {
		return 0, fmt.Errorf("bind session count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count session report: %w", err)
	}
	return total, nil
}

// bindNamed expands :name parameters and rebinds them for the driver.
func bindNamed(db *sqlx.DB, query string, params map[string]interface{}) (string, []interface{}, error) {
	bound, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(bound), args, nil
}
