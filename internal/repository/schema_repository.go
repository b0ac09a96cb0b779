package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/f2freport-api/internal/report"
)

// SchemaRepository inspects the installed activity tables.
type SchemaRepository struct {
	db     *sqlx.DB
	prefix string
}

// NewSchemaRepository constructs a SchemaRepository.
func NewSchemaRepository(db *sqlx.DB, prefix string) *SchemaRepository {
	return &SchemaRepository{db: db, prefix: prefix}
}

// Probe detects the dates variant, the capacity column and the field table.
func (r *SchemaRepository) Probe(ctx context.Context) (report.SchemaShape, error) {
	columns, err := r.columns(ctx, "facetoface_sessions")
	if err != nil {
		return report.SchemaShape{}, fmt.Errorf("probe sessions table: %w", err)
	}

	shape := report.SchemaShape{Dates: report.SeparateDatesTable}
	if columns["timestart"] && columns["timefinish"] {
		shape.Dates = report.DirectDates
	}
	shape.HasCapacity = columns["capacity"]

	_, err = r.columns(ctx, "facetoface_session_field")
	switch {
	case err == nil:
		shape.HasFieldTable = true
	case ctx.Err() != nil || !isMissingTable(err):
		return report.SchemaShape{}, fmt.Errorf("probe session field table: %w", err)
	}
	return shape, nil
}

const (
	pqUndefinedTable    = "42P01"
	mysqlNoSuchTable    = 1146
	sqliteNoSuchTable   = "no such table"
	genericMissingTable = "does not exist"
)

// isMissingTable reports whether err says the queried table is not installed.
func isMissingTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUndefinedTable
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchTable
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, sqliteNoSuchTable) || strings.Contains(msg, genericMissingTable)
}

func (r *SchemaRepository) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s%s WHERE 1 = 0", r.prefix, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = true
	}
	return set, rows.Err()
}
