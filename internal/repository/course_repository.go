package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/f2freport-api/internal/models"
)

// CourseRepository reads courses hosting face-to-face activities.
type CourseRepository struct {
	db     *sqlx.DB
	prefix string
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB, prefix string) *CourseRepository {
	return &CourseRepository{db: db, prefix: prefix}
}

// ListWithActivities returns courses owning at least one activity, by name.
func (r *CourseRepository) ListWithActivities(ctx context.Context) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT DISTINCT c.id, c.fullname, c.visible
        FROM %[1]scourse c
        JOIN %[1]sfacetoface f ON f.course = c.id
        ORDER BY c.fullname ASC, c.id ASC`, r.prefix)
	courses := make([]models.Course, 0)
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Exists reports whether a course with id exists.
func (r *CourseRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := r.db.Rebind(fmt.Sprintf("SELECT 1 FROM %scourse WHERE id = ?", r.prefix))
	var one int
	if err := r.db.GetContext(ctx, &one, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check course: %w", err)
	}
	return true, nil
}
