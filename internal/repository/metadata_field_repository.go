package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/f2freport-api/internal/models"
)

// MetadataFieldRepository reads the custom session field definitions.
type MetadataFieldRepository struct {
	db     *sqlx.DB
	prefix string
}

// NewMetadataFieldRepository constructs a MetadataFieldRepository.
func NewMetadataFieldRepository(db *sqlx.DB, prefix string) *MetadataFieldRepository {
	return &MetadataFieldRepository{db: db, prefix: prefix}
}

// List returns every session field in storage order.
func (r *MetadataFieldRepository) List(ctx context.Context) ([]models.MetadataField, error) {
	query := fmt.Sprintf("SELECT id, shortname, name FROM %sfacetoface_session_field ORDER BY id ASC", r.prefix)
	fields := make([]models.MetadataField, 0)
	if err := r.db.SelectContext(ctx, &fields, query); err != nil {
		return nil, fmt.Errorf("list session fields: %w", err)
	}
	return fields, nil
}
