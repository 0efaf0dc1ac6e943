package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var summaryQueries = map[models.RefKind]string{
	models.RefTeacher: `SELECT id, full_name AS name FROM teachers WHERE id = ANY($1)`,
	models.RefSubject: `SELECT id, name FROM subjects WHERE id = ANY($1)`,
	models.RefClass:   `SELECT id, name FROM classes WHERE id = ANY($1)`,
}

// ReferenceRepository looks up display summaries for weakly referenced ids.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs a ReferenceRepository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// FindSummaries returns summaries for the ids that exist. Missing ids are simply absent.
func (r *ReferenceRepository) FindSummaries(ctx context.Context, kind models.RefKind, ids []string) ([]models.RefSummary, error) {
	if len(ids) == 0 {
		return []models.RefSummary{}, nil
	}
	query, ok := summaryQueries[kind]
	if !ok {
		return nil, fmt.Errorf("find summaries: unknown kind %q", kind)
	}
	var summaries []models.RefSummary
	if err := r.db.SelectContext(ctx, &summaries, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find %s summaries: %w", kind, err)
	}
	return summaries, nil
}
