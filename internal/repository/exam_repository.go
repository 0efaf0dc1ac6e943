package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const examColumns = "id, name, start_date, end_date, class_id, subjects, status, created_at, updated_at"

// ExamRepository persists exams with their embedded subject timetable.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exams matching filters along with total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	base := "FROM exams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, searchClause(len(args)+1, "name"))
		args = append(args, searchPattern(filter.Search))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := orderClause(filter.ListQuery, map[string]string{
		"name":       "name",
		"startDate":  "start_date",
		"start_date": "start_date",
		"created_at": "created_at",
	}, "start_date")

	query := fmt.Sprintf("SELECT %s %s %s %s", examColumns, base, order, pageClause(filter.ListQuery))
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// FindByID fetches an exam by id.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, "SELECT "+examColumns+" FROM exams WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListForConflicts returns other live exams overlapping [start, end] that share the class or a teacher.
func (r *ExamRepository) ListForConflicts(ctx context.Context, excludeID, classID string, teacherIDs []string, start, end time.Time) ([]models.Exam, error) {
	query := "SELECT " + examColumns + ` FROM exams
		WHERE id <> $1 AND status = ANY($2) AND start_date <= $3 AND end_date >= $4
		AND (class_id = $5 OR EXISTS (SELECT 1 FROM jsonb_array_elements(subjects) e WHERE e->>'teacher' = ANY($6)))
		ORDER BY id ASC`
	live := pq.Array([]string{string(models.ExamStatusScheduled), string(models.ExamStatusOngoing)})
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, excludeID, live, end, start, classID, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list conflicting exams: %w", err)
	}
	return exams, nil
}

// Create inserts an exam and its papers.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now

	const query = `INSERT INTO exams (id, name, start_date, end_date, class_id, subjects, status, created_at, updated_at)
		VALUES (:id, :name, :start_date, :end_date, :class_id, :subjects, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update replaces an exam and its papers.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET name = :name, start_date = :start_date, end_date = :end_date, class_id = :class_id,
		subjects = :subjects, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, exam)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return expectAffected(res, "update exam")
}

// Delete removes an exam together with its papers.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return expectAffected(res, "delete exam")
}

var examReferenceCounts = map[models.RefKind]string{
	models.RefTeacher: `SELECT COUNT(*) FROM exams WHERE subjects @> jsonb_build_array(jsonb_build_object('teacher', $1::text))`,
	models.RefSubject: `SELECT COUNT(*) FROM exams WHERE subjects @> jsonb_build_array(jsonb_build_object('subject', $1::text))`,
	models.RefClass:   `SELECT COUNT(*) FROM exams WHERE class_id = $1`,
}

// CountReferencing counts exams that still reference id as kind.
func (r *ExamRepository) CountReferencing(ctx context.Context, kind models.RefKind, id string) (int, error) {
	query, ok := examReferenceCounts[kind]
	if !ok {
		return 0, fmt.Errorf("count exams referencing: unknown kind %q", kind)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count exams referencing %s: %w", kind, err)
	}
	return count, nil
}

var examReferencedIDs = map[models.RefKind]string{
	models.RefTeacher: `SELECT DISTINCT e->>'teacher' AS ref FROM exams, jsonb_array_elements(subjects) e WHERE COALESCE(e->>'teacher', '') <> '' ORDER BY ref`,
	models.RefSubject: `SELECT DISTINCT e->>'subject' AS ref FROM exams, jsonb_array_elements(subjects) e WHERE COALESCE(e->>'subject', '') <> '' ORDER BY ref`,
	models.RefClass:   `SELECT DISTINCT class_id AS ref FROM exams WHERE class_id <> '' ORDER BY ref`,
}

// ReferencedIDs lists every distinct id of kind mentioned by any exam.
func (r *ExamRepository) ReferencedIDs(ctx context.Context, kind models.RefKind) ([]string, error) {
	query, ok := examReferencedIDs[kind]
	if !ok {
		return nil, fmt.Errorf("list exam references: unknown kind %q", kind)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list exam references %s: %w", kind, err)
	}
	return ids, nil
}
