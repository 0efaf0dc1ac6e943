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

const classColumns = "id, name, teacher_ids, subject_ids, start_date, end_date, classroom, max_students, status, weekly_schedule, created_at, updated_at"

// ClassRepository persists classes with their embedded weekly schedule.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filters along with total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TeacherID != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("($%d = ANY(teacher_ids) OR weekly_schedule @> jsonb_build_array(jsonb_build_object('teacher', $%d::text)))", n, n))
		args = append(args, filter.TeacherID)
	}
	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, searchClause(len(args)+1, "name", "classroom"))
		args = append(args, searchPattern(filter.Search))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := orderClause(filter.ListQuery, map[string]string{
		"name":       "name",
		"start_date": "start_date",
		"end_date":   "end_date",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}, "created_at")

	query := fmt.Sprintf("SELECT %s %s %s %s", classColumns, base, order, pageClause(filter.ListQuery))
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID fetches a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, "SELECT "+classColumns+" FROM classes WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByTeacher returns classes whose weekly schedule has an entry taught by teacherID.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	query := "SELECT " + classColumns + " FROM classes WHERE weekly_schedule @> jsonb_build_array(jsonb_build_object('teacher', $1::text)) ORDER BY name ASC, id ASC"
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, teacherID); err != nil {
		return nil, fmt.Errorf("list classes by teacher: %w", err)
	}
	return classes, nil
}

// ListForConflicts returns other active classes whose date range overlaps [start, end]
// and that share a teacher or the classroom.
func (r *ClassRepository) ListForConflicts(ctx context.Context, excludeID string, teacherIDs []string, classroom string, start, end time.Time) ([]models.Class, error) {
	query := "SELECT " + classColumns + ` FROM classes
		WHERE id <> $1 AND status = $2 AND start_date <= $3 AND end_date >= $4
		AND (EXISTS (SELECT 1 FROM jsonb_array_elements(weekly_schedule) e WHERE e->>'teacher' = ANY($5))
			OR ($6 <> '' AND LOWER(classroom) = LOWER($6)))
		ORDER BY id ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, excludeID, models.ClassStatusActive, end, start, pq.Array(teacherIDs), classroom); err != nil {
		return nil, fmt.Errorf("list conflicting classes: %w", err)
	}
	return classes, nil
}

// Create inserts a class. The embedded schedule is written in the same row.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, teacher_ids, subject_ids, start_date, end_date, classroom, max_students, status, weekly_schedule, created_at, updated_at)
		VALUES (:id, :name, :teacher_ids, :subject_ids, :start_date, :end_date, :classroom, :max_students, :status, :weekly_schedule, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update replaces a class and its schedule. Concurrent writers are last-write-wins.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, teacher_ids = :teacher_ids, subject_ids = :subject_ids, start_date = :start_date, end_date = :end_date,
		classroom = :classroom, max_students = :max_students, status = :status, weekly_schedule = :weekly_schedule, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, class)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return expectAffected(res, "update class")
}

// Delete removes a class together with its weekly schedule.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return expectAffected(res, "delete class")
}

var classReferenceCounts = map[models.RefKind]string{
	models.RefTeacher: `SELECT COUNT(*) FROM classes WHERE $1 = ANY(teacher_ids) OR weekly_schedule @> jsonb_build_array(jsonb_build_object('teacher', $1::text))`,
	models.RefSubject: `SELECT COUNT(*) FROM classes WHERE $1 = ANY(subject_ids) OR weekly_schedule @> jsonb_build_array(jsonb_build_object('subject', $1::text))`,
	models.RefClass:   `SELECT COUNT(*) FROM classes WHERE id <> $1 AND weekly_schedule @> jsonb_build_array(jsonb_build_object('class', $1::text))`,
}

// CountReferencing counts classes that still reference id as kind.
func (r *ClassRepository) CountReferencing(ctx context.Context, kind models.RefKind, id string) (int, error) {
	query, ok := classReferenceCounts[kind]
	if !ok {
		return 0, fmt.Errorf("count classes referencing: unknown kind %q", kind)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count classes referencing %s: %w", kind, err)
	}
	return count, nil
}

var classReferencedIDs = map[models.RefKind]string{
	models.RefTeacher: `SELECT DISTINCT ref FROM (
		SELECT unnest(teacher_ids) AS ref FROM classes
		UNION SELECT e->>'teacher' FROM classes, jsonb_array_elements(weekly_schedule) e) refs
		WHERE ref IS NOT NULL AND ref <> '' ORDER BY ref`,
	models.RefSubject: `SELECT DISTINCT ref FROM (
		SELECT unnest(subject_ids) AS ref FROM classes
		UNION SELECT e->>'subject' FROM classes, jsonb_array_elements(weekly_schedule) e) refs
		WHERE ref IS NOT NULL AND ref <> '' ORDER BY ref`,
	models.RefClass: `SELECT DISTINCT e->>'class' AS ref FROM classes, jsonb_array_elements(weekly_schedule) e
		WHERE COALESCE(e->>'class', '') <> '' ORDER BY ref`,
}

// ReferencedIDs lists every distinct id of kind mentioned by any class.
func (r *ClassRepository) ReferencedIDs(ctx context.Context, kind models.RefKind) ([]string, error) {
	query, ok := classReferencedIDs[kind]
	if !ok {
		return nil, fmt.Errorf("list class references: unknown kind %q", kind)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list class references %s: %w", kind, err)
	}
	return ids, nil
}
