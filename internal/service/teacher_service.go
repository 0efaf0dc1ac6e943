package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

// TeacherRequest is the create/update payload for teachers.
type TeacherRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FullName  string  `json:"full_name" validate:"required"`
	NIP       *string `json:"nip" validate:"omitempty,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	Expertise *string `json:"expertise" validate:"omitempty,max=500"`
	Active    *bool   `json:"active"`
}

// TeacherService orchestrates teacher operations. Teachers are referenced weakly by
// schedules, so deleting one never touches classes or exams.
type TeacherService struct {
	repo      teacherRepository
	validator *timetable.Validator
	cache     *CacheService
	auditor   referenceAuditor
	opts      ScheduleOptions
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, validator *timetable.Validator, cache *CacheService, auditor referenceAuditor, opts ScheduleOptions, logger *zap.Logger) *TeacherService {
	if validator == nil {
		validator = timetable.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validator, cache: cache, auditor: auditor, opts: opts, logger: logger}
}

// List returns a page of teachers.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) (models.Page[models.Teacher], error) {
	filter.ListQuery = s.opts.normalize(filter.ListQuery)
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return models.Page[models.Teacher]{}, appErrors.Store(err, "failed to list teachers")
	}
	return models.NewPage(teachers, filter.ListQuery, total), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Store(err, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher record.
func (s *TeacherService) Create(ctx context.Context, req TeacherRequest) (*models.Teacher, error) {
	if errs := s.validator.Struct(req); len(errs) > 0 {
		return nil, appErrors.Invalid(errs, "invalid teacher payload")
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	teacher := &models.Teacher{Active: true}
	applyTeacherRequest(teacher, req)
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Store(err, "failed to create teacher")
	}
	return teacher, nil
}

// Update modifies an existing teacher. Cached views embed the teacher's name, so they are dropped.
func (s *TeacherService) Update(ctx context.Context, id string, req TeacherRequest) (*models.Teacher, error) {
	if errs := s.validator.Struct(req); len(errs) > 0 {
		return nil, appErrors.Invalid(errs, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}

	applyTeacherRequest(teacher, req)
	if err := s.repo.Update(ctx, teacher); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Store(err, "failed to update teacher")
	}
	s.cache.InvalidateViews(ctx)
	return teacher, nil
}

// Delete removes a teacher. Schedules keep the id and resolve it as Unknown on read.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Store(err, "failed to delete teacher")
	}
	s.cache.InvalidateViews(ctx)
	if s.auditor != nil {
		s.auditor.Enqueue(models.RefTeacher, id)
	}
	return nil
}

func (s *TeacherService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, strings.TrimSpace(email), excludeID)
	if err != nil {
		return appErrors.Store(err, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

func applyTeacherRequest(teacher *models.Teacher, req TeacherRequest) {
	teacher.Email = strings.TrimSpace(req.Email)
	teacher.FullName = strings.TrimSpace(req.FullName)
	teacher.NIP = normalizeOptional(req.NIP)
	teacher.Phone = normalizeOptional(req.Phone)
	teacher.Expertise = normalizeOptional(req.Expertise)
	if req.Active != nil {
		teacher.Active = *req.Active
	}
}
