package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectRequest is the create/update payload for subjects.
type SubjectRequest struct {
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"max=1000"`
}

// SubjectService handles subject workflows.
type SubjectService struct {
	repo      subjectRepository
	validator *timetable.Validator
	cache     *CacheService
	auditor   referenceAuditor
	opts      ScheduleOptions
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, validator *timetable.Validator, cache *CacheService, auditor referenceAuditor, opts ScheduleOptions, logger *zap.Logger) *SubjectService {
	if validator == nil {
		validator = timetable.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validator, cache: cache, auditor: auditor, opts: opts, logger: logger}
}

// List returns a page of subjects.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) (models.Page[models.Subject], error) {
	filter.ListQuery = s.opts.normalize(filter.ListQuery)
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return models.Page[models.Subject]{}, appErrors.Store(err, "failed to list subjects")
	}
	return models.NewPage(subjects, filter.ListQuery, total), nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Store(err, "failed to load subject")
	}
	return subject, nil
}

// Create registers a subject with a unique code.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.Subject, error) {
	if errs := s.validator.Struct(req); len(errs) > 0 {
		return nil, appErrors.Invalid(errs, "invalid subject payload")
	}
	if err := s.ensureUniqueCode(ctx, req.Code, ""); err != nil {
		return nil, err
	}

	subject := &models.Subject{}
	applySubjectRequest(subject, req)
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Store(err, "failed to create subject")
	}
	return subject, nil
}

// Update modifies a subject and drops cached views that embed its name.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.Subject, error) {
	if errs := s.validator.Struct(req); len(errs) > 0 {
		return nil, appErrors.Invalid(errs, "invalid subject payload")
	}
	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueCode(ctx, req.Code, id); err != nil {
		return nil, err
	}

	applySubjectRequest(subject, req)
	if err := s.repo.Update(ctx, subject); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Store(err, "failed to update subject")
	}
	s.cache.InvalidateViews(ctx)
	return subject, nil
}

// Delete removes a subject. Schedules keep the id and resolve it as Unknown on read.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Store(err, "failed to delete subject")
	}
	s.cache.InvalidateViews(ctx)
	if s.auditor != nil {
		s.auditor.Enqueue(models.RefSubject, id)
	}
	return nil
}

func (s *SubjectService) ensureUniqueCode(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, strings.TrimSpace(code), excludeID)
	if err != nil {
		return appErrors.Store(err, "failed to check subject code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "subject code already used")
	}
	return nil
}

func applySubjectRequest(subject *models.Subject, req SubjectRequest) {
	subject.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	subject.Name = strings.TrimSpace(req.Name)
	subject.Description = strings.TrimSpace(req.Description)
}
