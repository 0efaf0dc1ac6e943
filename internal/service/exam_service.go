package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	applog "github.com/noah-isme/sma-timetable-api/pkg/logger"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListForConflicts(ctx context.Context, excludeID, classID string, teacherIDs []string, start, end time.Time) ([]models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
}

// ExamWriteResult is the outcome of a successful exam write.
type ExamWriteResult struct {
	Exam      dto.ExamView             `json:"exam"`
	Conflicts []models.ConflictWarning `json:"conflicts"`
}

// ExamService runs the exam pipeline the same way ClassService does for weekly schedules.
// Papers are checked for double-bookings per exam date.
type ExamService struct {
	repo      examRepository
	resolver  *ReferenceResolver
	validator *timetable.Validator
	cache     *CacheService
	metrics   *MetricsService
	opts      ScheduleOptions
	logger    *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(repo examRepository, resolver *ReferenceResolver, validator *timetable.Validator, cache *CacheService, metrics *MetricsService, opts ScheduleOptions, logger *zap.Logger) *ExamService {
	if validator == nil {
		validator = timetable.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, resolver: resolver, validator: validator, cache: cache, metrics: metrics, opts: opts, logger: logger}
}

// List returns a page of resolved exams.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) (models.Page[dto.ExamView], error) {
	filter.ListQuery = s.opts.normalize(filter.ListQuery)
	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return models.Page[dto.ExamView]{}, appErrors.Store(err, "failed to list exams")
	}

	var refs []Ref
	for _, exam := range exams {
		refs = append(refs, examRefs(exam)...)
	}
	resolved, err := s.resolver.Resolve(ctx, refs, nil)
	if err != nil {
		return models.Page[dto.ExamView]{}, appErrors.Store(err, "failed to resolve exam references")
	}

	views := make([]dto.ExamView, 0, len(exams))
	for _, exam := range exams {
		views = append(views, examView(exam, resolved))
	}
	return models.NewPage(views, filter.ListQuery, total), nil
}

// Get returns the resolved exam view and whether it was served from cache.
func (s *ExamService) Get(ctx context.Context, id string) (*dto.ExamView, bool, error) {
	var cached dto.ExamView
	if s.cache.Get(ctx, ViewKey(examViewKind, id), &cached) {
		return &cached, true, nil
	}

	exam, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	view, err := s.resolve(ctx, *exam)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, ViewKey(examViewKind, id), view)
	return view, false, nil
}

// Create validates and stores a new exam.
func (s *ExamService) Create(ctx context.Context, req dto.ExamRequest) (*ExamWriteResult, error) {
	exam, conflicts, err := s.prepare(ctx, uuid.NewString(), req, nil)
	if err != nil {
		return nil, err
	}
	if s.opts.rejectConflicts(req.RejectOnConflict) && len(conflicts) > 0 {
		return nil, conflictError("exam", conflicts)
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Store(err, "failed to create exam")
	}
	return s.writeResult(ctx, *exam, conflicts)
}

// Update replaces an exam and its papers. The last write wins.
func (s *ExamService) Update(ctx context.Context, id string, req dto.ExamRequest) (*ExamWriteResult, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	exam, conflicts, err := s.prepare(ctx, id, req, existing)
	if err != nil {
		return nil, err
	}
	if s.opts.rejectConflicts(req.RejectOnConflict) && len(conflicts) > 0 {
		return nil, conflictError("exam", conflicts)
	}
	if err := s.repo.Update(ctx, exam); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Store(err, "failed to update exam")
	}
	return s.writeResult(ctx, *exam, conflicts)
}

// Delete removes an exam with its papers.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return appErrors.Store(err, "failed to delete exam")
	}
	s.cache.Forget(ctx, examViewKind, id)
	return nil
}

// Validate runs the write pipeline without persisting.
func (s *ExamService) Validate(ctx context.Context, id string, req dto.ExamRequest) (*dto.ValidationReport, error) {
	var existing *models.Exam
	if id != "" {
		found, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		existing = found
	} else {
		id = uuid.NewString()
	}
	_, conflicts, err := s.prepare(ctx, id, req, existing)
	if err != nil {
		return dryRunReport(err)
	}
	return &dto.ValidationReport{Valid: true, Errors: []dto.FieldErrorView{}, Conflicts: conflicts}, nil
}

// Conflicts reports double-bookings of a stored exam.
func (s *ExamService) Conflicts(ctx context.Context, id string) ([]models.ConflictWarning, error) {
	exam, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detectConflicts(ctx, *exam)
}

func (s *ExamService) prepare(ctx context.Context, id string, req dto.ExamRequest, existing *models.Exam) (*models.Exam, []models.ConflictWarning, error) {
	exam, fieldErrs := s.validator.ValidateExam(id, req)

	dangling, err := s.resolver.Verify(ctx, examRequestRefs(req), nil)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to verify exam references")
	}
	fieldErrs = append(fieldErrs, dangling...)
	if len(fieldErrs) > 0 {
		s.metrics.RecordValidationFailure("exam", fieldKinds(fieldErrs)...)
		return nil, nil, appErrors.Invalid(fieldErrs, "invalid exam payload")
	}

	for i := range exam.Subjects {
		if exam.Subjects[i].ID == "" {
			exam.Subjects[i].ID = uuid.NewString()
		}
	}
	if existing != nil {
		exam.CreatedAt = existing.CreatedAt
	}

	conflicts, err := s.detectConflicts(ctx, *exam)
	if err != nil {
		return nil, nil, err
	}
	return exam, conflicts, nil
}

// detectConflicts checks papers against each other and, while the exam is live, against
// other live exams of the same class or sharing an invigilating teacher.
func (s *ExamService) detectConflicts(ctx context.Context, exam models.Exam) ([]models.ConflictWarning, error) {
	slots := timetable.ExamSlots(exam)
	if exam.Status == models.ExamStatusScheduled || exam.Status == models.ExamStatusOngoing {
		set := models.NewRefSet()
		for _, entry := range exam.Subjects {
			set.Add(models.RefTeacher, entry.TeacherID)
		}
		teachers := set.IDs(models.RefTeacher)
		if teachers == nil {
			teachers = []string{}
		}
		others, err := s.repo.ListForConflicts(ctx, exam.ID, exam.ClassID, teachers, exam.StartDate, exam.EndDate)
		if err != nil {
			return nil, appErrors.Store(err, "failed to load exams for conflict check")
		}
		for _, other := range others {
			slots = append(slots, timetable.ExamSlots(other)...)
		}
	}
	warnings := timetable.Involving(timetable.DetectConflicts(slots), exam.ID)
	if len(warnings) > 0 {
		s.metrics.RecordConflicts("exam", warnings)
		applog.WithRequest(ctx, s.logger).Warn("exam timetable conflicts", zap.String("exam_id", exam.ID), zap.Int("count", len(warnings)))
	}
	return warnings, nil
}

func (s *ExamService) writeResult(ctx context.Context, exam models.Exam, conflicts []models.ConflictWarning) (*ExamWriteResult, error) {
	view, err := s.resolve(ctx, exam)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, ViewKey(examViewKind, exam.ID), view)
	return &ExamWriteResult{Exam: *view, Conflicts: conflicts}, nil
}

func (s *ExamService) resolve(ctx context.Context, exam models.Exam) (*dto.ExamView, error) {
	resolved, err := s.resolver.Resolve(ctx, examRefs(exam), nil)
	if err != nil {
		return nil, appErrors.Store(err, "failed to resolve exam references")
	}
	view := examView(exam, resolved)
	return &view, nil
}

func (s *ExamService) load(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Store(err, "failed to load exam")
	}
	return exam, nil
}
