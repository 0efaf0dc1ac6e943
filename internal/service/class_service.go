package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	applog "github.com/noah-isme/sma-timetable-api/pkg/logger"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error)
	ListForConflicts(ctx context.Context, excludeID string, teacherIDs []string, classroom string, start, end time.Time) ([]models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

// ClassWriteResult is the outcome of a successful class write.
type ClassWriteResult struct {
	Class     dto.ClassView            `json:"class"`
	Conflicts []models.ConflictWarning `json:"conflicts"`
}

// ClassService runs the class pipeline: validate, verify references, detect
// double-bookings, persist, then re-hydrate references for the response.
type ClassService struct {
	repo      classRepository
	resolver  *ReferenceResolver
	validator *timetable.Validator
	cache     *CacheService
	metrics   *MetricsService
	auditor   referenceAuditor
	opts      ScheduleOptions
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, resolver *ReferenceResolver, validator *timetable.Validator, cache *CacheService, metrics *MetricsService, auditor referenceAuditor, opts ScheduleOptions, logger *zap.Logger) *ClassService {
	if validator == nil {
		validator = timetable.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		repo:      repo,
		resolver:  resolver,
		validator: validator,
		cache:     cache,
		metrics:   metrics,
		auditor:   auditor,
		opts:      opts,
		logger:    logger,
	}
}

// List returns a page of resolved classes.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) (models.Page[dto.ClassView], error) {
	filter.ListQuery = s.opts.normalize(filter.ListQuery)
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return models.Page[dto.ClassView]{}, appErrors.Store(err, "failed to list classes")
	}

	var refs []Ref
	for _, class := range classes {
		refs = append(refs, classRefs(class)...)
	}
	resolved, err := s.resolver.Resolve(ctx, refs, nil)
	if err != nil {
		return models.Page[dto.ClassView]{}, appErrors.Store(err, "failed to resolve class references")
	}

	views := make([]dto.ClassView, 0, len(classes))
	for _, class := range classes {
		views = append(views, classView(class, resolved))
	}
	return models.NewPage(views, filter.ListQuery, total), nil
}

// Get returns the resolved class view and whether it was served from cache.
func (s *ClassService) Get(ctx context.Context, id string) (*dto.ClassView, bool, error) {
	var cached dto.ClassView
	if s.cache.Get(ctx, ViewKey(models.RefClass, id), &cached) {
		return &cached, true, nil
	}

	class, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	view, err := s.resolve(ctx, *class)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, ViewKey(models.RefClass, id), view)
	return view, false, nil
}

// Create validates and stores a new class.
func (s *ClassService) Create(ctx context.Context, req dto.ClassRequest) (*ClassWriteResult, error) {
	class, conflicts, err := s.prepare(ctx, uuid.NewString(), req, nil)
	if err != nil {
		return nil, err
	}
	if s.opts.rejectConflicts(req.RejectOnConflict) && len(conflicts) > 0 {
		return nil, conflictError("class", conflicts)
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Store(err, "failed to create class")
	}
	return s.writeResult(ctx, *class, conflicts)
}

// Update replaces a class and its weekly schedule. The last write wins.
func (s *ClassService) Update(ctx context.Context, id string, req dto.ClassRequest) (*ClassWriteResult, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	class, conflicts, err := s.prepare(ctx, id, req, existing)
	if err != nil {
		return nil, err
	}
	if s.opts.rejectConflicts(req.RejectOnConflict) && len(conflicts) > 0 {
		return nil, conflictError("class", conflicts)
	}

	if err := s.repo.Update(ctx, class); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Store(err, "failed to update class")
	}
	// the class name is embedded in other views
	s.cache.InvalidateViews(ctx)
	return s.writeResult(ctx, *class, conflicts)
}

// Delete removes a class and its weekly schedule. Exams and other classes that
// reference it are left in place and audited.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Store(err, "failed to delete class")
	}
	s.cache.InvalidateViews(ctx)
	if s.auditor != nil {
		s.auditor.Enqueue(models.RefClass, id)
	}
	return nil
}

// Validate runs the write pipeline without persisting. id may name a stored class to
// dry-run an update against.
func (s *ClassService) Validate(ctx context.Context, id string, req dto.ClassRequest) (*dto.ValidationReport, error) {
	var existing *models.Class
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

// Conflicts reports double-bookings of a stored class.
func (s *ClassService) Conflicts(ctx context.Context, id string) ([]models.ConflictWarning, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detectConflicts(ctx, *class)
}

// TeacherTimetable lists every weekly slot taught by teacherID across classes, ordered by
// day and start time. Works for deleted teachers too.
func (s *ClassService) TeacherTimetable(ctx context.Context, teacherID string) ([]dto.TeacherTimetableEntry, error) {
	classes, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load teacher timetable")
	}

	var refs []Ref
	for _, class := range classes {
		refs = append(refs, classRefs(class)...)
	}
	known := Summaries{}
	for _, class := range classes {
		known.Put(models.RefClass, class.Summary())
	}
	resolved, err := s.resolver.Resolve(ctx, refs, known)
	if err != nil {
		return nil, appErrors.Store(err, "failed to resolve teacher timetable")
	}

	entries := make([]dto.TeacherTimetableEntry, 0)
	for _, class := range classes {
		for _, entry := range class.WeeklySchedule {
			if entry.TeacherID != teacherID {
				continue
			}
			entries = append(entries, dto.TeacherTimetableEntry{
				Class:             class.Summary(),
				Classroom:         class.Classroom,
				ScheduleEntryView: entryView(entry, resolved),
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Day.Index() != b.Day.Index() {
			return a.Day.Index() < b.Day.Index()
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.Class.Name < b.Class.Name
	})
	return entries, nil
}

// prepare validates req, verifies its references and detects conflicts. Validation and
// reference failures are returned together.
func (s *ClassService) prepare(ctx context.Context, id string, req dto.ClassRequest, existing *models.Class) (*models.Class, []models.ConflictWarning, error) {
	class, fieldErrs := s.validator.ValidateClass(id, req)

	known := Summaries{}
	known.Put(models.RefClass, models.RefSummary{ID: id, Name: trimmed(req.Name)})
	dangling, err := s.resolver.Verify(ctx, classRequestRefs(id, req), known)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to verify class references")
	}
	fieldErrs = append(fieldErrs, dangling...)
	if len(fieldErrs) > 0 {
		s.metrics.RecordValidationFailure("class", fieldKinds(fieldErrs)...)
		return nil, nil, appErrors.Invalid(fieldErrs, "invalid class payload")
	}

	for i := range class.WeeklySchedule {
		if class.WeeklySchedule[i].ID == "" {
			class.WeeklySchedule[i].ID = uuid.NewString()
		}
	}
	if existing != nil {
		class.CreatedAt = existing.CreatedAt
	}

	conflicts, err := s.detectConflicts(ctx, *class)
	if err != nil {
		return nil, nil, err
	}
	return class, conflicts, nil
}

// detectConflicts checks the class against itself and, while it is active, against
// other active classes sharing a teacher or the classroom in an overlapping term.
func (s *ClassService) detectConflicts(ctx context.Context, class models.Class) ([]models.ConflictWarning, error) {
	slots := timetable.ClassSlots(class)
	if class.Status == models.ClassStatusActive {
		others, err := s.repo.ListForConflicts(ctx, class.ID, entryTeachers(class), class.Classroom, class.StartDate, class.EndDate)
		if err != nil {
			return nil, appErrors.Store(err, "failed to load schedules for conflict check")
		}
		for _, other := range others {
			slots = append(slots, timetable.ClassSlots(other)...)
		}
	}
	warnings := timetable.Involving(timetable.DetectConflicts(slots), class.ID)
	if len(warnings) > 0 {
		s.metrics.RecordConflicts("class", warnings)
		applog.WithRequest(ctx, s.logger).Warn("class schedule conflicts", zap.String("class_id", class.ID), zap.Int("count", len(warnings)))
	}
	return warnings, nil
}

func (s *ClassService) writeResult(ctx context.Context, class models.Class, conflicts []models.ConflictWarning) (*ClassWriteResult, error) {
	view, err := s.resolve(ctx, class)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, ViewKey(models.RefClass, class.ID), view)
	return &ClassWriteResult{Class: *view, Conflicts: conflicts}, nil
}

func (s *ClassService) resolve(ctx context.Context, class models.Class) (*dto.ClassView, error) {
	known := Summaries{}
	known.Put(models.RefClass, class.Summary())
	resolved, err := s.resolver.Resolve(ctx, classRefs(class), known)
	if err != nil {
		return nil, appErrors.Store(err, "failed to resolve class references")
	}
	view := classView(class, resolved)
	return &view, nil
}

func (s *ClassService) load(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Store(err, "failed to load class")
	}
	return class, nil
}

func entryTeachers(class models.Class) []string {
	set := models.NewRefSet()
	for _, entry := range class.WeeklySchedule {
		set.Add(models.RefTeacher, entry.TeacherID)
	}
	ids := set.IDs(models.RefTeacher)
	if ids == nil {
		return []string{}
	}
	return ids
}

// dryRunReport turns a pipeline rejection into a report. Store failures still surface as errors.
func dryRunReport(err error) (*dto.ValidationReport, error) {
	appErr := appErrors.FromError(err)
	if appErr.Code != appErrors.ErrValidation.Code && appErr.Code != appErrors.ErrDanglingReference.Code {
		return nil, err
	}
	report := &dto.ValidationReport{Valid: false, Errors: make([]dto.FieldErrorView, 0, len(appErr.Details)), Conflicts: []models.ConflictWarning{}}
	for _, fe := range appErr.Details {
		report.Errors = append(report.Errors, dto.FieldErrorView{Field: fe.Field, Kind: string(fe.Kind), Message: fe.Message, ID: fe.ID})
	}
	return report, nil
}
