package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// JobReferenceAudit is the queue job type for post-delete audits.
const JobReferenceAudit = "reference.audit"

type referenceCounter interface {
	CountReferencing(ctx context.Context, kind models.RefKind, id string) (int, error)
	ReferencedIDs(ctx context.Context, kind models.RefKind) ([]string, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// AuditReport lists ids that schedules still reference but the store no longer has.
type AuditReport struct {
	Dangling  map[models.RefKind][]string `json:"dangling"`
	CheckedAt time.Time                   `json:"checked_at"`
}

// Counts returns the number of dangling ids per kind.
func (r AuditReport) Counts() map[models.RefKind]int {
	counts := make(map[models.RefKind]int, len(r.Dangling))
	for kind, ids := range r.Dangling {
		counts[kind] = len(ids)
	}
	return counts
}

type auditPayload struct {
	Kind models.RefKind
	ID   string
}

// ReferenceAuditService finds schedules left pointing at deleted teachers, subjects and
// classes. It reports only; stored schedules are never rewritten.
type ReferenceAuditService struct {
	classes referenceCounter
	exams   referenceCounter
	lookup  referenceLookup
	queue   jobQueue
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewReferenceAuditService constructs the audit service. queue may be nil, in which case
// post-delete audits are skipped and only full audits run.
func NewReferenceAuditService(classes, exams referenceCounter, lookup referenceLookup, queue jobQueue, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ReferenceAuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceAuditService{classes: classes, exams: exams, lookup: lookup, queue: queue, cache: cache, metrics: metrics, logger: logger}
}

// Enqueue schedules a post-delete audit for id. Failures are logged, never returned,
// so a full queue cannot fail the delete that triggered it.
func (s *ReferenceAuditService) Enqueue(kind models.RefKind, id string) {
	if s == nil || s.queue == nil {
		return
	}
	job := jobs.Job{
		ID:      fmt.Sprintf("%s:%s", kind, id),
		Type:    JobReferenceAudit,
		Payload: auditPayload{Kind: kind, ID: id},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("reference audit not queued", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
	}
}

// Handle processes a queued post-delete audit.
func (s *ReferenceAuditService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(auditPayload)
	if !ok {
		return fmt.Errorf("reference audit: unexpected payload %T", job.Payload)
	}
	_, err := s.CheckDeleted(ctx, payload.Kind, payload.ID)
	s.metrics.RecordAudit("delete", err)
	return err
}

// CheckDeleted counts classes and exams that still reference a deleted id.
func (s *ReferenceAuditService) CheckDeleted(ctx context.Context, kind models.RefKind, id string) (models.ReferenceCount, error) {
	count := models.ReferenceCount{Kind: kind, ID: id}
	var err error
	if count.Classes, err = s.classes.CountReferencing(ctx, kind, id); err != nil {
		return count, err
	}
	if count.Exams, err = s.exams.CountReferencing(ctx, kind, id); err != nil {
		return count, err
	}
	if count.Total() > 0 {
		s.logger.Warn("schedules reference deleted entity",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.Int("classes", count.Classes),
			zap.Int("exams", count.Exams))
		s.cache.InvalidateViews(ctx)
	}
	return count, nil
}

// RunFull scans every referenced id and reports those that no longer resolve.
func (s *ReferenceAuditService) RunFull(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{Dangling: make(map[models.RefKind][]string), CheckedAt: time.Now().UTC()}
	for _, kind := range []models.RefKind{models.RefTeacher, models.RefSubject, models.RefClass} {
		missing, err := s.danglingIDs(ctx, kind)
		if err != nil {
			s.metrics.RecordAudit("full", err)
			return nil, err
		}
		report.Dangling[kind] = missing
	}
	s.metrics.SetDanglingReferences(report.Counts())
	s.metrics.RecordAudit("full", nil)

	for kind, ids := range report.Dangling {
		if len(ids) > 0 {
			s.logger.Warn("dangling references found", zap.String("kind", string(kind)), zap.Strings("ids", ids))
		}
	}
	return report, nil
}

// RunScheduled is the cron entrypoint. Errors are logged.
func (s *ReferenceAuditService) RunScheduled(ctx context.Context) {
	if _, err := s.RunFull(ctx); err != nil {
		s.logger.Error("reference audit failed", zap.Error(err))
	}
}

func (s *ReferenceAuditService) danglingIDs(ctx context.Context, kind models.RefKind) ([]string, error) {
	set := models.NewRefSet()
	for _, source := range []referenceCounter{s.classes, s.exams} {
		ids, err := source.ReferencedIDs(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set.Add(kind, id)
		}
	}
	ids := set.IDs(kind)
	if len(ids) == 0 {
		return []string{}, nil
	}

	found, err := s.lookup.FindSummaries(ctx, kind, ids)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(found))
	for _, summary := range found {
		present[summary.ID] = struct{}{}
	}
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing, nil
}
