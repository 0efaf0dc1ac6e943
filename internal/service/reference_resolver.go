package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type referenceLookup interface {
	FindSummaries(ctx context.Context, kind models.RefKind, ids []string) ([]models.RefSummary, error)
}

// Ref is one occurrence of a referenced id and the payload field it came from.
type Ref struct {
	Kind  models.RefKind
	Field string
	ID    string
}

// Summaries indexes resolved references by kind and id.
type Summaries map[models.RefKind]map[string]models.RefSummary

// Put records a known summary.
func (s Summaries) Put(kind models.RefKind, summary models.RefSummary) {
	if s[kind] == nil {
		s[kind] = make(map[string]models.RefSummary)
	}
	s[kind][summary.ID] = summary
}

// Has reports whether id resolved.
func (s Summaries) Has(kind models.RefKind, id string) bool {
	_, ok := s[kind][id]
	return ok
}

// Get returns the summary for id or the Unknown placeholder.
func (s Summaries) Get(kind models.RefKind, id string) models.RefSummary {
	if summary, ok := s[kind][id]; ok {
		return summary
	}
	return models.UnknownRef(id)
}

// GetAll maps ids to summaries, preserving order.
func (s Summaries) GetAll(kind models.RefKind, ids []string) []models.RefSummary {
	out := make([]models.RefSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Get(kind, id))
	}
	return out
}

// ReferenceResolver checks that schedule references exist on write and expands them
// into summaries on read. Reads never fail because of a missing reference.
type ReferenceResolver struct {
	repo    referenceLookup
	metrics *MetricsService
	logger  *zap.Logger
}

// NewReferenceResolver constructs a ReferenceResolver.
func NewReferenceResolver(repo referenceLookup, metrics *MetricsService, logger *zap.Logger) *ReferenceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceResolver{repo: repo, metrics: metrics, logger: logger}
}

// Load fetches summaries for every id in set with one lookup per kind. known entries are
// kept as-is and not looked up again.
func (r *ReferenceResolver) Load(ctx context.Context, set *models.RefSet, known Summaries) (Summaries, error) {
	out := Summaries{}
	for kind, byID := range known {
		for _, summary := range byID {
			out.Put(kind, summary)
		}
	}
	for _, kind := range []models.RefKind{models.RefTeacher, models.RefSubject, models.RefClass} {
		var pending []string
		for _, id := range set.IDs(kind) {
			if !out.Has(kind, id) {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			continue
		}
		found, err := r.repo.FindSummaries(ctx, kind, pending)
		if err != nil {
			return nil, fmt.Errorf("resolve %s references: %w", kind, err)
		}
		for _, summary := range found {
			out.Put(kind, summary)
		}
	}
	return out, nil
}

// Verify reports a DANGLING_REFERENCE failure for every ref that does not exist.
// All offending refs are reported, in the order given.
func (r *ReferenceResolver) Verify(ctx context.Context, refs []Ref, known Summaries) (appErrors.FieldErrors, error) {
	set := models.NewRefSet()
	for _, ref := range refs {
		set.Add(ref.Kind, ref.ID)
	}
	resolved, err := r.Load(ctx, set, known)
	if err != nil {
		return nil, err
	}
	var errs appErrors.FieldErrors
	for _, ref := range refs {
		if ref.ID == "" || resolved.Has(ref.Kind, ref.ID) {
			continue
		}
		errs = append(errs, appErrors.DanglingReference(ref.Field, ref.ID))
		r.metrics.RecordRejectedReference(ref.Kind)
	}
	return errs, nil
}

// Resolve loads summaries for refs. Missing ids resolve to the Unknown placeholder
// through Summaries.Get.
func (r *ReferenceResolver) Resolve(ctx context.Context, refs []Ref, known Summaries) (Summaries, error) {
	set := models.NewRefSet()
	for _, ref := range refs {
		set.Add(ref.Kind, ref.ID)
	}
	resolved, err := r.Load(ctx, set, known)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if ref.ID != "" && !resolved.Has(ref.Kind, ref.ID) {
			r.logger.Debug("dangling reference on read", zap.String("kind", string(ref.Kind)), zap.String("id", ref.ID), zap.String("field", ref.Field))
		}
	}
	return resolved, nil
}
