// Package admission is the single entry point callers use to run a gated
// lookup. The service sequences admission before search so quota, friction,
// and result capping cannot be reordered or skipped by individual handlers.
package admission

import (
	"context"
	"log/slog"
	"time"

	"dilldrill/internal/admission/models"
	"dilldrill/internal/admission/policy"
	"dilldrill/internal/admission/ports"
	"dilldrill/internal/catalog"
	"dilldrill/internal/geo"
	"dilldrill/internal/platform/metrics"
	"dilldrill/internal/spatial"
	pkgerrors "dilldrill/pkg/errors"
	"dilldrill/pkg/platform/audit"
)

// Service gates spatial lookups behind the policy engine.
type Service struct {
	engine   *policy.Engine
	index    *spatial.Index
	selector *spatial.Selector
	radiusM  float64

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor ports.AuditPublisher
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(pub ports.AuditPublisher) Option {
	return func(s *Service) { s.auditor = pub }
}

func NewService(engine *policy.Engine, index *spatial.Index, selector *spatial.Selector, radiusM float64, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "policy engine is required")
	}
	if index == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "spatial index is required")
	}
	if selector == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "selector is required")
	}
	if radiusM <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "search radius must be positive")
	}

	s := &Service{
		engine:   engine,
		index:    index,
		selector: selector,
		radiusM:  radiusM,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search evaluates admission and, only on ALLOW, runs the radius query and
// diversity selection. A non-ALLOW verdict returns the decision with nil
// results and a nil error; callers translate the verdict, not an error.
func (s *Service) Search(ctx context.Context, rc models.RequestContext, center geo.Point) (*models.PolicyDecision, []spatial.Candidate, error) {
	decision, err := s.engine.Evaluate(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	s.auditDecision(ctx, rc, decision)

	if !decision.Allowed() {
		return decision, nil, nil
	}

	start := time.Now()
	candidates := s.index.Within(center, s.radiusM)
	selected := s.selector.Select(candidates, decision.ResultCap)
	if s.metrics != nil {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		s.metrics.SelectedResults.Observe(float64(len(selected)))
	}

	s.logger.Info("search served",
		"anon_id", rc.AnonID,
		"tier", rc.Tier,
		"area_code", rc.AreaCode,
		"candidates", len(candidates),
		"selected", len(selected),
	)
	return decision, selected, nil
}

// AuthorizeExport evaluates the export counter for a KMZ re-download. The
// caller generates the archive only when the returned decision is ALLOW.
func (s *Service) AuthorizeExport(ctx context.Context, rc models.RequestContext) (*models.PolicyDecision, error) {
	decision, err := s.engine.EvaluateExport(ctx, rc)
	if err != nil {
		return nil, err
	}
	s.auditDecision(ctx, rc, decision)

	if decision.Allowed() {
		if s.metrics != nil {
			s.metrics.RecordKMZExport()
		}
		ports.LogAudit(ctx, s.logger, s.auditor, audit.Event{
			Category:  audit.CategoryOperations,
			Timestamp: s.now().UTC(),
			Action:    audit.ActionKMZExported,
			AnonID:    rc.AnonID,
			Tier:      rc.Tier.String(),
		})
	}
	return decision, nil
}

// Distances recomputes candidate distances for a previously selected set of
// POIs, used when an export request replays a past search result.
func (s *Service) Distances(center geo.Point, pois []catalog.POI) []spatial.Candidate {
	out := make([]spatial.Candidate, 0, len(pois))
	for _, p := range pois {
		out = append(out, spatial.Candidate{
			POI:       p,
			DistanceM: geo.HaversineMeters(center, p.Location()),
		})
	}
	return out
}

func (s *Service) auditDecision(ctx context.Context, rc models.RequestContext, d *models.PolicyDecision) {
	action := audit.ActionAdmissionDecision
	category := audit.CategoryOperations
	switch {
	case rc.TrustedOverride:
		action = audit.ActionOverrideUsed
		category = audit.CategorySecurity
	case d.Verdict == models.VerdictBlock:
		action = audit.ActionQuotaExhausted
	}

	// Location detail is restricted to the coarse area code.
	ports.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Category:  category,
		Timestamp: s.now().UTC(),
		Action:    action,
		AnonID:    rc.AnonID,
		Tier:      rc.Tier.String(),
		Verdict:   string(d.Verdict),
		AreaCode:  rc.AreaCode,
	})
}
