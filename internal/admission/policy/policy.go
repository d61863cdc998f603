// Package policy decides whether a single request may proceed. The engine
// is deterministic: the same request context and counter state always
// produce the same verdict, and checks run in a fixed order so quota is
// never consumed by a request that ends up denied.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dilldrill/internal/admission/models"
	"dilldrill/internal/admission/ports"
	"dilldrill/internal/platform/config"
	"dilldrill/internal/platform/metrics"
	pkgerrors "dilldrill/pkg/errors"
)

// Engine evaluates admission for search and export calls against per-tier
// daily counters.
type Engine struct {
	store   ports.QuotaStore
	limits  map[models.Tier]config.TierLimits
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source. Tests use it to pin the day bucket.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates the tier table up front so a misconfigured tier is a
// startup failure, not a per-request one.
func NewEngine(store ports.QuotaStore, limits map[models.Tier]config.TierLimits, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "quota store is required")
	}
	for _, tier := range []models.Tier{models.TierFree, models.TierPaid} {
		tl, ok := limits[tier]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("no limits configured for tier %s", tier))
		}
		if tl.DailyLimit <= 0 || tl.ResultCap <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("limits for tier %s must be positive", tier))
		}
	}

	e := &Engine{
		store:  store,
		limits: limits,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs the admission checks for a search call. Exactly one quota
// unit is consumed when and only when the verdict is ALLOW.
func (e *Engine) Evaluate(ctx context.Context, rc models.RequestContext) (*models.PolicyDecision, error) {
	return e.evaluate(ctx, rc, models.KeyPrefixDailyRead, true)
}

// EvaluateExport runs the admission checks for a KMZ re-download. Exports
// use their own counter under the same daily window and never demand
// friction; the challenge was already cleared by the search that produced
// the export.
func (e *Engine) EvaluateExport(ctx context.Context, rc models.RequestContext) (*models.PolicyDecision, error) {
	return e.evaluate(ctx, rc, models.KeyPrefixKMZ, false)
}

func (e *Engine) evaluate(ctx context.Context, rc models.RequestContext, prefix string, friction bool) (*models.PolicyDecision, error) {
	limits, ok := e.limits[rc.Tier]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("no limits configured for tier %s", rc.Tier))
	}

	now := e.now()
	key := models.QuotaKey(prefix, now, rc.AnonID)

	// Trusted override bypasses every check and consumes nothing. The
	// counter is still read so the response reports honest usage.
	if rc.TrustedOverride {
		used, err := e.store.Peek(ctx, key)
		if err != nil {
			e.logger.Warn("quota peek failed during override", "error", err)
			used = 0
		}
		return e.decide(rc, limits, models.PolicyDecision{
			Verdict:         models.VerdictAllow,
			ChecksUsed:      used,
			ChecksRemaining: remaining(limits.DailyLimit, used),
		}), nil
	}

	// Exhaustion is checked before friction so a user who is out of quota
	// is told so immediately instead of being sent through a challenge
	// that cannot help them.
	used, err := e.store.Peek(ctx, key)
	if err != nil {
		return nil, err
	}
	if used >= limits.DailyLimit {
		return e.decide(rc, limits, models.PolicyDecision{
			Verdict:         models.VerdictBlock,
			ChecksUsed:      used,
			ChecksRemaining: 0,
			RetryAfter:      int(models.UntilDayEnd(now).Seconds()),
		}), nil
	}

	if friction && limits.RequiresFriction && !rc.FrictionPassed {
		return e.decide(rc, limits, models.PolicyDecision{
			Verdict:         models.VerdictChallengeRequired,
			ChecksUsed:      used,
			ChecksRemaining: remaining(limits.DailyLimit, used),
			FrictionType:    models.FrictionTurnstile,
		}), nil
	}

	// Atomic increment with a post-check. Under contention several
	// requests can pass the peek with one unit left; the counter itself
	// arbitrates and the losers are denied. The increment is deliberately
	// not rolled back, so the displaced unit stays consumed.
	count, err := e.store.Increment(ctx, key, models.UntilDayEnd(now))
	if err != nil {
		return nil, err
	}
	if count > limits.DailyLimit {
		return e.decide(rc, limits, models.PolicyDecision{
			Verdict:         models.VerdictBlock,
			ChecksUsed:      count,
			ChecksRemaining: 0,
			RetryAfter:      int(models.UntilDayEnd(now).Seconds()),
		}), nil
	}

	return e.decide(rc, limits, models.PolicyDecision{
		Verdict:         models.VerdictAllow,
		ChecksUsed:      count,
		ChecksRemaining: remaining(limits.DailyLimit, count),
	}), nil
}

func (e *Engine) decide(rc models.RequestContext, limits config.TierLimits, d models.PolicyDecision) *models.PolicyDecision {
	d.Tier = rc.Tier
	d.ResultCap = limits.ResultCap
	if e.metrics != nil {
		e.metrics.RecordDecision(string(d.Verdict), string(d.Tier))
	}
	e.logger.Debug("admission evaluated",
		"verdict", d.Verdict,
		"tier", d.Tier,
		"checks_used", d.ChecksUsed,
		"area_code", rc.AreaCode,
	)
	return &d
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
