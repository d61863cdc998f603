package quota

import (
	"context"
	"log/slog"
	"time"

	"dilldrill/internal/admission/ports"
	"dilldrill/internal/platform/metrics"
	"dilldrill/pkg/circuit"
	pkgerrors "dilldrill/pkg/errors"
	"dilldrill/pkg/platform/audit"
)

// Primary is a quota backend that can also report its own health.
type Primary interface {
	ports.QuotaStore
	Ping(ctx context.Context) error
}

// FailoverStore serves quota operations from a primary backend and degrades
// to an in-process fallback when the primary misbehaves. Degradation is
// silent from the caller's perspective: every operation that fails against
// the primary is retried on the fallback within the same call.
//
// While degraded, counters are per-replica and reset relative to the
// primary's view. That weakening is accepted; the alternative is refusing
// service whenever the primary is down.
type FailoverStore struct {
	primary  Primary
	fallback *MemoryStore
	breaker  *circuit.Breaker

	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor ports.AuditPublisher
}

type FailoverOption func(*FailoverStore)

func WithLogger(logger *slog.Logger) FailoverOption {
	return func(s *FailoverStore) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) FailoverOption {
	return func(s *FailoverStore) { s.metrics = m }
}

func WithAudit(pub ports.AuditPublisher) FailoverOption {
	return func(s *FailoverStore) { s.auditor = pub }
}

// WithPrimaryTimeout bounds each call to the primary backend. A primary
// that hangs counts as a failure.
func WithPrimaryTimeout(d time.Duration) FailoverOption {
	return func(s *FailoverStore) { s.timeout = d }
}

func WithBreaker(b *circuit.Breaker) FailoverOption {
	return func(s *FailoverStore) { s.breaker = b }
}

// NewFailoverStore wires a primary and fallback backend together. A nil
// primary yields a store that is permanently degraded, which is how the
// service runs when no Redis address is configured.
func NewFailoverStore(primary Primary, fallback *MemoryStore, opts ...FailoverOption) (*FailoverStore, error) {
	if fallback == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "fallback store is required")
	}
	s := &FailoverStore{
		primary:  primary,
		fallback: fallback,
		timeout:  2 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("quota-primary")
	}
	if primary == nil {
		s.logger.Warn("no primary quota backend configured, counters are per-replica")
		if s.metrics != nil {
			s.metrics.SetQuotaDegraded(true)
		}
	}
	return s, nil
}

// Degraded reports whether calls are currently served by the fallback.
func (s *FailoverStore) Degraded() bool {
	return s.primary == nil || s.breaker.IsOpen()
}

func (s *FailoverStore) Peek(ctx context.Context, key string) (int, error) {
	if s.Degraded() {
		return s.fallback.Peek(ctx, key)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	count, err := s.primary.Peek(pctx, key)
	cancel()
	if err != nil {
		s.recordFailure(ctx, err)
		return s.fallback.Peek(ctx, key)
	}
	s.recordSuccess(ctx)
	return count, nil
}

func (s *FailoverStore) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	if s.Degraded() {
		return s.fallback.Increment(ctx, key, ttl)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	count, err := s.primary.Increment(pctx, key, ttl)
	cancel()
	if err != nil {
		s.recordFailure(ctx, err)
		return s.fallback.Increment(ctx, key, ttl)
	}
	s.recordSuccess(ctx)
	return count, nil
}

// RunRecoveryProbe periodically pings the primary while the breaker is
// open, closing it after enough consecutive healthy probes. Blocks until
// ctx is cancelled; run it in its own goroutine.
func (s *FailoverStore) RunRecoveryProbe(ctx context.Context, interval time.Duration) error {
	if s.primary == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.breaker.IsOpen() {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			err := s.primary.Ping(pctx)
			cancel()
			if err != nil {
				s.logger.Debug("quota primary probe failed", "error", err)
				s.breaker.RecordFailure()
				continue
			}
			s.recordSuccess(ctx)
		}
	}
}

func (s *FailoverStore) recordFailure(ctx context.Context, err error) {
	if s.metrics != nil {
		s.metrics.RecordFailover()
	}
	_, change := s.breaker.RecordFailure()
	if !change.Opened {
		return
	}
	s.logger.Error("quota primary unhealthy, degrading to in-process counters", "error", err)
	if s.metrics != nil {
		s.metrics.SetQuotaDegraded(true)
	}
	ports.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: time.Now().UTC(),
		Action:    audit.ActionQuotaDegraded,
	})
}

func (s *FailoverStore) recordSuccess(ctx context.Context) {
	_, change := s.breaker.RecordSuccess()
	if !change.Closed {
		return
	}
	// Discard fallback counters accumulated while degraded so the next
	// degradation starts a fresh window.
	s.fallback.Reset()
	s.logger.Info("quota primary recovered, resuming shared counters")
	if s.metrics != nil {
		s.metrics.SetQuotaDegraded(false)
	}
	ports.LogAudit(ctx, s.logger, s.auditor, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: time.Now().UTC(),
		Action:    audit.ActionQuotaRecovered,
	})
}
