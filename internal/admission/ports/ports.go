// Package ports defines the interfaces the admission service depends on.
package ports

import (
	"context"
	"log/slog"
	"time"

	"dilldrill/pkg/platform/audit"
)

// QuotaStore tracks per-identifier usage counters with a bounded lifetime.
// Implementations must make Increment atomic per key: two concurrent calls
// for the same key observe distinct counter values.
type QuotaStore interface {
	// Peek returns the current count for key without modifying it.
	// A key that does not exist or has expired reads as zero.
	Peek(ctx context.Context, key string) (int, error)

	// Increment adds one to the counter for key and returns the new value.
	// The ttl applies only when the key is created by this call; later
	// increments never extend the window.
	Increment(ctx context.Context, key string, ttl time.Duration) (int, error)
}

// AuditPublisher re-exports audit.Publisher so admission packages depend on
// ports alone.
type AuditPublisher = audit.Publisher

// LogAudit emits an audit event and logs a warning when publishing fails.
// Admission decisions never fail because the audit pipeline is down.
func LogAudit(ctx context.Context, logger *slog.Logger, pub AuditPublisher, event audit.Event) {
	if pub == nil {
		return
	}
	if err := pub.Emit(ctx, event); err != nil && logger != nil {
		logger.Warn("audit event dropped",
			"action", event.Action,
			"error", err,
		)
	}
}
