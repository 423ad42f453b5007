package billingsync

// Metrics defines the interface for tracking pipeline operations.
// All methods are optional - the pipeline handles nil metrics by falling
// back to NoopMetrics.
type Metrics interface {
	// RecordProjection records one subscriber projection upsert.
	// tier: the derived tier ("plus", "pro", or "none")
	// active: whether the projected state is subscribed
	RecordProjection(tier string, active bool)

	// RecordNotification records a notification insert attempt.
	// kind: the notification type ("success", "warning", "error")
	// status: "created", "skipped" (no platform user) or "failed"
	RecordNotification(kind, status string)

	// RecordAuditEntry records an audit log append by level.
	RecordAuditEntry(level string)

	// RecordResolutionMiss records a lookup that legitimately found
	// nothing. kind: "customer_email" or "user_id".
	RecordResolutionMiss(kind string)

	// RecordUnhandledEvent records an acknowledged-but-unhandled
	// provider event type.
	RecordUnhandledEvent(providerType string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordProjection(_ string, _ bool) {}
func (n *NoopMetrics) RecordNotification(_, _ string)    {}
func (n *NoopMetrics) RecordAuditEntry(_ string)         {}
func (n *NoopMetrics) RecordResolutionMiss(_ string)     {}
func (n *NoopMetrics) RecordUnhandledEvent(_ string)     {}
