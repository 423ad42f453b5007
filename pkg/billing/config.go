package billing

import (
	"net/http"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Config defines the standard configuration all providers should accept.
// Secrets are passed in explicitly at construction, never read from the
// environment ad hoc, so tests can inject fake credentials.
type Config struct {
	// Pipeline is the billingsync pipeline events are dispatched to.
	Pipeline *billingsync.Pipeline

	// WebhookSecret is the pre-shared signing secret used to verify
	// incoming webhook deliveries.
	WebhookSecret string

	// APIKey is used for outbound API calls to the billing provider
	// (customer and price lookups, checkout sessions).
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 10s timeout will be used.
	// Allows custom timeouts, proxies, or instrumentation.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector for webhook operations.
	// If nil, metrics will be silently ignored (no-op).
	// Use billing/metrics/prometheus.DefaultMetrics(namespace) for
	// Prometheus metrics.
	Metrics Metrics
}
