package billing

import (
	"context"
	"net/http"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Provider is the generic interface a billing backend must implement.
// This keeps the application able to swap Stripe for another provider with
// zero logic changes.
type Provider interface {
	// Name returns the provider name (e.g. "stripe").
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time
	// events. The implementation handles verification, parsing and
	// pipeline dispatch internally.
	WebhookHandler() http.Handler

	// SyncSubscriber forces a synchronization of one subscriber's
	// projection from the provider's current state, bypassing webhooks.
	// Used for "restore subscription" flows and nightly reconciliation.
	SyncSubscriber(ctx context.Context, email string) (*billingsync.Subscriber, error)
}
