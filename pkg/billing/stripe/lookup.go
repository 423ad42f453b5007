package stripe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/psicoplan/billingsync/pkg/billing"
	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Lookup resolves billing customers and prices through the Stripe API.
// It implements billingsync.CustomerResolver and billingsync.PriceResolver,
// so a Pipeline can be wired with it directly (and with fakes in tests).
type Lookup struct {
	client  *stripe.Client
	metrics billing.Metrics
}

// NewLookup creates a Stripe-backed resolver pair.
func NewLookup(apiKey string, metrics billing.Metrics) (*Lookup, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	return &Lookup{
		client:  stripe.NewClient(apiKey),
		metrics: metrics,
	}, nil
}

// CustomerEmail implements billingsync.CustomerResolver.
func (l *Lookup) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	startTime := time.Now()

	cust, err := l.client.V1Customers.Retrieve(ctx, customerID, nil)
	l.metrics.RecordAPICallDuration(providerName, "/customers/{id}", time.Since(startTime))
	if err != nil {
		l.metrics.RecordAPICall(providerName, "/customers/{id}", "error")
		return "", fmt.Errorf("failed to retrieve customer %s: %w", customerID, err)
	}
	l.metrics.RecordAPICall(providerName, "/customers/{id}", "success")

	if cust.Deleted || cust.Email == "" {
		return "", billingsync.ErrNoCustomerEmail
	}
	return cust.Email, nil
}

// PriceUnitAmount implements billingsync.PriceResolver.
func (l *Lookup) PriceUnitAmount(ctx context.Context, priceID string) (int64, error) {
	startTime := time.Now()

	price, err := l.client.V1Prices.Retrieve(ctx, priceID, nil)
	l.metrics.RecordAPICallDuration(providerName, "/prices/{id}", time.Since(startTime))
	if err != nil {
		l.metrics.RecordAPICall(providerName, "/prices/{id}", "error")
		return 0, fmt.Errorf("failed to retrieve price %s: %w", priceID, err)
	}
	l.metrics.RecordAPICall(providerName, "/prices/{id}", "success")

	return price.UnitAmount, nil
}
