package stripe

import (
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/psicoplan/billingsync/pkg/billing"
	"github.com/psicoplan/billingsync/pkg/billing/internal"
	"github.com/psicoplan/billingsync/pkg/billingsync"
)

const (
	providerName             = "stripe"
	defaultHTTPTimeout       = 10 * time.Second
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBodyBytes      = 256 * 1024
)

// Config extends billing.Config with Stripe-specific options
type Config struct {
	billing.Config // Base config (Pipeline, WebhookSecret, APIKey, etc.)

	// Subscribers is the projection store. SyncSubscriber writes through
	// it, and checkout/portal sessions use it to reuse the stored
	// customer id instead of creating duplicate Stripe customers.
	Subscribers billingsync.SubscriberStore

	// TierPrices maps plan tiers to the Stripe price ids used when
	// creating checkout sessions.
	TierPrices map[billingsync.Tier]string
}

// Provider implements the billing.Provider interface for Stripe
type Provider struct {
	pipeline      *billingsync.Pipeline
	subscribers   billingsync.SubscriberStore
	tierPrices    map[billingsync.Tier]string
	httpClient    *http.Client
	rateLimiter   *internal.RateLimiter
	webhookSecret []byte
	apiKey        string
	stripeClient  *stripe.Client
	metrics       billing.Metrics
}

// NewProvider creates a new Stripe billing provider
func NewProvider(config Config) (*Provider, error) {
	if config.Pipeline == nil {
		return nil, billing.ErrProviderNotConfigured
	}
	if config.Subscribers == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Provider{
		pipeline:      config.Pipeline,
		subscribers:   config.Subscribers,
		tierPrices:    config.TierPrices,
		httpClient:    httpClient,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		webhookSecret: []byte(strings.TrimSpace(config.WebhookSecret)),
		apiKey:        apiKey,
		stripeClient:  stripe.NewClient(apiKey),
		metrics:       metrics,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	// Wrap with rate limiting
	return p.rateLimiter.Middleware(handler)
}
