package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/psicoplan/billingsync/pkg/billing"
	"github.com/psicoplan/billingsync/pkg/billingsync"
)

const subscriptionStatusActive = "active"

// SyncSubscriber recomputes one subscriber's projection from Stripe's
// current state, bypassing webhooks. Used for "restore subscription" flows
// and as a reconciliation escape hatch when a delivery was lost for longer
// than the provider's redelivery horizon.
func (p *Provider) SyncSubscriber(ctx context.Context, email string) (*billingsync.Subscriber, error) {
	startTime := time.Now()

	customerID, err := p.searchCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, billing.ErrCustomerNotFound) {
			// Unknown to Stripe: project the unsubscribed state.
			return p.syncUnsubscribed(ctx, email, startTime)
		}
		p.metrics.RecordSubscriberSync(providerName, "error")
		return nil, err
	}

	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String(subscriptionStatusActive)

	var active *stripe.Subscription
	for sub, err := range p.stripeClient.V1Subscriptions.List(ctx, params) {
		if err != nil {
			p.metrics.RecordAPICall(providerName, "/subscriptions/list", "error")
			p.metrics.RecordSubscriberSync(providerName, "error")
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		if sub.Status == subscriptionStatusActive {
			active = sub
			break
		}
	}
	p.metrics.RecordAPICall(providerName, "/subscriptions/list", "success")

	tier := billingsync.TierNone
	if active != nil && active.Items != nil && len(active.Items.Data) > 0 {
		price := active.Items.Data[0].Price
		if price != nil {
			amount := price.UnitAmount
			tier = billingsync.TierForAmount(amount)
		}
	}

	// The billing-period end is not part of the list response on current
	// API versions; it arrives with the next webhook delivery.
	subscriber := &billingsync.Subscriber{
		Email:            email,
		StripeCustomerID: customerID,
		Subscribed:       active != nil,
		Tier:             tier,
		UpdatedAt:        time.Now().UTC(),
	}

	if err := p.subscribers.UpsertSubscriber(ctx, subscriber); err != nil {
		p.metrics.RecordSubscriberSync(providerName, "error")
		p.metrics.RecordSubscriberSyncDuration(providerName, time.Since(startTime))
		return nil, fmt.Errorf("failed to upsert subscriber %s: %w", email, err)
	}

	p.metrics.RecordSubscriberSync(providerName, "success")
	p.metrics.RecordSubscriberSyncDuration(providerName, time.Since(startTime))
	return subscriber, nil
}

// syncUnsubscribed projects the not-subscribed state for an email Stripe has
// never seen.
func (p *Provider) syncUnsubscribed(ctx context.Context, email string, startTime time.Time) (*billingsync.Subscriber, error) {
	subscriber := &billingsync.Subscriber{
		Email:     email,
		UpdatedAt: time.Now().UTC(),
	}

	if err := p.subscribers.UpsertSubscriber(ctx, subscriber); err != nil {
		p.metrics.RecordSubscriberSync(providerName, "error")
		p.metrics.RecordSubscriberSyncDuration(providerName, time.Since(startTime))
		return nil, fmt.Errorf("failed to upsert subscriber %s: %w", email, err)
	}

	p.metrics.RecordSubscriberSync(providerName, "success")
	p.metrics.RecordSubscriberSyncDuration(providerName, time.Since(startTime))
	return subscriber, nil
}
