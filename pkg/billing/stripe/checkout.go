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

// CheckoutURL creates a Stripe Checkout Session for a plan tier and returns
// the URL. The tier is resolved to a Stripe Price ID using the configured
// TierPrices mapping.
func (p *Provider) CheckoutURL(ctx context.Context, email string, tier billingsync.Tier, successURL, cancelURL string) (string, error) {
	startTime := time.Now()

	priceID := p.tierPrices[tier]
	if priceID == "" {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "tier_not_found")
		return "", fmt.Errorf("%w: %s", billing.ErrTierNotConfigured, tier)
	}

	// Reuse the projected customer id when one exists, so repeat checkouts
	// do not create duplicate customers in Stripe. A real store error
	// fails the call for the same reason.
	customerID, err := p.projectedCustomerID(ctx, email)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "customer_resolution_failed")
		return "", fmt.Errorf("failed to resolve customer: %w", err)
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}

	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		// Stripe creates the customer during checkout; the email ties the
		// new customer back to the projection the webhook will write.
		params.CustomerEmail = stripe.String(email)
	}

	session, err := p.stripeClient.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "error")
		p.metrics.RecordAPICallDuration(providerName, "/checkout/sessions", time.Since(startTime))
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.metrics.RecordAPICall(providerName, "/checkout/sessions", "success")
	p.metrics.RecordAPICallDuration(providerName, "/checkout/sessions", time.Since(startTime))

	return session.URL, nil
}

// PortalURL creates a Stripe Customer Portal Session and returns the URL.
// This lets users manage their subscription, update payment methods, or
// cancel.
func (p *Provider) PortalURL(ctx context.Context, email, returnURL string) (string, error) {
	startTime := time.Now()

	customerID, err := p.projectedCustomerID(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to resolve customer: %w", err)
	}
	if customerID == "" {
		// No projected customer yet; fall back to the Stripe search API.
		customerID, err = p.searchCustomerByEmail(ctx, email)
		if err != nil {
			p.metrics.RecordAPICall(providerName, "/billing_portal/sessions", "customer_not_found")
			return "", fmt.Errorf("%w: %s", billing.ErrCustomerNotFound, email)
		}
	}

	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	session, err := p.stripeClient.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/billing_portal/sessions", "error")
		p.metrics.RecordAPICallDuration(providerName, "/billing_portal/sessions", time.Since(startTime))
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}

	p.metrics.RecordAPICall(providerName, "/billing_portal/sessions", "success")
	p.metrics.RecordAPICallDuration(providerName, "/billing_portal/sessions", time.Since(startTime))

	return session.URL, nil
}

// projectedCustomerID reads the stored customer id for an email, if any.
// A missing projection row is not an error.
func (p *Provider) projectedCustomerID(ctx context.Context, email string) (string, error) {
	sub, err := p.subscribers.GetSubscriber(ctx, email)
	if err != nil {
		if errors.Is(err, billingsync.ErrSubscriberNotFound) {
			return "", nil
		}
		return "", err
	}
	return sub.StripeCustomerID, nil
}

// searchCustomerByEmail finds a customer id via the Stripe Search API.
func (p *Provider) searchCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = fmt.Sprintf("email:'%s'", email)

	for cust, err := range p.stripeClient.V1Customers.Search(ctx, params) {
		if err != nil {
			return "", fmt.Errorf("stripe search error: %w", err)
		}
		// Search can return partial matches; verify.
		if cust.Email == email {
			return cust.ID, nil
		}
	}

	return "", billing.ErrCustomerNotFound
}
