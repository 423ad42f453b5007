package billingsync

import "time"

// EventType is the closed set of webhook event categories the pipeline
// understands. Unknown provider types map to EventUnknown, which is
// acknowledged and logged but never rejected: failure responses trigger
// provider-side redelivery storms.
type EventType int

const (
	// EventUnknown is any provider event type the pipeline does not handle.
	EventUnknown EventType = iota

	EventSubscriptionCreated
	EventSubscriptionUpdated
	EventSubscriptionDeleted
	EventPaymentSucceeded
	EventPaymentFailed
)

// ClassifyEventType maps a provider event type string to an EventType by
// exact match.
func ClassifyEventType(providerType string) EventType {
	switch providerType {
	case "customer.subscription.created":
		return EventSubscriptionCreated
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	case "invoice.payment_succeeded":
		return EventPaymentSucceeded
	case "invoice.payment_failed":
		return EventPaymentFailed
	default:
		return EventUnknown
	}
}

// IsSubscription reports whether the event carries a subscription object.
func (t EventType) IsSubscription() bool {
	switch t {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	default:
		return false
	}
}

// Event is the verified, parsed envelope of one webhook delivery.
// Exactly one of Subscription or Invoice is set for known types.
type Event struct {
	// ID is the provider's event identifier, kept for audit
	// cross-referencing and duplicate-delivery detection.
	ID string

	// Type is the classified event category.
	Type EventType

	// ProviderType is the provider's raw type string, kept so unknown
	// types can still be traced in the audit log.
	ProviderType string

	// Subscription is set for subscription events.
	Subscription *SubscriptionState

	// Invoice is set for invoice events.
	Invoice *InvoiceState
}

// SubscriptionState is the provider-neutral view of one subscription object.
type SubscriptionState struct {
	ID         string
	CustomerID string

	// Status is the provider's status string. Only "active" counts as
	// active for projection purposes.
	Status string

	// CurrentPeriodEnd is the end of the current billing period.
	// Zero when the provider did not supply one.
	CurrentPeriodEnd time.Time

	// PriceIDs are the price identifiers of the subscription's line items,
	// in provider order.
	PriceIDs []string
}

// Active reports whether the subscription status is exactly "active".
// Trialing, past_due, canceled, unpaid and incomplete are all inactive.
func (s *SubscriptionState) Active() bool {
	return s.Status == "active"
}

// InvoiceState is the provider-neutral view of one invoice object.
type InvoiceState struct {
	ID         string
	CustomerID string

	// AmountPaid and AmountDue are in the smallest currency unit.
	AmountPaid int64
	AmountDue  int64
}
