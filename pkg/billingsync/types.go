package billingsync

import "time"

// Tier is the derived subscription level. It is computed from the subscribed
// price, not stored authoritatively by the billing provider.
type Tier string

const (
	// TierNone means no paid tier is assigned.
	TierNone Tier = ""

	// TierPlus is the entry paid tier.
	TierPlus Tier = "plus"

	// TierPro is the top paid tier.
	TierPro Tier = "pro"
)

// Subscriber is the locally stored projection of one billing customer,
// keyed by email. Rows are upserted on every subscription event and never
// deleted; cancellation flips Subscribed to false.
type Subscriber struct {
	// Email is the unique key. Immutable once set.
	Email string

	// StripeCustomerID is the billing provider's customer identifier.
	StripeCustomerID string

	// Subscribed is true iff the most recently processed subscription
	// state is "active".
	Subscribed bool

	// Tier is the derived plan tier. Empty whenever Subscribed is false.
	Tier Tier

	// SubscriptionEnd is the current billing-period end. Only meaningful
	// when Subscribed is true; nil otherwise.
	SubscriptionEnd *time.Time

	// UpdatedAt is set on every write.
	UpdatedAt time.Time
}

// AuditLevel is the severity of an audit log entry.
type AuditLevel string

const (
	AuditInfo  AuditLevel = "info"
	AuditWarn  AuditLevel = "warn"
	AuditError AuditLevel = "error"
)

// AuditEntry is one immutable record of a processed webhook event.
// Entries are append-only and never mutated or deleted.
type AuditEntry struct {
	// ID is assigned by the store.
	ID string

	// Level is the entry severity.
	Level AuditLevel

	// Message is a short event description.
	Message string

	// Context carries structured payload: customer email, derived tier,
	// provider event id, amounts.
	Context map[string]any

	// CreatedAt is when the entry was written.
	CreatedAt time.Time
}

// NotificationType is the visual category of an inbox notification.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is one entry in a user's notification inbox. The pipeline
// creates notifications; the UI layer reads and dismisses them.
type Notification struct {
	// ID is assigned by the store.
	ID string

	// UserID is the platform user the notification targets.
	UserID string

	Title   string
	Message string
	Type    NotificationType

	// Read defaults to false and is flipped by the UI layer.
	Read bool

	CreatedAt time.Time
}
