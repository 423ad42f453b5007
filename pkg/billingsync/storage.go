package billingsync

import (
	"context"
	"time"
)

// SubscriberStore persists the subscriber projection.
type SubscriberStore interface {
	// UpsertSubscriber performs an insert-or-replace keyed by email.
	// The write must be atomic at the persistence layer (a single
	// conditional insert-or-update, not read-then-write) so that two
	// deliveries racing on the same email cannot lose updates, and must
	// be safe to repeat with the same input.
	UpsertSubscriber(ctx context.Context, sub *Subscriber) error

	// GetSubscriber retrieves the projection row for an email.
	// Returns ErrSubscriberNotFound when no row exists.
	GetSubscriber(ctx context.Context, email string) (*Subscriber, error)
}

// AuditFilter restricts ListAudit results. Zero values mean "no filter".
type AuditFilter struct {
	// Level filters by severity.
	Level AuditLevel

	// Since filters entries created at or after this time.
	Since *time.Time

	// Limit caps the number of results (default 100).
	Limit int
}

// AuditLog is the append-only system log. Entries are never mutated or
// deleted after creation; duplicating an entry on redelivery is acceptable.
type AuditLog interface {
	// AppendAudit writes one entry. The store assigns ID and, when unset,
	// CreatedAt.
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// ListAudit returns entries matching the filter, newest first.
	ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// NotificationStore persists per-user notification inboxes.
type NotificationStore interface {
	// CreateNotification inserts one notification. Append-only; safe to
	// duplicate on redelivery.
	CreateNotification(ctx context.Context, n *Notification) error

	// ListNotifications returns a user's notifications, newest first.
	// limit <= 0 means the store default.
	ListNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error)

	// MarkNotificationRead flips the read flag on one of the user's
	// notifications. Returns ErrNotificationNotFound for unknown ids.
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

// Store combines the three persistence concerns the pipeline writes to.
// Backends may also implement only a subset (e.g. a projection read-model).
type Store interface {
	SubscriberStore
	AuditLog
	NotificationStore
}

// UserDirectory bridges the billing system and the platform's auth layer:
// the cross-system join between customer email and user id is performed at
// write time through this lookup, never enforced by a foreign key.
type UserDirectory interface {
	// UserIDByEmail resolves an email to a platform user id.
	// Returns ErrUserNotFound on a miss.
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// CustomerResolver resolves a billing customer id to its email address.
type CustomerResolver interface {
	// CustomerEmail returns ErrNoCustomerEmail when the customer record
	// carries no email. Any other error is a transport failure and
	// propagates.
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// PriceResolver resolves a price id to its unit amount in the smallest
// currency unit.
type PriceResolver interface {
	PriceUnitAmount(ctx context.Context, priceID string) (int64, error)
}
