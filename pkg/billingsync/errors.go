package billingsync

import "errors"

var (
	// ErrNotConfigured is returned when a pipeline is built without a
	// required collaborator.
	ErrNotConfigured = errors.New("billingsync: pipeline not configured")

	// ErrInvalidEvent is returned when an event envelope is missing the
	// payload its type requires.
	ErrInvalidEvent = errors.New("billingsync: invalid event envelope")

	// ErrSubscriberNotFound is returned when no projection row exists for
	// an email.
	ErrSubscriberNotFound = errors.New("billingsync: subscriber not found")

	// ErrUserNotFound is returned by UserDirectory when an email has no
	// platform user. A miss is a skip, not a failure.
	ErrUserNotFound = errors.New("billingsync: user not found")

	// ErrNoCustomerEmail is returned by CustomerResolver when the billing
	// customer exists but has no email. Email-less customers cannot be
	// projected and are skipped silently.
	ErrNoCustomerEmail = errors.New("billingsync: customer has no email")

	// ErrNotificationNotFound is returned when marking an unknown
	// notification as read.
	ErrNotificationNotFound = errors.New("billingsync: notification not found")
)
