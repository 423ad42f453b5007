package api

import "time"

// SubscriptionResponse is the current user's subscription standing as
// projected from billing events.
type SubscriptionResponse struct {
	Subscribed       bool       `json:"subscribed"`
	SubscriptionTier string     `json:"subscription_tier,omitempty"`
	SubscriptionEnd  *time.Time `json:"subscription_end,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// NotificationResponse is one inbox notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationsResponse wraps the notification list.
type NotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

// AuditEntryResponse is one audit log record.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditResponse wraps the audit entry list.
type AuditResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
}
