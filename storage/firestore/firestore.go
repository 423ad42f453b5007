// Package firestore provides a Firestore implementation of the billingsync
// store interfaces. Subscriber projections are keyed by a lowercased email
// document ID, so concurrent deliveries for the same email land on the same
// document and the last write wins.
package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Storage implements billingsync.Store and billingsync.UserDirectory using
// Google Cloud Firestore
type Storage struct {
	client                  *firestore.Client
	subscribersCollection   string
	auditCollection         string
	notificationsCollection string
	usersCollection         string
}

// Config holds Firestore storage configuration
type Config struct {
	// SubscribersCollection is the Firestore collection for subscriber projections
	// Default: "subscribers"
	SubscribersCollection string

	// AuditCollection is the Firestore collection for the audit log
	// Default: "system_logs"
	AuditCollection string

	// NotificationsCollection is the Firestore collection for notifications
	// Default: "notifications"
	NotificationsCollection string

	// UsersCollection is the Firestore collection for the user directory
	// Default: "users"
	UsersCollection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	// Set defaults
	if config.SubscribersCollection == "" {
		config.SubscribersCollection = "subscribers"
	}
	if config.AuditCollection == "" {
		config.AuditCollection = "system_logs"
	}
	if config.NotificationsCollection == "" {
		config.NotificationsCollection = "notifications"
	}
	if config.UsersCollection == "" {
		config.UsersCollection = "users"
	}

	return &Storage{
		client:                  client,
		subscribersCollection:   config.SubscribersCollection,
		auditCollection:         config.AuditCollection,
		notificationsCollection: config.NotificationsCollection,
		usersCollection:         config.UsersCollection,
	}, nil
}

func subscriberDocID(email string) string {
	return strings.ToLower(email)
}

// UpsertSubscriber implements billingsync.SubscriberStore
func (s *Storage) UpsertSubscriber(ctx context.Context, sub *billingsync.Subscriber) error {
	if sub == nil || sub.Email == "" {
		return fmt.Errorf("invalid subscriber")
	}

	updatedAt := sub.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	data := map[string]interface{}{
		"email":            sub.Email,
		"stripeCustomerId": sub.StripeCustomerID,
		"subscribed":       sub.Subscribed,
		"subscriptionTier": string(sub.Tier),
		"updatedAt":        updatedAt,
	}
	if sub.SubscriptionEnd != nil {
		data["subscriptionEnd"] = *sub.SubscriptionEnd
	} else {
		data["subscriptionEnd"] = nil
	}

	doc := s.client.Collection(s.subscribersCollection).Doc(subscriberDocID(sub.Email))
	if _, err := doc.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to upsert subscriber: %w", err)
	}

	return nil
}

// GetSubscriber implements billingsync.SubscriberStore
func (s *Storage) GetSubscriber(ctx context.Context, email string) (*billingsync.Subscriber, error) {
	doc := s.client.Collection(s.subscribersCollection).Doc(subscriberDocID(email))
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, billingsync.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	if !snap.Exists() {
		return nil, billingsync.ErrSubscriberNotFound
	}

	data := snap.Data()
	sub := &billingsync.Subscriber{
		Email:            getString(data, "email"),
		StripeCustomerID: getString(data, "stripeCustomerId"),
		Subscribed:       getBool(data, "subscribed"),
		Tier:             billingsync.Tier(getString(data, "subscriptionTier")),
		UpdatedAt:        getTime(data, "updatedAt"),
	}

	if end, ok := data["subscriptionEnd"].(time.Time); ok && !end.IsZero() {
		sub.SubscriptionEnd = &end
	}

	return sub, nil
}

// AppendAudit implements billingsync.AuditLog
func (s *Storage) AppendAudit(ctx context.Context, entry *billingsync.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("invalid audit entry")
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	data := map[string]interface{}{
		"level":     string(entry.Level),
		"message":   entry.Message,
		"context":   entry.Context,
		"createdAt": createdAt,
	}
	if entry.Context == nil {
		data["context"] = map[string]interface{}{}
	}

	if _, _, err := s.client.Collection(s.auditCollection).Add(ctx, data); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// ListAudit implements billingsync.AuditLog
func (s *Storage) ListAudit(ctx context.Context, filter billingsync.AuditFilter) ([]*billingsync.AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := s.client.Collection(s.auditCollection).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit)
	if filter.Level != "" {
		query = query.Where("level", "==", string(filter.Level))
	}
	if filter.Since != nil {
		query = query.Where("createdAt", ">=", *filter.Since)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*billingsync.AuditEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list audit entries: %w", err)
		}

		data := snap.Data()
		entry := &billingsync.AuditEntry{
			ID:        snap.Ref.ID,
			Level:     billingsync.AuditLevel(getString(data, "level")),
			Message:   getString(data, "message"),
			CreatedAt: getTime(data, "createdAt"),
		}
		if ctxData, ok := data["context"].(map[string]interface{}); ok {
			entry.Context = ctxData
		}
		out = append(out, entry)
	}

	return out, nil
}

// CreateNotification implements billingsync.NotificationStore
func (s *Storage) CreateNotification(ctx context.Context, n *billingsync.Notification) error {
	if n == nil || n.UserID == "" {
		return fmt.Errorf("invalid notification")
	}

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	data := map[string]interface{}{
		"userId":    n.UserID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      string(n.Type),
		"read":      n.Read,
		"createdAt": createdAt,
	}

	if _, _, err := s.client.Collection(s.notificationsCollection).Add(ctx, data); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListNotifications implements billingsync.NotificationStore
func (s *Storage) ListNotifications(ctx context.Context, userID string, limit int) ([]*billingsync.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.client.Collection(s.notificationsCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*billingsync.Notification
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list notifications: %w", err)
		}

		data := snap.Data()
		out = append(out, &billingsync.Notification{
			ID:        snap.Ref.ID,
			UserID:    getString(data, "userId"),
			Title:     getString(data, "title"),
			Message:   getString(data, "message"),
			Type:      billingsync.NotificationType(getString(data, "type")),
			Read:      getBool(data, "read"),
			CreatedAt: getTime(data, "createdAt"),
		})
	}

	return out, nil
}

// MarkNotificationRead implements billingsync.NotificationStore
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, id string) error {
	doc := s.client.Collection(s.notificationsCollection).Doc(id)
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return billingsync.ErrNotificationNotFound
		}
		return fmt.Errorf("failed to get notification: %w", err)
	}

	if getString(snap.Data(), "userId") != userID {
		return billingsync.ErrNotificationNotFound
	}

	_, err = doc.Update(ctx, []firestore.Update{{Path: "read", Value: true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return nil
}

// UserIDByEmail implements billingsync.UserDirectory
func (s *Storage) UserIDByEmail(ctx context.Context, email string) (string, error) {
	query := s.client.Collection(s.usersCollection).
		Where("email", "==", strings.ToLower(email)).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return "", billingsync.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}

	return snap.Ref.ID, nil
}

// Helper functions for type conversion from Firestore data

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
