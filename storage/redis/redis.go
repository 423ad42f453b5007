// Package redis provides a Redis implementation of the billingsync store
// interfaces. Subscriber projections and notifications are stored as JSON
// values; single-key writes are atomic in Redis, which is what the upsert
// contract requires.
//
// The audit log is kept in a capped list. Redis is a good fit for the
// projection read-model and notification inbox; deployments that need a
// durable, queryable audit history should prefer the postgres backend.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Storage implements billingsync.Store and billingsync.UserDirectory using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "billingsync:")
	KeyPrefix string

	// SubscriberTTL is the TTL for subscriber projection keys (0 = no expiration).
	// Projections are rebuilt by the next webhook delivery, so a TTL is safe.
	SubscriberTTL time.Duration

	// AuditMaxEntries caps the audit list length (default: 1000)
	AuditMaxEntries int64
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:       "billingsync:",
		SubscriberTTL:   0,
		AuditMaxEntries: 1000,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "billingsync:"
	}
	if config.AuditMaxEntries == 0 {
		config.AuditMaxEntries = 1000
	}

	return &Storage{client: client, config: config}, nil
}

func (s *Storage) subscriberKey(email string) string {
	return s.config.KeyPrefix + "subscriber:" + strings.ToLower(email)
}

func (s *Storage) auditKey() string {
	return s.config.KeyPrefix + "audit"
}

func (s *Storage) notificationsKey(userID string) string {
	return s.config.KeyPrefix + "notifications:" + userID
}

func (s *Storage) userKey(email string) string {
	return s.config.KeyPrefix + "user:" + strings.ToLower(email)
}

func (s *Storage) counterKey() string {
	return s.config.KeyPrefix + "id_seq"
}

// nextID allocates a monotonically increasing ID shared by audit entries
// and notifications.
func (s *Storage) nextID(ctx context.Context) (string, error) {
	n, err := s.client.Incr(ctx, s.counterKey()).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate id: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

// UpsertSubscriber implements billingsync.SubscriberStore
func (s *Storage) UpsertSubscriber(ctx context.Context, sub *billingsync.Subscriber) error {
	if sub == nil || sub.Email == "" {
		return fmt.Errorf("invalid subscriber")
	}

	stored := *sub
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal subscriber: %w", err)
	}

	if err := s.client.Set(ctx, s.subscriberKey(sub.Email), data, s.config.SubscriberTTL).Err(); err != nil {
		return fmt.Errorf("failed to upsert subscriber: %w", err)
	}

	return nil
}

// GetSubscriber implements billingsync.SubscriberStore
func (s *Storage) GetSubscriber(ctx context.Context, email string) (*billingsync.Subscriber, error) {
	data, err := s.client.Get(ctx, s.subscriberKey(email)).Bytes()
	if err == redis.Nil {
		return nil, billingsync.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	var sub billingsync.Subscriber
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscriber: %w", err)
	}

	return &sub, nil
}

// AppendAudit implements billingsync.AuditLog
func (s *Storage) AppendAudit(ctx context.Context, entry *billingsync.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("invalid audit entry")
	}

	stored := *entry
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.ID == "" {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		stored.ID = id
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.auditKey(), data)
	pipe.LTrim(ctx, s.auditKey(), 0, s.config.AuditMaxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
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

	// Entries are LPUSHed, so the list is already newest first. Filters are
	// applied client-side; the list is capped so the scan stays bounded.
	raw, err := s.client.LRange(ctx, s.auditKey(), 0, s.config.AuditMaxEntries-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	var out []*billingsync.AuditEntry
	for _, item := range raw {
		var entry billingsync.AuditEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}
		if filter.Level != "" && entry.Level != filter.Level {
			continue
		}
		if filter.Since != nil && entry.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, &entry)
		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

// CreateNotification implements billingsync.NotificationStore
func (s *Storage) CreateNotification(ctx context.Context, n *billingsync.Notification) error {
	if n == nil || n.UserID == "" {
		return fmt.Errorf("invalid notification")
	}

	stored := *n
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.ID == "" {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		stored.ID = id
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.client.HSet(ctx, s.notificationsKey(n.UserID), stored.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListNotifications implements billingsync.NotificationStore
func (s *Storage) ListNotifications(ctx context.Context, userID string, limit int) ([]*billingsync.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	raw, err := s.client.HGetAll(ctx, s.notificationsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*billingsync.Notification, 0, len(raw))
	for _, item := range raw {
		var n billingsync.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		out = append(out, &n)
	}

	sortNotifications(out)
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// MarkNotificationRead implements billingsync.NotificationStore
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, id string) error {
	key := s.notificationsKey(userID)

	data, err := s.client.HGet(ctx, key, id).Bytes()
	if err == redis.Nil {
		return billingsync.ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get notification: %w", err)
	}

	var n billingsync.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	if n.Read {
		return nil
	}
	n.Read = true

	updated, err := json.Marshal(&n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := s.client.HSet(ctx, key, id, updated).Err(); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return nil
}

// UserIDByEmail implements billingsync.UserDirectory
func (s *Storage) UserIDByEmail(ctx context.Context, email string) (string, error) {
	id, err := s.client.Get(ctx, s.userKey(email)).Result()
	if err == redis.Nil {
		return "", billingsync.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

// SetUser registers an email to user-id mapping for the directory.
func (s *Storage) SetUser(ctx context.Context, email, userID string) error {
	if err := s.client.Set(ctx, s.userKey(email), userID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set user: %w", err)
	}
	return nil
}

// sortNotifications orders newest first, breaking timestamp ties by ID so
// pagination is stable.
func sortNotifications(list []*billingsync.Notification) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
