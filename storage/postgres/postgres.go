// Package postgres provides a PostgreSQL implementation of the billingsync
// store interfaces. The subscriber upsert is a single INSERT ... ON CONFLICT
// statement, so concurrent deliveries for the same email cannot lose updates.
//
// Expected schema:
//
//	CREATE TABLE subscribers (
//	    email              TEXT PRIMARY KEY,
//	    stripe_customer_id TEXT,
//	    subscribed         BOOLEAN NOT NULL DEFAULT FALSE,
//	    subscription_tier  TEXT,
//	    subscription_end   TIMESTAMPTZ,
//	    updated_at         TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE system_logs (
//	    id         BIGSERIAL PRIMARY KEY,
//	    level      TEXT NOT NULL,
//	    message    TEXT NOT NULL,
//	    context    JSONB NOT NULL DEFAULT '{}',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE notifications (
//	    id         BIGSERIAL PRIMARY KEY,
//	    user_id    TEXT NOT NULL,
//	    title      TEXT NOT NULL,
//	    message    TEXT NOT NULL,
//	    type       TEXT NOT NULL,
//	    read       BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_notifications_user ON notifications (user_id, created_at DESC);
//
//	CREATE TABLE users (
//	    id    TEXT PRIMARY KEY,
//	    email TEXT NOT NULL UNIQUE
//	);
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Storage implements billingsync.Store and billingsync.UserDirectory using
// PostgreSQL.
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscribers (email, stripe_customer_id, subscribed, subscription_tier, subscription_end, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (email) DO UPDATE SET
				stripe_customer_id = EXCLUDED.stripe_customer_id,
				subscribed = EXCLUDED.subscribed,
				subscription_tier = EXCLUDED.subscription_tier,
				subscription_end = EXCLUDED.subscription_end,
				updated_at = EXCLUDED.updated_at`,
		sub.Email, nullableString(sub.StripeCustomerID), sub.Subscribed,
		nullableString(string(sub.Tier)), sub.SubscriptionEnd, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscriber: %w", err)
	}

	return nil
}

// GetSubscriber implements billingsync.SubscriberStore
func (s *Storage) GetSubscriber(ctx context.Context, email string) (*billingsync.Subscriber, error) {
	var sub billingsync.Subscriber
	var customerID, tier *string
	var subscriptionEnd *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT email, stripe_customer_id, subscribed, subscription_tier, subscription_end, updated_at
			FROM subscribers WHERE email = $1`,
		email).Scan(
		&sub.Email,
		&customerID,
		&sub.Subscribed,
		&tier,
		&subscriptionEnd,
		&sub.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, billingsync.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	if customerID != nil {
		sub.StripeCustomerID = *customerID
	}
	if tier != nil {
		sub.Tier = billingsync.Tier(*tier)
	}
	sub.SubscriptionEnd = subscriptionEnd
	return &sub, nil
}

// AppendAudit implements billingsync.AuditLog
func (s *Storage) AppendAudit(ctx context.Context, entry *billingsync.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("invalid audit entry")
	}

	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal audit context: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO system_logs (level, message, context, created_at)
			VALUES ($1, $2, $3, $4)`,
		string(entry.Level), entry.Message, contextJSON, createdAt,
	)
	if err != nil {
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

	query := `SELECT id, level, message, context, created_at FROM system_logs WHERE 1=1`
	args := []any{}
	argn := 1

	if filter.Level != "" {
		query += fmt.Sprintf(" AND level = $%d", argn)
		args = append(args, string(filter.Level))
		argn++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argn)
		args = append(args, *filter.Since)
		argn++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argn)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*billingsync.AuditEntry
	for rows.Next() {
		var entry billingsync.AuditEntry
		var id int64
		var contextJSON []byte
		if err := rows.Scan(&id, &entry.Level, &entry.Message, &contextJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.ID = strconv.FormatInt(id, 10)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &entry.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit context: %w", err)
			}
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (user_id, title, message, type, read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		n.UserID, n.Title, n.Message, string(n.Type), n.Read, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListNotifications implements billingsync.NotificationStore
func (s *Storage) ListNotifications(ctx context.Context, userID string, limit int) ([]*billingsync.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, message, type, read, created_at
			FROM notifications
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*billingsync.Notification
	for rows.Next() {
		var n billingsync.Notification
		var id int64
		if err := rows.Scan(&id, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ID = strconv.FormatInt(id, 10)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	return out, nil
}

// MarkNotificationRead implements billingsync.NotificationStore
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, id string) error {
	notificationID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return billingsync.ErrNotificationNotFound
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billingsync.ErrNotificationNotFound
	}

	return nil
}

// UserIDByEmail implements billingsync.UserDirectory
func (s *Storage) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var userID string

	err := s.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE lower(email) = lower($1)`,
		email).Scan(&userID)

	if err == pgx.ErrNoRows {
		return "", billingsync.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}

	return userID, nil
}

// nullableString maps "" to NULL so empty values do not masquerade as data.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
