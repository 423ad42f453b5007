package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// setupTestRedis creates a Redis client for testing
// Requires Redis running on localhost:6379
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	// Clear test database
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}

	return client
}

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	client := setupTestRedis(t)
	storage, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return storage
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		client  redis.UniversalClient
		config  Config
		wantErr bool
	}{
		{
			name:    "nil client",
			client:  nil,
			config:  DefaultConfig(),
			wantErr: true,
		},
		{
			name:    "valid client",
			client:  redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
			config:  Config{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := New(tt.client, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && storage.config.KeyPrefix == "" {
				t.Error("Expected default key prefix to be applied")
			}
		})
	}
}

func TestStorage_UpsertGetSubscriber(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.GetSubscriber(ctx, "ana@example.com")
	if err != billingsync.ErrSubscriberNotFound {
		t.Errorf("Expected ErrSubscriberNotFound, got %v", err)
	}

	end := time.Unix(1735689600, 0).UTC()
	sub := &billingsync.Subscriber{
		Email:            "Ana@Example.com",
		StripeCustomerID: "cus_123",
		Subscribed:       true,
		Tier:             billingsync.TierPlus,
		SubscriptionEnd:  &end,
	}
	if err := storage.UpsertSubscriber(ctx, sub); err != nil {
		t.Fatalf("UpsertSubscriber failed: %v", err)
	}

	// Lookup is case-insensitive on email.
	got, err := storage.GetSubscriber(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetSubscriber failed: %v", err)
	}
	if got.Tier != billingsync.TierPlus || !got.Subscribed {
		t.Errorf("Projection mismatch: %+v", got)
	}
	if got.SubscriptionEnd == nil || !got.SubscriptionEnd.Equal(end) {
		t.Errorf("SubscriptionEnd mismatch: got %v, want %v", got.SubscriptionEnd, end)
	}
}

func TestStorage_AuditLog(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		level := billingsync.AuditInfo
		if i == 1 {
			level = billingsync.AuditWarn
		}
		err := storage.AppendAudit(ctx, &billingsync.AuditEntry{
			Level:     level,
			Message:   fmt.Sprintf("entry %d", i),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	all, err := storage.ListAudit(ctx, billingsync.AuditFilter{})
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "entry 2" {
		t.Errorf("Expected newest first, got %s", all[0].Message)
	}

	warns, err := storage.ListAudit(ctx, billingsync.AuditFilter{Level: billingsync.AuditWarn})
	if err != nil {
		t.Fatalf("ListAudit (level) failed: %v", err)
	}
	if len(warns) != 1 || warns[0].Message != "entry 1" {
		t.Errorf("Level filter mismatch: %+v", warns)
	}
}

func TestStorage_AuditCap(t *testing.T) {
	client := setupTestRedis(t)
	config := DefaultConfig()
	config.AuditMaxEntries = 5

	storage, err := New(client, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := storage.AppendAudit(ctx, &billingsync.AuditEntry{
			Level:   billingsync.AuditInfo,
			Message: fmt.Sprintf("entry %d", i),
		})
		if err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	all, err := storage.ListAudit(ctx, billingsync.AuditFilter{})
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Expected capped list of 5, got %d", len(all))
	}
}

func TestStorage_Notifications(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	n := &billingsync.Notification{
		UserID:  "user-1",
		Title:   "Pagamento Confirmado",
		Message: "Pagamento de R$ 29.00 processado com sucesso!",
		Type:    billingsync.NotificationSuccess,
	}
	if err := storage.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	list, err := storage.ListNotifications(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(list) != 1 || list[0].Read {
		t.Fatalf("Expected one unread notification, got %+v", list)
	}

	if err := storage.MarkNotificationRead(ctx, "user-1", list[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	list, _ = storage.ListNotifications(ctx, "user-1", 0)
	if !list[0].Read {
		t.Error("Expected notification to be read")
	}

	if err := storage.MarkNotificationRead(ctx, "user-2", list[0].ID); err != billingsync.ErrNotificationNotFound {
		t.Errorf("Expected ErrNotificationNotFound for wrong user, got %v", err)
	}
}

func TestStorage_UserDirectory(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.UserIDByEmail(ctx, "ana@example.com")
	if err != billingsync.ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	if err := storage.SetUser(ctx, "Ana@Example.com", "user-1"); err != nil {
		t.Fatalf("SetUser failed: %v", err)
	}
	id, err := storage.UserIDByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("UserIDByEmail failed: %v", err)
	}
	if id != "user-1" {
		t.Errorf("Expected user-1, got %s", id)
	}
}
