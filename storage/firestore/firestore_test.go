package firestore

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

const (
	testProjectID = "test-project"
	emulatorHost  = "localhost:8080"
)

func setupFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", emulatorHost, time.Second)
	if err != nil {
		t.Skipf("Firestore emulator not available: %v", err)
	}
	conn.Close()

	// Set emulator environment variable
	os.Setenv("FIRESTORE_EMULATOR_HOST", emulatorHost)

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, testProjectID)
	if err != nil {
		t.Fatalf("Failed to create Firestore client: %v", err)
	}

	return client
}

// setupTestStorage creates a Storage with per-test collection names so runs
// do not interfere with each other
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	client := setupFirestoreClient(t)
	t.Cleanup(func() { client.Close() })

	suffix := fmt.Sprintf("%s_%d", t.Name(), time.Now().UnixNano())
	storage, err := New(client, Config{
		SubscribersCollection:   "test_subscribers_" + suffix,
		AuditCollection:         "test_logs_" + suffix,
		NotificationsCollection: "test_notifications_" + suffix,
		UsersCollection:         "test_users_" + suffix,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return storage
}

func TestNew_NilClient(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("Expected error for nil client")
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
		Tier:             billingsync.TierPro,
		SubscriptionEnd:  &end,
	}
	if err := storage.UpsertSubscriber(ctx, sub); err != nil {
		t.Fatalf("UpsertSubscriber failed: %v", err)
	}

	// Document ID is the lowercased email, so lookups ignore case.
	got, err := storage.GetSubscriber(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetSubscriber failed: %v", err)
	}
	if got.Tier != billingsync.TierPro || !got.Subscribed {
		t.Errorf("Projection mismatch: %+v", got)
	}
	if got.SubscriptionEnd == nil || !got.SubscriptionEnd.Equal(end) {
		t.Errorf("SubscriptionEnd mismatch: got %v, want %v", got.SubscriptionEnd, end)
	}

	// Cancellation clears the end timestamp.
	sub.Subscribed = false
	sub.Tier = billingsync.TierNone
	sub.SubscriptionEnd = nil
	if err := storage.UpsertSubscriber(ctx, sub); err != nil {
		t.Fatalf("UpsertSubscriber (update) failed: %v", err)
	}
	got, err = storage.GetSubscriber(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetSubscriber failed: %v", err)
	}
	if got.Subscribed || got.SubscriptionEnd != nil {
		t.Errorf("Expected cleared subscription, got %+v", got)
	}
}

func TestStorage_AuditLog(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	entries := []*billingsync.AuditEntry{
		{Level: billingsync.AuditInfo, Message: "Subscription customer.subscription.created", CreatedAt: base},
		{Level: billingsync.AuditWarn, Message: "Payment failed", Context: map[string]any{"amount": int64(2900)}, CreatedAt: base.Add(time.Second)},
	}
	for _, e := range entries {
		if err := storage.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	all, err := storage.ListAudit(ctx, billingsync.AuditFilter{})
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(all))
	}
	if all[0].Message != "Payment failed" {
		t.Errorf("Expected newest first, got %s", all[0].Message)
	}

	warns, err := storage.ListAudit(ctx, billingsync.AuditFilter{Level: billingsync.AuditWarn})
	if err != nil {
		t.Fatalf("ListAudit (level) failed: %v", err)
	}
	if len(warns) != 1 || warns[0].Message != "Payment failed" {
		t.Errorf("Level filter mismatch: %+v", warns)
	}
}

func TestStorage_Notifications(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	n := &billingsync.Notification{
		UserID:  "user-1",
		Title:   "Assinatura Atualizada",
		Message: "Sua assinatura plus está ativa!",
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

func TestStorage_UserIDByEmail(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.UserIDByEmail(ctx, "ana@example.com")
	if err != billingsync.ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	_, err = storage.client.Collection(storage.usersCollection).Doc("user-1").
		Set(ctx, map[string]interface{}{"email": "ana@example.com"})
	if err != nil {
		t.Fatalf("seed user failed: %v", err)
	}

	id, err := storage.UserIDByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("UserIDByEmail failed: %v", err)
	}
	if id != "user-1" {
		t.Errorf("Expected user-1, got %s", id)
	}
}
