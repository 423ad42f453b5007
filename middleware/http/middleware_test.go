package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/psicoplan/billingsync/pkg/billingsync"
	"github.com/psicoplan/billingsync/storage/memory"
)

func seedSubscriber(t *testing.T, store *memory.Storage, sub *billingsync.Subscriber) {
	t.Helper()
	if err := store.UpsertSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("UpsertSubscriber failed: %v", err)
	}
}

func gatedRequest(config Config, email string) *httptest.ResponseRecorder {
	handler := Middleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func headerEmail(r *http.Request) string {
	return r.Header.Get("X-User-Email")
}

func TestMiddleware_Unauthorized(t *testing.T) {
	store := memory.New()
	rec := gatedRequest(Config{Subscribers: store, GetEmail: headerEmail}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_NotSubscribed(t *testing.T) {
	store := memory.New()

	// Unknown subscriber
	rec := gatedRequest(Config{Subscribers: store, GetEmail: headerEmail}, "ana@example.com")
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 for unknown subscriber, got %d", rec.Code)
	}

	// Canceled subscriber
	seedSubscriber(t, store, &billingsync.Subscriber{Email: "ana@example.com", Subscribed: false})
	rec = gatedRequest(Config{Subscribers: store, GetEmail: headerEmail}, "ana@example.com")
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 for canceled subscriber, got %d", rec.Code)
	}
}

func TestMiddleware_ActiveSubscriber(t *testing.T) {
	store := memory.New()
	end := time.Now().Add(24 * time.Hour)
	seedSubscriber(t, store, &billingsync.Subscriber{
		Email:           "ana@example.com",
		Subscribed:      true,
		Tier:            billingsync.TierPlus,
		SubscriptionEnd: &end,
	})

	rec := gatedRequest(Config{Subscribers: store, GetEmail: headerEmail}, "ana@example.com")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestMiddleware_TierOrdering(t *testing.T) {
	store := memory.New()
	seedSubscriber(t, store, &billingsync.Subscriber{
		Email:      "plus@example.com",
		Subscribed: true,
		Tier:       billingsync.TierPlus,
	})
	seedSubscriber(t, store, &billingsync.Subscriber{
		Email:      "pro@example.com",
		Subscribed: true,
		Tier:       billingsync.TierPro,
	})

	config := Config{Subscribers: store, GetEmail: headerEmail, RequiredTier: billingsync.TierPro}

	rec := gatedRequest(config, "plus@example.com")
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 for plus tier on pro route, got %d", rec.Code)
	}

	rec = gatedRequest(config, "pro@example.com")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for pro tier, got %d", rec.Code)
	}
}

func TestMiddleware_ElapsedPeriodEnd(t *testing.T) {
	store := memory.New()
	end := time.Now().Add(-time.Hour)
	seedSubscriber(t, store, &billingsync.Subscriber{
		Email:           "ana@example.com",
		Subscribed:      true,
		Tier:            billingsync.TierPlus,
		SubscriptionEnd: &end,
	})

	rec := gatedRequest(Config{Subscribers: store, GetEmail: headerEmail}, "ana@example.com")
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 for elapsed period, got %d", rec.Code)
	}
}

func TestMiddleware_CustomHooks(t *testing.T) {
	store := memory.New()

	notSubscribedCalled := false
	config := Config{
		Subscribers: store,
		GetEmail:    headerEmail,
		OnNotSubscribed: func(w http.ResponseWriter, r *http.Request, sub *billingsync.Subscriber) {
			notSubscribedCalled = true
			w.WriteHeader(http.StatusForbidden)
		},
	}

	rec := gatedRequest(config, "ana@example.com")
	if !notSubscribedCalled {
		t.Error("Expected OnNotSubscribed hook to be called")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected custom status 403, got %d", rec.Code)
	}
}

func TestAllowed(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name     string
		sub      *billingsync.Subscriber
		required billingsync.Tier
		want     bool
	}{
		{"nil subscriber", nil, billingsync.TierNone, false},
		{"not subscribed", &billingsync.Subscriber{Subscribed: false}, billingsync.TierNone, false},
		{"active no end", &billingsync.Subscriber{Subscribed: true}, billingsync.TierNone, true},
		{"active future end", &billingsync.Subscriber{Subscribed: true, SubscriptionEnd: &future}, billingsync.TierNone, true},
		{"active past end", &billingsync.Subscriber{Subscribed: true, SubscriptionEnd: &past}, billingsync.TierNone, false},
		{"tier too low", &billingsync.Subscriber{Subscribed: true, Tier: billingsync.TierPlus}, billingsync.TierPro, false},
		{"tier sufficient", &billingsync.Subscriber{Subscribed: true, Tier: billingsync.TierPro}, billingsync.TierPlus, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.sub, tt.required, now); got != tt.want {
				t.Errorf("Allowed() = %v, want %v", got, tt.want)
			}
		})
	}
}
