package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/psicoplan/billingsync/pkg/billingsync"
	"github.com/psicoplan/billingsync/storage/memory"
)

func setupApp(t *testing.T, store *memory.Storage, required billingsync.Tier) *echo.Echo {
	t.Helper()

	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Middleware(Config{
		Subscribers:  store,
		RequiredTier: required,
		GetEmail: func(c echo.Context) string {
			return c.Request().Header.Get("X-User-Email")
		},
	}))
	return e
}

func request(e *echo.Echo, email string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Unauthorized(t *testing.T) {
	e := setupApp(t, memory.New(), billingsync.TierNone)
	if rec := request(e, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_NotSubscribed(t *testing.T) {
	e := setupApp(t, memory.New(), billingsync.TierNone)
	if rec := request(e, "ana@example.com"); rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402, got %d", rec.Code)
	}
}

func TestMiddleware_ActiveSubscriber(t *testing.T) {
	store := memory.New()
	_ = store.UpsertSubscriber(context.Background(), &billingsync.Subscriber{
		Email:      "ana@example.com",
		Subscribed: true,
		Tier:       billingsync.TierPlus,
	})

	e := setupApp(t, store, billingsync.TierNone)
	if rec := request(e, "ana@example.com"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	// Same subscriber blocked on a pro-only route
	e = setupApp(t, store, billingsync.TierPro)
	if rec := request(e, "ana@example.com"); rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected 402 on pro route, got %d", rec.Code)
	}
}
