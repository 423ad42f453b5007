package fiber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/psicoplan/billingsync/pkg/billingsync"
	"github.com/psicoplan/billingsync/storage/memory"
)

func setupApp(t *testing.T, store *memory.Storage, required billingsync.Tier) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Get("/protected", Middleware(Config{
		Subscribers:  store,
		RequiredTier: required,
		GetEmail: func(c *fiber.Ctx) string {
			return c.Get("X-User-Email")
		},
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func request(t *testing.T, app *fiber.App, email string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", http.NoBody)
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func TestMiddleware_Unauthorized(t *testing.T) {
	app := setupApp(t, memory.New(), billingsync.TierNone)
	if resp := request(t, app, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestMiddleware_NotSubscribed(t *testing.T) {
	app := setupApp(t, memory.New(), billingsync.TierNone)
	if resp := request(t, app, "ana@example.com"); resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("Expected 402, got %d", resp.StatusCode)
	}
}

func TestMiddleware_ActiveSubscriber(t *testing.T) {
	store := memory.New()
	_ = store.UpsertSubscriber(context.Background(), &billingsync.Subscriber{
		Email:      "ana@example.com",
		Subscribed: true,
		Tier:       billingsync.TierPro,
	})

	app := setupApp(t, store, billingsync.TierPlus)
	if resp := request(t, app, "ana@example.com"); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
