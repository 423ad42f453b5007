// Package echo provides Echo middleware that gates routes behind an active
// subscription of a minimum tier.
package echo

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	gatehttp "github.com/psicoplan/billingsync/middleware/http"
	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// EmailExtractor extracts the authenticated user's email from an Echo
// context. Return empty string if the user is not authenticated.
type EmailExtractor func(c echo.Context) string

// Config holds middleware configuration
type Config struct {
	// Subscribers is the projection store (required)
	Subscribers billingsync.SubscriberStore

	// GetEmail extracts the user's email from the context (required)
	GetEmail EmailExtractor

	// RequiredTier is the minimum tier the route needs.
	// Default: any active subscription.
	RequiredTier billingsync.Tier

	// OnNotSubscribed is called when the user has no sufficient active
	// subscription. If nil, returns 402 Payment Required.
	OnNotSubscribed func(c echo.Context, sub *billingsync.Subscriber) error

	// OnUnauthorized is called when the user is not authenticated.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(c echo.Context) error

	// OnError is called when an internal error occurs.
	// If nil, returns 500 Internal Server Error.
	OnError func(c echo.Context, err error) error

	// Now overrides the clock used for the period-end check. Defaults to
	// time.Now.
	Now func() time.Time
}

// Middleware creates an Echo middleware that requires an active
// subscription of at least the configured tier
func Middleware(config Config) echo.MiddlewareFunc {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			email := config.GetEmail(c)
			if email == "" {
				if config.OnUnauthorized != nil {
					return config.OnUnauthorized(c)
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}

			sub, err := config.Subscribers.GetSubscriber(c.Request().Context(), email)
			if err != nil && !errors.Is(err, billingsync.ErrSubscriberNotFound) {
				if config.OnError != nil {
					return config.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}

			if !gatehttp.Allowed(sub, config.RequiredTier, now()) {
				if config.OnNotSubscribed != nil {
					return config.OnNotSubscribed(c, sub)
				}
				body := map[string]string{"error": "subscription required"}
				if config.RequiredTier != billingsync.TierNone {
					body["required_tier"] = string(config.RequiredTier)
				}
				return c.JSON(http.StatusPaymentRequired, body)
			}

			return next(c)
		}
	}
}
