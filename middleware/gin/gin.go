// Package gin provides Gin middleware that gates routes behind an active
// subscription of a minimum tier.
package gin

import (
	"errors"
	"net/http"
	"time"

	gongin "github.com/gin-gonic/gin"

	gatehttp "github.com/psicoplan/billingsync/middleware/http"
	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// EmailExtractor extracts the authenticated user's email from a Gin
// context. Return empty string if the user is not authenticated.
type EmailExtractor func(c *gongin.Context) string

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
	OnNotSubscribed func(c *gongin.Context, sub *billingsync.Subscriber)

	// OnUnauthorized is called when the user is not authenticated.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(c *gongin.Context)

	// OnError is called when an internal error occurs.
	// If nil, returns 500 Internal Server Error.
	OnError func(c *gongin.Context, err error)

	// Now overrides the clock used for the period-end check. Defaults to
	// time.Now.
	Now func() time.Time
}

// Middleware creates a Gin middleware that requires an active subscription
// of at least the configured tier
func Middleware(config Config) gongin.HandlerFunc {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gongin.Context) {
		email := config.GetEmail(c)
		if email == "" {
			if config.OnUnauthorized != nil {
				config.OnUnauthorized(c)
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gongin.H{"error": "unauthorized"})
			}
			return
		}

		sub, err := config.Subscribers.GetSubscriber(c.Request.Context(), email)
		if err != nil && !errors.Is(err, billingsync.ErrSubscriberNotFound) {
			if config.OnError != nil {
				config.OnError(c, err)
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gongin.H{"error": "internal server error"})
			}
			return
		}

		if !gatehttp.Allowed(sub, config.RequiredTier, now()) {
			if config.OnNotSubscribed != nil {
				config.OnNotSubscribed(c, sub)
			} else {
				body := gongin.H{"error": "subscription required"}
				if config.RequiredTier != billingsync.TierNone {
					body["required_tier"] = string(config.RequiredTier)
				}
				c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
			}
			return
		}

		c.Next()
	}
}
