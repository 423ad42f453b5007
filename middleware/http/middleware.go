// Package http provides HTTP middleware that gates routes behind an active
// subscription of a minimum tier.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// EmailExtractor extracts the authenticated user's email from a request.
// Return empty string if the user is not authenticated.
type EmailExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Subscribers is the projection store (required)
	Subscribers billingsync.SubscriberStore

	// GetEmail extracts the user's email from the request (required)
	GetEmail EmailExtractor

	// RequiredTier is the minimum tier the route needs.
	// Default: any active subscription.
	RequiredTier billingsync.Tier

	// OnNotSubscribed is called when the user has no sufficient active
	// subscription. If nil, returns 402 Payment Required.
	OnNotSubscribed func(w http.ResponseWriter, r *http.Request, sub *billingsync.Subscriber)

	// OnUnauthorized is called when the user is not authenticated.
	// If nil, returns 401 Unauthorized.
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called when an internal error occurs.
	// If nil, returns 500 Internal Server Error.
	OnError func(w http.ResponseWriter, r *http.Request, err error)

	// Now overrides the clock used for the period-end check. Defaults to
	// time.Now.
	Now func() time.Time
}

// Allowed reports whether the subscriber passes the gate at the given time.
// The projection can lag behind the provider, so an elapsed period end
// counts as not subscribed even when the row still says active.
func Allowed(sub *billingsync.Subscriber, required billingsync.Tier, now time.Time) bool {
	if sub == nil || !sub.Subscribed {
		return false
	}
	if sub.SubscriptionEnd != nil && sub.SubscriptionEnd.Before(now) {
		return false
	}
	return sub.Tier.AtLeast(required)
}

// Middleware creates an HTTP middleware that requires an active
// subscription of at least the configured tier
func Middleware(config Config) func(http.Handler) http.Handler {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := config.GetEmail(r)
			if email == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			sub, err := config.Subscribers.GetSubscriber(r.Context(), email)
			if err != nil && !errors.Is(err, billingsync.ErrSubscriberNotFound) {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			if !Allowed(sub, config.RequiredTier, now()) {
				if config.OnNotSubscribed != nil {
					config.OnNotSubscribed(w, r, sub)
				} else {
					writePaymentRequired(w, config.RequiredTier)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerFunc creates an HTTP middleware that requires an active
// subscription (HandlerFunc version)
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

func writePaymentRequired(w http.ResponseWriter, required billingsync.Tier) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	body := map[string]string{"error": "subscription required"}
	if required != billingsync.TierNone {
		body["required_tier"] = string(required)
	}
	_ = json.NewEncoder(w).Encode(body)
}
