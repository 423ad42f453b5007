package api

import (
	"fmt"
	"net/http"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Config holds configuration for the billing API handler
type Config struct {
	// Store provides the subscriber projection, notification inbox and
	// audit log (required)
	Store billingsync.Store

	// GetEmail extracts the authenticated user's email from the request
	// (required). The subscription projection is keyed by email.
	GetEmail func(*http.Request) string

	// GetUserID extracts the authenticated platform user id from the
	// request (required). Notifications are keyed by user id.
	GetUserID func(*http.Request) string

	// OnError handles errors (auth, internal, etc.)
	// If nil, uses default error handling
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional. If nil, logging is silently ignored.
	Logger billingsync.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.GetEmail == nil {
		return fmt.Errorf("getEmail is required")
	}
	if c.GetUserID == nil {
		return fmt.Errorf("getUserID is required")
	}
	return nil
}

// NewHandler creates a new billing API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &billingsync.NoopLogger{}
	}
	return &Handler{
		config: config,
	}, nil
}

// Helper functions for common identity extraction patterns

// FromHeader returns an extractor that reads the given header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns an extractor that reads a string from the request
// context under the given key
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if v, ok := r.Context().Value(key).(string); ok {
			return v
		}
		return ""
	}
}
