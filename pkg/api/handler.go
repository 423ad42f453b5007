// Package api exposes the subscriber projection, notification inbox and
// audit log over HTTP for application frontends. It reads what the webhook
// pipeline writes; nothing here mutates billing state.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

const (
	defaultNotificationLimit = 50
	maxListLimit             = 500
)

// Handler provides HTTP endpoints for subscription state, notifications
// and the audit log
type Handler struct {
	config Config
}

// Routes mounts all endpoints on a chi router:
//
//	GET  /subscription
//	GET  /notifications
//	POST /notifications/{id}/read
//	GET  /audit
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/subscription", h.GetSubscription)
	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	r.Get("/audit", h.ListAudit)
	return r
}

// GetSubscription returns the current user's subscription projection. A user
// that no webhook has ever touched reads as not subscribed, not as an error.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	email := h.config.GetEmail(r)
	if email == "" {
		h.handleError(w, r, fmt.Errorf("email not found in request"), http.StatusUnauthorized)
		return
	}

	sub, err := h.config.Store.GetSubscriber(r.Context(), email)
	if err != nil {
		if errors.Is(err, billingsync.ErrSubscriberNotFound) {
			h.writeJSON(w, http.StatusOK, SubscriptionResponse{Subscribed: false})
			return
		}
		h.handleError(w, r, fmt.Errorf("failed to get subscription: %w", err), http.StatusInternalServerError)
		return
	}

	resp := SubscriptionResponse{
		Subscribed:       sub.Subscribed,
		SubscriptionTier: string(sub.Tier),
		SubscriptionEnd:  sub.SubscriptionEnd,
	}
	if !sub.UpdatedAt.IsZero() {
		updatedAt := sub.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ListNotifications returns the current user's inbox, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := h.config.GetUserID(r)
	if userID == "" {
		h.handleError(w, r, fmt.Errorf("user ID not found in request"), http.StatusUnauthorized)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultNotificationLimit)
	if err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}

	notifications, err := h.config.Store.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		h.handleError(w, r, fmt.Errorf("failed to list notifications: %w", err), http.StatusInternalServerError)
		return
	}

	resp := NotificationsResponse{Notifications: make([]NotificationResponse, 0, len(notifications))}
	for _, n := range notifications {
		resp.Notifications = append(resp.Notifications, NotificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      string(n.Type),
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// MarkNotificationRead flips one of the current user's notifications to
// read. Another user's notification id answers 404, never 403: ids must not
// leak across accounts.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := h.config.GetUserID(r)
	if userID == "" {
		h.handleError(w, r, fmt.Errorf("user ID not found in request"), http.StatusUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.handleError(w, r, fmt.Errorf("notification id is required"), http.StatusBadRequest)
		return
	}

	if err := h.config.Store.MarkNotificationRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, billingsync.ErrNotificationNotFound) {
			h.handleError(w, r, err, http.StatusNotFound)
			return
		}
		h.handleError(w, r, fmt.Errorf("failed to mark notification read: %w", err), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListAudit returns audit log entries, newest first. Supports level, since
// (RFC 3339) and limit query parameters. Intended for operator dashboards;
// mount it behind admin auth.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := billingsync.AuditFilter{}
	if level := query.Get("level"); level != "" {
		switch billingsync.AuditLevel(level) {
		case billingsync.AuditInfo, billingsync.AuditWarn, billingsync.AuditError:
			filter.Level = billingsync.AuditLevel(level)
		default:
			h.handleError(w, r, fmt.Errorf("invalid level %q", level), http.StatusBadRequest)
			return
		}
	}
	if since := query.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.handleError(w, r, fmt.Errorf("invalid since timestamp: %v", err), http.StatusBadRequest)
			return
		}
		filter.Since = &ts
	}
	limit, err := parseLimit(query.Get("limit"), 0)
	if err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	filter.Limit = limit

	entries, err := h.config.Store.ListAudit(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, fmt.Errorf("failed to list audit entries: %w", err), http.StatusInternalServerError)
		return
	}

	resp := AuditResponse{Entries: make([]AuditEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, AuditEntryResponse{
			ID:        entry.ID,
			Level:     string(entry.Level),
			Message:   entry.Message,
			Context:   entry.Context,
			CreatedAt: entry.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func parseLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.config.Logger.Warn("failed to encode response", billingsync.Field{Key: "error", Value: err})
	}
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encodeErr := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); encodeErr != nil {
		_ = encodeErr
	}
}
