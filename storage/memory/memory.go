// Package memory provides an in-memory implementation of the billingsync
// store interfaces. This implementation is primarily intended for testing
// and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// Storage implements billingsync.Store and billingsync.UserDirectory using
// in-memory maps.
type Storage struct {
	mu            sync.RWMutex
	subscribers   map[string]*billingsync.Subscriber
	audit         []*billingsync.AuditEntry
	notifications map[string][]*billingsync.Notification
	users         map[string]string // email -> user id
	nextID        int
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		subscribers:   make(map[string]*billingsync.Subscriber),
		notifications: make(map[string][]*billingsync.Notification),
		users:         make(map[string]string),
	}
}

// UpsertSubscriber implements billingsync.SubscriberStore
func (s *Storage) UpsertSubscriber(ctx context.Context, sub *billingsync.Subscriber) error {
	if sub == nil || sub.Email == "" {
		return fmt.Errorf("invalid subscriber")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutations
	subCopy := *sub
	s.subscribers[strings.ToLower(sub.Email)] = &subCopy
	return nil
}

// GetSubscriber implements billingsync.SubscriberStore
func (s *Storage) GetSubscriber(ctx context.Context, email string) (*billingsync.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscribers[strings.ToLower(email)]
	if !ok {
		return nil, billingsync.ErrSubscriberNotFound
	}

	subCopy := *sub
	return &subCopy, nil
}

// AppendAudit implements billingsync.AuditLog
func (s *Storage) AppendAudit(ctx context.Context, entry *billingsync.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("invalid audit entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *entry
	s.nextID++
	entryCopy.ID = strconv.Itoa(s.nextID)
	s.audit = append(s.audit, &entryCopy)
	return nil
}

// ListAudit implements billingsync.AuditLog
func (s *Storage) ListAudit(ctx context.Context, filter billingsync.AuditFilter) ([]*billingsync.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []*billingsync.AuditEntry
	for _, entry := range s.audit {
		if filter.Level != "" && entry.Level != filter.Level {
			continue
		}
		if filter.Since != nil && entry.CreatedAt.Before(*filter.Since) {
			continue
		}
		entryCopy := *entry
		out = append(out, &entryCopy)
	}

	// Newest first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateNotification implements billingsync.NotificationStore
func (s *Storage) CreateNotification(ctx context.Context, n *billingsync.Notification) error {
	if n == nil || n.UserID == "" {
		return fmt.Errorf("invalid notification")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nCopy := *n
	s.nextID++
	nCopy.ID = strconv.Itoa(s.nextID)
	s.notifications[n.UserID] = append(s.notifications[n.UserID], &nCopy)
	return nil
}

// ListNotifications implements billingsync.NotificationStore
func (s *Storage) ListNotifications(ctx context.Context, userID string, limit int) ([]*billingsync.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	inbox := s.notifications[userID]
	out := make([]*billingsync.Notification, 0, len(inbox))
	// Inbox is append-ordered; return newest first
	for i := len(inbox) - 1; i >= 0 && len(out) < limit; i-- {
		nCopy := *inbox[i]
		out = append(out, &nCopy)
	}
	return out, nil
}

// MarkNotificationRead implements billingsync.NotificationStore
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return billingsync.ErrNotificationNotFound
}

// UserIDByEmail implements billingsync.UserDirectory
func (s *Storage) UserIDByEmail(ctx context.Context, email string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.users[strings.ToLower(email)]
	if !ok {
		return "", billingsync.ErrUserNotFound
	}
	return userID, nil
}

// AddUser registers an email -> user id mapping in the directory.
func (s *Storage) AddUser(email, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = userID
}
