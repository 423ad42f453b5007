package billingsync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Notification copy shown to end users. The product surface is pt-BR.
const (
	subscriptionNotificationTitle = "Assinatura Atualizada"
	subscriptionActiveMessage     = "Sua assinatura %s está ativa!"
	subscriptionCanceledMessage   = "Sua assinatura foi cancelada."

	paymentSucceededTitle   = "Pagamento Confirmado"
	paymentSucceededMessage = "Pagamento de R$ %.2f processado com sucesso!"

	paymentFailedTitle   = "Problema no Pagamento"
	paymentFailedMessage = "Houve um problema com seu pagamento. Verifique seus dados de cobrança."
)

// Config holds the collaborators a Pipeline needs. All lookups and stores
// are injected so the pipeline can be exercised with fakes.
type Config struct {
	// Store may be set instead of the three individual store fields.
	Store Store

	// Subscribers, Audit and Notifications are the persistence
	// collaborators. Required unless Store is set.
	Subscribers   SubscriberStore
	Audit         AuditLog
	Notifications NotificationStore

	// Users resolves emails to platform user ids (required).
	Users UserDirectory

	// Customers resolves billing customer ids to emails (required).
	Customers CustomerResolver

	// Prices resolves price ids to unit amounts (required).
	Prices PriceResolver

	// Logger is optional. If nil, logging is silently ignored.
	Logger Logger

	// Metrics is optional. If nil, metrics are silently ignored.
	Metrics Metrics

	// Now overrides the clock, for deterministic tests. Defaults to
	// time.Now in UTC.
	Now func() time.Time
}

// Pipeline projects verified billing events into the subscriber projection,
// the audit log and per-user notification inboxes. It holds no state between
// events: each delivery is processed independently, and every write is
// idempotent by natural key or append-only, so the sender's at-least-once
// redelivery is the only retry mechanism.
type Pipeline struct {
	subscribers   SubscriberStore
	audit         AuditLog
	notifications NotificationStore
	users         UserDirectory
	customers     CustomerResolver
	prices        PriceResolver
	logger        Logger
	metrics       Metrics
	now           func() time.Time
}

// NewPipeline builds a Pipeline from the given configuration.
func NewPipeline(config Config) (*Pipeline, error) {
	subscribers := config.Subscribers
	audit := config.Audit
	notifications := config.Notifications
	if config.Store != nil {
		if subscribers == nil {
			subscribers = config.Store
		}
		if audit == nil {
			audit = config.Store
		}
		if notifications == nil {
			notifications = config.Store
		}
	}

	if subscribers == nil || audit == nil || notifications == nil {
		return nil, fmt.Errorf("%w: store collaborators are required", ErrNotConfigured)
	}
	if config.Users == nil {
		return nil, fmt.Errorf("%w: user directory is required", ErrNotConfigured)
	}
	if config.Customers == nil || config.Prices == nil {
		return nil, fmt.Errorf("%w: customer and price resolvers are required", ErrNotConfigured)
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	now := config.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Pipeline{
		subscribers:   subscribers,
		audit:         audit,
		notifications: notifications,
		users:         config.Users,
		customers:     config.Customers,
		prices:        config.Prices,
		logger:        logger,
		metrics:       metrics,
		now:           now,
	}, nil
}

// HandleEvent dispatches one verified event to its handler. Unknown types
// are traced in the audit log and acknowledged; any error returned here is
// surfaced to the sender as a server error so redelivery retries the event.
func (p *Pipeline) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return p.handleSubscriptionEvent(ctx, event)
	case EventPaymentSucceeded:
		return p.handlePaymentSucceeded(ctx, event)
	case EventPaymentFailed:
		return p.handlePaymentFailed(ctx, event)
	default:
		return p.handleUnknownEvent(ctx, event)
	}
}

// handleSubscriptionEvent converts one subscription object into an
// idempotent upsert of the subscriber projection. All three subscription
// sub-types funnel here: the projector discards and recomputes the derived
// state from the event's subscription object.
func (p *Pipeline) handleSubscriptionEvent(ctx context.Context, event *Event) error {
	sub := event.Subscription
	if sub == nil {
		return fmt.Errorf("%w: subscription event %s has no subscription", ErrInvalidEvent, event.ID)
	}

	p.logger.Info("handling subscription event",
		Field{"event_type", event.ProviderType},
		Field{"customer_id", sub.CustomerID},
		Field{"status", sub.Status},
	)

	email, err := p.customers.CustomerEmail(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, ErrNoCustomerEmail) {
			// Test or incomplete customer records can legitimately
			// lack an email. Nothing to project.
			p.logger.Info("no customer email found", Field{"customer_id", sub.CustomerID})
			p.metrics.RecordResolutionMiss("customer_email")
			return nil
		}
		return fmt.Errorf("failed to resolve customer %s: %w", sub.CustomerID, err)
	}

	isActive := sub.Active()

	var subscriptionEnd *time.Time
	if isActive && !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd.UTC()
		subscriptionEnd = &end
	}

	tier := TierNone
	if isActive && len(sub.PriceIDs) > 0 {
		amount, err := p.prices.PriceUnitAmount(ctx, sub.PriceIDs[0])
		if err != nil {
			return fmt.Errorf("failed to resolve price %s: %w", sub.PriceIDs[0], err)
		}
		tier = TierForAmount(amount)
	}

	if err := p.subscribers.UpsertSubscriber(ctx, &Subscriber{
		Email:            email,
		StripeCustomerID: sub.CustomerID,
		Subscribed:       isActive,
		Tier:             tier,
		SubscriptionEnd:  subscriptionEnd,
		UpdatedAt:        p.now(),
	}); err != nil {
		return fmt.Errorf("failed to upsert subscriber %s: %w", email, err)
	}
	p.metrics.RecordProjection(tierLabel(tier), isActive)

	if err := p.appendAudit(ctx, AuditInfo, "Subscription "+event.ProviderType, map[string]any{
		"customer_email":      email,
		"subscription_tier":   tierLabel(tier),
		"subscription_status": sub.Status,
		"webhook_event_id":    event.ID,
	}); err != nil {
		return err
	}

	// A notify failure after a successful upsert must not turn the event
	// into a reported failure, or the sender would redeliver for nothing.
	if event.Type != EventSubscriptionDeleted {
		message := subscriptionCanceledMessage
		kind := NotificationWarning
		if isActive {
			message = fmt.Sprintf(subscriptionActiveMessage, tier)
			kind = NotificationSuccess
		}
		p.notify(ctx, email, subscriptionNotificationTitle, message, kind)
	}

	p.logger.Info("subscription event processed",
		Field{"email", email},
		Field{"subscribed", isActive},
		Field{"tier", tierLabel(tier)},
	)
	return nil
}

// handlePaymentSucceeded notifies the user of a confirmed payment and
// records it in the audit log. No projection state changes on this path.
func (p *Pipeline) handlePaymentSucceeded(ctx context.Context, event *Event) error {
	inv := event.Invoice
	if inv == nil {
		return fmt.Errorf("%w: invoice event %s has no invoice", ErrInvalidEvent, event.ID)
	}

	p.logger.Info("handling payment succeeded",
		Field{"invoice_id", inv.ID},
		Field{"customer_id", inv.CustomerID},
	)

	email, err := p.customers.CustomerEmail(ctx, inv.CustomerID)
	if err != nil {
		if errors.Is(err, ErrNoCustomerEmail) {
			p.logger.Info("no customer email found", Field{"customer_id", inv.CustomerID})
			p.metrics.RecordResolutionMiss("customer_email")
			return nil
		}
		return fmt.Errorf("failed to resolve customer %s: %w", inv.CustomerID, err)
	}

	message := fmt.Sprintf(paymentSucceededMessage, float64(inv.AmountPaid)/100)
	p.notify(ctx, email, paymentSucceededTitle, message, NotificationSuccess)

	return p.appendAudit(ctx, AuditInfo, "Payment succeeded", map[string]any{
		"customer_email": email,
		"amount":         inv.AmountPaid,
		"invoice_id":     inv.ID,
	})
}

// handlePaymentFailed warns the user with a generic message (the provider's
// failure reason is not surfaced) and records a warn-level audit entry.
func (p *Pipeline) handlePaymentFailed(ctx context.Context, event *Event) error {
	inv := event.Invoice
	if inv == nil {
		return fmt.Errorf("%w: invoice event %s has no invoice", ErrInvalidEvent, event.ID)
	}

	p.logger.Info("handling payment failed",
		Field{"invoice_id", inv.ID},
		Field{"customer_id", inv.CustomerID},
	)

	email, err := p.customers.CustomerEmail(ctx, inv.CustomerID)
	if err != nil {
		if errors.Is(err, ErrNoCustomerEmail) {
			p.logger.Info("no customer email found", Field{"customer_id", inv.CustomerID})
			p.metrics.RecordResolutionMiss("customer_email")
			return nil
		}
		return fmt.Errorf("failed to resolve customer %s: %w", inv.CustomerID, err)
	}

	p.notify(ctx, email, paymentFailedTitle, paymentFailedMessage, NotificationError)

	return p.appendAudit(ctx, AuditWarn, "Payment failed", map[string]any{
		"customer_email": email,
		"amount":         inv.AmountDue,
		"invoice_id":     inv.ID,
	})
}

// handleUnknownEvent traces an unhandled provider type at info level and
// acknowledges it. Never an error: unknown future event types must not
// cause a failure response.
func (p *Pipeline) handleUnknownEvent(ctx context.Context, event *Event) error {
	p.logger.Info("unhandled event type", Field{"event_type", event.ProviderType})
	p.metrics.RecordUnhandledEvent(event.ProviderType)

	return p.appendAudit(ctx, AuditInfo, "Unhandled event type", map[string]any{
		"event_type":       event.ProviderType,
		"webhook_event_id": event.ID,
	})
}

// notify resolves the email to a platform user and inserts an inbox
// notification. Misses and failures are logged, never returned.
func (p *Pipeline) notify(ctx context.Context, email, title, message string, kind NotificationType) {
	userID, err := p.users.UserIDByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			p.logger.Debug("no platform user for email", Field{"email", email})
			p.metrics.RecordResolutionMiss("user_id")
			p.metrics.RecordNotification(string(kind), "skipped")
			return
		}
		p.logger.Warn("user lookup failed", Field{"email", email}, Field{"error", err})
		p.metrics.RecordNotification(string(kind), "failed")
		return
	}

	if err := p.notifications.CreateNotification(ctx, &Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      kind,
		CreatedAt: p.now(),
	}); err != nil {
		p.logger.Warn("notification insert failed",
			Field{"user_id", userID},
			Field{"error", err},
		)
		p.metrics.RecordNotification(string(kind), "failed")
		return
	}
	p.metrics.RecordNotification(string(kind), "created")
}

// appendAudit writes one audit entry. Audit failures propagate: the audit
// trail is part of the event's durable outcome, and redelivery will safely
// re-run the idempotent writes that preceded it.
func (p *Pipeline) appendAudit(ctx context.Context, level AuditLevel, message string, logContext map[string]any) error {
	if err := p.audit.AppendAudit(ctx, &AuditEntry{
		Level:     level,
		Message:   message,
		Context:   logContext,
		CreatedAt: p.now(),
	}); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	p.metrics.RecordAuditEntry(string(level))
	return nil
}

// tierLabel renders a tier for logs, metrics and audit context.
func tierLabel(t Tier) string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}
