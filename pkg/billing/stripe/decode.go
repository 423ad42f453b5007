package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

// decodeEvent converts a verified Stripe event into the provider-neutral
// envelope the pipeline consumes. Payloads are decoded from the raw event
// JSON rather than the SDK structs so that deliveries from older Stripe API
// versions decode the same way.
func decodeEvent(event *stripe.Event) (*billingsync.Event, error) {
	out := &billingsync.Event{
		ID:           event.ID,
		ProviderType: string(event.Type),
		Type:         billingsync.ClassifyEventType(string(event.Type)),
	}

	switch {
	case out.Type.IsSubscription():
		sub, err := decodeSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Subscription = sub
	case out.Type == billingsync.EventPaymentSucceeded || out.Type == billingsync.EventPaymentFailed:
		inv, err := decodeInvoice(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Invoice = inv
	}

	return out, nil
}

type subscriptionPayload struct {
	ID               string          `json:"id"`
	Customer         json.RawMessage `json:"customer"`
	Status           string          `json:"status"`
	CurrentPeriodEnd int64           `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func decodeSubscription(raw []byte) (*billingsync.SubscriptionState, error) {
	var payload subscriptionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	state := &billingsync.SubscriptionState{
		ID:         payload.ID,
		CustomerID: objectID(payload.Customer),
		Status:     payload.Status,
	}

	// Newer Stripe API versions moved current_period_end from the
	// subscription to its items; accept either location.
	periodEnd := payload.CurrentPeriodEnd
	for _, item := range payload.Items.Data {
		if item.Price.ID != "" {
			state.PriceIDs = append(state.PriceIDs, item.Price.ID)
		}
		if periodEnd == 0 && item.CurrentPeriodEnd > 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodEnd > 0 {
		state.CurrentPeriodEnd = time.Unix(periodEnd, 0).UTC()
	}

	return state, nil
}

type invoicePayload struct {
	ID         string          `json:"id"`
	Customer   json.RawMessage `json:"customer"`
	AmountPaid int64           `json:"amount_paid"`
	AmountDue  int64           `json:"amount_due"`
}

func decodeInvoice(raw []byte) (*billingsync.InvoiceState, error) {
	var payload invoicePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	return &billingsync.InvoiceState{
		ID:         payload.ID,
		CustomerID: objectID(payload.Customer),
		AmountPaid: payload.AmountPaid,
		AmountDue:  payload.AmountDue,
	}, nil
}

// objectID accepts both a bare id string and an expanded object, the two
// shapes Stripe uses for references depending on expansion settings.
func objectID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
