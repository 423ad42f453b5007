package stripe

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/psicoplan/billingsync/pkg/billing/internal"
)

// handleWebhook processes one incoming Stripe webhook delivery: verify the
// signature over the raw body bytes, decode the envelope, hand it to the
// pipeline. A 500 response makes Stripe redeliver later; a 400 tells it the
// delivery itself was bad and retrying is the sender's problem.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	internal.SetCORSHeaders(w)

	// Browser preflight: answer immediately, no body processing.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Missing key material is a deployment problem, not a per-event error.
	if len(p.webhookSecret) == 0 {
		p.metrics.RecordWebhookError(providerName, "not_configured")
		writeError(w, http.StatusInternalServerError, "webhook secret not configured")
		return
	}

	// Read the raw body; the signature covers the exact byte sequence sent.
	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("stripe-signature")
	}

	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		// Expected and silent at the business level: a malicious or
		// misconfigured sender. Nothing has been written yet.
		http.Error(w, fmt.Sprintf("Webhook Error: %v", err), http.StatusBadRequest)
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	pipelineEvent, err := decodeEvent(&event)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return
	}

	if err := p.pipeline.HandleEvent(r.Context(), pipelineEvent); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})

	p.metrics.RecordWebhookEvent(providerName, eventType, "success")
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
}

func writeError(w http.ResponseWriter, code int, message string) {
	_ = internal.WriteJSON(w, code, map[string]string{"error": message})
}
