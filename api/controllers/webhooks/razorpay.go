package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/anvaya/commerce-backend/api/responses"
	paymentwebhook "github.com/anvaya/commerce-backend/internal/webhooks/payment"
	"github.com/anvaya/commerce-backend/pkg/config"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/logger"
	"github.com/anvaya/commerce-backend/pkg/metrics"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

type paymentEventHandler interface {
	HandleEvent(ctx context.Context, event *paymentwebhook.Event, rawPayload []byte) (paymentwebhook.Outcome, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// RazorpayWebhook receives payment gateway events. The signature covers the
// raw body, so verification happens before any parsing.
func RazorpayWebhook(svc paymentEventHandler, guard webhookGuard, cfg config.RazorpayConfig, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		m.IncReceived(paymentwebhook.Source)

		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook receiver unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			m.IncFailed(paymentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !verifyRazorpaySignature(payload, r.Header.Get(razorpaySignatureHeader), cfg.WebhookSecret) {
			m.IncFailed(paymentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "signature mismatch"))
			return
		}

		eventID := strings.TrimSpace(r.Header.Get(razorpayEventIDHeader))
		if eventID == "" {
			m.IncFailed(paymentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id header missing"))
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, eventID)
		}

		var event paymentwebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			m.IncFailed(paymentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed event payload"))
			return
		}
		event.EventID = eventID

		seen, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			m.IncFailed(paymentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			m.IncDuplicate(paymentwebhook.Source)
			responses.WriteSuccess(w, map[string]string{"outcome": string(paymentwebhook.OutcomeDuplicate)})
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event, payload)
		if err != nil {
			// An unresolvable order is acknowledged so the gateway stops
			// retrying; everything else releases the guard for a retry.
			if pkgerrors.HasCode(err, pkgerrors.CodeUnresolved) {
				if logg != nil {
					logg.Warn(ctx, "payment webhook could not be resolved to an order")
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}
			_ = guard.Delete(ctx, eventID)
			m.IncFailed(paymentwebhook.Source)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		switch outcome {
		case paymentwebhook.OutcomeApplied:
			m.IncApplied(paymentwebhook.Source)
		case paymentwebhook.OutcomeDuplicate:
			m.IncDuplicate(paymentwebhook.Source)
		case paymentwebhook.OutcomeStale:
			m.IncStale(paymentwebhook.Source)
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

func verifyRazorpaySignature(payload []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
