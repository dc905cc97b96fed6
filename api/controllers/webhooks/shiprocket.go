package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/anvaya/commerce-backend/api/responses"
	shipmentwebhook "github.com/anvaya/commerce-backend/internal/webhooks/shipment"
	"github.com/anvaya/commerce-backend/pkg/config"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/logger"
	"github.com/anvaya/commerce-backend/pkg/metrics"
)

const shiprocketTokenHeader = "X-Api-Key"

type shipmentEventHandler interface {
	HandleEvent(ctx context.Context, event *shipmentwebhook.Event, rawPayload []byte) (shipmentwebhook.Outcome, error)
}

// ShiprocketWebhook receives carrier tracking scans. The carrier sends a
// static shared token instead of a payload signature, and every scan is
// deduplicated durably in the service, so there is no redis guard here.
func ShiprocketWebhook(svc shipmentEventHandler, cfg config.ShiprocketConfig, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		m.IncReceived(shipmentwebhook.Source)

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook receiver unavailable"))
			return
		}

		if !verifyShiprocketToken(r, cfg.WebhookToken) {
			m.IncFailed(shipmentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignature, "webhook token mismatch"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			m.IncFailed(shipmentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var event shipmentwebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			m.IncFailed(shipmentwebhook.Source)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed scan payload"))
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.DedupKey())
		}

		outcome, err := svc.HandleEvent(ctx, &event, payload)
		if err != nil {
			// Carrier pushes scans for channels beyond this store, so an
			// unknown order reference is acknowledged rather than retried.
			if pkgerrors.HasCode(err, pkgerrors.CodeUnresolved) {
				if logg != nil {
					logg.Warn(ctx, "carrier scan could not be resolved to an order")
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}
			m.IncFailed(shipmentwebhook.Source)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		switch outcome {
		case shipmentwebhook.OutcomeApplied:
			m.IncApplied(shipmentwebhook.Source)
		case shipmentwebhook.OutcomeDuplicate:
			m.IncDuplicate(shipmentwebhook.Source)
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

func verifyShiprocketToken(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	presented := strings.TrimSpace(r.Header.Get(shiprocketTokenHeader))
	if presented == "" {
		presented = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
