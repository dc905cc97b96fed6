package shipmentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/internal/orders"
	pkgdb "github.com/anvaya/commerce-backend/pkg/db"
	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
)

// Source identifies this receiver in webhook_events rows and metrics.
const Source = "shiprocket"

const actorSystem = "system (carrier webhook)"

// Outcome describes what applying a scan actually did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              orders.Repository
	TransactionRunner txRunner

	// Cache is optional; when set, processed scans drop the cached order view.
	Cache orders.DetailCache
}

// Service applies carrier tracking scans to orders. Every scan merges
// tracking metadata; only allow-listed statuses move order state, and only
// along legal edges, so replays and late scans are harmless.
type Service struct {
	repo  orders.Repository
	tx    txRunner
	cache orders.DetailCache
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{repo: params.Repo, tx: params.TransactionRunner, cache: params.Cache}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *Event, rawPayload []byte) (Outcome, error) {
	if event == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeUnresolved, "order_id is not a known order reference")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeUnresolved, "no order matches order_id")
		}
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	occurredAt := event.OccurredAt()
	outcome := OutcomeIgnored

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.recordEvent(ctx, repo, event, order.ID, rawPayload); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				outcome = OutcomeDuplicate
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}

		if updates := trackingUpdates(event); len(updates) > 0 {
			if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge tracking metadata")
			}
		}

		target, mapped := MapCarrierStatus(event.CurrentStatus)
		if !mapped || target == order.PaymentStatus {
			return nil
		}
		from, ok := allowedFrom[target]
		if !ok {
			return nil
		}

		transition := orders.PaymentTransition{From: from, To: target}
		if target == enums.PaymentStatusDelivered {
			transition.Updates = map[string]any{"delivered_at": occurredAt}
		}
		if target == enums.PaymentStatusCancelled {
			transition.Updates = map[string]any{"cancelled_at": occurredAt}
		}
		moved, err := repo.TransitionPayment(ctx, order.ID, transition)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition order status")
		}
		if !moved {
			return nil
		}

		note := event.CurrentStatus
		if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: order.ID,
			Machine: enums.MachinePayment,
			Status:  target.String(),
			Actor:   actorSystem,
			Note:    &note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	// Tracking metadata merges even when no status transition happened, so
	// the cached view is dropped whenever the transaction committed.
	orders.InvalidateDetail(ctx, s.cache, order.ID)
	return outcome, nil
}

func (s *Service) recordEvent(ctx context.Context, repo orders.Repository, event *Event, orderID uuid.UUID, rawPayload []byte) error {
	var payload map[string]any
	if len(rawPayload) > 0 {
		_ = json.Unmarshal(rawPayload, &payload)
	}
	oid := orderID
	return repo.CreateWebhookEvent(ctx, &models.WebhookEvent{
		EventID:    event.DedupKey(),
		Source:     Source,
		EventType:  event.CurrentStatus,
		OrderID:    &oid,
		Payload:    payload,
		OccurredAt: event.OccurredAt(),
	})
}

// trackingUpdates collects the shipment metadata carried by the scan. Fields
// the carrier omitted are left untouched.
func trackingUpdates(event *Event) map[string]any {
	updates := map[string]any{}
	if event.AWB != "" {
		updates["awb_code"] = event.AWB
	}
	if event.CourierName != "" {
		updates["courier_name"] = event.CourierName
	}
	if event.ShipmentID > 0 {
		updates["shipment_id"] = strconv.FormatInt(event.ShipmentID, 10)
	}
	return updates
}
