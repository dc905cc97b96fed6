package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/internal/orders"
	pkgdb "github.com/anvaya/commerce-backend/pkg/db"
	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
)

// Source identifies this receiver in webhook_events rows and metrics.
const Source = "razorpay"

const actorSystem = "system (payment webhook)"

// Outcome describes what applying an event actually did. Everything except
// OutcomeFailed maps to a 200 towards the gateway.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	OutcomeIgnored   Outcome = "ignored"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RefundCompleter closes the active return request once the gateway confirms
// the refund. Implemented by the returns repository.
type RefundCompleter interface {
	CompleteActiveRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

type ServiceParams struct {
	Repo              orders.Repository
	TransactionRunner txRunner
	Refunds           RefundCompleter

	// Cache is optional; when set, applied events drop the cached order view.
	Cache orders.DetailCache
}

// Service applies payment gateway events to order state, effectively
// exactly-once under at-least-once, out-of-order delivery.
type Service struct {
	repo    orders.Repository
	tx      txRunner
	refunds RefundCompleter
	cache   orders.DetailCache
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund completer required")
	}
	return &Service{
		repo:    params.Repo,
		tx:      params.TransactionRunner,
		refunds: params.Refunds,
		cache:   params.Cache,
	}, nil
}

// HandleEvent resolves the event to an order and applies it. The returned
// outcome is informational; an error is returned only for failures that
// should surface as 5xx so the gateway retries.
func (s *Service) HandleEvent(ctx context.Context, event *Event, rawPayload []byte) (Outcome, error) {
	if event == nil {
		return OutcomeIgnored, pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	order, err := s.resolveOrder(ctx, event)
	if err != nil {
		return OutcomeIgnored, err
	}

	occurredAt := event.OccurredAt()
	outcome := OutcomeIgnored

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := s.recordEvent(ctx, repo, event, order.ID, occurredAt, rawPayload); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				outcome = OutcomeDuplicate
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}

		applied, err := s.applyTransition(ctx, tx, repo, event, order, occurredAt)
		if err != nil {
			return err
		}
		outcome = applied
		return nil
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	// The authorized-merge path mutates the order without changing outcome,
	// so the cached view is dropped whenever the transaction committed.
	orders.InvalidateDetail(ctx, s.cache, order.ID)
	return outcome, nil
}

// resolveOrder prefers the internal order id carried in event metadata and
// falls back to the gateway order id.
func (s *Service) resolveOrder(ctx context.Context, event *Event) (*models.Order, error) {
	if metaID := event.MetadataOrderID(); metaID != "" {
		if id, err := uuid.Parse(metaID); err == nil {
			order, err := s.repo.FindOrder(ctx, id)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by metadata id")
			}
		}
	}

	entity := event.PrimaryEntity()
	if entity == nil || entity.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnresolved, "event carries no order reference")
	}
	order, err := s.repo.FindOrderByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnresolved, "no order matches gateway order id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by gateway id")
	}
	return order, nil
}

func (s *Service) recordEvent(ctx context.Context, repo orders.Repository, event *Event, orderID uuid.UUID, occurredAt time.Time, rawPayload []byte) error {
	var payload map[string]any
	if len(rawPayload) > 0 {
		// Best effort; an unparseable payload still gets a dedup row.
		_ = json.Unmarshal(rawPayload, &payload)
	}
	oid := orderID
	return repo.CreateWebhookEvent(ctx, &models.WebhookEvent{
		EventID:    event.EventID,
		Source:     Source,
		EventType:  event.Type,
		OrderID:    &oid,
		Payload:    payload,
		OccurredAt: occurredAt,
	})
}

func (s *Service) applyTransition(ctx context.Context, tx *gorm.DB, repo orders.Repository, event *Event, order *models.Order, occurredAt time.Time) (Outcome, error) {
	entity := event.PrimaryEntity()

	switch event.Type {
	case EventPaymentCaptured, EventOrderPaid:
		updates := map[string]any{}
		if entity != nil && entity.ID != "" {
			updates["razorpay_payment_id"] = entity.ID
		}
		return s.transition(ctx, repo, order.ID, orders.PaymentTransition{
			From:    []enums.PaymentStatus{enums.PaymentStatusPending},
			To:      enums.PaymentStatusPaid,
			EventAt: &occurredAt,
			Updates: updates,
		}, order)

	case EventPaymentFailed:
		// Only cancels a pre-payment order; a failure event arriving after a
		// success for the same transaction must not regress the state.
		return s.transition(ctx, repo, order.ID, orders.PaymentTransition{
			From:    []enums.PaymentStatus{enums.PaymentStatusPending},
			To:      enums.PaymentStatusCancelled,
			EventAt: &occurredAt,
			Updates: map[string]any{"cancelled_at": occurredAt},
		}, order)

	case EventPaymentAuthorized:
		// Authorization is not confirmation; merge the payment reference only.
		if entity != nil && entity.ID != "" {
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"razorpay_payment_id": entity.ID}); err != nil {
				return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge payment reference")
			}
		}
		return OutcomeIgnored, nil

	case EventRefundProcessed:
		outcome, err := s.transition(ctx, repo, order.ID, orders.PaymentTransition{
			From:    []enums.PaymentStatus{enums.PaymentStatusRefundInitiated},
			To:      enums.PaymentStatusRefunded,
			EventAt: &occurredAt,
		}, order)
		if err != nil || outcome != OutcomeApplied {
			return outcome, err
		}
		if _, err := s.refunds.CompleteActiveRefund(ctx, tx, order.ID); err != nil {
			return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete return refund")
		}
		return outcome, nil

	default:
		return OutcomeIgnored, nil
	}
}

func (s *Service) transition(ctx context.Context, repo orders.Repository, orderID uuid.UUID, t orders.PaymentTransition, order *models.Order) (Outcome, error) {
	moved, err := repo.TransitionPayment(ctx, orderID, t)
	if err != nil {
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition payment status")
	}
	if !moved {
		if order.PaymentEventAt != nil && t.EventAt != nil && !t.EventAt.After(*order.PaymentEventAt) {
			return OutcomeStale, nil
		}
		return OutcomeIgnored, nil
	}

	// Exactly one ledger row per actual transition.
	entry := &models.OrderStatusHistory{
		OrderID: orderID,
		Machine: enums.MachinePayment,
		Status:  t.To.String(),
		Actor:   actorSystem,
	}
	if err := repo.AppendStatusHistory(ctx, entry); err != nil {
		return OutcomeIgnored, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}
	return OutcomeApplied, nil
}
