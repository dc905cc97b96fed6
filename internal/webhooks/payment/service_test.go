package paymentwebhook

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/internal/orders"
	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/pagination"
)

type stubOrderRepo struct {
	order *models.Order

	webhookEventErr error
	savedEvents     []*models.WebhookEvent

	transitionMoved bool
	transitionErr   error
	transitions     []orders.PaymentTransition

	updates []map[string]any
	history []*models.OrderStatusHistory
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubOrderRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (s *stubOrderRepo) NextOrderNumber(ctx context.Context) (int64, error) { return 1001, nil }

func (s *stubOrderRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrderRepo) FindOrderWithDetail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, id)
}

func (s *stubOrderRepo) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	if s.order == nil || s.order.RazorpayOrderID == nil || *s.order.RazorpayOrderID != gatewayOrderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrderRepo) ListOrdersByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrderRepo) ListOrdersByProductionStage(ctx context.Context, stage enums.ProductionStatus) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) ListCriticalOrders(ctx context.Context, now time.Time, window time.Duration) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) TransitionPayment(ctx context.Context, orderID uuid.UUID, transition orders.PaymentTransition) (bool, error) {
	s.transitions = append(s.transitions, transition)
	return s.transitionMoved, s.transitionErr
}

func (s *stubOrderRepo) TransitionProduction(ctx context.Context, orderID uuid.UUID, from, to enums.ProductionStatus, updates map[string]any) (bool, error) {
	return false, nil
}

func (s *stubOrderRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.updates = append(s.updates, updates)
	return nil
}

func (s *stubOrderRepo) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, entry)
	return nil
}

func (s *stubOrderRepo) ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return nil, nil
}

func (s *stubOrderRepo) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	if s.webhookEventErr != nil {
		return s.webhookEventErr
	}
	s.savedEvents = append(s.savedEvents, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRefundCompleter struct {
	calls int
	err   error
}

func (s *stubRefundCompleter) CompleteActiveRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	s.calls++
	return s.err == nil, s.err
}

func paidEvent(orderID uuid.UUID, gatewayOrderID string) *Event {
	return &Event{
		EventID:   "evt_" + uuid.NewString(),
		Type:      EventOrderPaid,
		CreatedAt: time.Now().Unix(),
		Payload: Payload{
			Payment: EntityWrapper{Entity: &Entity{
				ID:      "pay_123",
				OrderID: gatewayOrderID,
				Notes:   map[string]string{"order_id": orderID.String()},
			}},
		},
	}
}

func newTestService(t *testing.T, repo *stubOrderRepo, refunds *stubRefundCompleter) *Service {
	t.Helper()
	if refunds == nil {
		refunds = &stubRefundCompleter{}
	}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: stubTxRunner{},
		Refunds:           refunds,
	})
	require.NoError(t, err)
	return svc
}

func TestHandleEventAppliesOrderPaid(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		order: &models.Order{
			ID:            orderID,
			PaymentStatus: enums.PaymentStatusPending,
		},
		transitionMoved: true,
	}
	svc := newTestService(t, repo, nil)

	outcome, err := svc.HandleEvent(context.Background(), paidEvent(orderID, "order_rzp_1"), []byte(`{"event":"order.paid"}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	require.Len(t, repo.transitions, 1)
	transition := repo.transitions[0]
	assert.Equal(t, enums.PaymentStatusPaid, transition.To)
	assert.Equal(t, []enums.PaymentStatus{enums.PaymentStatusPending}, transition.From)
	assert.Equal(t, "pay_123", transition.Updates["razorpay_payment_id"])
	require.NotNil(t, transition.EventAt)

	require.Len(t, repo.savedEvents, 1)
	assert.Equal(t, Source, repo.savedEvents[0].Source)

	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.MachinePayment, repo.history[0].Machine)
	assert.Equal(t, enums.PaymentStatusPaid.String(), repo.history[0].Status)
	assert.Equal(t, "system (payment webhook)", repo.history[0].Actor)
}

type stubDetailCache struct {
	dels []string
}

func (c *stubDetailCache) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("cache miss")
}

func (c *stubDetailCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (c *stubDetailCache) Del(ctx context.Context, keys ...string) error {
	c.dels = append(c.dels, keys...)
	return nil
}

func (c *stubDetailCache) CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

func TestHandleEventDropsCachedOrderView(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		order: &models.Order{
			ID:            orderID,
			PaymentStatus: enums.PaymentStatusPending,
		},
		transitionMoved: true,
	}
	cache := &stubDetailCache{}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: stubTxRunner{},
		Refunds:           &stubRefundCompleter{},
		Cache:             cache,
	})
	require.NoError(t, err)

	outcome, err := svc.HandleEvent(context.Background(), paidEvent(orderID, "order_rzp_1"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Contains(t, cache.dels, orders.DetailCacheKey(cache, orderID))
}

func TestHandleEventDuplicateIsNoOp(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		order:           &models.Order{ID: orderID, PaymentStatus: enums.PaymentStatusPaid},
		webhookEventErr: errors.New(`duplicate key value violates unique constraint "uq_webhook_events_event_id"`),
	}
	svc := newTestService(t, repo, nil)

	outcome, err := svc.HandleEvent(context.Background(), paidEvent(orderID, "order_rzp_1"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, repo.transitions)
	assert.Empty(t, repo.history)
}

func TestHandleEventStaleFailureAfterSuccess(t *testing.T) {
	orderID := uuid.New()
	appliedAt := time.Now().UTC()
	repo := &stubOrderRepo{
		order: &models.Order{
			ID:             orderID,
			PaymentStatus:  enums.PaymentStatusPaid,
			PaymentEventAt: &appliedAt,
		},
		transitionMoved: false,
	}
	svc := newTestService(t, repo, nil)

	event := paidEvent(orderID, "order_rzp_1")
	event.Type = EventPaymentFailed
	event.CreatedAt = appliedAt.Add(-time.Minute).Unix()

	outcome, err := svc.HandleEvent(context.Background(), event, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)
	assert.Empty(t, repo.history, "a rejected transition must not write a ledger row")
}

func TestHandleEventResolvesByGatewayOrderID(t *testing.T) {
	orderID := uuid.New()
	gatewayID := "order_rzp_77"
	repo := &stubOrderRepo{
		order: &models.Order{
			ID:              orderID,
			PaymentStatus:   enums.PaymentStatusPending,
			RazorpayOrderID: &gatewayID,
		},
		transitionMoved: true,
	}
	svc := newTestService(t, repo, nil)

	event := paidEvent(orderID, gatewayID)
	event.Payload.Payment.Entity.Notes = nil

	outcome, err := svc.HandleEvent(context.Background(), event, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
}

func TestHandleEventUnresolvedOrder(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := newTestService(t, repo, nil)

	event := paidEvent(uuid.New(), "order_rzp_unknown")

	_, err := svc.HandleEvent(context.Background(), event, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnresolved))
	assert.Empty(t, repo.savedEvents)
}

func TestHandleEventRefundProcessedCompletesReturn(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		order: &models.Order{
			ID:            orderID,
			PaymentStatus: enums.PaymentStatusRefundInitiated,
		},
		transitionMoved: true,
	}
	refunds := &stubRefundCompleter{}
	svc := newTestService(t, repo, refunds)

	event := &Event{
		EventID:   "evt_refund",
		Type:      EventRefundProcessed,
		CreatedAt: time.Now().Unix(),
		Payload: Payload{
			Refund: EntityWrapper{Entity: &Entity{
				ID:    "rfnd_1",
				Notes: map[string]string{"order_id": orderID.String()},
			}},
		},
	}

	outcome, err := svc.HandleEvent(context.Background(), event, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 1, refunds.calls)

	require.Len(t, repo.transitions, 1)
	assert.Equal(t, enums.PaymentStatusRefunded, repo.transitions[0].To)
	assert.Equal(t, []enums.PaymentStatus{enums.PaymentStatusRefundInitiated}, repo.transitions[0].From)
}

func TestHandleEventUnknownTypeIgnored(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrderRepo{
		order: &models.Order{ID: orderID, PaymentStatus: enums.PaymentStatusPaid},
	}
	svc := newTestService(t, repo, nil)

	event := paidEvent(orderID, "order_rzp_1")
	event.Type = "payment.downtime.started"

	outcome, err := svc.HandleEvent(context.Background(), event, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, repo.transitions)
	require.Len(t, repo.savedEvents, 1, "unknown events still get a dedup record")
}
