package returns

import (
	"context"
	"errors"
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

type stubReturnRepo struct {
	requests  map[uuid.UUID]*models.ReturnRequest
	createErr error
	updates   []map[string]any
}

func newStubReturnRepo(list ...*models.ReturnRequest) *stubReturnRepo {
	repo := &stubReturnRepo{requests: map[uuid.UUID]*models.ReturnRequest{}}
	for _, r := range list {
		repo.requests[r.ID] = r
	}
	return repo
}

func (s *stubReturnRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubReturnRepo) CreateReturn(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.requests[request.ID] = request
	return request, nil
}

func (s *stubReturnRepo) CreateReturnItems(ctx context.Context, items []models.ReturnItem) error {
	return nil
}

func (s *stubReturnRepo) FindReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *request
	return &copied, nil
}

func (s *stubReturnRepo) ListReturns(ctx context.Context, filters ReturnFilters) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	for _, r := range s.requests {
		if filters.Status == nil || r.Status == *filters.Status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *stubReturnRepo) ListReturnsByUser(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error) {
	var out []models.ReturnRequest
	for _, r := range s.requests {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *stubReturnRepo) UpdateReturn(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	request, ok := s.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = append(s.updates, updates)
	if status, ok := updates["status"].(enums.ReturnStatus); ok {
		request.Status = status
	}
	if scheduled, ok := updates["pickup_scheduled_at"].(time.Time); ok {
		request.PickupScheduledAt = &scheduled
	}
	return nil
}

func (s *stubReturnRepo) CompleteActiveRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	for _, r := range s.requests {
		if r.OrderID == orderID && r.Status == enums.ReturnStatusRefundInitiated {
			r.Status = enums.ReturnStatusRefundCompleted
			return true, nil
		}
	}
	return false, nil
}

// stubOrderRepo applies payment transitions in memory with the same
// compare-and-swap semantics as the real repository.
type stubOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	history []*models.OrderStatusHistory
}

func newStubOrderRepo(list ...*models.Order) *stubOrderRepo {
	repo := &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, o := range list {
		repo.orders[o.ID] = o
	}
	return repo
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (s *stubOrderRepo) NextOrderNumber(ctx context.Context) (int64, error) { return 1001, nil }

func (s *stubOrderRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) FindOrderWithDetail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, id)
}

func (s *stubOrderRepo) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
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
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range transition.From {
		if order.PaymentStatus == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	order.PaymentStatus = transition.To
	return true, nil
}

func (s *stubOrderRepo) TransitionProduction(ctx context.Context, orderID uuid.UUID, from, to enums.ProductionStatus, updates map[string]any) (bool, error) {
	return false, nil
}

func (s *stubOrderRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
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
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func deliveredOrder(userID uuid.UUID) *models.Order {
	orderID := uuid.New()
	return &models.Order{
		ID:            orderID,
		UserID:        userID,
		TotalPaise:    1180000,
		PaymentStatus: enums.PaymentStatusDelivered,
		Items: []models.OrderItem{
			{ID: uuid.New(), OrderID: orderID, Qty: 2, UnitPricePaise: 590000},
		},
	}
}

func newTestService(t *testing.T, repo Repository, orderRepo orders.Repository) Service {
	t.Helper()
	svc, err := NewService(repo, orderRepo, stubTxRunner{}, nil)
	require.NoError(t, err)
	return svc
}

func TestCreateReturnSnapshotsRefundAndMarksOrder(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	returnRepo := newStubReturnRepo()
	orderRepo := newStubOrderRepo(order)
	svc := newTestService(t, returnRepo, orderRepo)

	request, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		UserID:  userID,
		OrderID: order.ID,
		Reason:  "damaged in transit",
		Items: []CreateReturnItemInput{
			{OrderItemID: order.Items[0].ID, Qty: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusRequested, request.Status)
	assert.Equal(t, int64(1180000), request.RefundAmountPaise)
	assert.Equal(t, enums.PaymentStatusReturnRequested, orderRepo.orders[order.ID].PaymentStatus)

	require.Len(t, orderRepo.history, 2)
	assert.Equal(t, enums.MachineReturn, orderRepo.history[0].Machine)
	assert.Equal(t, enums.MachinePayment, orderRepo.history[1].Machine)
}

func TestCreateReturnRejectsIneligibleOrder(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	order.PaymentStatus = enums.PaymentStatusShipped
	svc := newTestService(t, newStubReturnRepo(), newStubOrderRepo(order))

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		UserID:  userID,
		OrderID: order.ID,
		Reason:  "changed my mind",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCreateReturnRejectsSecondActiveReturn(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	returnRepo := newStubReturnRepo()
	returnRepo.createErr = errors.New(`duplicate key value violates unique constraint "one_active_return_per_order"`)
	svc := newTestService(t, returnRepo, newStubOrderRepo(order))

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		UserID:  userID,
		OrderID: order.ID,
		Reason:  "damaged",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestCreateReturnValidatesQuantities(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	svc := newTestService(t, newStubReturnRepo(), newStubOrderRepo(order))

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		UserID:  userID,
		OrderID: order.ID,
		Reason:  "damaged",
		Items: []CreateReturnItemInput{
			{OrderItemID: order.Items[0].ID, Qty: 3},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateReturn(context.Background(), CreateReturnInput{
		UserID:  userID,
		OrderID: order.ID,
		Reason:  "damaged",
		Items: []CreateReturnItemInput{
			{OrderItemID: uuid.New(), Qty: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestCreateReturnHidesForeignOrders(t *testing.T) {
	order := deliveredOrder(uuid.New())
	svc := newTestService(t, newStubReturnRepo(), newStubOrderRepo(order))

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		UserID:  uuid.New(),
		OrderID: order.ID,
		Reason:  "damaged",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func activeReturn(order *models.Order, status enums.ReturnStatus) *models.ReturnRequest {
	return &models.ReturnRequest{
		ID:                uuid.New(),
		OrderID:           order.ID,
		UserID:            order.UserID,
		Reason:            "damaged",
		RefundAmountPaise: order.TotalPaise,
		Status:            status,
	}
}

func TestUpdateReturnStatusApproveProjectsOntoOrder(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	order.PaymentStatus = enums.PaymentStatusReturnRequested
	request := activeReturn(order, enums.ReturnStatusRequested)
	orderRepo := newStubOrderRepo(order)
	svc := newTestService(t, newStubReturnRepo(request), orderRepo)

	notes := "photos verified"
	updated, err := svc.UpdateReturnStatus(context.Background(), UpdateReturnInput{
		AdminID:    uuid.New(),
		ReturnID:   request.ID,
		Status:     "approved",
		AdminNotes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusApproved, updated.Status)
	assert.Equal(t, enums.PaymentStatusReturnApproved, orderRepo.orders[order.ID].PaymentStatus)
}

func TestUpdateReturnStatusPickupFromRequestedImpliesApproval(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	order.PaymentStatus = enums.PaymentStatusReturnRequested
	request := activeReturn(order, enums.ReturnStatusRequested)
	orderRepo := newStubOrderRepo(order)
	svc := newTestService(t, newStubReturnRepo(request), orderRepo)

	updated, err := svc.UpdateReturnStatus(context.Background(), UpdateReturnInput{
		AdminID:  uuid.New(),
		ReturnID: request.ID,
		Status:   "pickup_scheduled",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusPickupScheduled, updated.Status)
	assert.NotNil(t, updated.PickupScheduledAt)
	assert.Equal(t, enums.PaymentStatusReturnApproved, orderRepo.orders[order.ID].PaymentStatus)
}

func TestUpdateReturnStatusPickupAfterApprovalKeepsOrderState(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	order.PaymentStatus = enums.PaymentStatusReturnApproved
	request := activeReturn(order, enums.ReturnStatusApproved)
	orderRepo := newStubOrderRepo(order)
	svc := newTestService(t, newStubReturnRepo(request), orderRepo)

	updated, err := svc.UpdateReturnStatus(context.Background(), UpdateReturnInput{
		AdminID:  uuid.New(),
		ReturnID: request.ID,
		Status:   "pickup_scheduled",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusPickupScheduled, updated.Status)
	assert.Equal(t, enums.PaymentStatusReturnApproved, orderRepo.orders[order.ID].PaymentStatus)
}

func TestUpdateReturnStatusRejectRestoresDelivered(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	order.PaymentStatus = enums.PaymentStatusReturnRequested
	request := activeReturn(order, enums.ReturnStatusRequested)
	orderRepo := newStubOrderRepo(order)
	svc := newTestService(t, newStubReturnRepo(request), orderRepo)

	updated, err := svc.UpdateReturnStatus(context.Background(), UpdateReturnInput{
		AdminID:  uuid.New(),
		ReturnID: request.ID,
		Status:   "rejected",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusRejected, updated.Status)
	assert.Equal(t, enums.PaymentStatusDelivered, orderRepo.orders[order.ID].PaymentStatus)
}

func TestUpdateReturnStatusRefundCompletedNotAdminSettable(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	order.PaymentStatus = enums.PaymentStatusRefundInitiated
	request := activeReturn(order, enums.ReturnStatusRefundInitiated)
	svc := newTestService(t, newStubReturnRepo(request), newStubOrderRepo(order))

	_, err := svc.UpdateReturnStatus(context.Background(), UpdateReturnInput{
		AdminID:  uuid.New(),
		ReturnID: request.ID,
		Status:   "refund_completed",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateReturnStatusClosedRequestImmutable(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	request := activeReturn(order, enums.ReturnStatusRejected)
	svc := newTestService(t, newStubReturnRepo(request), newStubOrderRepo(order))

	_, err := svc.UpdateReturnStatus(context.Background(), UpdateReturnInput{
		AdminID:  uuid.New(),
		ReturnID: request.ID,
		Status:   "approved",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCompleteActiveRefundClosesRequest(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID)
	request := activeReturn(order, enums.ReturnStatusRefundInitiated)
	repo := newStubReturnRepo(request)

	done, err := repo.CompleteActiveRefund(context.Background(), nil, order.ID)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, enums.ReturnStatusRefundCompleted, repo.requests[request.ID].Status)

	done, err = repo.CompleteActiveRefund(context.Background(), nil, order.ID)
	require.NoError(t, err)
	assert.False(t, done, "a second confirmation is a no-op")
}
