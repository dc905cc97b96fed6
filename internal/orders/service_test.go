package orders

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

	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/pagination"
	"github.com/anvaya/commerce-backend/pkg/types"
)

type stubRepo struct {
	orders map[uuid.UUID]*models.Order

	itemsErr    error
	history     []*models.OrderStatusHistory
	detailCalls int
}

func newStubRepo() *stubRepo {
	return &stubRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	return s.itemsErr
}

func (s *stubRepo) NextOrderNumber(ctx context.Context) (int64, error) { return 1001, nil }

func (s *stubRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubRepo) FindOrderWithDetail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.detailCalls++
	return s.FindOrder(ctx, id)
}

func (s *stubRepo) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) ListOrdersByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return &OrderList{Orders: out}, nil
}

func (s *stubRepo) ListOrdersByProductionStage(ctx context.Context, stage enums.ProductionStatus) ([]models.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListCriticalOrders(ctx context.Context, now time.Time, window time.Duration) ([]models.Order, error) {
	return nil, nil
}

func (s *stubRepo) TransitionPayment(ctx context.Context, orderID uuid.UUID, transition PaymentTransition) (bool, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, from := range transition.From {
		if order.PaymentStatus == from {
			order.PaymentStatus = transition.To
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) TransitionProduction(ctx context.Context, orderID uuid.UUID, from, to enums.ProductionStatus, updates map[string]any) (bool, error) {
	return false, nil
}

func (s *stubRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubRepo) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, entry)
	return nil
}

func (s *stubRepo) ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return nil, nil
}

func (s *stubRepo) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return nil
}

type stubCache struct {
	entries map[string]string
	dels    []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string]string{}}
}

func (c *stubCache) Get(ctx context.Context, key string) (string, error) {
	raw, ok := c.entries[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return raw, nil
}

func (c *stubCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		c.entries[key] = string(v)
	case string:
		c.entries[key] = v
	}
	return nil
}

func (c *stubCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
		c.dels = append(c.dels, key)
	}
	return nil
}

func (c *stubCache) CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testAddress() types.Address {
	return types.Address{
		Name:       "Asha Rao",
		Line1:      "14 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func validInput(userID uuid.UUID) CreateOrderInput {
	return CreateOrderInput{
		UserID:          userID,
		TotalPaise:      1180000,
		TaxPaise:        180000,
		ShippingAddress: testAddress(),
		Items: []CreateOrderItemInput{
			{ProductID: uuid.New(), Name: "Teak bookshelf", Qty: 2, UnitPricePaise: 590000},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo, stubTx{}, nil)
	require.NoError(t, err)

	userID := uuid.New()
	order, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.NoError(t, err)

	assert.Equal(t, int64(1001), order.OrderNumber)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, enums.ProductionStatusNew, order.ProductionStatus)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, testAddress(), order.BillingAddress, "billing falls back to shipping")
	require.Len(t, order.Items, 1)

	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.MachinePayment, repo.history[0].Machine)
	assert.Equal(t, "pending", repo.history[0].Status)
	assert.Equal(t, "user:"+userID.String(), repo.history[0].Actor)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, err := NewService(newStubRepo(), stubTx{}, nil)
	require.NoError(t, err)
	userID := uuid.New()

	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
		code   pkgerrors.Code
	}{
		{"missing user", func(in *CreateOrderInput) { in.UserID = uuid.Nil }, pkgerrors.CodeUnauthorized},
		{"zero total", func(in *CreateOrderInput) { in.TotalPaise = 0 }, pkgerrors.CodeValidation},
		{"no items", func(in *CreateOrderInput) { in.Items = nil }, pkgerrors.CodeValidation},
		{"zero qty", func(in *CreateOrderInput) { in.Items[0].Qty = 0 }, pkgerrors.CodeValidation},
		{"missing address", func(in *CreateOrderInput) { in.ShippingAddress = types.Address{} }, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput(userID)
			tc.mutate(&input)
			_, err := svc.CreateOrder(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, tc.code))
		})
	}
}

func TestCreateOrderRollsBackOnItemFailure(t *testing.T) {
	repo := newStubRepo()
	repo.itemsErr = errors.New("insert failed")
	svc, err := NewService(repo, stubTx{}, nil)
	require.NoError(t, err)

	_, err = svc.CreateOrder(context.Background(), validInput(uuid.New()))
	require.Error(t, err)
	assert.Empty(t, repo.history, "nothing after the failure point runs")
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo, stubTx{}, nil)
	require.NoError(t, err)

	owner := uuid.New()
	order, err := svc.CreateOrder(context.Background(), validInput(owner))
	require.NoError(t, err)

	got, err := svc.GetOrder(context.Background(), owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(context.Background(), uuid.New(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestGetOrderServesFromCache(t *testing.T) {
	repo := newStubRepo()
	cache := newStubCache()
	svc, err := NewService(repo, stubTx{}, cache)
	require.NoError(t, err)

	owner := uuid.New()
	order, err := svc.CreateOrder(context.Background(), validInput(owner))
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.detailCalls)
	assert.Contains(t, cache.entries, DetailCacheKey(cache, order.ID))

	got, err := svc.GetOrder(context.Background(), owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, 1, repo.detailCalls, "second read is served from cache")

	// Ownership is re-checked on cached views too.
	_, err = svc.GetOrder(context.Background(), uuid.New(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCancelOrderDropsCachedDetail(t *testing.T) {
	repo := newStubRepo()
	cache := newStubCache()
	svc, err := NewService(repo, stubTx{}, cache)
	require.NoError(t, err)

	userID := uuid.New()
	order, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), userID, order.ID)
	require.NoError(t, err)
	key := DetailCacheKey(cache, order.ID)
	require.Contains(t, cache.entries, key)

	require.NoError(t, svc.CancelOrder(context.Background(), userID, order.ID))
	assert.NotContains(t, cache.entries, key)
	assert.Contains(t, cache.dels, key)
}

func TestCancelOrderOnlyBeforePayment(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo, stubTx{}, nil)
	require.NoError(t, err)

	userID := uuid.New()
	order, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.NoError(t, err)

	require.NoError(t, svc.CancelOrder(context.Background(), userID, order.ID))
	assert.Equal(t, enums.PaymentStatusCancelled, repo.orders[order.ID].PaymentStatus)

	paid, err := svc.CreateOrder(context.Background(), validInput(userID))
	require.NoError(t, err)
	repo.orders[paid.ID].PaymentStatus = enums.PaymentStatusPaid

	err = svc.CancelOrder(context.Background(), userID, paid.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}
