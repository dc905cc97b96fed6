package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the order intake and customer-facing order operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error
}

type service struct {
	repo  Repository
	tx    txRunner
	cache DetailCache
}

// NewService builds the order service with the required dependencies. A nil
// cache disables the detail-view cache.
func NewService(repo Repository, tx txRunner, cache DetailCache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, cache: cache}, nil
}

// CreateOrder creates the order row and its items as one atomic unit. Any
// item insert failure rolls the whole aggregate back; a payable order with
// zero items must not survive.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.TotalPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if input.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product reference required")
		}
		if item.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be at least 1")
		}
		if item.UnitPricePaise < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative")
		}
	}

	billing := input.BillingAddress
	if billing.IsZero() {
		billing = input.ShippingAddress
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := &models.Order{
			ID:               uuid.New(),
			OrderNumber:      number,
			UserID:           input.UserID,
			Currency:         "INR",
			TotalPaise:       input.TotalPaise,
			TaxPaise:         input.TaxPaise,
			ShippingAddress:  input.ShippingAddress,
			BillingAddress:   billing,
			PaymentStatus:    enums.PaymentStatusPending,
			ProductionStatus: enums.ProductionStatusNew,
			RazorpayOrderID:  input.GatewayOrderID,
			TargetShipDate:   input.TargetShipDate,
		}

		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(input.Items))
		for _, in := range input.Items {
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        order.ID,
				ProductID:      in.ProductID,
				Name:           in.Name,
				Qty:            in.Qty,
				UnitPricePaise: in.UnitPricePaise,
			})
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		entry := &models.OrderStatusHistory{
			OrderID: order.ID,
			Machine: enums.MachinePayment,
			Status:  enums.PaymentStatusPending.String(),
			Actor:   actorUser(input.UserID),
		}
		if err := repo.AppendStatusHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	// The ownership check runs on cached views too; the cache key is not
	// scoped by user.
	if s.cache != nil {
		if order, ok := cachedDetail(ctx, s.cache, orderID); ok {
			if order.UserID != userID {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return order, nil
		}
	}

	order, err := s.repo.FindOrderWithDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if s.cache != nil {
		storeDetail(ctx, s.cache, order)
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListOrdersByUser(ctx, userID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// CancelOrder is the customer-facing cancellation; it is only legal before
// payment is confirmed. Post-payment reversals go through the return
// workflow instead.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()
		moved, err := repo.TransitionPayment(ctx, order.ID, PaymentTransition{
			From:    []enums.PaymentStatus{enums.PaymentStatusPending},
			To:      enums.PaymentStatusCancelled,
			Updates: map[string]any{"cancelled_at": now},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}
		return repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: order.ID,
			Machine: enums.MachinePayment,
			Status:  enums.PaymentStatusCancelled.String(),
			Actor:   actorUser(userID),
		})
	})
	if err != nil {
		return err
	}
	InvalidateDetail(ctx, s.cache, order.ID)
	return nil
}

func actorUser(id uuid.UUID) string {
	return "user:" + id.String()
}
