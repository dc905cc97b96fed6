package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/internal/orders"
	pkgdb "github.com/anvaya/commerce-backend/pkg/db"
	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
)

const activeReturnConstraint = "one_active_return_per_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// adminTransitions lists the return statuses an admin may set from each
// current status. refund_completed is deliberately absent: only the gateway's
// refund confirmation closes a return.
var adminTransitions = map[enums.ReturnStatus][]enums.ReturnStatus{
	enums.ReturnStatusRequested: {
		enums.ReturnStatusApproved,
		enums.ReturnStatusRejected,
		enums.ReturnStatusPickupScheduled,
	},
	enums.ReturnStatusApproved: {
		enums.ReturnStatusPickupScheduled,
		enums.ReturnStatusRefundInitiated,
	},
	enums.ReturnStatusPickupScheduled: {
		enums.ReturnStatusRefundInitiated,
	},
}

// Service defines the return/refund workflow: customers open requests,
// admins decide them, and the payment webhook closes them.
type Service interface {
	CreateReturn(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error)
	GetReturn(ctx context.Context, userID uuid.UUID, isAdmin bool, returnID uuid.UUID) (*models.ReturnRequest, error)
	ListReturns(ctx context.Context, filters ReturnFilters) ([]models.ReturnRequest, error)
	ListUserReturns(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error)
	UpdateReturnStatus(ctx context.Context, input UpdateReturnInput) (*models.ReturnRequest, error)
}

type service struct {
	repo       Repository
	orderRepo  orders.Repository
	tx         txRunner
	orderCache orders.DetailCache
}

// NewService builds the return service with the required dependencies. A nil
// cache disables order-view invalidation.
func NewService(repo Repository, orderRepo orders.Repository, tx txRunner, orderCache orders.DetailCache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, orderRepo: orderRepo, tx: tx, orderCache: orderCache}, nil
}

// CreateReturn opens a request against a delivered (or paid, for
// pre-shipment refunds) order. The refund amount snapshots the order total
// now; later price edits never change what the customer gets back.
func (s *service) CreateReturn(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	order, err := s.orderRepo.FindOrderWithDetail(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid && order.PaymentStatus != enums.PaymentStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not eligible for return")
	}

	items, err := buildReturnItems(order, input.Items)
	if err != nil {
		return nil, err
	}

	var created *models.ReturnRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		request := &models.ReturnRequest{
			ID:                uuid.New(),
			OrderID:           order.ID,
			UserID:            input.UserID,
			Reason:            input.Reason,
			RefundAmountPaise: order.TotalPaise,
			Status:            enums.ReturnStatusRequested,
		}
		if _, err := repo.CreateReturn(ctx, request); err != nil {
			if pkgdb.IsUniqueViolation(err, activeReturnConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "an active return already exists for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
		}

		for i := range items {
			items[i].ReturnRequestID = request.ID
		}
		if err := repo.CreateReturnItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return items")
		}
		request.Items = items

		moved, err := orderRepo.TransitionPayment(ctx, order.ID, orders.PaymentTransition{
			From: []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusDelivered},
			To:   enums.PaymentStatusReturnRequested,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order return_requested")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not eligible for return")
		}

		if err := s.appendHistory(ctx, orderRepo, order.ID, enums.MachineReturn, enums.ReturnStatusRequested.String(), actorUser(input.UserID), nil); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, orderRepo, order.ID, enums.MachinePayment, enums.PaymentStatusReturnRequested.String(), actorUser(input.UserID), nil); err != nil {
			return err
		}

		created = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	orders.InvalidateDetail(ctx, s.orderCache, order.ID)
	return created, nil
}

func (s *service) GetReturn(ctx context.Context, userID uuid.UUID, isAdmin bool, returnID uuid.UUID) (*models.ReturnRequest, error) {
	request, err := s.repo.FindReturn(ctx, returnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if !isAdmin && request.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	return request, nil
}

func (s *service) ListReturns(ctx context.Context, filters ReturnFilters) ([]models.ReturnRequest, error) {
	list, err := s.repo.ListReturns(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return list, nil
}

func (s *service) ListUserReturns(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListReturnsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return list, nil
}

// UpdateReturnStatus applies an admin decision and projects it onto the
// order's payment/delivery status. Moving to refunded is not available here;
// that final step belongs to the gateway's refund confirmation.
func (s *service) UpdateReturnStatus(ctx context.Context, input UpdateReturnInput) (*models.ReturnRequest, error) {
	target, err := enums.ParseReturnStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	request, err := s.repo.FindReturn(ctx, input.ReturnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if request.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request is closed")
	}
	if !transitionAllowed(request.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move return from %s to %s", request.Status, target))
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": target}
	if input.AdminNotes != nil {
		updates["admin_notes"] = *input.AdminNotes
	}
	if target == enums.ReturnStatusPickupScheduled {
		updates["pickup_scheduled_at"] = now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		if err := repo.UpdateReturn(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return request")
		}
		if err := s.appendHistory(ctx, orderRepo, request.OrderID, enums.MachineReturn, target.String(), actorAdmin(input.AdminID), input.AdminNotes); err != nil {
			return err
		}
		return s.projectOntoOrder(ctx, orderRepo, request.OrderID, target, input.AdminID, now)
	})
	if err != nil {
		return nil, err
	}
	orders.InvalidateDetail(ctx, s.orderCache, request.OrderID)
	return s.repo.FindReturn(ctx, request.ID)
}

// projectOntoOrder mirrors the return decision onto the order's
// payment/delivery machine. A rejection restores the order to delivered so
// the customer can try again later.
func (s *service) projectOntoOrder(ctx context.Context, orderRepo orders.Repository, orderID uuid.UUID, target enums.ReturnStatus, adminID uuid.UUID, now time.Time) error {
	var transition *orders.PaymentTransition
	tolerateNoMove := false
	switch target {
	case enums.ReturnStatusApproved:
		transition = &orders.PaymentTransition{
			From: []enums.PaymentStatus{enums.PaymentStatusReturnRequested},
			To:   enums.PaymentStatusReturnApproved,
		}
	case enums.ReturnStatusPickupScheduled:
		// Scheduling a pickup straight from requested implies approval. When
		// the return was already approved the order holds that state and the
		// conditional write is a no-op.
		transition = &orders.PaymentTransition{
			From: []enums.PaymentStatus{enums.PaymentStatusReturnRequested},
			To:   enums.PaymentStatusReturnApproved,
		}
		tolerateNoMove = true
	case enums.ReturnStatusRejected:
		transition = &orders.PaymentTransition{
			From: []enums.PaymentStatus{enums.PaymentStatusReturnRequested},
			To:   enums.PaymentStatusDelivered,
		}
	case enums.ReturnStatusRefundInitiated:
		transition = &orders.PaymentTransition{
			From: []enums.PaymentStatus{enums.PaymentStatusReturnApproved},
			To:   enums.PaymentStatusRefundInitiated,
		}
	default:
		return nil
	}

	moved, err := orderRepo.TransitionPayment(ctx, orderID, *transition)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project return decision onto order")
	}
	if !moved {
		if tolerateNoMove {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently")
	}
	return s.appendHistory(ctx, orderRepo, orderID, enums.MachinePayment, transition.To.String(), actorAdmin(adminID), nil)
}

func (s *service) appendHistory(ctx context.Context, orderRepo orders.Repository, orderID uuid.UUID, machine enums.StatusMachine, status, actor string, note *string) error {
	entry := &models.OrderStatusHistory{
		OrderID: orderID,
		Machine: machine,
		Status:  status,
		Actor:   actor,
		Note:    note,
	}
	if err := orderRepo.AppendStatusHistory(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}
	return nil
}

func buildReturnItems(order *models.Order, inputs []CreateReturnItemInput) ([]models.ReturnItem, error) {
	byID := make(map[uuid.UUID]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}

	items := make([]models.ReturnItem, 0, len(inputs))
	for _, in := range inputs {
		original, ok := byID[in.OrderItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return item does not belong to this order")
		}
		if in.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return quantity must be at least 1")
		}
		if in.Qty > original.Qty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return quantity exceeds purchased quantity")
		}
		items = append(items, models.ReturnItem{
			ID:          uuid.New(),
			OrderItemID: in.OrderItemID,
			Qty:         in.Qty,
			Reason:      in.Reason,
		})
	}
	return items, nil
}

func transitionAllowed(from, to enums.ReturnStatus) bool {
	for _, candidate := range adminTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func actorUser(id uuid.UUID) string {
	return "user:" + id.String()
}

func actorAdmin(id uuid.UUID) string {
	return "admin:" + id.String()
}
