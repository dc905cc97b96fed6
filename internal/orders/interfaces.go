package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	"github.com/anvaya/commerce-backend/pkg/pagination"
)

// OrderFilters narrows user-facing order listings.
type OrderFilters struct {
	PaymentStatus *enums.PaymentStatus
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PaymentTransition describes a conditional write against the
// payment/delivery machine. The update applies only when the order's current
// status is in From, and (when EventAt is set) no newer gateway event has
// already been applied. A lost race is a no-op, not an overwrite.
type PaymentTransition struct {
	From    []enums.PaymentStatus
	To      enums.PaymentStatus
	EventAt *time.Time
	Updates map[string]any
}

// Repository is the persistence surface for the order aggregate and its
// append-only status ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	NextOrderNumber(ctx context.Context) (int64, error)

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderWithDetail(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListOrdersByProductionStage(ctx context.Context, stage enums.ProductionStatus) ([]models.Order, error)
	ListCriticalOrders(ctx context.Context, now time.Time, window time.Duration) ([]models.Order, error)

	TransitionPayment(ctx context.Context, orderID uuid.UUID, transition PaymentTransition) (bool, error)
	TransitionProduction(ctx context.Context, orderID uuid.UUID, from, to enums.ProductionStatus, updates map[string]any) (bool, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error

	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)

	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
}
