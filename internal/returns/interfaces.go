package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
)

// ReturnFilters narrows the admin return queue.
type ReturnFilters struct {
	Status *enums.ReturnStatus
}

// Repository is the persistence surface for return requests. The database
// enforces at most one non-terminal request per order; CreateReturn surfaces
// that as a unique violation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateReturn(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error)
	CreateReturnItems(ctx context.Context, items []models.ReturnItem) error

	FindReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	ListReturns(ctx context.Context, filters ReturnFilters) ([]models.ReturnRequest, error)
	ListReturnsByUser(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error)

	UpdateReturn(ctx context.Context, id uuid.UUID, updates map[string]any) error

	// CompleteActiveRefund moves the order's refund_initiated request to
	// refund_completed inside the caller's transaction. Returns false when no
	// request was in that state.
	CompleteActiveRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}
