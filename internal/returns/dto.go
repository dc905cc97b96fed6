package returns

import "github.com/google/uuid"

// CreateReturnItemInput references one order item being sent back.
type CreateReturnItemInput struct {
	OrderItemID uuid.UUID
	Qty         int
	Reason      *string
}

// CreateReturnInput carries a customer's return request for a delivered
// order.
type CreateReturnInput struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	Reason  string
	Items   []CreateReturnItemInput
}

// UpdateReturnInput is the admin decision on a pending request.
type UpdateReturnInput struct {
	AdminID    uuid.UUID
	ReturnID   uuid.UUID
	Status     string
	AdminNotes *string
}
