package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anvaya/commerce-backend/api/middleware"
	"github.com/anvaya/commerce-backend/api/responses"
	"github.com/anvaya/commerce-backend/api/validators"
	internalorders "github.com/anvaya/commerce-backend/internal/orders"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/logger"
	"github.com/anvaya/commerce-backend/pkg/pagination"
	"github.com/anvaya/commerce-backend/pkg/types"
)

type createOrderItemRequest struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=256"`
	Qty            int       `json:"qty" validate:"required,min=1"`
	UnitPricePaise int64     `json:"unit_price_paise" validate:"required,gt=0"`
}

type createOrderRequest struct {
	TotalPaise      int64                    `json:"total_paise" validate:"required,gt=0"`
	TaxPaise        int64                    `json:"tax_paise" validate:"min=0"`
	ShippingAddress types.Address            `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address           `json:"billing_address,omitempty"`
	GatewayOrderID  *string                  `json:"razorpay_order_id,omitempty"`
	TargetShipDate  *time.Time               `json:"target_ship_date,omitempty"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrder is the checkout intake endpoint.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{
			UserID:          middleware.UserIDFromContext(r.Context()),
			TotalPaise:      req.TotalPaise,
			TaxPaise:        req.TaxPaise,
			ShippingAddress: req.ShippingAddress,
			GatewayOrderID:  req.GatewayOrderID,
			TargetShipDate:  req.TargetShipDate,
		}
		if req.BillingAddress != nil {
			input.BillingAddress = *req.BillingAddress
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.CreateOrderItemInput{
				ProductID:      item.ProductID,
				Name:           item.Name,
				Qty:            item.Qty,
				UnitPricePaise: item.UnitPricePaise,
			})
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListOrders pages through the caller's own orders.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		var filters internalorders.OrderFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.PaymentStatus = &status
		}

		list, err := svc.ListOrders(r.Context(), middleware.UserIDFromContext(r.Context()), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetOrder returns the order detail, items and status ledger included.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), middleware.UserIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CancelOrder cancels a not-yet-paid order.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelOrder(r.Context(), middleware.UserIDFromContext(r.Context()), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
