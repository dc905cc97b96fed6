package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anvaya/commerce-backend/api/middleware"
	"github.com/anvaya/commerce-backend/api/responses"
	"github.com/anvaya/commerce-backend/api/validators"
	"github.com/anvaya/commerce-backend/internal/returns"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/logger"
)

type createReturnItemRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Qty         int       `json:"qty" validate:"required,min=1"`
	Reason      *string   `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type createReturnRequest struct {
	Reason string                    `json:"reason" validate:"required,max=2000"`
	Items  []createReturnItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
}

type updateReturnRequest struct {
	Status     string  `json:"status" validate:"required,oneof=approved rejected pickup_scheduled refund_initiated"`
	AdminNotes *string `json:"admin_notes,omitempty" validate:"omitempty,max=2000"`
}

// CreateReturn opens a return request against the caller's own order.
func CreateReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := returns.CreateReturnInput{
			UserID:  middleware.UserIDFromContext(r.Context()),
			OrderID: orderID,
			Reason:  req.Reason,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, returns.CreateReturnItemInput{
				OrderItemID: item.OrderItemID,
				Qty:         item.Qty,
				Reason:      item.Reason,
			})
		}

		request, err := svc.CreateReturn(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// GetReturn returns one request; customers only see their own.
func GetReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		request, err := svc.GetReturn(r.Context(), middleware.UserIDFromContext(r.Context()), role == enums.UserRoleAdmin, returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// ListMyReturns lists the caller's own return requests, newest first.
func ListMyReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		list, err := svc.ListUserReturns(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListReturns is the admin return queue, optionally filtered by status.
func ListReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		var filters returns.ReturnFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseReturnStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.ListReturns(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// UpdateReturnStatus applies an admin decision to a pending request.
func UpdateReturnStatus(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateReturnRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.UpdateReturnStatus(r.Context(), returns.UpdateReturnInput{
			AdminID:    middleware.UserIDFromContext(r.Context()),
			ReturnID:   returnID,
			Status:     req.Status,
			AdminNotes: req.AdminNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func parseReturnID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "returnId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "return id is required")
	}
	returnID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id")
	}
	return returnID, nil
}
