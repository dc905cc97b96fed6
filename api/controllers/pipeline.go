package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anvaya/commerce-backend/api/middleware"
	"github.com/anvaya/commerce-backend/api/responses"
	"github.com/anvaya/commerce-backend/api/validators"
	"github.com/anvaya/commerce-backend/internal/fulfillment"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/logger"
)

type advanceRequest struct {
	Stage string `json:"stage,omitempty" validate:"omitempty,oneof=in_production qc ready shipped"`
}

type bulkAdvanceRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1,max=100"`
	Stage    string      `json:"stage,omitempty" validate:"omitempty,oneof=in_production qc ready shipped"`
}

type materialsRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// PipelineBoard serves the staff pipeline view: one stage's queue, or the
// critical list when critical=true.
func PipelineBoard(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		critical, err := validators.ParseQueryBool(r, "critical")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if critical {
			list, err := svc.ListCritical(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, list)
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("stage"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stage or critical=true is required"))
			return
		}
		stage, err := enums.ParseProductionStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stage"))
			return
		}

		list, err := svc.ListByStage(r.Context(), stage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdvanceOrder moves one order forward a single pipeline stage.
func AdvanceOrder(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req advanceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Advance(r.Context(), orderID, enums.ProductionStatus(req.Stage), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// BulkAdvanceOrders advances a batch; each order succeeds or fails on its
// own, and the response always carries the per-order breakdown.
func BulkAdvanceOrders(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		var req bulkAdvanceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.BulkAdvance(r.Context(), req.OrderIDs, enums.ProductionStatus(req.Stage), middleware.UserIDFromContext(r.Context()))
		if results == nil && err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if err != nil {
			status = http.StatusMultiStatus
		}
		responses.WriteSuccessStatus(w, status, results)
	}
}

// SetMaterials flips the materials-available triage flag.
func SetMaterials(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req materialsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ToggleMaterials(r.Context(), orderID, *req.Available, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AddNote appends a production annotation to the order's ledger.
func AddNote(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req noteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AddProductionNote(r.Context(), orderID, req.Note, middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "noted"})
	}
}
