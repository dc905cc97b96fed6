package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/anvaya/commerce-backend/internal/orders"
	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	pkgerrors "github.com/anvaya/commerce-backend/pkg/errors"
	"github.com/anvaya/commerce-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StageOrder is an order enriched with its SLA classification for the
// pipeline board.
type StageOrder struct {
	Order models.Order `json:"order"`
	SLA   SLA          `json:"sla"`
}

// BulkResult reports one order's outcome within a bulk advance. Failures are
// isolated; one bad id never rolls back its neighbours.
type BulkResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Moved   bool      `json:"moved"`
	Error   string    `json:"error,omitempty"`
}

type ServiceParams struct {
	Repo              orders.Repository
	TransactionRunner txRunner
	Bander            *Bander
	CriticalWindow    time.Duration
	Metrics           *metrics.PipelineMetrics

	// Cache is optional; when set, pipeline mutations drop the cached
	// order view.
	Cache orders.DetailCache
}

// Service drives the production pipeline: staff advance orders stage by
// stage, flag material availability, and annotate progress.
type Service struct {
	repo           orders.Repository
	tx             txRunner
	bander         *Bander
	criticalWindow time.Duration
	metrics        *metrics.PipelineMetrics
	cache          orders.DetailCache
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Bander == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sla bander required")
	}
	if params.CriticalWindow <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "critical window must be positive")
	}
	return &Service{
		repo:           params.Repo,
		tx:             params.TransactionRunner,
		bander:         params.Bander,
		criticalWindow: params.CriticalWindow,
		metrics:        params.Metrics,
		cache:          params.Cache,
	}, nil
}

func actorStaff(id uuid.UUID) string {
	return fmt.Sprintf("staff:%s", id)
}

// Advance moves an order one stage forward. When target is non-empty it must
// equal the next stage in the chain; stages are never skipped and never
// revisited.
func (s *Service) Advance(ctx context.Context, orderID uuid.UUID, target enums.ProductionStatus, staffID uuid.UUID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next, ok := order.ProductionStatus.Next()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has completed the production pipeline")
	}
	if target != "" && target != next {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move from %s to %s; next stage is %s", order.ProductionStatus, target, next))
	}

	updates := map[string]any{}
	if next == enums.ProductionStatusInProduction && order.ProductionStartedAt == nil {
		updates["production_started_at"] = time.Now().UTC()
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionProduction(ctx, orderID, order.ProductionStatus, next, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance production stage")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order moved concurrently or is not payable")
		}
		return repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: orderID,
			Machine: enums.MachineProduction,
			Status:  next.String(),
			Actor:   actorStaff(staffID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(next.String())
	if next == enums.ProductionStatusShipped && order.ProductionStartedAt != nil {
		s.metrics.ObserveProductionDuration(time.Since(*order.ProductionStartedAt))
	}
	orders.InvalidateDetail(ctx, s.cache, orderID)
	return s.findOrder(ctx, orderID)
}

// BulkAdvance advances each order independently. The returned error combines
// the per-order failures; successful orders stay advanced regardless.
func (s *Service) BulkAdvance(ctx context.Context, orderIDs []uuid.UUID, target enums.ProductionStatus, staffID uuid.UUID) ([]BulkResult, error) {
	if len(orderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_ids is required")
	}

	results := make([]BulkResult, 0, len(orderIDs))
	var combined error
	for _, id := range orderIDs {
		result := BulkResult{OrderID: id}
		if _, err := s.Advance(ctx, id, target, staffID); err != nil {
			result.Error = err.Error()
			combined = multierr.Append(combined, fmt.Errorf("order %s: %w", id, err))
		} else {
			result.Moved = true
		}
		results = append(results, result)
	}
	return results, combined
}

// ToggleMaterials flips the materials-available flag staff use to triage the
// new-orders queue.
func (s *Service) ToggleMaterials(ctx context.Context, orderID uuid.UUID, available bool, staffID uuid.UUID) (*models.Order, error) {
	if _, err := s.findOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrder(ctx, orderID, map[string]any{"materials_available": available}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update materials flag")
	}
	orders.InvalidateDetail(ctx, s.cache, orderID)
	return s.findOrder(ctx, orderID)
}

// AddProductionNote appends a staff annotation to the ledger without moving
// the order. Rework inside a stage is recorded this way rather than by
// stepping the pipeline backwards.
func (s *Service) AddProductionNote(ctx context.Context, orderID uuid.UUID, note string, staffID uuid.UUID) error {
	if note == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	err = s.repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
		OrderID: orderID,
		Machine: enums.MachineProduction,
		Status:  order.ProductionStatus.String(),
		Actor:   actorStaff(staffID),
		Note:    &note,
	})
	if err != nil {
		return err
	}
	orders.InvalidateDetail(ctx, s.cache, orderID)
	return nil
}

// ListByStage returns the pipeline board for one stage, each order banded
// against its target ship date.
func (s *Service) ListByStage(ctx context.Context, stage enums.ProductionStatus) ([]StageOrder, error) {
	if !stage.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown production stage")
	}
	list, err := s.repo.ListOrdersByProductionStage(ctx, stage)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders by stage")
	}
	return s.band(list), nil
}

// ListCritical returns orders still early in the pipeline whose target ship
// date is breached or inside the critical window.
func (s *Service) ListCritical(ctx context.Context) ([]StageOrder, error) {
	now := time.Now().UTC()
	list, err := s.repo.ListCriticalOrders(ctx, now, s.criticalWindow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list critical orders")
	}
	return s.band(list), nil
}

func (s *Service) band(list []models.Order) []StageOrder {
	now := time.Now().UTC()
	out := make([]StageOrder, 0, len(list))
	for i := range list {
		out = append(out, StageOrder{
			Order: list[i],
			SLA:   s.bander.Classify(&list[i], now),
		})
	}
	return out
}

func (s *Service) findOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
