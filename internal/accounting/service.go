package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinistock/clinistock/internal/purchasing"
	"github.com/clinistock/clinistock/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	Create(ctx context.Context, m Movement) (Movement, error)
	Get(ctx context.Context, id int64) (Movement, error)
	List(ctx context.Context, limit, offset int, filters MovementFilters) ([]Movement, int, error)
	SumByRange(ctx context.Context, filters MovementFilters) (RangeSummary, error)
}

// Service implements cash movement operations.
type Service struct {
	repo RepositoryPort
	log  *slog.Logger
	now  func() time.Time
}

// NewService constructs the accounting service.
func NewService(repo RepositoryPort, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

// CreateMovementInput carries the fields of a manual ledger entry.
type CreateMovementInput struct {
	Type        MovementType
	Amount      float64
	Description string
	Reference   string
	OccurredAt  time.Time
}

// CreateMovement records a manual ledger entry.
func (s *Service) CreateMovement(ctx context.Context, in CreateMovementInput) (Movement, error) {
	if !in.Type.Valid() {
		return Movement{}, shared.InvalidArgumentf("movement type must be ENTRY or EXIT")
	}
	if in.Amount <= 0 {
		return Movement{}, shared.InvalidArgumentf("amount must be positive")
	}
	if in.Description == "" {
		return Movement{}, shared.InvalidArgumentf("description is required")
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.now()
	}
	return s.repo.Create(ctx, Movement{
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Reference:   in.Reference,
		OccurredAt:  in.OccurredAt,
	})
}

// GetMovement returns one movement.
func (s *Service) GetMovement(ctx context.Context, id int64) (Movement, error) {
	return s.repo.Get(ctx, id)
}

// ListMovements returns movements and the total matching count.
func (s *Service) ListMovements(ctx context.Context, limit, offset int, filters MovementFilters) ([]Movement, int, error) {
	if filters.Type != "" && !filters.Type.Valid() {
		return nil, 0, shared.InvalidArgumentf("unknown movement type %q", filters.Type)
	}
	return s.repo.List(ctx, limit, offset, filters)
}

// SumByRange totals movements over a period.
func (s *Service) SumByRange(ctx context.Context, from, to time.Time) (RangeSummary, error) {
	return s.repo.SumByRange(ctx, MovementFilters{From: from, To: to})
}

// RecordOrderCompletion books the outgoing payment for a completed purchase
// order. Zero-value orders produce no movement.
func (s *Service) RecordOrderCompletion(ctx context.Context, order purchasing.PurchaseOrder) error {
	if order.Value <= 0 {
		return nil
	}
	occurred := order.DeliveredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	_, err := s.repo.Create(ctx, Movement{
		Type:        TypeExit,
		Amount:      order.Value,
		Description: fmt.Sprintf("purchase order %s completed", order.Number),
		Reference:   order.Number,
		OccurredAt:  occurred,
	})
	return err
}
