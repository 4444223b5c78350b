package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinistock/clinistock/internal/purchasing"
	"github.com/clinistock/clinistock/internal/shared"
)

type memRepo struct {
	movements []Movement
	next      int64
}

func (m *memRepo) Create(_ context.Context, mv Movement) (Movement, error) {
	m.next++
	mv.ID = m.next
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, mv)
	return mv, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Movement, error) {
	for _, mv := range m.movements {
		if mv.ID == id {
			return mv, nil
		}
	}
	return Movement{}, ErrMovementNotFound
}

func (m *memRepo) List(_ context.Context, _, _ int, filters MovementFilters) ([]Movement, int, error) {
	var out []Movement
	for _, mv := range m.movements {
		if filters.Type != "" && mv.Type != filters.Type {
			continue
		}
		out = append(out, mv)
	}
	return out, len(out), nil
}

func (m *memRepo) SumByRange(_ context.Context, filters MovementFilters) (RangeSummary, error) {
	var sum RangeSummary
	for _, mv := range m.movements {
		if !filters.From.IsZero() && mv.OccurredAt.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && mv.OccurredAt.After(filters.To) {
			continue
		}
		switch mv.Type {
		case TypeEntry:
			sum.Entries += mv.Amount
		case TypeExit:
			sum.Exits += mv.Amount
		}
	}
	sum.Net = sum.Entries - sum.Exits
	return sum, nil
}

func TestCreateMovementValidation(t *testing.T) {
	svc := NewService(&memRepo{}, nil)

	_, err := svc.CreateMovement(context.Background(), CreateMovementInput{Type: "TRANSFER", Amount: 10, Description: "x"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateMovement(context.Background(), CreateMovementInput{Type: TypeEntry, Amount: 0, Description: "x"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	m, err := svc.CreateMovement(context.Background(), CreateMovementInput{Type: TypeEntry, Amount: 10, Description: "consultation fees"})
	require.NoError(t, err)
	require.False(t, m.OccurredAt.IsZero())
}

func TestSumByRange(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, nil)

	_, err := svc.CreateMovement(context.Background(), CreateMovementInput{Type: TypeEntry, Amount: 300, Description: "sales"})
	require.NoError(t, err)
	_, err = svc.CreateMovement(context.Background(), CreateMovementInput{Type: TypeExit, Amount: 120, Description: "supplies"})
	require.NoError(t, err)

	sum, err := svc.SumByRange(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, float64(300), sum.Entries)
	require.Equal(t, float64(120), sum.Exits)
	require.Equal(t, float64(180), sum.Net)
}

func TestRecordOrderCompletionBooksExit(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, nil)

	err := svc.RecordOrderCompletion(context.Background(), purchasing.PurchaseOrder{
		Number:      "PO-42",
		Value:       1500,
		DeliveredAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	require.Equal(t, TypeExit, repo.movements[0].Type)
	require.Equal(t, float64(1500), repo.movements[0].Amount)
	require.Equal(t, "PO-42", repo.movements[0].Reference)

	err = svc.RecordOrderCompletion(context.Background(), purchasing.PurchaseOrder{Number: "PO-43", Value: 0})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
}
