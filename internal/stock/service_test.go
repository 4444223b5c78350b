package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinistock/clinistock/internal/shared"
	_ "github.com/clinistock/clinistock/internal/testing/guard"
)

type memRepo struct {
	lots    map[int64]Lot
	records map[int64]StockRecord
	nextLot int64
	nextRec int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		lots:    map[int64]Lot{},
		records: map[int64]StockRecord{},
		nextLot: 1,
		nextRec: 1,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) GetLot(_ context.Context, id int64) (Lot, error) {
	lot, ok := m.lots[id]
	if !ok {
		return Lot{}, ErrLotNotFound
	}
	return lot, nil
}

func (m *memRepo) ListLots(_ context.Context, limit, offset int, filters LotFilters) ([]Lot, int, error) {
	var out []Lot
	for _, lot := range m.lots {
		if filters.OrderID > 0 && lot.OrderID != filters.OrderID {
			continue
		}
		if !filters.ExpiresBefore.IsZero() && !lot.ExpiresAt.Before(filters.ExpiresBefore) {
			continue
		}
		if !filters.ExpiresAfter.IsZero() && lot.ExpiresAt.Before(filters.ExpiresAfter) {
			continue
		}
		out = append(out, lot)
	}
	return out, len(out), nil
}

func (m *memRepo) CreateLot(_ context.Context, lot Lot) (int64, error) {
	lot.ID = m.nextLot
	m.nextLot++
	m.lots[lot.ID] = lot
	return lot.ID, nil
}

func (m *memRepo) UpdateLot(_ context.Context, id int64, number string, expiresAt time.Time) error {
	lot, ok := m.lots[id]
	if !ok {
		return ErrLotNotFound
	}
	lot.Number = number
	lot.ExpiresAt = expiresAt
	m.lots[id] = lot
	return nil
}

func (m *memRepo) GetRecord(_ context.Context, productID, lotID int64) (StockRecord, error) {
	for _, rec := range m.records {
		if rec.ProductID == productID && rec.LotID == lotID {
			return rec, nil
		}
	}
	return StockRecord{}, ErrRecordNotFound
}

func (m *memRepo) GetRecordByID(_ context.Context, id int64) (StockRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return StockRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (m *memRepo) ListRecords(_ context.Context, productID, lotID int64) ([]StockRecord, error) {
	var out []StockRecord
	for _, rec := range m.records {
		if productID > 0 && rec.ProductID != productID {
			continue
		}
		if lotID > 0 && rec.LotID != lotID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memRepo) OnHand(_ context.Context, productID int64) (float64, error) {
	var total float64
	for _, rec := range m.records {
		if rec.ProductID == productID {
			total += rec.Quantity
		}
	}
	return total, nil
}

func (m *memRepo) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	return m.GetLot(ctx, id)
}

func (m *memRepo) UpdateLotQuantity(_ context.Context, id int64, qty float64) error {
	lot, ok := m.lots[id]
	if !ok {
		return ErrLotNotFound
	}
	lot.Quantity = qty
	m.lots[id] = lot
	return nil
}

func (m *memRepo) DeleteLot(_ context.Context, id int64) error {
	delete(m.lots, id)
	return nil
}

func (m *memRepo) GetRecordForUpdate(ctx context.Context, productID, lotID int64) (StockRecord, error) {
	return m.GetRecord(ctx, productID, lotID)
}

func (m *memRepo) CreateRecord(_ context.Context, rec StockRecord) (int64, error) {
	rec.ID = m.nextRec
	m.nextRec++
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *memRepo) UpdateRecordQuantity(_ context.Context, id int64, qty float64) error {
	rec, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Quantity = qty
	m.records[id] = rec
	return nil
}

func (m *memRepo) DeleteRecord(_ context.Context, id int64) error {
	delete(m.records, id)
	return nil
}

func (m *memRepo) ListRecordsByLot(ctx context.Context, lotID int64) ([]StockRecord, error) {
	return m.ListRecords(ctx, 0, lotID)
}

func (m *memRepo) seedLot(orderID int64, number string, qty float64) int64 {
	id, _ := m.CreateLot(context.Background(), Lot{
		OrderID:   orderID,
		Number:    number,
		Quantity:  qty,
		ExpiresAt: time.Now().AddDate(1, 0, 0),
	})
	return id
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, nil, nil)
}

func TestAddStockCreatesRecordOnFirstReceipt(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 100)

	rec, err := svc.AddStock(context.Background(), 7, lotID, 12)
	require.NoError(t, err)
	require.Equal(t, float64(12), rec.Quantity)

	rec, err = svc.AddStock(context.Background(), 7, lotID, 3)
	require.NoError(t, err)
	require.Equal(t, float64(15), rec.Quantity)

	onHand, err := svc.OnHand(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, float64(15), onHand)
}

func TestRemoveStockInsufficientLeavesQuantityUnchanged(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 100)

	_, err := svc.AddStock(context.Background(), 5, lotID, 12)
	require.NoError(t, err)

	_, err = svc.RemoveStock(context.Background(), 5, lotID, 20)
	require.ErrorIs(t, err, shared.ErrBusinessRule)
	require.Contains(t, err.Error(), "insufficient stock")

	rec, err := repo.GetRecord(context.Background(), 5, lotID)
	require.NoError(t, err)
	require.Equal(t, float64(12), rec.Quantity)
}

func TestRemoveStockRoundTrip(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 100)

	_, err := svc.AddStock(context.Background(), 5, lotID, 12)
	require.NoError(t, err)
	rec, err := svc.RemoveStock(context.Background(), 5, lotID, 12)
	require.NoError(t, err)
	require.Equal(t, float64(0), rec.Quantity)
}

func TestRemoveStockUnknownRecord(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.RemoveStock(context.Background(), 5, 3, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRecordRejectsDuplicatePair(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 100)

	_, err := svc.CreateRecord(context.Background(), CreateRecordInput{ProductID: 9, LotID: lotID, Quantity: 4})
	require.NoError(t, err)

	_, err = svc.CreateRecord(context.Background(), CreateRecordInput{ProductID: 9, LotID: lotID, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrBusinessRule)
	require.Contains(t, err.Error(), "already exists")
}

func TestRemoveLotQuantityGuard(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 5)

	_, err := svc.RemoveLotQuantity(context.Background(), lotID, 8)
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	lot, err := svc.GetLot(context.Background(), lotID)
	require.NoError(t, err)
	require.Equal(t, float64(5), lot.Quantity)

	lot, err = svc.RemoveLotQuantity(context.Background(), lotID, 5)
	require.NoError(t, err)
	require.True(t, lot.Exhausted())
}

func TestDeleteLotRequiresExhaustion(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 5)

	err := svc.DeleteLot(context.Background(), lotID)
	require.ErrorIs(t, err, shared.ErrBusinessRule)
	require.Contains(t, err.Error(), "cannot be deleted")

	_, err = svc.RemoveLotQuantity(context.Background(), lotID, 5)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteLot(context.Background(), lotID))

	_, err = svc.GetLot(context.Background(), lotID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteLotBlockedByStockedRecord(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 0)

	_, err := svc.AddStock(context.Background(), 2, lotID, 4)
	require.NoError(t, err)

	err = svc.DeleteLot(context.Background(), lotID)
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	_, err = svc.RemoveStock(context.Background(), 2, lotID, 4)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteLot(context.Background(), lotID))
}

func TestUpdateLotOrderReferenceImmutable(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	lotID := repo.seedLot(1, "L-001", 5)

	_, err := svc.UpdateLot(context.Background(), lotID, 2, UpdateLotInput{Number: "L-002"})
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	lot, err := svc.UpdateLot(context.Background(), lotID, 1, UpdateLotInput{Number: "L-002"})
	require.NoError(t, err)
	require.Equal(t, "L-002", lot.Number)
}

func TestListExpiring(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	soon := time.Now().Add(24 * time.Hour)
	repo.CreateLot(context.Background(), Lot{OrderID: 1, Number: "L-EXP", Quantity: 2, ExpiresAt: soon})
	repo.seedLot(1, "L-FAR", 2)

	lots, err := svc.ListExpiring(context.Background(), time.Now().AddDate(0, 1, 0), 50)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, "L-EXP", lots[0].Number)
}
