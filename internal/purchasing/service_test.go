package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinistock/clinistock/internal/shared"
	"github.com/clinistock/clinistock/internal/stock"
)

type memRepo struct {
	orders    map[int64]PurchaseOrder
	items     map[int64]LineItem
	lots      map[int64]stock.Lot
	records   map[int64]stock.StockRecord
	nextOrder int64
	nextItem  int64
	nextLot   int64
	nextRec   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:    map[int64]PurchaseOrder{},
		items:     map[int64]LineItem{},
		lots:      map[int64]stock.Lot{},
		records:   map[int64]stock.StockRecord{},
		nextOrder: 1,
		nextItem:  1,
		nextLot:   1,
		nextRec:   1,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) GetOrder(_ context.Context, id int64) (PurchaseOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return order, nil
}

func (m *memRepo) ListOrders(_ context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	var out []OrderListItem
	for _, o := range m.orders {
		if filters.Status != "" && string(o.Status) != filters.Status {
			continue
		}
		out = append(out, OrderListItem{ID: o.ID, Number: o.Number, SupplierID: o.SupplierID, Value: o.Value, Status: o.Status, PlacedAt: o.PlacedAt, ExpectedAt: o.ExpectedAt})
	}
	return out, len(out), nil
}

func (m *memRepo) ListLineItems(_ context.Context, orderID int64) ([]LineItem, error) {
	var out []LineItem
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memRepo) GetLineItem(_ context.Context, id int64) (LineItem, error) {
	it, ok := m.items[id]
	if !ok {
		return LineItem{}, shared.NotFoundf("line item")
	}
	return it, nil
}

func (m *memRepo) CountByStatus(_ context.Context, from, to time.Time) (map[OrderStatus]int, error) {
	counts := map[OrderStatus]int{}
	for _, o := range m.orders {
		if !from.IsZero() && o.PlacedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.PlacedAt.After(to) {
			continue
		}
		counts[o.Status]++
	}
	return counts, nil
}

func (m *memRepo) SumValueByRange(_ context.Context, from, to time.Time) (float64, error) {
	var total float64
	for _, o := range m.orders {
		if !from.IsZero() && o.PlacedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.PlacedAt.After(to) {
			continue
		}
		total += o.Value
	}
	return total, nil
}

func (m *memRepo) CreateOrder(_ context.Context, order PurchaseOrder) (int64, error) {
	order.ID = m.nextOrder
	m.nextOrder++
	m.orders[order.ID] = order
	return order.ID, nil
}

func (m *memRepo) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return m.GetOrder(ctx, id)
}

func (m *memRepo) UpdateOrder(_ context.Context, order PurchaseOrder) error {
	stored, ok := m.orders[order.ID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = stored.Status
	order.DeliveredAt = stored.DeliveredAt
	m.orders[order.ID] = order
	return nil
}

func (m *memRepo) UpdateOrderStatus(_ context.Context, id int64, status OrderStatus, deliveredAt time.Time) error {
	order, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	order.DeliveredAt = deliveredAt
	m.orders[id] = order
	return nil
}

func (m *memRepo) InsertLineItem(_ context.Context, item LineItem) (int64, error) {
	item.ID = m.nextItem
	m.nextItem++
	m.items[item.ID] = item
	return item.ID, nil
}

func (m *memRepo) GetLineItemForUpdate(ctx context.Context, id int64) (LineItem, error) {
	return m.GetLineItem(ctx, id)
}

func (m *memRepo) UpdateLineItem(_ context.Context, item LineItem) error {
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) DeleteLineItem(_ context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func (m *memRepo) SumLineItems(_ context.Context, orderID int64) (float64, error) {
	var total float64
	for _, it := range m.items {
		if it.OrderID == orderID {
			total += it.Total()
		}
	}
	return total, nil
}

func (m *memRepo) ListLotsByOrder(_ context.Context, orderID int64) ([]stock.Lot, error) {
	var out []stock.Lot
	for _, lot := range m.lots {
		if lot.OrderID == orderID {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (m *memRepo) ListStockRecordsByLot(_ context.Context, lotID int64) ([]stock.StockRecord, error) {
	var out []stock.StockRecord
	for _, rec := range m.records {
		if rec.LotID == lotID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteStockRecord(_ context.Context, id int64) error {
	delete(m.records, id)
	return nil
}

func (m *memRepo) DeleteLot(_ context.Context, id int64) error {
	delete(m.lots, id)
	return nil
}

func (m *memRepo) DeleteLineItems(_ context.Context, orderID int64) (int, error) {
	removed := 0
	for id, it := range m.items {
		if it.OrderID == orderID {
			delete(m.items, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memRepo) DeleteOrder(_ context.Context, id int64) error {
	delete(m.orders, id)
	return nil
}

func (m *memRepo) seedLot(orderID int64, number string, qty float64) int64 {
	id := m.nextLot
	m.nextLot++
	m.lots[id] = stock.Lot{ID: id, OrderID: orderID, Number: number, Quantity: qty, ExpiresAt: time.Now().AddDate(1, 0, 0)}
	return id
}

func (m *memRepo) seedRecord(productID, lotID int64, qty float64) int64 {
	id := m.nextRec
	m.nextRec++
	m.records[id] = stock.StockRecord{ID: id, ProductID: productID, LotID: lotID, Quantity: qty}
	return id
}

type memLedger struct {
	completed []PurchaseOrder
}

func (l *memLedger) RecordOrderCompletion(_ context.Context, order PurchaseOrder) error {
	l.completed = append(l.completed, order)
	return nil
}

func newTestService(repo *memRepo, ledger LedgerPort) *Service {
	return NewService(repo, nil, ledger, nil)
}

func mustCreateOrder(t *testing.T, svc *Service, value float64) OrderDetail {
	t.Helper()
	detail, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		Value:      value,
		PlacedAt:   time.Now(),
		ExpectedAt: time.Now().AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	return detail
}

func TestCreateOrderStartsPending(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	detail := mustCreateOrder(t, svc, 1500.00)
	require.Equal(t, StatusPending, detail.Status)
	require.Equal(t, float64(1500.00), detail.Value)
	require.NotEmpty(t, detail.Number)
	require.True(t, detail.DeliveredAt.IsZero())
}

func TestCreateOrderValueFromLines(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	detail, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		PlacedAt:   time.Now(),
		ExpectedAt: time.Now().AddDate(0, 0, 5),
		Lines: []LineInput{
			{ProductID: 1, Qty: 10, UnitPrice: 100},
			{ProductID: 2, Qty: 5, UnitPrice: 100},
		},
	})
	require.NoError(t, err)
	require.Equal(t, float64(1500), detail.Value)
	require.Len(t, detail.Items, 2)
}

func TestLineItemUnitPriceMustBePositive(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		PlacedAt:   time.Now(),
		ExpectedAt: time.Now().AddDate(0, 0, 5),
		Lines:      []LineInput{{ProductID: 1, Qty: 3, UnitPrice: 0}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Contains(t, err.Error(), "unit_price")
	require.Empty(t, repo.orders)

	detail := mustCreateOrder(t, svc, 100)

	_, err = svc.AddLineItem(context.Background(), detail.ID, LineInput{ProductID: 1, Qty: 3, UnitPrice: 0})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Empty(t, repo.items)

	item, err := svc.AddLineItem(context.Background(), detail.ID, LineInput{ProductID: 1, Qty: 3, UnitPrice: 10})
	require.NoError(t, err)

	_, err = svc.UpdateLineItem(context.Background(), item.ID, detail.ID, item.ProductID, 3, 0)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Equal(t, float64(10), repo.items[item.ID].UnitPrice)
}

func TestCreateOrderDateValidation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		PlacedAt:   time.Now().AddDate(0, 0, 2),
		ExpectedAt: time.Now().AddDate(0, 0, 10),
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		PlacedAt:   time.Now(),
		ExpectedAt: time.Now().AddDate(0, 0, -1),
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestAdvanceStatusHappyPath(t *testing.T) {
	repo := newMemRepo()
	ledger := &memLedger{}
	svc := newTestService(repo, ledger)
	detail := mustCreateOrder(t, svc, 100)

	order, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusInProgress)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, order.Status)

	order, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, order.Status)
	require.False(t, order.DeliveredAt.IsZero())
	require.Len(t, ledger.completed, 1)
	require.Equal(t, detail.ID, ledger.completed[0].ID)
}

func TestAdvanceStatusCannotSkipInProgress(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	_, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusCompleted)
	require.ErrorIs(t, err, ErrSkipInProgress)

	order, err := svc.GetOrder(context.Background(), detail.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
}

func TestAdvanceStatusRejectsReverse(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	_, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusInProgress)
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusPending)
	require.ErrorIs(t, err, shared.ErrBusinessRule)
	require.Contains(t, err.Error(), "not allowed")
}

func TestCompletedOrderIsImmutable(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	_, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusInProgress)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusCompleted)
	require.NoError(t, err)

	note := "late note"
	_, err = svc.UpdateOrder(context.Background(), detail.ID, UpdateOrderInput{Note: &note})
	require.ErrorIs(t, err, ErrCompletedImmutable)

	_, err = svc.AdvanceStatus(context.Background(), detail.ID, StatusInProgress)
	require.ErrorIs(t, err, ErrCompletedImmutable)

	_, err = svc.AddLineItem(context.Background(), detail.ID, LineInput{ProductID: 1, Qty: 1, UnitPrice: 1})
	require.ErrorIs(t, err, ErrCompletedImmutable)

	_, err = svc.DeleteWithAudit(context.Background(), detail.ID, "cleanup")
	require.ErrorIs(t, err, ErrCompletedDeletion)
}

func TestLineItemReferencesImmutable(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 0)

	item, err := svc.AddLineItem(context.Background(), detail.ID, LineInput{ProductID: 3, Qty: 2, UnitPrice: 10})
	require.NoError(t, err)

	_, err = svc.UpdateLineItem(context.Background(), item.ID, detail.ID, 99, 2, 10)
	require.ErrorIs(t, err, ErrImmutableReference)

	updated, err := svc.UpdateLineItem(context.Background(), item.ID, detail.ID, 3, 4, 12)
	require.NoError(t, err)
	require.Equal(t, float64(4), updated.Qty)

	order, err := svc.GetOrder(context.Background(), detail.ID)
	require.NoError(t, err)
	require.Equal(t, float64(48), order.Value)
}

func TestDeleteWithAuditBlockedByLotQuantity(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)
	lotID := repo.seedLot(detail.ID, "L-77", 5)

	_, err := svc.DeleteWithAudit(context.Background(), detail.ID, "obsolete")
	require.ErrorIs(t, err, shared.ErrBusinessRule)
	require.Contains(t, err.Error(), "L-77")
	require.Contains(t, err.Error(), "5")

	_, ok := repo.orders[detail.ID]
	require.True(t, ok)
	_, ok = repo.lots[lotID]
	require.True(t, ok)
}

func TestDeleteWithAuditBlockedByStockedRecord(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)
	lotID := repo.seedLot(detail.ID, "L-1", 0)
	repo.seedRecord(4, lotID, 3)

	_, err := svc.DeleteWithAudit(context.Background(), detail.ID, "obsolete")
	require.ErrorIs(t, err, shared.ErrBusinessRule)
	require.Contains(t, err.Error(), "still holds quantity")

	_, ok := repo.orders[detail.ID]
	require.True(t, ok)
}

func TestDeleteWithAuditCascades(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 1,
		PlacedAt:   time.Now(),
		ExpectedAt: time.Now().AddDate(0, 0, 10),
		Lines:      []LineInput{{ProductID: 1, Qty: 2, UnitPrice: 5}},
	})
	require.NoError(t, err)
	lotA := repo.seedLot(detail.ID, "L-A", 0)
	lotB := repo.seedLot(detail.ID, "L-B", 0)
	repo.seedRecord(1, lotA, 0)
	repo.seedRecord(2, lotB, 0)

	result, err := svc.DeleteWithAudit(context.Background(), detail.ID, "stock written off")
	require.NoError(t, err)
	require.Equal(t, 2, result.LotsRemoved)
	require.Equal(t, 2, result.RecordsRemoved)
	require.Equal(t, 1, result.ItemsRemoved)

	require.Empty(t, repo.orders)
	require.Empty(t, repo.lots)
	require.Empty(t, repo.records)
	require.Empty(t, repo.items)
}

func TestDeleteWithAuditRequiresReason(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	_, err := svc.DeleteWithAudit(context.Background(), detail.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestSummaryAggregates(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	mustCreateOrder(t, svc, 100)
	mustCreateOrder(t, svc, 250)
	detail := mustCreateOrder(t, svc, 50)
	_, err := svc.AdvanceStatus(context.Background(), detail.ID, StatusInProgress)
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.CountByStatus[StatusPending])
	require.Equal(t, 1, summary.CountByStatus[StatusInProgress])
	require.Equal(t, float64(400), summary.TotalValue)
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	_, _, err := svc.ListOrders(context.Background(), 20, 0, ListFilters{Status: "SHIPPED"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
