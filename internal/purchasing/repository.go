package purchasing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinistock/clinistock/internal/platform/db"
	"github.com/clinistock/clinistock/internal/shared"
	"github.com/clinistock/clinistock/internal/stock"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction. The deletion
// cascade relies on this: every row it touches goes or none do.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, number, supplier_id, value, placed_at, expected_at, delivered_at, status, note, created_at, updated_at`

// GetOrder returns an order by id.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
}

// ListOrders returns listing rows with the supplier name joined in, plus the
// total matching count.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Status != "" {
		where += ` AND po.status = $` + strconv.Itoa(argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.SupplierID > 0 {
		where += ` AND po.supplier_id = $` + strconv.Itoa(argNum)
		args = append(args, filters.SupplierID)
		argNum++
	}
	if !filters.PlacedFrom.IsZero() {
		where += ` AND po.placed_at >= $` + strconv.Itoa(argNum)
		args = append(args, filters.PlacedFrom)
		argNum++
	}
	if !filters.PlacedTo.IsZero() {
		where += ` AND po.placed_at <= $` + strconv.Itoa(argNum)
		args = append(args, filters.PlacedTo)
		argNum++
	}
	if filters.Search != "" {
		where += ` AND (po.number ILIKE $` + strconv.Itoa(argNum) + ` OR s.name ILIKE $` + strconv.Itoa(argNum) + `)`
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortOrder := ` ORDER BY po.placed_at DESC`
	switch filters.SortBy {
	case "number":
		sortOrder = ` ORDER BY po.number`
	case "value":
		sortOrder = ` ORDER BY po.value`
	case "expected_at":
		sortOrder = ` ORDER BY po.expected_at`
	case "status":
		sortOrder = ` ORDER BY po.status`
	case "placed_at":
		sortOrder = ` ORDER BY po.placed_at`
	}
	if filters.SortBy != "" && filters.SortDir == "desc" {
		sortOrder += ` DESC`
	}

	query := `SELECT po.id, po.number, po.supplier_id, s.name, po.value, po.status, po.placed_at, po.expected_at, po.created_at
FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id` + where + sortOrder +
		` LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []OrderListItem
	for rows.Next() {
		var it OrderListItem
		if err := rows.Scan(&it.ID, &it.Number, &it.SupplierID, &it.SupplierName, &it.Value, &it.Status, &it.PlacedAt, &it.ExpectedAt, &it.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// ListLineItems returns the product lines of an order.
func (r *Repository) ListLineItems(ctx context.Context, orderID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, qty, unit_price
FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetLineItem returns one line item by id.
func (r *Repository) GetLineItem(ctx context.Context, id int64) (LineItem, error) {
	return scanLineItem(r.pool.QueryRow(ctx, `SELECT id, order_id, product_id, qty, unit_price
FROM purchase_order_items WHERE id=$1`, id))
}

// CountByStatus counts orders by status over a placement date range.
func (r *Repository) CountByStatus(ctx context.Context, from, to time.Time) (map[OrderStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM purchase_orders WHERE 1=1`
	args := []any{}
	argNum := 1
	if !from.IsZero() {
		query += ` AND placed_at >= $` + strconv.Itoa(argNum)
		args = append(args, from)
		argNum++
	}
	if !to.IsZero() {
		query += ` AND placed_at <= $` + strconv.Itoa(argNum)
		args = append(args, to)
		argNum++
	}
	query += ` GROUP BY status`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[OrderStatus]int{}
	for rows.Next() {
		var status OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SumValueByRange sums order values over a placement date range.
func (r *Repository) SumValueByRange(ctx context.Context, from, to time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(value),0) FROM purchase_orders WHERE 1=1`
	args := []any{}
	argNum := 1
	if !from.IsZero() {
		query += ` AND placed_at >= $` + strconv.Itoa(argNum)
		args = append(args, from)
		argNum++
	}
	if !to.IsZero() {
		query += ` AND placed_at <= $` + strconv.Itoa(argNum)
		args = append(args, to)
		argNum++
	}
	var total float64
	err := r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (t *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, value, placed_at, expected_at, status, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		order.Number, order.SupplierID, order.Value, order.PlacedAt, order.ExpectedAt, order.Status, order.Note).Scan(&id)
	return id, wrapConstraint(err, "create purchase order")
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateOrder(ctx context.Context, order PurchaseOrder) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET supplier_id=$1, value=$2, placed_at=$3, expected_at=$4, note=$5, updated_at=NOW() WHERE id=$6`,
		order.SupplierID, order.Value, order.PlacedAt, order.ExpectedAt, order.Note, order.ID)
	return wrapConstraint(err, "update purchase order")
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, deliveredAt time.Time) error {
	var delivered any
	if !deliveredAt.IsZero() {
		delivered = deliveredAt
	}
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, delivered_at=$2, updated_at=NOW() WHERE id=$3`,
		status, delivered, id)
	return err
}

func (t *txRepo) InsertLineItem(ctx context.Context, item LineItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, product_id, qty, unit_price)
VALUES ($1,$2,$3,$4) RETURNING id`, item.OrderID, item.ProductID, item.Qty, item.UnitPrice).Scan(&id)
	return id, wrapConstraint(err, "insert line item")
}

func (t *txRepo) GetLineItemForUpdate(ctx context.Context, id int64) (LineItem, error) {
	return scanLineItem(t.tx.QueryRow(ctx, `SELECT id, order_id, product_id, qty, unit_price
FROM purchase_order_items WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateLineItem(ctx context.Context, item LineItem) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET qty=$1, unit_price=$2 WHERE id=$3`,
		item.Qty, item.UnitPrice, item.ID)
	return err
}

func (t *txRepo) DeleteLineItem(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE id=$1`, id)
	return err
}

func (t *txRepo) SumLineItems(ctx context.Context, orderID int64) (float64, error) {
	var total float64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty * unit_price),0) FROM purchase_order_items WHERE order_id=$1`, orderID).Scan(&total)
	return total, err
}

func (t *txRepo) ListLotsByOrder(ctx context.Context, orderID int64) ([]stock.Lot, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, order_id, number, quantity, expires_at, created_at, updated_at
FROM lots WHERE order_id=$1 ORDER BY id FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []stock.Lot
	for rows.Next() {
		var lot stock.Lot
		if err := rows.Scan(&lot.ID, &lot.OrderID, &lot.Number, &lot.Quantity, &lot.ExpiresAt, &lot.CreatedAt, &lot.UpdatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (t *txRepo) ListStockRecordsByLot(ctx context.Context, lotID int64) ([]stock.StockRecord, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, product_id, lot_id, quantity, updated_at
FROM stock_records WHERE lot_id=$1 ORDER BY id FOR UPDATE`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []stock.StockRecord
	for rows.Next() {
		var rec stock.StockRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.LotID, &rec.Quantity, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (t *txRepo) DeleteStockRecord(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stock_records WHERE id=$1`, id)
	return err
}

func (t *txRepo) DeleteLot(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM lots WHERE id=$1`, id)
	return err
}

func (t *txRepo) DeleteLineItems(ctx context.Context, orderID int64) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	return wrapConstraint(err, "delete purchase order")
}

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var o PurchaseOrder
	var delivered *time.Time
	err := row.Scan(&o.ID, &o.Number, &o.SupplierID, &o.Value, &o.PlacedAt, &o.ExpectedAt, &delivered, &o.Status, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	if delivered != nil {
		o.DeliveredAt = *delivered
	}
	return o, nil
}

func scanLineItem(row pgx.Row) (LineItem, error) {
	var it LineItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineItem{}, shared.NotFoundf("line item")
		}
		return LineItem{}, err
	}
	return it, nil
}

// wrapConstraint converts foreign-key and unique violations into the shared
// integrity error so handlers answer 409 instead of 500.
func wrapConstraint(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "23505") {
		return shared.Integrityf(err, "%s", op)
	}
	return err
}
