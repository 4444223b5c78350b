package stock

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
)

// Repository provides PostgreSQL backed persistence for lots and stock
// records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetLotForUpdate(ctx context.Context, id int64) (Lot, error)
	UpdateLotQuantity(ctx context.Context, id int64, qty float64) error
	DeleteLot(ctx context.Context, id int64) error
	GetRecordForUpdate(ctx context.Context, productID, lotID int64) (StockRecord, error)
	CreateRecord(ctx context.Context, rec StockRecord) (int64, error)
	UpdateRecordQuantity(ctx context.Context, id int64, qty float64) error
	DeleteRecord(ctx context.Context, id int64) error
	ListRecordsByLot(ctx context.Context, lotID int64) ([]StockRecord, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetLot returns a lot by id.
func (r *Repository) GetLot(ctx context.Context, id int64) (Lot, error) {
	return scanLot(r.pool.QueryRow(ctx, `SELECT id, order_id, number, quantity, expires_at, created_at, updated_at
FROM lots WHERE id=$1`, id))
}

// ListLots returns lots with filters and a total count.
func (r *Repository) ListLots(ctx context.Context, limit, offset int, filters LotFilters) ([]Lot, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.OrderID > 0 {
		where += ` AND order_id = $` + strconv.Itoa(argNum)
		args = append(args, filters.OrderID)
		argNum++
	}
	if !filters.ExpiresBefore.IsZero() {
		where += ` AND expires_at < $` + strconv.Itoa(argNum)
		args = append(args, filters.ExpiresBefore)
		argNum++
	}
	if !filters.ExpiresAfter.IsZero() {
		where += ` AND expires_at >= $` + strconv.Itoa(argNum)
		args = append(args, filters.ExpiresAfter)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lots`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, order_id, number, quantity, expires_at, created_at, updated_at FROM lots` + where +
		` ORDER BY expires_at LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, 0, err
		}
		lots = append(lots, lot)
	}
	return lots, total, rows.Err()
}

// CreateLot inserts a lot and returns its id.
func (r *Repository) CreateLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO lots (order_id, number, quantity, expires_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id`, lot.OrderID, lot.Number, lot.Quantity, lot.ExpiresAt).Scan(&id)
	return id, wrapConstraint(err, "create lot")
}

// UpdateLot updates lot metadata. Quantity changes go through the
// transactional quantity operations instead.
func (r *Repository) UpdateLot(ctx context.Context, id int64, number string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE lots SET number=$1, expires_at=$2, updated_at=NOW() WHERE id=$3`,
		number, expiresAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

// GetRecord returns the stock record for a (product, lot) pair.
func (r *Repository) GetRecord(ctx context.Context, productID, lotID int64) (StockRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT id, product_id, lot_id, quantity, updated_at
FROM stock_records WHERE product_id=$1 AND lot_id=$2`, productID, lotID))
}

// GetRecordByID returns a stock record by id.
func (r *Repository) GetRecordByID(ctx context.Context, id int64) (StockRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT id, product_id, lot_id, quantity, updated_at
FROM stock_records WHERE id=$1`, id))
}

// ListRecords returns stock records, optionally scoped to a product or lot.
func (r *Repository) ListRecords(ctx context.Context, productID, lotID int64) ([]StockRecord, error) {
	query := `SELECT id, product_id, lot_id, quantity, updated_at FROM stock_records WHERE 1=1`
	args := []any{}
	argNum := 1
	if productID > 0 {
		query += ` AND product_id = $` + strconv.Itoa(argNum)
		args = append(args, productID)
		argNum++
	}
	if lotID > 0 {
		query += ` AND lot_id = $` + strconv.Itoa(argNum)
		args = append(args, lotID)
		argNum++
	}
	query += ` ORDER BY id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StockRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// OnHand returns the summed on-hand quantity of a product across lots.
func (r *Repository) OnHand(ctx context.Context, productID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0) FROM stock_records WHERE product_id=$1`, productID).Scan(&total)
	return total, err
}

func (t *txRepo) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	return scanLot(t.tx.QueryRow(ctx, `SELECT id, order_id, number, quantity, expires_at, created_at, updated_at
FROM lots WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateLotQuantity(ctx context.Context, id int64, qty float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE lots SET quantity=$1, updated_at=NOW() WHERE id=$2`, qty, id)
	return err
}

func (t *txRepo) DeleteLot(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM lots WHERE id=$1`, id)
	return wrapConstraint(err, "delete lot")
}

func (t *txRepo) GetRecordForUpdate(ctx context.Context, productID, lotID int64) (StockRecord, error) {
	return scanRecord(t.tx.QueryRow(ctx, `SELECT id, product_id, lot_id, quantity, updated_at
FROM stock_records WHERE product_id=$1 AND lot_id=$2 FOR UPDATE`, productID, lotID))
}

func (t *txRepo) CreateRecord(ctx context.Context, rec StockRecord) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_records (product_id, lot_id, quantity, updated_at)
VALUES ($1,$2,$3,NOW()) RETURNING id`, rec.ProductID, rec.LotID, rec.Quantity).Scan(&id)
	return id, wrapConstraint(err, "create stock record")
}

func (t *txRepo) UpdateRecordQuantity(ctx context.Context, id int64, qty float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_records SET quantity=$1, updated_at=NOW() WHERE id=$2`, qty, id)
	return err
}

func (t *txRepo) DeleteRecord(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stock_records WHERE id=$1`, id)
	return err
}

func (t *txRepo) ListRecordsByLot(ctx context.Context, lotID int64) ([]StockRecord, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, product_id, lot_id, quantity, updated_at
FROM stock_records WHERE lot_id=$1 ORDER BY id`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StockRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanLot(row pgx.Row) (Lot, error) {
	var lot Lot
	err := row.Scan(&lot.ID, &lot.OrderID, &lot.Number, &lot.Quantity, &lot.ExpiresAt, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, ErrLotNotFound
		}
		return Lot{}, err
	}
	return lot, nil
}

func scanRecord(row pgx.Row) (StockRecord, error) {
	var rec StockRecord
	err := row.Scan(&rec.ID, &rec.ProductID, &rec.LotID, &rec.Quantity, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, ErrRecordNotFound
		}
		return StockRecord{}, err
	}
	return rec, nil
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
