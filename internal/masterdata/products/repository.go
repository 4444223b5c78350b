package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/clinistock/clinistock/internal/masterdata/shared"
	"github.com/clinistock/clinistock/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
	BelowReorderPoint(ctx context.Context) ([]ReorderAlert, error)
}

// ReorderAlert pairs a product with its current on-hand quantity when that
// quantity sits below the reorder point.
type ReorderAlert struct {
	Product Product `json:"product"`
	OnHand  float64 `json:"on_hand"`
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, description, unit, price, cost, minimum_stock, maximum_stock, reorder_point, active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	offset := filters.Normalize()
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Active != nil {
		argCount++
		where += ` AND active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.Active)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO products (code, name, description, unit, price, cost, minimum_stock, maximum_stock, reorder_point, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		product.Code, product.Name, product.Description, product.Unit, product.Price, product.Cost,
		product.MinimumStock, product.MaximumStock, product.ReorderPoint, product.Active, now, now).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET code=$1, name=$2, description=$3, unit=$4, price=$5, cost=$6, minimum_stock=$7, maximum_stock=$8, reorder_point=$9, active=$10, updated_at=NOW() WHERE id=$11`,
		product.Code, product.Name, product.Description, product.Unit, product.Price, product.Cost,
		product.MinimumStock, product.MaximumStock, product.ReorderPoint, product.Active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product")
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product")
	}
	return nil
}

// BelowReorderPoint lists active products whose summed on-hand quantity sits
// below their reorder point.
func (r *repository) BelowReorderPoint(ctx context.Context) ([]ReorderAlert, error) {
	rows, err := r.db.Query(ctx, `SELECT `+prefixedColumns("p")+`, COALESCE(SUM(sr.quantity),0) AS on_hand
FROM products p
LEFT JOIN stock_records sr ON sr.product_id = p.id
WHERE p.active AND p.reorder_point > 0
GROUP BY p.id
HAVING COALESCE(SUM(sr.quantity),0) < p.reorder_point
ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []ReorderAlert
	for rows.Next() {
		var a ReorderAlert
		p := &a.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Unit, &p.Price, &p.Cost,
			&p.MinimumStock, &p.MaximumStock, &p.ReorderPoint, &p.Active, &p.CreatedAt, &p.UpdatedAt, &a.OnHand); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Unit, &p.Price, &p.Cost,
		&p.MinimumStock, &p.MaximumStock, &p.ReorderPoint, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NotFoundf("product")
		}
		return Product{}, err
	}
	return p, nil
}

func prefixedColumns(alias string) string {
	return alias + `.id, ` + alias + `.code, ` + alias + `.name, ` + alias + `.description, ` + alias + `.unit, ` +
		alias + `.price, ` + alias + `.cost, ` + alias + `.minimum_stock, ` + alias + `.maximum_stock, ` +
		alias + `.reorder_point, ` + alias + `.active, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func sortOrder(sortBy, sortDir string) string {
	column := "name"
	switch sortBy {
	case "code":
		column = "code"
	case "price":
		column = "price"
	case "created_at":
		column = "created_at"
	}
	if sortDir == "desc" {
		return column + " DESC"
	}
	return column
}
