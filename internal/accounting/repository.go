package accounting

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for movements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const movementColumns = `id, type, amount, description, reference, occurred_at, created_at`

// Create inserts a movement and returns it with generated fields.
func (r *Repository) Create(ctx context.Context, m Movement) (Movement, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO movements (type, amount, description, reference, occurred_at, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id, created_at`,
		m.Type, m.Amount, m.Description, m.Reference, m.OccurredAt).Scan(&m.ID, &m.CreatedAt)
	return m, err
}

// Get returns a movement by id.
func (r *Repository) Get(ctx context.Context, id int64) (Movement, error) {
	var m Movement
	err := r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM movements WHERE id=$1`, id).
		Scan(&m.ID, &m.Type, &m.Amount, &m.Description, &m.Reference, &m.OccurredAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrMovementNotFound
		}
		return Movement{}, err
	}
	return m, nil
}

// List returns movements with filters and a total count.
func (r *Repository) List(ctx context.Context, limit, offset int, filters MovementFilters) ([]Movement, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Type != "" {
		where += ` AND type = $` + strconv.Itoa(argNum)
		args = append(args, filters.Type)
		argNum++
	}
	if !filters.From.IsZero() {
		where += ` AND occurred_at >= $` + strconv.Itoa(argNum)
		args = append(args, filters.From)
		argNum++
	}
	if !filters.To.IsZero() {
		where += ` AND occurred_at <= $` + strconv.Itoa(argNum)
		args = append(args, filters.To)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movements`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + movementColumns + ` FROM movements` + where +
		` ORDER BY occurred_at DESC LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Type, &m.Amount, &m.Description, &m.Reference, &m.OccurredAt, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

// SumByRange totals entries and exits over a period.
func (r *Repository) SumByRange(ctx context.Context, filters MovementFilters) (RangeSummary, error) {
	query := `SELECT
COALESCE(SUM(amount) FILTER (WHERE type = 'ENTRY'), 0),
COALESCE(SUM(amount) FILTER (WHERE type = 'EXIT'), 0)
FROM movements WHERE 1=1`
	args := []any{}
	argNum := 1
	if !filters.From.IsZero() {
		query += ` AND occurred_at >= $` + strconv.Itoa(argNum)
		args = append(args, filters.From)
		argNum++
	}
	if !filters.To.IsZero() {
		query += ` AND occurred_at <= $` + strconv.Itoa(argNum)
		args = append(args, filters.To)
		argNum++
	}
	var sum RangeSummary
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&sum.Entries, &sum.Exits); err != nil {
		return RangeSummary{}, err
	}
	sum.Net = sum.Entries - sum.Exits
	return sum, nil
}
