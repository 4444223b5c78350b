package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/clinistock/clinistock/internal/shared"
	"github.com/clinistock/clinistock/internal/stock"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error)
	ListLineItems(ctx context.Context, orderID int64) ([]LineItem, error)
	GetLineItem(ctx context.Context, id int64) (LineItem, error)
	CountByStatus(ctx context.Context, from, to time.Time) (map[OrderStatus]int, error)
	SumValueByRange(ctx context.Context, from, to time.Time) (float64, error)
}

// AuditPort records order mutations for traceability.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LedgerPort receives completion events so accounting can book the outgoing
// payment.
type LedgerPort interface {
	RecordOrderCompletion(ctx context.Context, order PurchaseOrder) error
}

// Service implements purchase order operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	ledger LedgerPort
	log    *slog.Logger
	now    func() time.Time
}

// NewService constructs the purchasing service. audit and ledger may be nil
// in tests.
func NewService(repo RepositoryPort, audit AuditPort, ledger LedgerPort, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, audit: audit, ledger: ledger, log: log, now: time.Now}
}

// LineInput is one product line supplied at order creation.
type LineInput struct {
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// CreateOrderInput carries the fields needed to place an order.
type CreateOrderInput struct {
	SupplierID int64
	Value      float64
	PlacedAt   time.Time
	ExpectedAt time.Time
	Note       string
	Lines      []LineInput
}

// UpdateOrderInput updates mutable order fields. Zero values leave the
// stored field untouched.
type UpdateOrderInput struct {
	SupplierID int64
	Value      *float64
	PlacedAt   time.Time
	ExpectedAt time.Time
	Note       *string
}

// OrderDetail is an order with its line items.
type OrderDetail struct {
	PurchaseOrder
	Items []LineItem `json:"items"`
}

// DeleteResult summarises what a cascading deletion removed.
type DeleteResult struct {
	OrderID        int64  `json:"order_id"`
	Number         string `json:"number"`
	LotsRemoved    int    `json:"lots_removed"`
	RecordsRemoved int    `json:"records_removed"`
	ItemsRemoved   int    `json:"items_removed"`
}

// CreateOrder places a new order. Every order starts PENDING; the placement
// date cannot lie in the future and the expected date cannot precede it.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderDetail, error) {
	if in.SupplierID <= 0 {
		return OrderDetail{}, shared.InvalidArgumentf("supplier_id is required")
	}
	if in.PlacedAt.IsZero() {
		in.PlacedAt = s.now()
	}
	if in.PlacedAt.After(endOfDay(s.now())) {
		return OrderDetail{}, shared.InvalidArgumentf("placed_at cannot lie in the future")
	}
	if in.ExpectedAt.IsZero() {
		return OrderDetail{}, shared.InvalidArgumentf("expected_at is required")
	}
	if in.ExpectedAt.Before(in.PlacedAt) {
		return OrderDetail{}, shared.InvalidArgumentf("expected_at cannot precede placed_at")
	}
	if in.Value < 0 {
		return OrderDetail{}, shared.InvalidArgumentf("value cannot be negative")
	}
	for i, line := range in.Lines {
		if line.ProductID <= 0 {
			return OrderDetail{}, shared.InvalidArgumentf("line %d: product_id is required", i+1)
		}
		if line.Qty <= 0 {
			return OrderDetail{}, shared.InvalidArgumentf("line %d: qty must be positive", i+1)
		}
		if line.UnitPrice <= 0 {
			return OrderDetail{}, shared.InvalidArgumentf("line %d: unit_price must be positive", i+1)
		}
	}

	value := in.Value
	if value == 0 && len(in.Lines) > 0 {
		for _, line := range in.Lines {
			value += line.Qty * line.UnitPrice
		}
	}

	order := PurchaseOrder{
		Number:     generateNumber("PO"),
		SupplierID: in.SupplierID,
		Value:      value,
		PlacedAt:   in.PlacedAt,
		ExpectedAt: in.ExpectedAt,
		Status:     StatusPending,
		Note:       in.Note,
	}
	var detail OrderDetail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for _, line := range in.Lines {
			item := LineItem{OrderID: id, ProductID: line.ProductID, Qty: line.Qty, UnitPrice: line.UnitPrice}
			itemID, err := tx.InsertLineItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			detail.Items = append(detail.Items, item)
		}
		return nil
	})
	if err != nil {
		return OrderDetail{}, err
	}

	created, err := s.repo.GetOrder(ctx, order.ID)
	if err != nil {
		return OrderDetail{}, err
	}
	detail.PurchaseOrder = created
	s.recordAudit(ctx, "order.created", order.ID, "", map[string]any{"number": order.Number})
	return detail, nil
}

// GetOrder returns an order with its line items.
func (s *Service) GetOrder(ctx context.Context, id int64) (OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	items, err := s.repo.ListLineItems(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	return OrderDetail{PurchaseOrder: order, Items: items}, nil
}

// ListOrders returns listing rows and the total matching count.
func (s *Service) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	if filters.Status != "" && !OrderStatus(filters.Status).Valid() {
		return nil, 0, shared.InvalidArgumentf("unknown status %q", filters.Status)
	}
	return s.repo.ListOrders(ctx, limit, offset, filters)
}

// UpdateOrder changes mutable order fields. Completed orders are immutable
// and the lifecycle status only moves through AdvanceStatus.
func (s *Service) UpdateOrder(ctx context.Context, id int64, in UpdateOrderInput) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == StatusCompleted {
			return ErrCompletedImmutable
		}
		if in.SupplierID > 0 {
			order.SupplierID = in.SupplierID
		}
		if in.Value != nil {
			if *in.Value < 0 {
				return shared.InvalidArgumentf("value cannot be negative")
			}
			order.Value = *in.Value
		}
		if !in.PlacedAt.IsZero() {
			order.PlacedAt = in.PlacedAt
		}
		if !in.ExpectedAt.IsZero() {
			order.ExpectedAt = in.ExpectedAt
		}
		if in.Note != nil {
			order.Note = *in.Note
		}
		if order.PlacedAt.After(endOfDay(s.now())) {
			return shared.InvalidArgumentf("placed_at cannot lie in the future")
		}
		if order.ExpectedAt.Before(order.PlacedAt) {
			return shared.InvalidArgumentf("expected_at cannot precede placed_at")
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "order.updated", id, "", nil)
	return out, nil
}

// AdvanceStatus moves an order one step along the lifecycle. Completion
// stamps the delivery timestamp and notifies accounting.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, to OrderStatus) (PurchaseOrder, error) {
	if !to.Valid() {
		return PurchaseOrder{}, shared.InvalidArgumentf("unknown status %q", to)
	}
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case order.Status == StatusCompleted:
			return ErrCompletedImmutable
		case order.Status == StatusPending && to == StatusCompleted:
			return ErrSkipInProgress
		case transitions[order.Status] != to:
			return errInvalidTransition(order.Status, to)
		}
		order.Status = to
		if to == StatusCompleted {
			order.DeliveredAt = s.now()
		}
		if err := tx.UpdateOrderStatus(ctx, id, to, order.DeliveredAt); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "order.status_advanced", id, "", map[string]any{"to": string(to)})
	if to == StatusCompleted && s.ledger != nil {
		if err := s.ledger.RecordOrderCompletion(ctx, out); err != nil {
			s.log.Error("record order completion", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}
	return out, nil
}

// AddLineItem appends a product line to a non-completed order and refreshes
// the stored order value.
func (s *Service) AddLineItem(ctx context.Context, orderID int64, in LineInput) (LineItem, error) {
	if in.ProductID <= 0 {
		return LineItem{}, shared.InvalidArgumentf("product_id is required")
	}
	if in.Qty <= 0 {
		return LineItem{}, shared.InvalidArgumentf("qty must be positive")
	}
	if in.UnitPrice <= 0 {
		return LineItem{}, shared.InvalidArgumentf("unit_price must be positive")
	}
	var out LineItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == StatusCompleted {
			return ErrCompletedImmutable
		}
		item := LineItem{OrderID: orderID, ProductID: in.ProductID, Qty: in.Qty, UnitPrice: in.UnitPrice}
		id, err := tx.InsertLineItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		out = item
		return s.refreshOrderValue(ctx, tx, order)
	})
	if err != nil {
		return LineItem{}, err
	}
	return out, nil
}

// UpdateLineItem changes quantity or unit price. The owning order and
// product references never change after creation.
func (s *Service) UpdateLineItem(ctx context.Context, itemID int64, orderID, productID int64, qty, unitPrice float64) (LineItem, error) {
	if qty <= 0 {
		return LineItem{}, shared.InvalidArgumentf("qty must be positive")
	}
	if unitPrice <= 0 {
		return LineItem{}, shared.InvalidArgumentf("unit_price must be positive")
	}
	var out LineItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetLineItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if (orderID != 0 && orderID != item.OrderID) || (productID != 0 && productID != item.ProductID) {
			return ErrImmutableReference
		}
		order, err := tx.GetOrderForUpdate(ctx, item.OrderID)
		if err != nil {
			return err
		}
		if order.Status == StatusCompleted {
			return ErrCompletedImmutable
		}
		item.Qty = qty
		item.UnitPrice = unitPrice
		if err := tx.UpdateLineItem(ctx, item); err != nil {
			return err
		}
		out = item
		return s.refreshOrderValue(ctx, tx, order)
	})
	if err != nil {
		return LineItem{}, err
	}
	return out, nil
}

// DeleteLineItem removes a product line from a non-completed order.
func (s *Service) DeleteLineItem(ctx context.Context, itemID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetLineItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		order, err := tx.GetOrderForUpdate(ctx, item.OrderID)
		if err != nil {
			return err
		}
		if order.Status == StatusCompleted {
			return ErrCompletedImmutable
		}
		if err := tx.DeleteLineItem(ctx, itemID); err != nil {
			return err
		}
		return s.refreshOrderValue(ctx, tx, order)
	})
}

// DeleteWithAudit removes an order and everything hanging off it in one
// transaction: stock records first, then lots, line items and finally the
// order itself. Any lot or stock record still holding quantity aborts the
// whole cascade. The reason is written to the audit trail after commit.
func (s *Service) DeleteWithAudit(ctx context.Context, orderID int64, reason string) (DeleteResult, error) {
	if reason == "" {
		return DeleteResult{}, shared.InvalidArgumentf("a deletion reason is required")
	}
	var result DeleteResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == StatusCompleted {
			return ErrCompletedDeletion
		}
		result = DeleteResult{OrderID: orderID, Number: order.Number}

		lots, err := tx.ListLotsByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			if lot.Quantity > 0 {
				return errLotNotEmpty(lot.ID, lot.Number, lot.Quantity)
			}
		}
		for _, lot := range lots {
			records, err := tx.ListStockRecordsByLot(ctx, lot.ID)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if rec.Quantity > 0 {
					return errStockRecordNotEmpty(rec.ID, lot.ID, rec.Quantity)
				}
			}
			for _, rec := range records {
				if err := tx.DeleteStockRecord(ctx, rec.ID); err != nil {
					return err
				}
				result.RecordsRemoved++
			}
			if err := tx.DeleteLot(ctx, lot.ID); err != nil {
				return err
			}
			result.LotsRemoved++
		}

		removed, err := tx.DeleteLineItems(ctx, orderID)
		if err != nil {
			return err
		}
		result.ItemsRemoved = removed
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return DeleteResult{}, err
	}
	s.recordAudit(ctx, "order.deleted", orderID, reason, map[string]any{
		"number":          result.Number,
		"lots_removed":    result.LotsRemoved,
		"records_removed": result.RecordsRemoved,
		"items_removed":   result.ItemsRemoved,
	})
	return result, nil
}

// Summary aggregates order counts by status and total value over a placement
// date range. Zero bounds leave the range open.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	counts, err := s.repo.CountByStatus(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	total, err := s.repo.SumValueByRange(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	return Summary{CountByStatus: counts, TotalValue: total}, nil
}

func (s *Service) refreshOrderValue(ctx context.Context, tx TxRepository, order PurchaseOrder) error {
	total, err := tx.SumLineItems(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Value = total
	return tx.UpdateOrder(ctx, order)
}

func (s *Service) recordAudit(ctx context.Context, action string, orderID int64, reason string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := shared.ActorFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Actor:    actor.Login,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(orderID, 10),
		Reason:   reason,
		Meta:     meta,
	})
	if err != nil {
		s.log.Warn("audit record failed", "action", action, "err", err)
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// TxRepository exposes the transactional operations used by the service,
// including the queries the deletion cascade needs over lots and stock
// records.
type TxRepository interface {
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateOrder(ctx context.Context, order PurchaseOrder) error
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, deliveredAt time.Time) error
	InsertLineItem(ctx context.Context, item LineItem) (int64, error)
	GetLineItemForUpdate(ctx context.Context, id int64) (LineItem, error)
	UpdateLineItem(ctx context.Context, item LineItem) error
	DeleteLineItem(ctx context.Context, id int64) error
	SumLineItems(ctx context.Context, orderID int64) (float64, error)
	ListLotsByOrder(ctx context.Context, orderID int64) ([]stock.Lot, error)
	ListStockRecordsByLot(ctx context.Context, lotID int64) ([]stock.StockRecord, error)
	DeleteStockRecord(ctx context.Context, id int64) error
	DeleteLot(ctx context.Context, id int64) error
	DeleteLineItems(ctx context.Context, orderID int64) (int, error)
	DeleteOrder(ctx context.Context, id int64) error
}
