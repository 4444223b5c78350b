package stock

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/clinistock/clinistock/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLot(ctx context.Context, id int64) (Lot, error)
	ListLots(ctx context.Context, limit, offset int, filters LotFilters) ([]Lot, int, error)
	CreateLot(ctx context.Context, lot Lot) (int64, error)
	UpdateLot(ctx context.Context, id int64, number string, expiresAt time.Time) error
	GetRecord(ctx context.Context, productID, lotID int64) (StockRecord, error)
	GetRecordByID(ctx context.Context, id int64) (StockRecord, error)
	ListRecords(ctx context.Context, productID, lotID int64) ([]StockRecord, error)
	OnHand(ctx context.Context, productID int64) (float64, error)
}

// AuditPort records stock movements for traceability.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements lot and stock record operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	log   *slog.Logger
}

// NewService constructs the stock service. audit may be nil in tests.
func NewService(repo RepositoryPort, audit AuditPort, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, audit: audit, log: log}
}

// CreateLotInput carries the fields needed to register a received batch.
type CreateLotInput struct {
	OrderID   int64
	Number    string
	Quantity  float64
	ExpiresAt time.Time
}

// UpdateLotInput updates lot metadata. The owning order cannot change.
type UpdateLotInput struct {
	Number    string
	ExpiresAt time.Time
}

// CreateRecordInput registers the on-hand quantity of a product in a lot.
type CreateRecordInput struct {
	ProductID int64
	LotID     int64
	Quantity  float64
}

// CreateLot registers a new lot against a purchase order.
func (s *Service) CreateLot(ctx context.Context, in CreateLotInput) (Lot, error) {
	if in.OrderID <= 0 {
		return Lot{}, shared.InvalidArgumentf("order_id is required")
	}
	if in.Number == "" {
		return Lot{}, shared.InvalidArgumentf("lot number is required")
	}
	if in.Quantity < 0 {
		return Lot{}, shared.InvalidArgumentf("quantity cannot be negative")
	}
	if in.ExpiresAt.IsZero() {
		return Lot{}, shared.InvalidArgumentf("expires_at is required")
	}
	lot := Lot{
		OrderID:   in.OrderID,
		Number:    in.Number,
		Quantity:  in.Quantity,
		ExpiresAt: in.ExpiresAt,
	}
	id, err := s.repo.CreateLot(ctx, lot)
	if err != nil {
		return Lot{}, err
	}
	return s.repo.GetLot(ctx, id)
}

// GetLot returns one lot.
func (s *Service) GetLot(ctx context.Context, id int64) (Lot, error) {
	return s.repo.GetLot(ctx, id)
}

// ListLots returns lots and the total matching count.
func (s *Service) ListLots(ctx context.Context, limit, offset int, filters LotFilters) ([]Lot, int, error) {
	return s.repo.ListLots(ctx, limit, offset, filters)
}

// ListExpiring returns lots expiring before the horizon.
func (s *Service) ListExpiring(ctx context.Context, horizon time.Time, limit int) ([]Lot, error) {
	lots, _, err := s.repo.ListLots(ctx, limit, 0, LotFilters{ExpiresBefore: horizon})
	return lots, err
}

// UpdateLot changes lot metadata. The order reference is immutable; callers
// passing a different order id get a business rule error.
func (s *Service) UpdateLot(ctx context.Context, id int64, orderID int64, in UpdateLotInput) (Lot, error) {
	lot, err := s.repo.GetLot(ctx, id)
	if err != nil {
		return Lot{}, err
	}
	if orderID != 0 && orderID != lot.OrderID {
		return Lot{}, shared.BusinessRulef("lot order reference cannot be changed")
	}
	if in.Number == "" {
		in.Number = lot.Number
	}
	if in.ExpiresAt.IsZero() {
		in.ExpiresAt = lot.ExpiresAt
	}
	if err := s.repo.UpdateLot(ctx, id, in.Number, in.ExpiresAt); err != nil {
		return Lot{}, err
	}
	return s.repo.GetLot(ctx, id)
}

// AddLotQuantity increases the remaining quantity of a lot.
func (s *Service) AddLotQuantity(ctx context.Context, lotID int64, qty float64) (Lot, error) {
	if qty <= 0 {
		return Lot{}, shared.InvalidArgumentf("quantity must be positive")
	}
	var out Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		lot.Quantity += qty
		if err := tx.UpdateLotQuantity(ctx, lotID, lot.Quantity); err != nil {
			return err
		}
		out = lot
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	s.recordAudit(ctx, "lot.quantity_added", "lot", lotID, map[string]any{"qty": qty})
	return out, nil
}

// RemoveLotQuantity decreases the remaining quantity of a lot. Removing more
// than is available fails and leaves the lot untouched.
func (s *Service) RemoveLotQuantity(ctx context.Context, lotID int64, qty float64) (Lot, error) {
	if qty <= 0 {
		return Lot{}, shared.InvalidArgumentf("quantity must be positive")
	}
	var out Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if qty > lot.Quantity {
			return errInsufficientLotQuantity(lotID, qty, lot.Quantity)
		}
		lot.Quantity -= qty
		if err := tx.UpdateLotQuantity(ctx, lotID, lot.Quantity); err != nil {
			return err
		}
		out = lot
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	s.recordAudit(ctx, "lot.quantity_removed", "lot", lotID, map[string]any{"qty": qty})
	return out, nil
}

// DeleteLot removes an exhausted lot and its exhausted stock records. A lot
// or record still holding quantity blocks the whole deletion.
func (s *Service) DeleteLot(ctx context.Context, lotID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if !lot.Exhausted() {
			return errLotNotExhausted(lotID, lot.Quantity)
		}
		records, err := tx.ListRecordsByLot(ctx, lotID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.Quantity > 0 {
				return errRecordNotExhausted(rec.ID, rec.Quantity)
			}
		}
		for _, rec := range records {
			if err := tx.DeleteRecord(ctx, rec.ID); err != nil {
				return err
			}
		}
		return tx.DeleteLot(ctx, lotID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "lot.deleted", "lot", lotID, nil)
	return nil
}

// CreateRecord registers a stock record for a (product, lot) pair. At most
// one record may exist per pair.
func (s *Service) CreateRecord(ctx context.Context, in CreateRecordInput) (StockRecord, error) {
	if in.ProductID <= 0 {
		return StockRecord{}, shared.InvalidArgumentf("product_id is required")
	}
	if in.LotID <= 0 {
		return StockRecord{}, shared.InvalidArgumentf("lot_id is required")
	}
	if in.Quantity < 0 {
		return StockRecord{}, shared.InvalidArgumentf("quantity cannot be negative")
	}
	var out StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetLotForUpdate(ctx, in.LotID); err != nil {
			return err
		}
		if _, err := tx.GetRecordForUpdate(ctx, in.ProductID, in.LotID); err == nil {
			return errDuplicateRecord(in.ProductID, in.LotID)
		} else if !shared.IsNotFound(err) {
			return err
		}
		id, err := tx.CreateRecord(ctx, StockRecord{ProductID: in.ProductID, LotID: in.LotID, Quantity: in.Quantity})
		if err != nil {
			return err
		}
		out = StockRecord{ID: id, ProductID: in.ProductID, LotID: in.LotID, Quantity: in.Quantity}
		return nil
	})
	if err != nil {
		return StockRecord{}, err
	}
	return out, nil
}

// GetRecord returns a stock record by id.
func (s *Service) GetRecord(ctx context.Context, id int64) (StockRecord, error) {
	return s.repo.GetRecordByID(ctx, id)
}

// ListRecords lists stock records scoped to a product and/or lot.
func (s *Service) ListRecords(ctx context.Context, productID, lotID int64) ([]StockRecord, error) {
	return s.repo.ListRecords(ctx, productID, lotID)
}

// DeleteRecord removes an exhausted stock record.
func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := s.repo.GetRecordByID(ctx, id)
		if err != nil {
			return err
		}
		locked, err := tx.GetRecordForUpdate(ctx, rec.ProductID, rec.LotID)
		if err != nil {
			return err
		}
		if locked.Quantity > 0 {
			return errRecordNotExhausted(locked.ID, locked.Quantity)
		}
		return tx.DeleteRecord(ctx, locked.ID)
	})
}

// AddStock increases the on-hand quantity of a product in a lot, creating
// the record on first receipt.
func (s *Service) AddStock(ctx context.Context, productID, lotID int64, qty float64) (StockRecord, error) {
	if qty <= 0 {
		return StockRecord{}, shared.InvalidArgumentf("quantity must be positive")
	}
	if productID <= 0 || lotID <= 0 {
		return StockRecord{}, shared.InvalidArgumentf("product_id and lot_id are required")
	}
	var out StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetLotForUpdate(ctx, lotID); err != nil {
			return err
		}
		rec, err := tx.GetRecordForUpdate(ctx, productID, lotID)
		if shared.IsNotFound(err) {
			id, cerr := tx.CreateRecord(ctx, StockRecord{ProductID: productID, LotID: lotID})
			if cerr != nil {
				return cerr
			}
			rec = StockRecord{ID: id, ProductID: productID, LotID: lotID}
		} else if err != nil {
			return err
		}
		rec.Quantity += qty
		if err := tx.UpdateRecordQuantity(ctx, rec.ID, rec.Quantity); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.recordAudit(ctx, "stock.added", "stock_record", out.ID, map[string]any{
		"product_id": productID, "lot_id": lotID, "qty": qty,
	})
	return out, nil
}

// RemoveStock decreases the on-hand quantity of a product in a lot. Removing
// more than is on hand fails and the record keeps its quantity.
func (s *Service) RemoveStock(ctx context.Context, productID, lotID int64, qty float64) (StockRecord, error) {
	if qty <= 0 {
		return StockRecord{}, shared.InvalidArgumentf("quantity must be positive")
	}
	var out StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, productID, lotID)
		if err != nil {
			return err
		}
		if qty > rec.Quantity {
			return errInsufficientStock(productID, lotID, qty, rec.Quantity)
		}
		rec.Quantity -= qty
		if err := tx.UpdateRecordQuantity(ctx, rec.ID, rec.Quantity); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.recordAudit(ctx, "stock.removed", "stock_record", out.ID, map[string]any{
		"product_id": productID, "lot_id": lotID, "qty": qty,
	})
	return out, nil
}

// OnHand returns the total on-hand quantity of a product across all lots.
func (s *Service) OnHand(ctx context.Context, productID int64) (float64, error) {
	return s.repo.OnHand(ctx, productID)
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := shared.ActorFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Actor:    actor.Login,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.log.Warn("audit record failed", "action", action, "err", err)
	}
}
