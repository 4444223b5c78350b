package stock

import (
	"time"

	"github.com/clinistock/clinistock/internal/shared"
)

// Lot is a received batch tied to one purchase order. Quantity is the
// remaining batch quantity; a lot is exhausted at zero and only exhausted
// lots may be deleted.
type Lot struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Number    string    `json:"number"`
	Quantity  float64   `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exhausted reports whether the lot has no remaining quantity.
func (l Lot) Exhausted() bool {
	return l.Quantity == 0
}

// StockRecord is the on-hand quantity of a product within one lot. At most
// one record exists per (product, lot) pair; the uniqueness check lives in
// the service, not the database.
type StockRecord struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	LotID     int64     `json:"lot_id"`
	Quantity  float64   `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LotFilters narrows lot listings.
type LotFilters struct {
	OrderID       int64
	ExpiresBefore time.Time
	ExpiresAfter  time.Time
}

// Domain errors.
var (
	ErrLotNotFound    = shared.NotFoundf("lot")
	ErrRecordNotFound = shared.NotFoundf("stock record")
)

func errInsufficientStock(productID, lotID int64, requested, available float64) error {
	return shared.BusinessRulef("insufficient stock for product %d lot %d: requested %g, available %g",
		productID, lotID, requested, available)
}

func errInsufficientLotQuantity(lotID int64, requested, available float64) error {
	return shared.BusinessRulef("insufficient lot quantity for lot %d: requested %g, available %g",
		lotID, requested, available)
}

func errDuplicateRecord(productID, lotID int64) error {
	return shared.BusinessRulef("stock record for product %d and lot %d already exists", productID, lotID)
}

func errLotNotExhausted(lotID int64, qty float64) error {
	return shared.BusinessRulef("lot %d still holds quantity %g and cannot be deleted", lotID, qty)
}

func errRecordNotExhausted(recordID int64, qty float64) error {
	return shared.BusinessRulef("stock record %d still holds quantity %g and cannot be deleted", recordID, qty)
}
