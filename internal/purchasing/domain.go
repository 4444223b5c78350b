package purchasing

import (
	"time"

	"github.com/clinistock/clinistock/internal/shared"
)

// OrderStatus is the purchase order lifecycle status.
type OrderStatus string

const (
	// StatusPending is the initial status of every order.
	StatusPending OrderStatus = "PENDING"
	// StatusInProgress marks an order awaiting delivery.
	StatusInProgress OrderStatus = "IN_PROGRESS"
	// StatusCompleted is terminal; completed orders are immutable.
	StatusCompleted OrderStatus = "COMPLETED"
)

// transitions is the single allowed-transition table. Anything not listed
// here is rejected, including reverse transitions.
var transitions = map[OrderStatus]OrderStatus{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// PurchaseOrder is the aggregate root of the purchasing module.
type PurchaseOrder struct {
	ID          int64       `json:"id"`
	Number      string      `json:"number"`
	SupplierID  int64       `json:"supplier_id"`
	Value       float64     `json:"value"`
	PlacedAt    time.Time   `json:"placed_at"`
	ExpectedAt  time.Time   `json:"expected_at"`
	DeliveredAt time.Time   `json:"delivered_at,omitzero"`
	Status      OrderStatus `json:"status"`
	Note        string      `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// LineItem is a product line of a purchase order. Order and product
// references are immutable after creation.
type LineItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// Total returns the computed line total.
func (l LineItem) Total() float64 {
	return l.Qty * l.UnitPrice
}

// OrderListItem is a listing row with the supplier name joined in.
type OrderListItem struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	SupplierID   int64       `json:"supplier_id"`
	SupplierName string      `json:"supplier_name"`
	Value        float64     `json:"value"`
	Status       OrderStatus `json:"status"`
	PlacedAt     time.Time   `json:"placed_at"`
	ExpectedAt   time.Time   `json:"expected_at"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status     string
	SupplierID int64
	PlacedFrom time.Time
	PlacedTo   time.Time
	Search     string
	SortBy     string
	SortDir    string
}

// Summary aggregates orders by status and value over a period.
type Summary struct {
	CountByStatus map[OrderStatus]int `json:"count_by_status"`
	TotalValue    float64             `json:"total_value"`
}

// Domain errors. All wrap the shared taxonomy so handlers can map them.
var (
	ErrOrderNotFound      = shared.NotFoundf("purchase order")
	ErrCompletedImmutable = shared.BusinessRulef("completed orders cannot be modified")
	ErrCompletedDeletion  = shared.BusinessRulef("completed orders cannot be deleted")
	ErrSkipInProgress     = shared.BusinessRulef("order must pass through in-progress before completion")
	ErrImmutableReference = shared.BusinessRulef("order and product references cannot be changed")
)

func errInvalidTransition(from, to OrderStatus) error {
	return shared.BusinessRulef("transition %s -> %s is not allowed", from, to)
}

func errLotNotEmpty(lotID int64, number string, qty float64) error {
	return shared.BusinessRulef("lot %d (%s) still holds quantity %g and cannot be removed", lotID, number, qty)
}

func errStockRecordNotEmpty(recordID, lotID int64, qty float64) error {
	return shared.BusinessRulef("stock record %d of lot %d still holds quantity %g and cannot be removed", recordID, lotID, qty)
}
