package accounting

import (
	"time"

	"github.com/clinistock/clinistock/internal/shared"
)

// MovementType classifies a cash movement.
type MovementType string

const (
	// TypeEntry is money coming in.
	TypeEntry MovementType = "ENTRY"
	// TypeExit is money going out.
	TypeExit MovementType = "EXIT"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return t == TypeEntry || t == TypeExit
}

// Movement is one cash ledger entry.
type Movement struct {
	ID          int64        `json:"id"`
	Type        MovementType `json:"type"`
	Amount      float64      `json:"amount"`
	Description string       `json:"description"`
	Reference   string       `json:"reference,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
	CreatedAt   time.Time    `json:"created_at"`
}

// RangeSummary totals movements by type over a period.
type RangeSummary struct {
	Entries float64 `json:"entries"`
	Exits   float64 `json:"exits"`
	Net     float64 `json:"net"`
}

// MovementFilters narrows movement listings.
type MovementFilters struct {
	Type MovementType
	From time.Time
	To   time.Time
}

// ErrMovementNotFound indicates an unknown movement id.
var ErrMovementNotFound = shared.NotFoundf("movement")
