package products

import "time"

// Product represents a stocked product. The three thresholds drive reorder
// alerts: on-hand below ReorderPoint means a purchase is due.
type Product struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Unit         string    `json:"unit"`
	Price        float64   `json:"price"`
	Cost         float64   `json:"cost"`
	MinimumStock float64   `json:"minimum_stock"`
	MaximumStock float64   `json:"maximum_stock"`
	ReorderPoint float64   `json:"reorder_point"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
