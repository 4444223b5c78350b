package products

import (
	"strings"

	"github.com/clinistock/clinistock/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return shared.InvalidArgumentf("product code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.InvalidArgumentf("product name is required")
	}
	if p.MinimumStock < 0 || p.MaximumStock < 0 || p.ReorderPoint < 0 {
		return shared.InvalidArgumentf("stock thresholds cannot be negative")
	}
	if p.MaximumStock <= p.MinimumStock {
		return shared.InvalidArgumentf("maximum stock must exceed minimum stock")
	}
	if p.ReorderPoint < p.MinimumStock {
		return shared.InvalidArgumentf("reorder point cannot lie below minimum stock")
	}
	if p.ReorderPoint > p.MaximumStock {
		return shared.InvalidArgumentf("reorder point cannot exceed maximum stock")
	}
	return nil
}
