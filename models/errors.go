package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineShortage describes one outbound line that cannot be covered by the
// layers currently on hand.
type LineShortage struct {
	ProductId     string          `json:"product_id"`
	WarehouseName string          `json:"warehouse_name"`
	Requested     decimal.Decimal `json:"requested"`
	Available     decimal.Decimal `json:"available"`
}

// InsufficientStockError is raised during outbound validation, before any
// write. It enumerates every short line so the caller can tell the user
// exactly what is missing.
type InsufficientStockError struct {
	Lines []LineShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s@%s requested %s available %s",
			l.ProductId, l.WarehouseName, l.Requested, l.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}
