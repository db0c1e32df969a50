package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// InboundEvent is one validated inbound line at the ledger boundary.
// The chat/NLP layer upstream produces these; the engine trusts the typing
// but still re-checks the business constraints.
type InboundEvent struct {
	ProductId     string          `json:"product_id" binding:"required" validate:"required"`
	WarehouseName string          `json:"warehouse_name" binding:"required" validate:"required"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Quantity      decimal.Decimal `json:"quantity"`
	SupplierName  string          `json:"supplier_name"`
	CourierNo     string          `json:"courier_no"`
	CourierPhone  string          `json:"courier_phone"`
	OperatorId    string          `json:"operator_id" binding:"required" validate:"required"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (e *InboundEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if e.Quantity.LessThanOrEqual(decimal.Zero) {
		return errors.New("quantity must be greater than zero")
	}
	if e.UnitCost.LessThanOrEqual(decimal.Zero) {
		return errors.New("unit cost must be greater than zero")
	}
	return nil
}

// OutboundEvent is one validated outbound line at the ledger boundary.
type OutboundEvent struct {
	ProductId     string          `json:"product_id" binding:"required" validate:"required"`
	WarehouseName string          `json:"warehouse_name" binding:"required" validate:"required"`
	RequestedQty  decimal.Decimal `json:"requested_qty"`
	SaleUnitPrice decimal.Decimal `json:"sale_unit_price"`
	CustomerName  string          `json:"customer_name"`
	CourierNo     string          `json:"courier_no"`
	CourierPhone  string          `json:"courier_phone"`
	OperatorId    string          `json:"operator_id" binding:"required" validate:"required"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (e *OutboundEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if e.RequestedQty.LessThanOrEqual(decimal.Zero) {
		return errors.New("requested quantity must be greater than zero")
	}
	if e.SaleUnitPrice.IsNegative() {
		return errors.New("sale unit price must not be negative")
	}
	return nil
}
