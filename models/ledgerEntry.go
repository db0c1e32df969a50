package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field keys shared by the two ledger tables.
const (
	FieldBatchId       = "batch_id"
	FieldDate          = "date"
	FieldSupplierName  = "supplier"
	FieldCustomerName  = "customer"
	FieldQuantity      = "quantity"
	FieldLineTotal     = "line_total"
	FieldOperatorId    = "operator_id"
	FieldOperatedAt    = "operated_at"
	FieldCourierNo     = "courier_no"
	FieldCourierPhone  = "courier_phone"
	FieldSaleUnitPrice = "sale_unit_price"
	// FieldCostUnitPrice is the consumed layer's inbound unit cost carried
	// on every outbound row, so margin can be computed downstream.
	FieldCostUnitPrice = "cost_unit_price"
)

// InboundLedgerEntry is one immutable audit row per physical inbound write.
type InboundLedgerEntry struct {
	RecordId      string          `json:"record_id"`
	BatchId       string          `json:"batch_id"`
	Date          time.Time       `json:"date"`
	SupplierName  string          `json:"supplier_name"`
	ProductId     string          `json:"product_id"`
	WarehouseName string          `json:"warehouse_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	LineTotal     decimal.Decimal `json:"line_total"`
	OperatorId    string          `json:"operator_id"`
	OperatedAt    time.Time       `json:"operated_at"`
	CourierNo     string          `json:"courier_no,omitempty"`
	CourierPhone  string          `json:"courier_phone,omitempty"`
}

func (e *InboundLedgerEntry) Fields() map[string]any {
	fields := map[string]any{
		FieldBatchId:       e.BatchId,
		FieldDate:          e.Date.UTC().Format(time.RFC3339),
		FieldSupplierName:  e.SupplierName,
		FieldProductId:     e.ProductId,
		FieldWarehouseName: e.WarehouseName,
		FieldQuantity:      e.Quantity.String(),
		FieldUnitCost:      e.UnitCost.String(),
		FieldLineTotal:     e.LineTotal.String(),
		FieldOperatorId:    e.OperatorId,
		FieldOperatedAt:    e.OperatedAt.UTC().Format(time.RFC3339),
	}
	if e.CourierNo != "" {
		fields[FieldCourierNo] = e.CourierNo
	}
	if e.CourierPhone != "" {
		fields[FieldCourierPhone] = e.CourierPhone
	}
	return fields
}

// OutboundLedgerEntry is one immutable audit row per consumed layer of one
// outbound line. CostUnitPrice is the cost basis from the source layer;
// SaleUnitPrice is the line's revenue price.
type OutboundLedgerEntry struct {
	RecordId      string          `json:"record_id"`
	BatchId       string          `json:"batch_id"`
	Date          time.Time       `json:"date"`
	CustomerName  string          `json:"customer_name"`
	ProductId     string          `json:"product_id"`
	WarehouseName string          `json:"warehouse_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	SaleUnitPrice decimal.Decimal `json:"sale_unit_price"`
	CostUnitPrice decimal.Decimal `json:"cost_unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	OperatorId    string          `json:"operator_id"`
	OperatedAt    time.Time       `json:"operated_at"`
	CourierNo     string          `json:"courier_no,omitempty"`
	CourierPhone  string          `json:"courier_phone,omitempty"`
}

func (e *OutboundLedgerEntry) Fields() map[string]any {
	fields := map[string]any{
		FieldBatchId:       e.BatchId,
		FieldDate:          e.Date.UTC().Format(time.RFC3339),
		FieldCustomerName:  e.CustomerName,
		FieldProductId:     e.ProductId,
		FieldWarehouseName: e.WarehouseName,
		FieldQuantity:      e.Quantity.String(),
		FieldSaleUnitPrice: e.SaleUnitPrice.String(),
		FieldCostUnitPrice: e.CostUnitPrice.String(),
		FieldLineTotal:     e.LineTotal.String(),
		FieldOperatorId:    e.OperatorId,
		FieldOperatedAt:    e.OperatedAt.UTC().Format(time.RFC3339),
	}
	if e.CourierNo != "" {
		fields[FieldCourierNo] = e.CourierNo
	}
	if e.CourierPhone != "" {
		fields[FieldCourierPhone] = e.CourierPhone
	}
	return fields
}
