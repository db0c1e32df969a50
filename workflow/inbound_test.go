package workflow_test

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/models"
	"github.com/warebot/warebot_backend/store"
	"github.com/warebot/warebot_backend/workflow"
)

func newTestLedger() (*workflow.Ledger, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return workflow.NewLedger(mem, logger), mem
}

func inbound(productId, warehouse string, qty, unitCost string) *models.InboundEvent {
	return &models.InboundEvent{
		ProductId:     productId,
		WarehouseName: warehouse,
		Quantity:      decimal.RequireFromString(qty),
		UnitCost:      decimal.RequireFromString(unitCost),
		SupplierName:  "Acme Trading",
		OperatorId:    "op-1",
	}
}

func TestInboundCreatesLayerAndLedgerEntry(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger()

	result, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{inbound("P1", "W1", "100", "10")})
	if err != nil {
		t.Fatalf("ProcessInboundBatch: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected batch success: %+v", result.Results)
	}
	if result.BatchId == "" {
		t.Fatalf("batch id missing")
	}

	entry := result.Results[0].Entry
	if entry.RecordId == "" {
		t.Fatalf("ledger entry record id missing")
	}
	if !entry.LineTotal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("line total expected 1000, got %s", entry.LineTotal)
	}

	layers, err := ledger.GetStockSummary(ctx, "P1", "W1")
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(layers))
	}
	if !layers[0].CurrentQty.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("layer qty expected 100, got %s", layers[0].CurrentQty)
	}
	if !layers[0].ConservationHolds() {
		t.Fatalf("conservation broken after inbound")
	}
	if layers[0].LastInboundAt == nil {
		t.Fatalf("last inbound timestamp not set")
	}

	rows, err := mem.List(ctx, config.InboundLedgerTable())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 inbound ledger row, got %d", len(rows))
	}
}

func TestInboundMergesEqualCostIntoOneLayer(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	for _, qty := range []string{"60", "40"} {
		result, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{inbound("P1", "W1", qty, "12")})
		if err != nil || !result.Success() {
			t.Fatalf("inbound %s failed: %v %+v", qty, err, result)
		}
	}

	layers, err := ledger.GetStockSummary(ctx, "P1", "W1")
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("equal-cost inbound must merge into one layer, got %d", len(layers))
	}
	if !layers[0].CurrentQty.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("merged qty expected 100, got %s", layers[0].CurrentQty)
	}
	if !layers[0].TotalInboundValue.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("total inbound value expected 1200, got %s", layers[0].TotalInboundValue)
	}
}

func TestInboundEpsilonCostMergesNoisyCost(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	if _, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{inbound("P1", "W1", "50", "12.00")}); err != nil {
		t.Fatalf("inbound: %v", err)
	}
	// 12.001 is round-trip noise, 12.5 is a real new cost point.
	if _, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{inbound("P1", "W1", "10", "12.001")}); err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if _, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{inbound("P1", "W1", "10", "12.5")}); err != nil {
		t.Fatalf("inbound: %v", err)
	}

	layers, err := ledger.GetStockSummary(ctx, "P1", "W1")
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers (12.00 merged with 12.001, 12.5 separate), got %d", len(layers))
	}
}

func TestInboundDistinctCostsCreateDistinctLayers(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	result, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{
		inbound("P1", "W1", "100", "10"),
		inbound("P1", "W1", "50", "12"),
	})
	if err != nil || !result.Success() {
		t.Fatalf("batch failed: %v", err)
	}

	layers, err := ledger.GetStockSummary(ctx, "P1", "W1")
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
}

func TestInboundPartialBatchKeepsEarlierLines(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger()

	createCalls := 0
	mem.FailHook = func(op, table string) error {
		if op == "create" && table == config.InboundLedgerTable() {
			createCalls++
			if createCalls == 2 {
				return store.ErrStoreUnavailable
			}
		}
		return nil
	}

	result, err := ledger.ProcessInboundBatch(ctx, []*models.InboundEvent{
		inbound("P1", "W1", "100", "10"),
		inbound("P2", "W1", "50", "8"),
	})
	if err != nil {
		t.Fatalf("ProcessInboundBatch: %v", err)
	}
	if result.Success() {
		t.Fatalf("expected partial failure")
	}
	if result.SuccessCount != 1 {
		t.Fatalf("expected 1 committed line, got %d", result.SuccessCount)
	}
	if result.Results[1].Error == "" {
		t.Fatalf("failed line must carry its error")
	}

	// The earlier line stays committed; the ledger does not compensate
	// across inbound lines.
	mem.FailHook = nil
	layers, err := ledger.GetStockSummary(ctx, "P1", "")
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}
	if len(layers) != 1 || !layers[0].CurrentQty.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("first line must remain committed")
	}
}

func TestInboundRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	ledger, mem := newTestLedger()

	bad := inbound("P1", "W1", "1", "10")
	bad.Quantity = decimal.Zero
	if _, err := ledger.ProcessInbound(ctx, "IN-TEST", bad); err == nil {
		t.Fatalf("expected validation error for zero quantity")
	}

	rows, err := mem.List(ctx, config.InboundLedgerTable())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("validation failure must not write")
	}
}
