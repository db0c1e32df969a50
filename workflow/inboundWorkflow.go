package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/models"
	"github.com/warebot/warebot_backend/utils"
)

// InboundLineResult carries the outcome of one line of an inbound batch.
type InboundLineResult struct {
	Event *models.InboundEvent       `json:"event"`
	Entry *models.InboundLedgerEntry `json:"entry,omitempty"`
	Error string                     `json:"error,omitempty"`
}

// InboundBatchResult aggregates per-line outcomes. Success requires every
// line to have succeeded; earlier committed lines are NOT rolled back when
// a later line fails — the caller decides whether to compensate.
type InboundBatchResult struct {
	BatchId      string              `json:"batch_id"`
	Results      []InboundLineResult `json:"results"`
	SuccessCount int                 `json:"success_count"`
}

func (r *InboundBatchResult) Success() bool {
	return r.SuccessCount == len(r.Results)
}

// ProcessInboundBatch runs each line of one logical inbound order
// sequentially under a shared batch id. Lines are independent; a failure
// aborts only its own line.
func (l *Ledger) ProcessInboundBatch(ctx context.Context, events []*models.InboundEvent) (*InboundBatchResult, error) {
	if len(events) == 0 {
		return nil, errors.New("inbound batch is empty")
	}
	result := &InboundBatchResult{BatchId: utils.NewBatchId("IN", time.Now())}
	for _, event := range events {
		entry, err := l.ProcessInbound(ctx, result.BatchId, event)
		lineResult := InboundLineResult{Event: event, Entry: entry}
		if err != nil {
			lineResult.Error = err.Error()
		} else {
			result.SuccessCount++
		}
		result.Results = append(result.Results, lineResult)
	}
	return result, nil
}

// ProcessInbound applies one inbound event: the immutable ledger row is
// written first (the audit trail exists even if the layer write fails),
// then the matching layer is merged or created.
func (l *Ledger) ProcessInbound(ctx context.Context, batchId string, event *models.InboundEvent) (*models.InboundLedgerEntry, error) {
	if err := event.Validate(); err != nil {
		config.LogError(l.logger, "inboundWorkflow.go", "ProcessInbound", "Validate", event, err)
		return nil, err
	}

	release, err := StockLock(ctx, event.ProductId, event.WarehouseName)
	if err != nil {
		return nil, err
	}
	defer release()

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	now := time.Now()

	entry := &models.InboundLedgerEntry{
		BatchId:       batchId,
		Date:          utils.DateOnly(occurredAt),
		SupplierName:  event.SupplierName,
		ProductId:     event.ProductId,
		WarehouseName: event.WarehouseName,
		Quantity:      event.Quantity,
		UnitCost:      event.UnitCost,
		LineTotal:     event.Quantity.Mul(event.UnitCost),
		OperatorId:    event.OperatorId,
		OperatedAt:    now,
		CourierNo:     event.CourierNo,
		CourierPhone:  event.CourierPhone,
	}

	created, err := l.store.Create(ctx, l.inboundTable, []map[string]any{entry.Fields()})
	if err != nil {
		config.LogError(l.logger, "inboundWorkflow.go", "ProcessInbound", "CreateLedgerEntry", entry, err)
		return nil, err
	}
	if len(created) == 1 {
		entry.RecordId = created[0].Id
	}

	layer, err := l.layers.Find(ctx, event.ProductId, event.WarehouseName, event.UnitCost)
	if err != nil {
		config.LogError(l.logger, "inboundWorkflow.go", "ProcessInbound", "FindLayer", event, err)
		return nil, err
	}

	if layer != nil {
		layer.CumulativeInboundQty = layer.CumulativeInboundQty.Add(event.Quantity)
		layer.CurrentQty = layer.CurrentQty.Add(event.Quantity)
		layer.TotalInboundValue = layer.TotalInboundValue.Add(event.Quantity.Mul(event.UnitCost))
		layer.LastInboundAt = &now
		layer.LastUpdatedAt = &now
	} else {
		layer = &models.StockLayer{
			ProductId:            event.ProductId,
			WarehouseName:        event.WarehouseName,
			UnitCost:             event.UnitCost,
			CumulativeInboundQty: event.Quantity,
			CurrentQty:           event.Quantity,
			TotalInboundValue:    event.Quantity.Mul(event.UnitCost),
			LastInboundAt:        &now,
			LastUpdatedAt:        &now,
		}
	}

	if err := l.layers.Save(ctx, layer); err != nil {
		config.LogError(l.logger, "inboundWorkflow.go", "ProcessInbound", "SaveLayer", layer, err)
		return nil, err
	}
	return entry, nil
}
