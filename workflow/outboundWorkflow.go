package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/models"
	"github.com/warebot/warebot_backend/utils"
)

// Outbound request phases, logged as the request moves through the state
// machine: Validating -> Aborted | Committing -> Committed |
// Failed -> RollingBack -> RolledBack.
const (
	phaseValidating  = "validating"
	phaseAborted     = "aborted"
	phaseCommitting  = "committing"
	phaseCommitted   = "committed"
	phaseRollingBack = "rollingBack"
	phaseRolledBack  = "rolledBack"
)

// OutboundResult is returned for a fully committed outbound batch: one
// ledger entry per consumed layer, in deterministic allocation order.
type OutboundResult struct {
	BatchId string                        `json:"batch_id"`
	Entries []*models.OutboundLedgerEntry `json:"entries"`
}

// layerPreImage remembers a layer's numeric state before the commit phase
// touched it, so rollback can restore it.
type layerPreImage struct {
	layer *models.StockLayer
	prior models.StockLayer
}

// ProcessOutboundBatch applies one logical outbound order with the
// two-phase protocol the storeless-transaction design requires:
//
// Phase 1 validates availability for every line with zero writes, so a
// batch with any short line aborts before anything happens. Phase 2 walks
// the lines sequentially, re-running the allocator against fresh layer
// state (later lines may consume layers mutated by earlier lines), writing
// one ledger row per consumed layer and then updating that layer. Any
// commit-phase failure deletes the ledger rows created so far and restores
// every mutated layer.
func (l *Ledger) ProcessOutboundBatch(ctx context.Context, events []*models.OutboundEvent) (*OutboundResult, error) {
	if len(events) == 0 {
		return nil, errors.New("outbound batch is empty")
	}
	for _, event := range events {
		if err := event.Validate(); err != nil {
			config.LogError(l.logger, "outboundWorkflow.go", "ProcessOutboundBatch", "Validate", event, err)
			return nil, err
		}
	}

	release, err := l.lockBatchKeys(ctx, events)
	if err != nil {
		return nil, err
	}
	defer release()

	batchId := utils.NewBatchId("OUT", time.Now())
	logger := l.logger.WithField("batchId", batchId)

	logger.WithField("phase", phaseValidating).Info("validating outbound batch")
	if err := l.validateAvailability(ctx, events); err != nil {
		logger.WithField("phase", phaseAborted).Warn(err.Error())
		return nil, err
	}

	logger.WithField("phase", phaseCommitting).Info("committing outbound batch")
	result, commitErr := l.commitOutbound(ctx, batchId, events)
	if commitErr != nil {
		logger.WithField("phase", phaseRollingBack).Warn(commitErr.Error())
		l.rollbackOutbound(ctx, result)
		logger.WithField("phase", phaseRolledBack).Info("outbound batch rolled back")
		return nil, commitErr
	}

	logger.WithField("phase", phaseCommitted).Info("outbound batch committed")
	return &OutboundResult{BatchId: batchId, Entries: result.entries}, nil
}

// lockBatchKeys serializes the batch against concurrent writers on every
// (product, warehouse) key it touches. Keys are acquired in sorted order
// so two overlapping batches cannot deadlock.
func (l *Ledger) lockBatchKeys(ctx context.Context, events []*models.OutboundEvent) (func(), error) {
	seen := map[string][2]string{}
	for _, event := range events {
		seen[event.ProductId+"\x00"+event.WarehouseName] = [2]string{event.ProductId, event.WarehouseName}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range keys {
		pair := seen[k]
		release, err := StockLock(ctx, pair[0], pair[1])
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// validateAvailability checks every line against current stock without
// writing. Lines sharing a (product, warehouse) key are summed, so a batch
// cannot pass validation by counting the same stock twice.
func (l *Ledger) validateAvailability(ctx context.Context, events []*models.OutboundEvent) error {
	type keyDemand struct {
		productId     string
		warehouseName string
		requested     decimal.Decimal
	}
	demands := map[string]*keyDemand{}
	order := []string{}
	for _, event := range events {
		k := event.ProductId + "\x00" + event.WarehouseName
		if d, ok := demands[k]; ok {
			d.requested = d.requested.Add(event.RequestedQty)
		} else {
			demands[k] = &keyDemand{event.ProductId, event.WarehouseName, event.RequestedQty}
			order = append(order, k)
		}
	}

	var shortages []models.LineShortage
	for _, k := range order {
		d := demands[k]
		layers, err := l.layers.FindAll(ctx, d.productId, d.warehouseName)
		if err != nil {
			config.LogError(l.logger, "outboundWorkflow.go", "validateAvailability", "FindAllLayers", map[string]string{
				"productId": d.productId, "warehouseName": d.warehouseName,
			}, err)
			return err
		}
		_, available, ok := models.AllocateAcrossLayers(layers, d.requested)
		if !ok {
			shortages = append(shortages, models.LineShortage{
				ProductId:     d.productId,
				WarehouseName: d.warehouseName,
				Requested:     d.requested,
				Available:     available,
			})
		}
	}
	if len(shortages) > 0 {
		return &models.InsufficientStockError{Lines: shortages}
	}
	return nil
}

type outboundCommitState struct {
	entries   []*models.OutboundLedgerEntry
	preImages []layerPreImage
}

// commitOutbound walks the batch line by line. Each line re-runs the
// allocator against fresh layer state; the validation phase guaranteed
// aggregate sufficiency, so a shortage here means an external writer raced
// us and the batch fails into rollback.
func (l *Ledger) commitOutbound(ctx context.Context, batchId string, events []*models.OutboundEvent) (*outboundCommitState, error) {
	state := &outboundCommitState{}
	now := time.Now()

	for _, event := range events {
		occurredAt := event.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = now
		}

		layers, err := l.layers.FindAll(ctx, event.ProductId, event.WarehouseName)
		if err != nil {
			config.LogError(l.logger, "outboundWorkflow.go", "commitOutbound", "FindAllLayers", event, err)
			return state, err
		}
		allocations, available, ok := models.AllocateAcrossLayers(layers, event.RequestedQty)
		if !ok {
			err := fmt.Errorf("stock changed during commit: %s@%s requested %s available %s",
				event.ProductId, event.WarehouseName, event.RequestedQty, available)
			config.LogError(l.logger, "outboundWorkflow.go", "commitOutbound", "Reallocate", event, err)
			return state, err
		}

		for _, alloc := range allocations {
			entry := &models.OutboundLedgerEntry{
				BatchId:       batchId,
				Date:          utils.DateOnly(occurredAt),
				CustomerName:  event.CustomerName,
				ProductId:     event.ProductId,
				WarehouseName: event.WarehouseName,
				Quantity:      alloc.Qty,
				SaleUnitPrice: event.SaleUnitPrice,
				CostUnitPrice: alloc.Layer.UnitCost,
				LineTotal:     alloc.Qty.Mul(event.SaleUnitPrice),
				OperatorId:    event.OperatorId,
				OperatedAt:    now,
				CourierNo:     event.CourierNo,
				CourierPhone:  event.CourierPhone,
			}
			created, err := l.store.Create(ctx, l.outboundTable, []map[string]any{entry.Fields()})
			if err != nil {
				config.LogError(l.logger, "outboundWorkflow.go", "commitOutbound", "CreateLedgerEntry", entry, err)
				return state, err
			}
			if len(created) == 1 {
				entry.RecordId = created[0].Id
			}
			state.entries = append(state.entries, entry)

			state.preImages = append(state.preImages, layerPreImage{layer: alloc.Layer, prior: *alloc.Layer})
			alloc.Layer.CumulativeOutboundQty = alloc.Layer.CumulativeOutboundQty.Add(alloc.Qty)
			alloc.Layer.CurrentQty = alloc.Layer.CurrentQty.Sub(alloc.Qty)
			alloc.Layer.TotalOutboundValue = alloc.Layer.TotalOutboundValue.Add(alloc.Qty.Mul(event.SaleUnitPrice))
			alloc.Layer.LastOutboundAt = &now
			alloc.Layer.LastUpdatedAt = &now
			if err := l.layers.Save(ctx, alloc.Layer); err != nil {
				// The layer in memory is dirty but unsaved; restore it so
				// rollback does not re-apply the failed update.
				*alloc.Layer = state.preImages[len(state.preImages)-1].prior
				state.preImages = state.preImages[:len(state.preImages)-1]
				config.LogError(l.logger, "outboundWorkflow.go", "commitOutbound", "SaveLayer", alloc.Layer, err)
				return state, err
			}
		}
	}
	return state, nil
}

// rollbackOutbound compensates a failed commit phase: every ledger row
// created in this call is deleted and every mutated layer is restored to
// its pre-commit numeric state. Best-effort — compensation failures are
// logged, not propagated, and run detached from the caller's cancellation.
func (l *Ledger) rollbackOutbound(ctx context.Context, state *outboundCommitState) {
	ctx = context.WithoutCancel(ctx)

	if len(state.entries) > 0 {
		ids := make([]string, 0, len(state.entries))
		for _, entry := range state.entries {
			if entry.RecordId != "" {
				ids = append(ids, entry.RecordId)
			}
		}
		if err := l.store.Delete(ctx, l.outboundTable, ids); err != nil {
			config.LogError(l.logger, "outboundWorkflow.go", "rollbackOutbound", "DeleteLedgerEntries", ids, err)
		}
	}

	// Restore in reverse so a layer touched by several allocations lands
	// back on its oldest pre-image.
	for i := len(state.preImages) - 1; i >= 0; i-- {
		pre := state.preImages[i]
		*pre.layer = pre.prior
		if err := l.layers.Save(ctx, pre.layer); err != nil {
			config.LogError(l.logger, "outboundWorkflow.go", "rollbackOutbound", "RestoreLayer", pre.layer, err)
		}
	}
}
