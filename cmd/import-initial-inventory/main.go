package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/models"
	"github.com/warebot/warebot_backend/utils"
	"github.com/warebot/warebot_backend/workflow"
	"github.com/xuri/excelize/v2"
)

// Imports an opening-stock workbook into the ledger. Expected columns,
// first row is the header:
//
//	product_id | warehouse | quantity | unit_cost | supplier
//
// Every data row becomes one inbound event; the whole file shares one
// batch id so the ledger rows stay traceable to this import.
func main() {
	file := flag.String("file", "", "Path to the opening-stock .xlsx file")
	sheet := flag.String("sheet", "", "Sheet name (default: first sheet)")
	operator := flag.String("operator", "initial-import", "Operator id stamped on the ledger rows")
	dryRun := flag.Bool("dry-run", true, "Print actions without writing")
	flag.Parse()

	if *file == "" {
		panic("-file is required")
	}

	wb, err := excelize.OpenFile(*file)
	if err != nil {
		panic(err)
	}
	defer wb.Close()

	sheetName := *sheet
	if sheetName == "" {
		sheetName = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheetName)
	if err != nil {
		panic(err)
	}
	if len(rows) <= 1 {
		fmt.Println("no data rows found")
		return
	}

	events := make([]*models.InboundEvent, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 4 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		qty, err := utils.ParseDecimal(row[2])
		if err != nil {
			panic(fmt.Sprintf("row %d: bad quantity %q: %v", i+2, row[2], err))
		}
		unitCost, err := utils.ParseDecimal(row[3])
		if err != nil {
			panic(fmt.Sprintf("row %d: bad unit cost %q: %v", i+2, row[3], err))
		}
		event := &models.InboundEvent{
			ProductId:     strings.TrimSpace(row[0]),
			WarehouseName: strings.TrimSpace(row[1]),
			Quantity:      qty,
			UnitCost:      unitCost,
			OperatorId:    *operator,
		}
		if len(row) > 4 {
			event.SupplierName = strings.TrimSpace(row[4])
		}
		if err := event.Validate(); err != nil {
			panic(fmt.Sprintf("row %d: %v", i+2, err))
		}
		events = append(events, event)
	}

	if *dryRun {
		for _, event := range events {
			fmt.Printf("[dry-run] inbound %s x%s @%s -> %s\n",
				event.ProductId, event.Quantity, event.UnitCost, event.WarehouseName)
		}
		fmt.Printf("[dry-run] %d rows, nothing written\n", len(events))
		return
	}

	config.ConnectRecordStore()
	ledger := workflow.NewLedger(config.GetRecordStore(), config.GetLogger())

	result, err := ledger.ProcessInboundBatch(context.Background(), events)
	if err != nil {
		panic(err)
	}
	for _, line := range result.Results {
		if line.Error != "" {
			fmt.Printf("FAILED %s @%s: %s\n", line.Event.ProductId, line.Event.WarehouseName, line.Error)
		}
	}
	fmt.Printf("batch %s: %d/%d rows imported\n", result.BatchId, result.SuccessCount, len(result.Results))
}
