package workflow

import (
	"github.com/sirupsen/logrus"
	"github.com/warebot/warebot_backend/config"
	"github.com/warebot/warebot_backend/models"
	"github.com/warebot/warebot_backend/store"
)

// Ledger is the inventory ledger engine: inbound/outbound processing, the
// stock query surface and the compensation logic over a non-transactional
// record store.
type Ledger struct {
	store         store.RecordStore
	layers        *models.StockLayerRepository
	inboundTable  string
	outboundTable string
	logger        *logrus.Logger
}

func NewLedger(s store.RecordStore, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Ledger{
		store:         s,
		layers:        models.NewStockLayerRepository(s, config.StockLayerTable()),
		inboundTable:  config.InboundLedgerTable(),
		outboundTable: config.OutboundLedgerTable(),
		logger:        logger,
	}
}

// Layers exposes the repository for read-side callers.
func (l *Ledger) Layers() *models.StockLayerRepository {
	return l.layers
}
