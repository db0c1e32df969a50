package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/warebot/warebot_backend/store"
)

var (
	recordStore store.RecordStore
)

func GetRecordStore() store.RecordStore {
	return recordStore
}

// SetRecordStore swaps the global store. Used by tests and local runs.
func SetRecordStore(s store.RecordStore) {
	recordStore = s
}

func init() {
	// Load env from .env
	godotenv.Load()
	// IMPORTANT (Cloud Run):
	// Do NOT block startup in init() waiting on the remote store.
	// The container must start listening on $PORT quickly.
}

// Table ids of the three remote tables the ledger engine writes.
// Fallbacks keep local runs against the memory store working.
func InboundLedgerTable() string {
	return envOr("TABLE_INBOUND_LEDGER", "inbound_ledger")
}

func OutboundLedgerTable() string {
	return envOr("TABLE_OUTBOUND_LEDGER", "outbound_ledger")
}

func StockLayerTable() string {
	return envOr("TABLE_STOCK_LAYERS", "stock_layers")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ConnectRecordStore wires the global store. With Feishu credentials in the
// environment it builds the Bitable client; without them it falls back to
// the in-memory store so the engine stays runnable on a dev machine.
// Call this from main() AFTER the HTTP server is listening.
func ConnectRecordStore() {
	appId := os.Getenv("FEISHU_APP_ID")
	appSecret := os.Getenv("FEISHU_APP_SECRET")
	appToken := os.Getenv("FEISHU_APP_TOKEN")

	if appId == "" || appSecret == "" || appToken == "" {
		GetLogger().Warn("FEISHU_APP_ID/SECRET/TOKEN not set, using in-memory record store")
		recordStore = store.NewMemoryStore()
		return
	}

	timeout := 15 * time.Second
	if v, err := strconv.Atoi(os.Getenv("STORE_TIMEOUT_SECONDS")); err == nil && v > 0 {
		timeout = time.Duration(v) * time.Second
	}
	var maxRetries uint64 = 4
	if v, err := strconv.ParseUint(os.Getenv("STORE_MAX_RETRIES"), 10, 64); err == nil && v > 0 {
		maxRetries = v
	}

	recordStore = store.NewFeishuStore(store.FeishuConfig{
		AppId:      appId,
		AppSecret:  appSecret,
		AppToken:   appToken,
		BaseUrl:    os.Getenv("FEISHU_BASE_URL"),
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}, GetLogger())
}
