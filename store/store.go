package store

import (
	"context"
	"errors"
)

// Record is one row of a remote table: an opaque store-assigned id plus a
// loose field map. Field typing is owned by the callers in models.
type Record struct {
	Id     string         `json:"record_id"`
	Fields map[string]any `json:"fields"`
}

// RecordStore is the contract the ledger engine needs from the hosted table
// backend: read-all, create, update and delete against a named table.
// No transactionality is offered; callers compensate explicitly.
type RecordStore interface {
	List(ctx context.Context, table string) ([]Record, error)
	Create(ctx context.Context, table string, fields []map[string]any) ([]Record, error)
	Update(ctx context.Context, table string, recordId string, fields map[string]any) error
	Delete(ctx context.Context, table string, recordIds []string) error
}

var (
	// ErrStoreUnavailable marks transient failures (network, timeout, 5xx).
	// Callers retry these with bounded backoff.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrStoreRejected marks permanent failures (validation, schema).
	// Never retried.
	ErrStoreRejected = errors.New("record store rejected request")
)

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsRejected(err error) bool {
	return errors.Is(err, ErrStoreRejected)
}
