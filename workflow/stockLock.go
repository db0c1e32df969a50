package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/warebot/warebot_backend/config"
)

// localStockLocks serializes writers inside one process when no Redis is
// configured (single-instance deployment).
var localStockLocks sync.Map

const stockLockTTL = 30 * time.Second

// StockLock serializes stock writes per (product, warehouse) key and
// returns the release function. With Redis configured the lock spans
// instances via redislock; otherwise it degrades to an in-process mutex,
// which is enough for a single-tenant bot talking to one backend.
func StockLock(ctx context.Context, productId, warehouseName string) (func(), error) {
	key := fmt.Sprintf("stockLock:%s:%s", productId, warehouseName)

	locker := config.GetRedisLock()
	if locker == nil {
		muAny, _ := localStockLocks.LoadOrStore(key, &sync.Mutex{})
		mu := muAny.(*sync.Mutex)
		mu.Lock()
		return mu.Unlock, nil
	}

	lock, err := locker.Obtain(ctx, key, stockLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if err == redislock.ErrNotObtained {
		config.LogError(config.GetLogger(), "stockLock.go", "StockLock", "Could not obtain stock lock", key, err)
		return nil, errors.New("could not obtain stock lock for " + key)
	} else if err != nil {
		config.LogError(config.GetLogger(), "stockLock.go", "StockLock", "Error obtaining stock lock", key, err)
		return nil, err
	}
	return func() { _ = lock.Release(context.WithoutCancel(ctx)) }, nil
}
