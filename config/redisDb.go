package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedis initializes the client used for cross-instance stock locks.
// REDIS_ADDRESS unset means single-instance mode; workflow falls back to an
// in-process keyed mutex and this stays nil.
func ConnectRedis() {
	redisAddress := os.Getenv("REDIS_ADDRESS")
	if redisAddress == "" {
		return
	}

	rdb = redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis ping failed (%s): %v", redisAddress, err)
	}

	locker = redislock.New(rdb)
}
