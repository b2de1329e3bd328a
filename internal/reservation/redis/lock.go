package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-booking/internal/logger"
)

// Redis holds per-reservation settlement locks. The poller and the
// scheduler take a lock before touching a reservation so the two
// daemons and the API never interleave writes on the same document.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{Client: client, Logger: log}
}

// getSettleLockDuration returns the lock TTL from the environment or
// the default value
func (r *Redis) getSettleLockDuration() time.Duration {
	// Default lock TTL is 2 minutes
	defaultDuration := 2 * time.Minute

	lockTTLStr := os.Getenv("SETTLE_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Warn("REDIS", "Invalid SETTLE_LOCK_TTL_SECONDS value '"+lockTTLStr+"', using default 2 minutes")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockReservation takes the settlement lock for one reservation. The
// owner string identifies the worker so only it can release the lock.
func (r *Redis) LockReservation(reservationID, owner string) (bool, error) {
	key := "settle_lock:" + reservationID
	ok, err := r.Client.SetNX(context.Background(), key, owner, r.getSettleLockDuration()).Result()
	return ok, err
}

// UnlockReservation releases the lock if this worker still owns it.
func (r *Redis) UnlockReservation(reservationID, owner string) error {
	ctx := context.Background()
	key := fmt.Sprintf("settle_lock:%s", reservationID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
