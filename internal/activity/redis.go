// internal/activity/redis.go
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// activityTTL bounds how long a crashed process can keep a user locked out
// of gameplay activities.
const activityTTL = 6 * time.Hour

// RedisRegistry shares the activity claims across processes through Redis,
// so a user in a lobby here cannot also queue for matchmaking elsewhere.
type RedisRegistry struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewRedisRegistry(rdb *redis.Client, log *logrus.Logger) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, log: log}
}

// ConnectRedis initializes a Redis client and verifies connectivity.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func activityKey(userName string) string {
	return "activity:" + userName
}

func (r *RedisRegistry) RegisterActiveClient(userName string, clientID uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := r.rdb.SetNX(ctx, activityKey(userName), clientID.String(), activityTTL).Result()
	if err != nil {
		r.log.Warnf("activity: SetNX for %s failed: %v", userName, err)
		return false
	}
	return ok
}

func (r *RedisRegistry) UnregisterClientForUser(userName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Del(ctx, activityKey(userName)).Err(); err != nil {
		r.log.Warnf("activity: Del for %s failed: %v", userName, err)
	}
}
