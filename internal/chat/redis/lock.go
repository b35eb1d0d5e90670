package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"ms-coaching/internal/logger"

	"github.com/go-redis/redis/v8"
)

// Redis guards conversation creation. Two parties opening the chat for the
// same booking at the same time must converge on one conversation row; the
// lock serializes the get-or-create so the unique index on booking_id is a
// backstop, not the common path.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{
		Client: client,
		Logger: log,
	}
}

func (r *Redis) getConversationLockDuration() time.Duration {
	defaultDuration := 10 * time.Second

	lockTTLStr := os.Getenv("CHAT_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Warn("REDIS", "Invalid CHAT_LOCK_TTL_SECONDS value '"+lockTTLStr+"', using default 10 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockConversation takes the creation lock for a booking. The owner token
// scopes the release to whoever acquired it.
func (r *Redis) LockConversation(ctx context.Context, bookingID, owner string) (bool, error) {
	key := "conversation_lock:" + bookingID
	ok, err := r.Client.SetNX(ctx, key, owner, r.getConversationLockDuration()).Result()
	return ok, err
}

// UnlockConversation releases the creation lock if owner still holds it.
func (r *Redis) UnlockConversation(ctx context.Context, bookingID, owner string) error {
	key := fmt.Sprintf("conversation_lock:%s", bookingID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // lock already expired
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
