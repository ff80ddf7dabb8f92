package reminder

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/crm-engine/calendar"
)

// RedisClient is the part of *redis.Client the claimer uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisClaimer keeps claims as expiring keys, for deployments where several
// processes sweep against different databases or no SQL claim table exists.
type RedisClaimer struct {
	Client RedisClient
	Prefix string
	TTL    time.Duration
}

// NewRedisClaimer keeps each claim for a little longer than the reminder
// window so it outlives the occurrence it guards.
func NewRedisClaimer(client RedisClient, windowMonths int) *RedisClaimer {
	return &RedisClaimer{
		Client: client,
		Prefix: "crm:reminder",
		TTL:    time.Duration(windowMonths+1) * 31 * 24 * time.Hour,
	}
}

func (c *RedisClaimer) key(scheduleID string, occurrence calendar.Date) string {
	return c.Prefix + ":" + scheduleID + ":" + occurrence.String()
}

func (c *RedisClaimer) Claim(ctx context.Context, scheduleID string, occurrence calendar.Date) (bool, error) {
	return c.Client.SetNX(ctx, c.key(scheduleID, occurrence), time.Now().UTC().Format(time.RFC3339), c.TTL).Result()
}

func (c *RedisClaimer) Release(ctx context.Context, scheduleID string, occurrence calendar.Date) error {
	return c.Client.Del(ctx, c.key(scheduleID, occurrence)).Err()
}
