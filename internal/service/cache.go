package service

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeatCache is a short-lived cache in front of the seats-remaining
// endpoint. It is purely an optimization: every admission decision goes to
// the store, never the cache.
type SeatCache interface {
	GetReserved(ctx context.Context, eventKey string) (int, bool)
	SetReserved(ctx context.Context, eventKey string, reserved int)
	Invalidate(ctx context.Context, eventKey string)
}

// NoopSeatCache disables caching; every count read hits the store.
type NoopSeatCache struct{}

func (NoopSeatCache) GetReserved(context.Context, string) (int, bool) { return 0, false }
func (NoopSeatCache) SetReserved(context.Context, string, int)        {}
func (NoopSeatCache) Invalidate(context.Context, string)              {}

// seatCacheTTL keeps the count endpoint cheap under polling while staying
// close to live. Invalidation on admission tightens it further.
const seatCacheTTL = 3 * time.Second

// RedisSeatCache caches reserved counts in Redis. Cache failures are
// logged and treated as misses.
type RedisSeatCache struct {
	client *redis.Client
}

// NewRedisSeatCache connects a seat cache to the given Redis address.
func NewRedisSeatCache(addr, password string) *RedisSeatCache {
	return &RedisSeatCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
	}
}

func seatKey(eventKey string) string { return "seats:" + eventKey }

func (c *RedisSeatCache) GetReserved(ctx context.Context, eventKey string) (int, bool) {
	reserved, err := c.client.Get(ctx, seatKey(eventKey)).Int()
	if err != nil {
		if err != redis.Nil {
			log.Printf("seat cache get %s: %v", eventKey, err)
		}
		return 0, false
	}
	return reserved, true
}

func (c *RedisSeatCache) SetReserved(ctx context.Context, eventKey string, reserved int) {
	if err := c.client.Set(ctx, seatKey(eventKey), reserved, seatCacheTTL).Err(); err != nil {
		log.Printf("seat cache set %s: %v", eventKey, err)
	}
}

func (c *RedisSeatCache) Invalidate(ctx context.Context, eventKey string) {
	if err := c.client.Del(ctx, seatKey(eventKey)).Err(); err != nil {
		log.Printf("seat cache invalidate %s: %v", eventKey, err)
	}
}
