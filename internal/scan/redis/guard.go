package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard debounces duplicate confirm submissions. Each (badge, action) pair
// takes a short-TTL SetNX reservation; a second submission inside the window
// is dropped before it reaches the store. Correctness does not depend on this:
// the conditional write in the DB layer is the authoritative check.
type Guard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &Guard{Client: client, TTL: ttl}
}

func key(qrHash, action string) string {
	return fmt.Sprintf("scan_confirm:%s:%s", qrHash, action)
}

// Reserve claims the window for this badge and action. It returns true when
// the claim is fresh and false when an identical submission already holds it.
func (g *Guard) Reserve(ctx context.Context, qrHash, action string) (bool, error) {
	return g.Client.SetNX(ctx, key(qrHash, action), action, g.TTL).Result()
}

// Release drops a reservation early. Used when a confirm fails for a reason
// the operator may fix immediately, so the corrected retry is not debounced.
func (g *Guard) Release(ctx context.Context, qrHash, action string) error {
	err := g.Client.Del(ctx, key(qrHash, action)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
