package presence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "users:online"

// Tracker keeps the set of online user IDs in Redis. Because a user may hold
// several connections (tabs), membership is reference-counted with a per-user
// connection counter next to the set.
type Tracker struct {
	redis *redis.Client
}

func NewTracker(addr string) *Tracker {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Tracker{redis: rdb}
}

func (t *Tracker) connKey(userID string) string {
	return "user:" + userID + ":conns"
}

// Connected records one more live connection for the user and marks them
// online.
func (t *Tracker) Connected(ctx context.Context, userID string) error {
	if err := t.redis.Incr(ctx, t.connKey(userID)).Err(); err != nil {
		return err
	}
	return t.redis.SAdd(ctx, onlineKey, userID).Err()
}

// Disconnected drops one connection; the user goes offline when the last one
// closes.
func (t *Tracker) Disconnected(ctx context.Context, userID string) error {
	remaining, err := t.redis.Decr(ctx, t.connKey(userID)).Result()
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	if err := t.redis.Del(ctx, t.connKey(userID)).Err(); err != nil {
		return err
	}
	return t.redis.SRem(ctx, onlineKey, userID).Err()
}

// Online returns the IDs of every currently online user.
func (t *Tracker) Online(ctx context.Context) ([]string, error) {
	return t.redis.SMembers(ctx, onlineKey).Result()
}

func (t *Tracker) Close() error {
	return t.redis.Close()
}
