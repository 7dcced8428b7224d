package utils

import (
	"context"
	"sync"
	"time"
)

const stateKeyPrefix = "oauth:state:"

var (
	pendingStates   = map[string]time.Time{}
	pendingStatesMu sync.Mutex
)

// SaveState records an OAuth state token for later single-use validation.
// Redis keys expire on their own; the in-memory fallback tracks expiry per
// entry and only works for a single instance.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rc.Set(ctx, stateKeyPrefix+state, "1", ttl).Err()
		return
	}

	pendingStatesMu.Lock()
	pendingStates[state] = time.Now().Add(ttl)
	pendingStatesMu.Unlock()
}

// ConsumeState validates a state token and removes it so it cannot be
// replayed. GETDEL keeps check and removal atomic under Redis.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		v, err := rc.GetDel(ctx, stateKeyPrefix+state).Result()
		return err == nil && v != ""
	}

	pendingStatesMu.Lock()
	expiresAt, ok := pendingStates[state]
	if ok {
		delete(pendingStates, state)
	}
	pendingStatesMu.Unlock()

	return ok && time.Now().Before(expiresAt)
}
