package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/threadlinehq/threadline/pkg/lock"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

// NewLocker creates the per-contact locker. A Redis URL gives a cross-process
// lease lock; without one the in-process mutex locker is used, which is only
// correct for single-instance deployments.
func NewLocker(redisURL string) protocol.Locker {
	if redisURL == "" {
		return lock.NewMemoryLocker()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return lock.NewRedisLocker(redis.NewClient(opts))
}
