package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Limiter_Enforces_Burst_Per_Key(t *testing.T) {
	req := require.New(t)
	limiter := New(1, 2, time.Minute)
	now := time.Now()

	// The burst is consumed, then requests are refused
	req.True(limiter.Allow("alice", now))
	req.True(limiter.Allow("alice", now))
	req.False(limiter.Allow("alice", now))

	// Another key has its own bucket
	req.True(limiter.Allow("bob", now))

	// Tokens refill over time
	req.True(limiter.Allow("alice", now.Add(time.Second)))
}

func Test_Nil_Limiter_Allows_Everything(t *testing.T) {
	req := require.New(t)

	var limiter *MapLimiter
	req.True(limiter.Allow("anyone", time.Now()))

	// Invalid parameters produce the allow-all limiter
	req.Nil(New(0, 10, time.Minute))
	req.Nil(New(5, 0, time.Minute))
}

func Test_Idle_Keys_Are_Evicted(t *testing.T) {
	req := require.New(t)
	limiter := New(1, 1, time.Minute)
	now := time.Now()

	req.True(limiter.Allow("idle", now))

	// Drive the hit counter past the sweep threshold well after the TTL
	later := now.Add(2 * time.Minute)
	for i := 0; i < 513; i++ {
		limiter.Allow("busy", later)
	}

	limiter.mu.Lock()
	_, stillThere := limiter.byKey["idle"]
	limiter.mu.Unlock()
	req.False(stillThere)
}
