package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterPacesPerHook(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(WithRateWindow(time.Minute))

	require.Zero(t, rl.Delay("a", 2, now))
	require.Zero(t, rl.Delay("a", 2, now))
	require.Equal(t, 30*time.Second, rl.Delay("a", 2, now))
	// A refused call does not consume a token.
	require.Equal(t, 30*time.Second, rl.Delay("a", 2, now))
	require.Zero(t, rl.Delay("b", 2, now))

	require.Zero(t, rl.Delay("a", 2, now.Add(30*time.Second)))
	require.Equal(t, 30*time.Second, rl.Delay("a", 2, now.Add(30*time.Second)))
}

func TestRateLimiterDefaultsAndLimitChange(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter()

	for i := 0; i < DefaultRateLimit; i++ {
		require.Zero(t, rl.Delay("a", 0, now))
	}
	require.Equal(t, time.Second, rl.Delay("a", 0, now))

	// A new limit starts a fresh bucket.
	require.Zero(t, rl.Delay("a", 1, now))
	require.Equal(t, time.Minute, rl.Delay("a", 1, now))
}

func TestRateLimiterEvictsIdleAndOldest(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(WithRateTTL(5*time.Minute), WithRateCap(2))

	require.Zero(t, rl.Delay("a", 1, now))
	require.Zero(t, rl.Delay("b", 1, now.Add(time.Minute)))
	require.Zero(t, rl.Delay("c", 1, now.Add(2*time.Minute)))
	require.Equal(t, 2, rl.Len())

	// "a" was evicted, so it starts with a full bucket again.
	require.Zero(t, rl.Delay("a", 1, now.Add(2*time.Minute)))
	require.Equal(t, 2, rl.Len())

	require.Zero(t, rl.Delay("d", 1, now.Add(10*time.Minute)))
	require.Equal(t, 1, rl.Len())
}
