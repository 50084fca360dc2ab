package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleWaitsForNextToken(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx, "resend"))

	start := time.Now()
	require.NoError(t, th.Wait(ctx, "resend"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 0.1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx, "resend"))
	start := time.Now()
	require.NoError(t, th.Wait(ctx, "turnstile"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottleHonoursContext(t *testing.T) {
	t.Parallel()

	th := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, th.Wait(context.Background(), "resend"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := th.Wait(ctx, "resend")
	require.Error(t, err)
	require.Contains(t, err.Error(), "throttle resend")
}

func TestThrottleDisabled(t *testing.T) {
	t.Parallel()

	th := New(Config{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, th.Wait(context.Background(), "resend"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
