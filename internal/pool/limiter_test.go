package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_SharesBucketPerHost(t *testing.T) {
	hl := NewHostLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, hl.WaitURL(ctx, "https://www.gym.test/a"))
	// same host without www shares the bucket and must wait
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.WaitURL(short, "https://gym.test/b"))

	// a different host is not affected
	require.NoError(t, hl.WaitURL(ctx, "https://studio.test"))
}

func TestHostLimiter_Unlimited(t *testing.T) {
	hl := NewHostLimiter(0, 0)
	for range 100 {
		require.NoError(t, hl.WaitURL(context.Background(), "https://gym.test"))
	}
}

func TestHostLimiter_CancelledContext(t *testing.T) {
	hl := NewHostLimiter(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, hl.WaitURL(ctx, "https://gym.test"))
}
