package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindow_AllowsUpToMax(t *testing.T) {
	fw := NewFixedWindow()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limited, err := fw.IsLimited(ctx, "10.0.0.1", 5, time.Minute)
		require.NoError(t, err)
		assert.False(t, limited, "request %d should be allowed", i+1)
	}

	limited, err := fw.IsLimited(ctx, "10.0.0.1", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, limited)
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	fw := NewFixedWindow()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fw.IsLimited(ctx, "10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
	}

	limited, err := fw.IsLimited(ctx, "10.0.0.2", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestFixedWindow_ResetsAfterWindow(t *testing.T) {
	now := time.Now()
	fw := NewFixedWindow()
	fw.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := fw.IsLimited(ctx, "10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
	}
	limited, err := fw.IsLimited(ctx, "10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, limited)

	// Advance past the window boundary; the counter starts over.
	now = now.Add(61 * time.Second)

	limited, err = fw.IsLimited(ctx, "10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestFixedWindow_LimitedKeyIsNotIncremented(t *testing.T) {
	now := time.Now()
	fw := NewFixedWindow()
	fw.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := fw.IsLimited(ctx, "10.0.0.1", 1, time.Minute)
	require.NoError(t, err)

	// Hammering a limited key keeps the stored count at max.
	for i := 0; i < 10; i++ {
		limited, err := fw.IsLimited(ctx, "10.0.0.1", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, limited)
	}
	assert.Equal(t, 1, fw.windows["10.0.0.1"].count)
}
