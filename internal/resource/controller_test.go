package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())
	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())
	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_IOWorkers(t *testing.T) {
	c := NewController(Config{MaxIOWorkers: 2})

	require.NoError(t, c.AcquireIOWorker(t.Context()))
	require.True(t, c.TryAcquireIOWorker())
	assert.False(t, c.TryAcquireIOWorker())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireIOWorker(ctx), context.DeadlineExceeded)

	c.ReleaseIOWorker()
	assert.True(t, c.TryAcquireIOWorker())
}

func TestController_IORate(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})

	assert.True(t, c.TryAcquireIO(1000))
	assert.False(t, c.TryAcquireIO(500))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 2500), "cannot get 2.5s of budget in 20ms")
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(1<<40))
	assert.True(t, c.TryAcquireIOWorker())
	assert.NoError(t, c.AcquireIOWorker(t.Context()))
	assert.NoError(t, c.AcquireIO(t.Context(), 1<<30))
	c.ReleaseMemory(1)
	c.ReleaseIOWorker()
	assert.Equal(t, int64(0), c.MemoryUsage())
}
