package client

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownAutoSubmitsOnce(t *testing.T) {
	latch := &SubmitLatch{}
	var fired atomic.Int32
	c := NewCountdown(1, latch, func() { fired.Add(1) })
	assert.Equal(t, 60, c.Remaining())

	for i := range 59 {
		assert.Equal(t, 59-i, c.Tick())
	}
	assert.Zero(t, fired.Load())

	assert.Equal(t, 0, c.Tick())
	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, c.Expired())

	for range 5 {
		c.Tick()
	}
	assert.Equal(t, int32(1), fired.Load())
}

func TestCountdownDefaultLength(t *testing.T) {
	c := NewCountdown(0, &SubmitLatch{}, nil)
	assert.Equal(t, DefaultQuizMinutes*60, c.Remaining())
}

func TestCountdownDoesNotDoubleSubmit(t *testing.T) {
	latch := &SubmitLatch{}
	require.True(t, latch.TryAcquire(), "manual submission in flight")

	var fired atomic.Int32
	c := NewCountdown(1, latch, func() { fired.Add(1) })
	for range 60 {
		c.Tick()
	}
	assert.Zero(t, fired.Load())

	// The manual submission failed: the user may retry.
	latch.Release()
	assert.True(t, latch.TryAcquire())
	latch.Complete()
	assert.False(t, latch.TryAcquire())
}
