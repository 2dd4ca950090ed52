package recorder

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredFiresOnceAfterDelay(t *testing.T) {
	var calls atomic.Int32
	d := NewDeferred(10*time.Millisecond, func() { calls.Add(1) })

	d.Schedule()
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.False(t, d.Pending())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeferredRescheduleRestartsCountdown(t *testing.T) {
	var calls atomic.Int32
	d := NewDeferred(100*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Schedule()
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeferredCancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDeferred(10*time.Millisecond, func() { calls.Add(1) })

	assert.False(t, d.Cancel())
	d.Schedule()
	assert.True(t, d.Cancel())
	assert.False(t, d.Pending())

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestDeferredStaleFireIsSuppressed(t *testing.T) {
	var calls atomic.Int32
	d := NewDeferred(time.Hour, func() { calls.Add(1) })

	d.Schedule()
	d.mu.Lock()
	stale := d.gen
	d.mu.Unlock()

	// an expired timer whose callback runs after Cancel must not run fn
	d.Cancel()
	d.fire(stale)
	assert.Zero(t, calls.Load())

	d.Schedule()
	d.mu.Lock()
	current := d.gen
	d.mu.Unlock()
	d.fire(current)
	assert.Equal(t, int32(1), calls.Load())
	d.Cancel()
}
