package deadline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpired(t *testing.T) {
	dl := New(30 * time.Millisecond)
	assert.False(t, dl.Expired())
	assert.Greater(t, dl.Remaining(), time.Duration(0))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, dl.Expired())
	assert.Equal(t, time.Duration(0), dl.Remaining())
	assert.GreaterOrEqual(t, dl.Elapsed(), 30*time.Millisecond)
}

func TestSleepCappedAtRemaining(t *testing.T) {
	dl := New(20 * time.Millisecond)

	start := time.Now()
	dl.Sleep(context.Background(), time.Second)
	slept := time.Since(start)

	assert.Less(t, slept, 200*time.Millisecond, "sleep must not run past the budget")
	assert.True(t, dl.Expired())
}

func TestSleepAfterExpiryReturnsImmediately(t *testing.T) {
	dl := New(time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	start := time.Now()
	dl.Sleep(context.Background(), time.Second)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSleepHonorsContextCancel(t *testing.T) {
	dl := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	dl.Sleep(ctx, 10*time.Second)
	assert.Less(t, time.Since(start), time.Second)
}
