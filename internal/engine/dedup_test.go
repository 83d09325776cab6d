package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupGuard_BlocksWithinWindow(t *testing.T) {
	d := newDedupGuard(100 * time.Millisecond)

	assert.True(t, d.tryAcquire("mint-a"))
	assert.False(t, d.tryAcquire("mint-a"))
	assert.True(t, d.tryAcquire("mint-b"), "different key is independent")
}

func TestDedupGuard_ExpiresAfterWindow(t *testing.T) {
	d := newDedupGuard(20 * time.Millisecond)

	assert.True(t, d.tryAcquire("mint-a"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, d.tryAcquire("mint-a"))
}

func TestDedupGuard_ReleaseFreesKey(t *testing.T) {
	d := newDedupGuard(time.Minute)

	assert.True(t, d.tryAcquire("mint-a"))
	d.release("mint-a")
	assert.True(t, d.tryAcquire("mint-a"))
}

func TestDedupGuard_SweepDropsExpired(t *testing.T) {
	d := newDedupGuard(10 * time.Millisecond)

	d.tryAcquire("old")
	time.Sleep(20 * time.Millisecond)
	d.tryAcquire("fresh")

	d.sweep()
	assert.Equal(t, 1, d.size())
}

func TestDedupGuard_ConcurrentAcquire(t *testing.T) {
	d := newDedupGuard(time.Minute)

	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		go func() { wins <- d.tryAcquire("mint-a") }()
	}

	won := 0
	for i := 0; i < 16; i++ {
		if <-wins {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent acquire may win")
}
