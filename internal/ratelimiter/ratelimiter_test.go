package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestLimiter(interval time.Duration, burst int) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}

	l := New(interval, burst)
	l.now = clock.Now

	return l, clock
}

func TestConsumeFirstPermitAllowed(t *testing.T) {
	l, _ := newTestLimiter(300*time.Second, 1)

	if !l.Consume("user:1", 1) {
		t.Fatal("expected first consume to be allowed")
	}
}

func TestConsumeSecondPermitDenied(t *testing.T) {
	l, _ := newTestLimiter(300*time.Second, 1)

	l.Consume("user:1", 1)

	if l.Consume("user:1", 1) {
		t.Fatal("expected second consume within the interval to be denied")
	}
}

func TestConsumeRefillsAfterInterval(t *testing.T) {
	l, clock := newTestLimiter(300*time.Second, 1)

	l.Consume("user:1", 1)
	clock.Advance(301 * time.Second)

	if !l.Consume("user:1", 1) {
		t.Fatal("expected consume after refill interval to be allowed")
	}
}

func TestConsumeNoRefillBeforeInterval(t *testing.T) {
	l, clock := newTestLimiter(300*time.Second, 1)

	l.Consume("user:1", 1)
	clock.Advance(100 * time.Second)

	if l.Consume("user:1", 1) {
		t.Fatal("expected consume before refill interval to be denied")
	}
}

func TestConsumeKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(300*time.Second, 1)

	l.Consume("user:1", 1)

	if !l.Consume("user:2", 1) {
		t.Fatal("expected a different key to have its own bucket")
	}
}

func TestConsumeConcurrentSingleWinner(t *testing.T) {
	l, _ := newTestLimiter(300*time.Second, 1)

	const goroutines = 16

	var wg sync.WaitGroup
	allowed := make(chan bool, goroutines)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Consume("user:1", 1)
		}()
	}

	wg.Wait()
	close(allowed)

	wins := 0
	for ok := range allowed {
		if ok {
			wins++
		}
	}

	if wins != 1 {
		t.Fatalf("expected exactly one concurrent consume to win, got %d", wins)
	}
}
