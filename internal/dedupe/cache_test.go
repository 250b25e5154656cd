// ABOUTME: Tests for the dedupe window
// ABOUTME: Uses a fake clock to cover expiry, eviction order, sweeping and concurrent marking

package dedupe

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

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

func newWindow(ttl time.Duration, size int) (*Window, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(ttl, size, 0, WithClock(clock.Now)), clock
}

func TestWindow_Seen(t *testing.T) {
	w, _ := newWindow(time.Minute, 10)
	defer w.Close()

	assert.False(t, w.Seen("tg:1"), "first delivery is new")
	assert.True(t, w.Seen("tg:1"), "redelivery is a duplicate")
	assert.False(t, w.Seen("tg:2"))
	assert.Equal(t, 2, w.Len())
}

func TestWindow_Expiry(t *testing.T) {
	w, clock := newWindow(time.Minute, 10)
	defer w.Close()

	w.Seen("a")
	clock.Advance(59 * time.Second)
	assert.True(t, w.Contains("a"))

	clock.Advance(time.Second)
	assert.False(t, w.Contains("a"))
	assert.False(t, w.Seen("a"), "expired key is accepted again")
	assert.True(t, w.Seen("a"))
}

func TestWindow_EvictsOldest(t *testing.T) {
	w, _ := newWindow(time.Hour, 3)
	defer w.Close()

	for _, k := range []string{"1", "2", "3", "4"} {
		w.Seen(k)
	}
	assert.Equal(t, 3, w.Len())
	assert.False(t, w.Contains("1"))
	assert.True(t, w.Contains("4"))
}

func TestWindow_Forget(t *testing.T) {
	w, _ := newWindow(time.Hour, 3)
	defer w.Close()

	w.Seen("x")
	w.Forget("x")
	w.Forget("missing")
	assert.False(t, w.Seen("x"))
}

func TestWindow_Sweep(t *testing.T) {
	w, clock := newWindow(time.Minute, 10)
	defer w.Close()

	w.Seen("old")
	clock.Advance(30 * time.Second)
	w.Seen("new")
	clock.Advance(45 * time.Second)

	w.Sweep()
	if w.Len() != 1 || !w.Contains("new") {
		t.Errorf("after sweep: len=%d contains(new)=%v", w.Len(), w.Contains("new"))
	}
}

func TestWindow_MinimumSize(t *testing.T) {
	w, _ := newWindow(time.Hour, 0)
	defer w.Close()
	w.Seen("a")
	w.Seen("b")
	assert.Equal(t, 1, w.Len())
}

func TestWindow_CloseIdempotent(t *testing.T) {
	w := New(time.Minute, 10, time.Millisecond)
	w.Close()
	w.Close()
}

func TestWindow_ConcurrentSeen(t *testing.T) {
	w, _ := newWindow(time.Hour, 1000)
	defer w.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if !w.Seen("update:" + strconv.Itoa(i%5)) {
				fresh.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(5), fresh.Load(), "each key is accepted exactly once")
}
