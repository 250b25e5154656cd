// ABOUTME: Seen-key window that rejects replayed inbound update IDs
// ABOUTME: Keys expire after a TTL and the oldest key is evicted once the window is full

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired keys are dropped in the background
const DefaultSweepInterval = time.Minute

type seenKey struct {
	key    string
	seenAt time.Time
}

// Window remembers recently seen keys. A key is a duplicate while it is
// younger than the TTL and has not been evicted by newer keys.
type Window struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Window
type Option func(*Window)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// New creates a window of at most maxSize keys that expire after ttl.
// sweep is the background cleanup interval; zero disables the sweeper.
func New(ttl time.Duration, maxSize int, sweep time.Duration, opts ...Option) *Window {
	if maxSize < 1 {
		maxSize = 1
	}
	w := &Window{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if sweep > 0 {
		go w.sweepLoop(sweep)
	}
	return w
}

func (w *Window) fresh(e *list.Element, now time.Time) bool {
	return now.Sub(e.Value.(*seenKey).seenAt) < w.ttl
}

// Seen reports whether key was already recorded inside the window and
// records it if not. The check and the mark are atomic.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if e, ok := w.index[key]; ok {
		if w.fresh(e, now) {
			return true
		}
		e.Value.(*seenKey).seenAt = now
		w.order.MoveToBack(e)
		return false
	}

	for w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.index[key] = w.order.PushBack(&seenKey{key: key, seenAt: now})
	return false
}

// Contains reports whether key is inside the window without recording it
func (w *Window) Contains(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.index[key]
	return ok && w.fresh(e, w.now())
}

// Forget drops key so the next Seen call accepts it again
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.index[key]; ok {
		w.removeLocked(e)
	}
}

// Len returns the number of keys currently held, expired or not
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

func (w *Window) removeLocked(e *list.Element) {
	if e == nil {
		return
	}
	w.order.Remove(e)
	delete(w.index, e.Value.(*seenKey).key)
}

// Sweep removes expired keys. Keys are time-ordered, so it stops at the
// first fresh one.
func (w *Window) Sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	for e := w.order.Front(); e != nil && !w.fresh(e, now); e = w.order.Front() {
		w.removeLocked(e)
	}
}

func (w *Window) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.stop:
			return
		}
	}
}

// Close stops the background sweeper. It is safe to call more than once.
func (w *Window) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
}
