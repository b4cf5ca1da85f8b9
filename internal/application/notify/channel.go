package notify

import (
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/sirupsen/logrus"
)

// Observer receives batches of changes in the order they were raised.
type Observer[T any] interface {
	OnChanges(changes []T)
}

// FuncObserver adapts a function to Observer. The channel only holds it
// weakly, so the caller must keep the returned pointer alive.
type FuncObserver[T any] struct {
	fn func([]T)
}

func NewFuncObserver[T any](fn func([]T)) *FuncObserver[T] {
	return &FuncObserver[T]{fn: fn}
}

func (f *FuncObserver[T]) OnChanges(changes []T) {
	if f.fn != nil {
		f.fn(changes)
	}
}

// Recorder receives delivery statistics.
type Recorder interface {
	NotificationsDelivered(channel string, n int)
	PauseDepth(channel string, depth int32)
}

type registration[T any] struct {
	seq     uint64
	resolve func() (Observer[T], bool)
}

// Channel queues changes of one kind and delivers them to weakly held
// observers. While the pause depth is above zero changes accumulate and
// are delivered as a single batch when the depth returns to zero.
type Channel[T any] struct {
	name     string
	logger   *logrus.Entry
	recorder Recorder

	depth atomic.Int32

	mu       sync.Mutex
	pending  []T
	registry map[any]*registration[T]
	seq      uint64
}

func NewChannel[T any](name string, logger *logrus.Logger, recorder Recorder) *Channel[T] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Channel[T]{
		name:     name,
		logger:   logger.WithFields(logrus.Fields{"component": "notify", "channel": name}),
		recorder: recorder,
		registry: make(map[any]*registration[T]),
	}
}

func (c *Channel[T]) Name() string {
	return c.name
}

// Subscribe registers observer on c without keeping it alive. Subscribing
// the same pointer twice is a no-op.
func Subscribe[T any, O any, P interface {
	*O
	Observer[T]
}](c *Channel[T], observer P) {
	if (*O)(observer) == nil {
		return
	}
	handle := weak.Make((*O)(observer))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registry[handle]; ok {
		return
	}
	c.seq++
	c.registry[handle] = &registration[T]{
		seq: c.seq,
		resolve: func() (Observer[T], bool) {
			ptr := handle.Value()
			if ptr == nil {
				return nil, false
			}
			return P(ptr), true
		},
	}
}

// Unsubscribe removes observer and reports whether it was registered.
func Unsubscribe[T any, O any, P interface {
	*O
	Observer[T]
}](c *Channel[T], observer P) bool {
	if (*O)(observer) == nil {
		return false
	}
	handle := weak.Make((*O)(observer))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registry[handle]; !ok {
		return false
	}
	delete(c.registry, handle)
	return true
}

// Notify queues a change and delivers immediately when not paused.
func (c *Channel[T]) Notify(changes ...T) {
	if len(changes) == 0 {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, changes...)
	c.mu.Unlock()
	if c.depth.Load() == 0 {
		c.deliver()
	}
}

// Pause increments the pause depth and returns the new depth.
func (c *Channel[T]) Pause() int32 {
	depth := c.depth.Add(1)
	c.recordDepth(depth)
	return depth
}

// Resume decrements the pause depth and flushes queued changes once it
// reaches zero. Resuming an unpaused channel is logged and clamped.
func (c *Channel[T]) Resume() int32 {
	depth := c.depth.Add(-1)
	if depth < 0 {
		c.logger.WithField("depth", depth).Warn("resume without matching pause")
		c.depth.CompareAndSwap(depth, 0)
		depth = 0
	}
	c.recordDepth(depth)
	if depth == 0 {
		c.deliver()
	}
	return depth
}

func (c *Channel[T]) Depth() int32 {
	return c.depth.Load()
}

// Pending returns the number of queued, undelivered changes.
func (c *Channel[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Observers returns the observers that are still alive, in subscription
// order. Collected observers are skipped but stay registered until the
// next delivery.
func (c *Channel[T]) Observers() []Observer[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(false)
}

// Registered returns the number of registrations, collected ones included.
func (c *Channel[T]) Registered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registry)
}

func (c *Channel[T]) liveLocked(prune bool) []Observer[T] {
	type entry struct {
		seq uint64
		obs Observer[T]
	}
	entries := make([]entry, 0, len(c.registry))
	for key, reg := range c.registry {
		obs, ok := reg.resolve()
		if !ok {
			if prune {
				delete(c.registry, key)
			}
			continue
		}
		entries = append(entries, entry{seq: reg.seq, obs: obs})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]Observer[T], len(entries))
	for i, e := range entries {
		out[i] = e.obs
	}
	return out
}

func (c *Channel[T]) deliver() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = nil
	observers := c.liveLocked(true)
	c.mu.Unlock()

	for _, obs := range observers {
		obs.OnChanges(batch)
	}
	if c.recorder != nil {
		c.recorder.NotificationsDelivered(c.name, len(batch)*len(observers))
	}
	c.logger.WithFields(logrus.Fields{
		"changes":   len(batch),
		"observers": len(observers),
	}).Debug("delivered changes")
}

func (c *Channel[T]) recordDepth(depth int32) {
	if c.recorder != nil {
		c.recorder.PauseDepth(c.name, depth)
	}
}
