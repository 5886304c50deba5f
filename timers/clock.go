package timers

import (
	"sort"
	"sync"
	"time"
)

// Stopper cancels a pending callback.  Stop reports whether the
// callback was prevented.
type Stopper interface {
	Stop() bool
}

// Clock is a source of time and delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// ManualClock only moves when told to.  Callbacks run synchronously
// inside Advance, in time order.
//
// Useful for tests.
type ManualClock struct {
	sync.Mutex
	now     time.Time
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   int
	f     func()
	done  bool
}

// NewManualClock makes a ManualClock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now: start,
	}
}

func (c *ManualClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.Lock()
	defer c.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTimer{
		clock: c,
		at:    c.now.Add(d),
		seq:   c.seq,
		f:     f,
	}
	c.pending = append(c.pending, t)
	return t
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.Lock()
	defer c.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, x := range c.pending {
		if x == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	return true
}

// next removes and returns the earliest callback due by the given
// time.
func (c *ManualClock) next(until time.Time) *manualTimer {
	c.Lock()
	defer c.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		a, b := c.pending[i], c.pending[j]
		if a.at.Equal(b.at) {
			return a.seq < b.seq
		}
		return a.at.Before(b.at)
	})
	t := c.pending[0]
	if t.at.After(until) {
		return nil
	}
	c.pending = c.pending[1:]
	t.done = true
	if c.now.Before(t.at) {
		c.now = t.at
	}
	return t
}

// Advance moves the clock forward, running every callback that comes
// due (including ones scheduled by earlier callbacks).
func (c *ManualClock) Advance(d time.Duration) {
	c.Lock()
	until := c.now.Add(d)
	c.Unlock()

	for {
		t := c.next(until)
		if t == nil {
			break
		}
		t.f()
	}

	c.Lock()
	if c.now.Before(until) {
		c.now = until
	}
	c.Unlock()
}

// Pending returns the number of callbacks that haven't run.
func (c *ManualClock) Pending() int {
	c.Lock()
	defer c.Unlock()
	return len(c.pending)
}
