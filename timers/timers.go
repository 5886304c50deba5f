// Package timers provides a managed set of cancelable timers.
//
// Each Timer has an id that's unique within its Timers.  A Timer is
// either pending, executed, or removed; removing a Timer guarantees
// that its work won't start later.  Work runs in the Clock's callback
// goroutine (or, with a ManualClock, in the goroutine that advances
// the clock), so it shouldn't block for long.
package timers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	NotFound = errors.New("not found")
	TooMany  = errors.New("too many")
	IdExists = errors.New("id exists")
	Stopped  = errors.New("stopped")
)

// Timer represents some work to be done in the future.
type Timer struct {
	// Id is a unique identifier across all timers managed by a
	// given Timers instance.
	Id string `json:"id"`

	// F is the work to be performed in the future.
	//
	// This timer is passed to this function to make it a little
	// easier to write more general-purpose work functions.
	F func(context.Context, *Timer) `json:"-"`

	// At is the desired time to execute F.
	At time.Time `json:"at"`

	// Executed, which is the time that F was actually executed,
	// will be written when F is executed.
	Executed time.Time `json:"executed,omitempty"`

	stopper Stopper
}

// Timers is a managed set of Timer instances.
type Timers struct {
	// Max is the maximum number of pending timers.  Zero means no
	// limit.
	Max int `json:"max"`

	clock  Clock
	logger *zap.Logger

	sync.Mutex
	pending map[string]*Timer
	stopped bool
}

// NewTimers makes a new instance with the given maximum number of
// pending timers.  The clock defaults to RealClock and the logger to
// a no-op.
func NewTimers(max int, clock Clock, logger *zap.Logger) *Timers {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timers{
		Max:     max,
		clock:   clock,
		logger:  logger,
		pending: make(map[string]*Timer),
	}
}

// Clock returns the clock the timers use.
func (ts *Timers) Clock() Clock {
	return ts.clock
}

// Add schedules the given timer.  The context is passed to the
// timer's F.
func (ts *Timers) Add(ctx context.Context, t *Timer) error {
	ts.Lock()
	defer ts.Unlock()

	if ts.stopped {
		return Stopped
	}
	if 0 < ts.Max && ts.Max <= len(ts.pending) {
		return TooMany
	}
	if _, have := ts.pending[t.Id]; have {
		return IdExists
	}

	d := t.At.Sub(ts.clock.Now())
	ts.logger.Debug("timer add", zap.String("timer", t.Id), zap.Duration("in", d))

	ts.pending[t.Id] = t
	t.stopper = ts.clock.AfterFunc(d, func() {
		ts.fire(ctx, t)
	})

	return nil
}

func (ts *Timers) fire(ctx context.Context, t *Timer) {
	ts.Lock()
	current, have := ts.pending[t.Id]
	if !have || current != t {
		ts.Unlock()
		ts.logger.Debug("timer gone", zap.String("timer", t.Id))
		return
	}
	delete(ts.pending, t.Id)
	ts.Unlock()

	t.Executed = ts.clock.Now()
	ts.logger.Debug("timer firing", zap.String("timer", t.Id), zap.Duration("late", t.Executed.Sub(t.At)))
	t.F(ctx, t)
}

// Rem removes the given timer.
func (ts *Timers) Rem(id string) error {
	ts.Lock()
	defer ts.Unlock()

	t, have := ts.pending[id]
	if !have {
		return NotFound
	}
	delete(ts.pending, id)
	if t.stopper != nil {
		t.stopper.Stop()
	}
	ts.logger.Debug("timer rem", zap.String("timer", id))
	return nil
}

// RemPrefix removes every timer whose id has the given prefix and
// returns how many were removed.
func (ts *Timers) RemPrefix(prefix string) int {
	ts.Lock()
	defer ts.Unlock()

	n := 0
	for id, t := range ts.pending {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		delete(ts.pending, id)
		if t.stopper != nil {
			t.stopper.Stop()
		}
		n++
	}
	return n
}

// Ids returns the ids of the pending timers ordered by time.
func (ts *Timers) Ids() []string {
	ts.Lock()
	defer ts.Unlock()

	acc := make([]*Timer, 0, len(ts.pending))
	for _, t := range ts.pending {
		acc = append(acc, t)
	}
	sort.Slice(acc, func(i, j int) bool {
		if acc[i].At.Equal(acc[j].At) {
			return acc[i].Id < acc[j].Id
		}
		return acc[i].At.Before(acc[j].At)
	})
	ids := make([]string, len(acc))
	for i, t := range acc {
		ids[i] = t.Id
	}
	return ids
}

// Len returns the number of pending timers.
func (ts *Timers) Len() int {
	ts.Lock()
	defer ts.Unlock()
	return len(ts.pending)
}

// Stop removes every pending timer.  Subsequent calls to Add return
// Stopped.  Calling Stop more than once is fine.
func (ts *Timers) Stop() {
	ts.Lock()
	defer ts.Unlock()

	for id, t := range ts.pending {
		if t.stopper != nil {
			t.stopper.Stop()
		}
		delete(ts.pending, id)
	}
	ts.stopped = true
}
