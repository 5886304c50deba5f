/* Copyright 2024 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package service runs a machine: it owns the machine's context and
// current node, serializes events, and drives entry/exit actions,
// delays, activities, and watches.
//
// Events are processed one at a time to completion.  An event sent
// while another is being processed (say from an action, an activity,
// or a timer) is queued and handled after the current one has fully
// committed.  Whichever goroutine finds the Service idle processes
// the queue; there is no dedicated goroutine.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/timers"

	"go.uber.org/zap"
)

const (
	// StartEvent is the type of the event that created and entry
	// actions see when a machine starts.
	StartEvent = "@start"

	// StopEvent is the type of the event that root exit actions
	// see.
	StopEvent = "@stop"
)

var AlreadyStarted = errors.New("already started")

const (
	notStarted = iota
	running
	stopping
	stopped
)

// item is a queued event.  Timer events also carry the node and
// entry generation that armed them.
type item struct {
	evt   core.Event
	state string
	gen   uint64
	timer bool
}

// Service is a running machine.
type Service struct {
	id        string
	spec      *core.Spec
	logger    *zap.Logger
	clock     timers.Clock
	timers    *timers.Timers
	parent    func(core.Event)
	overlay   core.Bindings
	restore   *core.State
	maxTimers int

	ctx    context.Context
	cancel context.CancelFunc

	// The following are only touched by whichever goroutine is
	// processing.
	value    string
	bs       core.Bindings
	gen      uint64
	done     bool
	meta     *core.Meta
	rootActs *activitySet
	nodeActs *activitySet
	watched  core.Watched

	mu         sync.Mutex
	queue      []item
	processing bool
	status     int
	stoppedc   chan struct{}

	snapMu   sync.RWMutex
	snapshot *core.State

	*listeners
}

// New makes a Service for the given compiled Spec.  Call Start to run
// it.
func New(spec *core.Spec, opts ...Option) (*Service, error) {
	if !spec.Compiled() {
		return nil, &core.SpecNotCompiled{Spec: spec}
	}

	s := &Service{
		spec:      spec,
		logger:    zap.NewNop(),
		clock:     timers.RealClock{},
		listeners: newListeners(),
		stoppedc:  make(chan struct{}),
		rootActs:  newActivitySet(),
		nodeActs:  newActivitySet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = spec.Name + "-" + core.Gensym(8)
	}
	s.logger = s.logger.With(zap.String("machine", s.id))
	s.timers = timers.NewTimers(s.maxTimers, s.clock, s.logger)

	s.bs = spec.Context.DeepCopy()
	if s.bs == nil {
		s.bs = core.NewBindings()
	}
	s.bs.Merge(s.overlay.DeepCopy())
	s.value = spec.Initial
	initial := s.bs.DeepCopy()

	if s.restore != nil {
		if _, err := spec.Node(s.restore.Value); err != nil {
			return nil, err
		}
		s.value = s.restore.Value
		s.done = s.restore.Done
		s.bs = s.restore.Context.DeepCopy()
		if s.bs == nil {
			s.bs = core.NewBindings()
		}
	}

	s.meta = core.NewMeta(s.id, s.Send, s.parent, initial, s.clock.Now)
	s.snapshot = core.NewState(spec, s.value, s.bs.DeepCopy(), s.done)

	return s, nil
}

// Id returns the machine's id.
func (s *Service) Id() string {
	return s.id
}

// Spec returns the machine's Spec.
func (s *Service) Spec() *core.Spec {
	return s.spec
}

// Start enters the initial node (or the restored one) and then
// processes any events sent before Start.
//
// The given context is the parent of the context that actions,
// activities, and guards see.  It's canceled by Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != notStarted {
		s.mu.Unlock()
		return AlreadyStarted
	}
	s.status = running
	s.processing = true
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Debug("starting", zap.String("state", s.value), zap.Bool("restored", s.restore != nil))

	s.begin()
	s.drain()

	return nil
}

// begin runs the created and entry actions (unless restoring), starts
// the root activities, and enters the current node.
func (s *Service) begin() {
	evt := core.NewEvent(StartEvent)
	defer s.recoverPanic(evt)

	d := &dispatch{
		evt: evt,
	}

	if s.restore == nil {
		s.run(d, s.spec.Created, s.value)
	}

	d.add(s.rootActs.start(s.ctx, s.spec, s.spec.Activities, s.bs, evt, s.meta.WithState(s.value))...)

	if s.restore == nil {
		s.run(d, s.spec.Entry, s.value)
	}

	d.add(s.enter(evt, s.restore == nil && !d.failed)...)

	watched, errs := s.spec.Capture(s.bs)
	s.watched = watched
	d.add(errs...)
	st := s.commit()

	s.report(d.errs...)
	s.notify(st)
}

// Send queues an event.  It returns immediately when another
// goroutine is processing (or when called from an action); otherwise
// the calling goroutine processes the queue.
//
// Events sent before Start are processed after Start.  Events sent
// after Stop are dropped, and so are events typed like a delay
// ("after:KEY"), since only armed timers take delayed transitions.
func (s *Service) Send(evt core.Event) {
	s.enqueue(item{evt: evt})
}

// SendType is Send for an event with no payload.
func (s *Service) SendType(typ string) {
	s.Send(core.NewEvent(typ))
}

func (s *Service) enqueue(it item) {
	s.mu.Lock()
	switch s.status {
	case stopping, stopped:
		s.mu.Unlock()
		s.logger.Debug("dropping event after stop", zap.String("event", it.evt.Type()))
		return
	}
	s.queue = append(s.queue, it)
	if s.status != running || s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	s.drain()
}

// drain processes queued events until the queue is empty or Stop has
// been requested.  The caller must have set processing.
func (s *Service) drain() {
	for {
		s.mu.Lock()
		if s.status == stopping {
			s.mu.Unlock()
			s.teardown()
			return
		}
		if len(s.queue) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		it := s.queue[0]
		s.queue[0] = item{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.process(it)
	}
}

// Stop disposes every activity, cancels every delay, and runs the
// root exit actions.  Later events are dropped.  Calling Stop more
// than once is fine.
//
// If an event is being processed when Stop is called (including when
// an action calls Stop), the teardown happens as soon as that event
// has been handled.  Use Stopped to wait.
func (s *Service) Stop() {
	s.mu.Lock()
	switch s.status {
	case notStarted:
		s.status = stopped
		s.mu.Unlock()
		s.timers.Stop()
		close(s.stoppedc)
		return
	case stopping, stopped:
		s.mu.Unlock()
		return
	}
	s.status = stopping
	if s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	s.teardown()
}

func (s *Service) teardown() {
	s.logger.Debug("stopping", zap.String("state", s.value))

	s.timers.Stop()
	var errs []error
	errs = append(errs, s.nodeActs.dispose()...)
	errs = append(errs, s.rootActs.dispose()...)

	evt := core.NewEvent(StopEvent)
	if err := s.spec.RunActions(s.ctx, s.spec.Exit, s.bs, evt, s.meta.WithState(s.value)); err != nil {
		errs = append(errs, err)
	}
	s.commit()

	s.mu.Lock()
	s.status = stopped
	s.processing = false
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	close(s.stoppedc)

	s.report(errs...)
}

// Stopped returns a channel that's closed when the Service has
// stopped.
func (s *Service) Stopped() <-chan struct{} {
	return s.stoppedc
}

// GetState returns a snapshot of the machine.
func (s *Service) GetState() *core.State {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snapshot.Copy()
}

// commit publishes the current value and context and returns the new
// snapshot.
func (s *Service) commit() *core.State {
	st := core.NewState(s.spec, s.value, s.bs.DeepCopy(), s.done)
	s.snapMu.Lock()
	s.snapshot = st
	s.snapMu.Unlock()
	return st
}
