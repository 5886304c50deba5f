/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package sio

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/interpreters"
	"github.com/Comcast/uimachine/service"
	"github.com/Comcast/uimachine/storage"
	"github.com/Comcast/uimachine/timers"

	"go.uber.org/zap"
)

// Changed represents changes to a machine after message processing.
type Changed struct {
	State   *core.State      `json:"state,omitempty"`
	SpecSrc *crew.SpecSource `json:"spec,omitempty"`
	Deleted bool             `json:"deleted,omitempty"`
}

// Result represents all visible output from processing a message or
// from a machine's timer.
type Result struct {
	// Changed represents all machine changes.
	Changed map[string]*Changed `json:"changed,omitempty"`

	// Emitted are the events that machines sent to the crew, in
	// the order they were sent, each with a "from" property.
	// Errors appear here as {"error": MSG}.
	Emitted []core.Event `json:"emitted,omitempty"`
}

// Empty reports whether the Result has nothing to say.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Changed) == 0 && len(r.Emitted) == 0)
}

// Crew hosts a crew.Crew with I/O coupled via two channels (in and
// out).
//
// An input message is a JSON-like map.  {"spawn": ID, "spec": SRC}
// makes a machine, where SRC is a spec name or a crew.SpecSource, and
// an optional "context" gives initial context.  {"remove": ID} stops
// and removes a machine.  Everything else is an event with a "type",
// which is routed by its optional "to": a machine id, a list of ids,
// or "*" (the default) for every machine.
//
// Events that a machine sends to its parent are emitted.  An emitted
// event with a "to" is also routed back into the crew.
type Crew struct {
	Conf  *CrewConf
	Crew  *crew.Crew
	Specs *Specs

	// Recorder, if not nil, writes every machine's snapshots.
	Recorder *storage.Recorder

	logger *zap.Logger
	clock  timers.Clock

	// in receives all in-bound messages.
	in chan interface{}

	// out receives all out-bound messages.
	out chan *Result

	// done is closed by Couplings when its input is closed.
	done chan bool

	// dirty signals changes made outside of ProcessMsg.
	dirty chan struct{}

	sync.Mutex

	// changed is the set of machines that have changed since
	// the last Result.
	changed map[string]bool

	// deleted machines since the last Result.
	deleted map[string]bool

	// sources of machines spawned since the last Result.
	sources map[string]*crew.SpecSource

	// previous is a cache of JSON machine states that were
	// last reported.  Used to compute net changes.
	previous map[string]string

	// errs are errors reported by machines.
	errs []string

	// unsubs are the subscriptions for each machine.
	unsubs map[string][]func()
}

// CrewOption configures a Crew.
type CrewOption func(*Crew)

func WithLogger(logger *zap.Logger) CrewOption {
	return func(c *Crew) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(clock timers.Clock) CrewOption {
	return func(c *Crew) {
		c.clock = clock
	}
}

func WithSpecs(specs *Specs) CrewOption {
	return func(c *Crew) {
		c.Specs = specs
	}
}

// WithStorage records every machine's snapshots in the given Storage.
func WithStorage(s storage.Storage) CrewOption {
	return func(c *Crew) {
		c.Recorder = storage.NewRecorder(s, "", nil)
	}
}

// NewCrew makes a crew with the given configuration and couplings.
//
// The coupling's IO() method is called to obtain the crew's in/out
// channels.
func NewCrew(ctx context.Context, conf *CrewConf, couplings Couplings, opts ...CrewOption) (*Crew, error) {
	in, out, done, err := couplings.IO(ctx)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		conf = NewCrewConf("sio")
	}
	c := &Crew{
		Conf:     conf,
		logger:   zap.NewNop(),
		in:       in,
		out:      out,
		done:     done,
		dirty:    make(chan struct{}, 1),
		changed:  make(map[string]bool),
		deleted:  make(map[string]bool),
		sources:  make(map[string]*crew.SpecSource),
		previous: make(map[string]string),
		unsubs:   make(map[string][]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("crew", conf.Id))

	if c.Specs == nil {
		c.Specs = NewSpecs(conf.SpecDir, interpreters.Standard(c.logger))
	}
	if c.Recorder != nil {
		c.Recorder.Pid = conf.Id
		c.Recorder.Logger = c.logger
		if err = c.Recorder.Storage.MakeCrew(ctx, conf.Id); err != nil {
			return nil, err
		}
	}

	copts := []crew.Option{crew.WithLogger(c.logger)}
	if c.clock != nil {
		copts = append(copts, crew.WithClock(c.clock))
	}
	c.Crew = crew.NewCrew(conf.Id, copts...)

	return c, nil
}

func (c *Crew) maxPending() int {
	if 0 < c.Conf.MaxPending {
		return c.Conf.MaxPending
	}
	return DefaultMaxPending
}

// mark notes that a machine changed.
func (c *Crew) mark(mid string) {
	c.Lock()
	c.changed[mid] = true
	c.Unlock()
	c.poke()
}

func (c *Crew) poke() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// Errorf logs an error and queues an {"error": MSG} for the next
// Result.
func (c *Crew) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn("error", zap.String("error", msg))
	c.Lock()
	c.errs = append(c.errs, msg)
	c.Unlock()
	c.poke()
}

// SetMachine creates a machine.  When the state isn't nil, the
// machine resumes at that state.  The given context (if any) is
// merged into the spec's initial context.
func (c *Crew) SetMachine(ctx context.Context, mid string, src *crew.SpecSource, state *core.State, bs core.Bindings) error {
	spec, err := c.Specs.FindSpec(ctx, src)
	if err != nil {
		return err
	}

	var opts []service.Option
	if state != nil {
		opts = append(opts, service.WithRestore(state))
	}
	if bs != nil {
		opts = append(opts, service.WithContext(bs))
	}
	if 0 < c.Conf.MaxTimers {
		opts = append(opts, service.WithMaxTimers(c.Conf.MaxTimers))
	}

	m, err := c.Crew.Spawn(ctx, mid, spec, opts...)
	if err != nil {
		return err
	}
	m.SpecSource = src.Copy()

	unsubs := []func(){
		m.Service.Subscribe(func(*core.State) {
			c.mark(mid)
		}),
		m.Service.OnError(func(err error) {
			c.Errorf("%s: %v", mid, err)
		}),
	}
	if c.Recorder != nil {
		unsubs = append(unsubs, c.Recorder.Record(ctx, m))
	}

	c.Lock()
	c.unsubs[mid] = unsubs
	c.sources[mid] = m.SpecSource
	c.changed[mid] = true
	delete(c.deleted, mid)
	c.Unlock()

	return nil
}

// DeleteMachine removes a machine from the crew.
//
// No error is returned if the machine doesn't exist.
func (c *Crew) DeleteMachine(ctx context.Context, mid string) error {
	c.Lock()
	unsubs := c.unsubs[mid]
	delete(c.unsubs, mid)
	c.Unlock()

	for _, f := range unsubs {
		f()
	}

	if err := c.Crew.Remove(mid); err != nil && err != crew.UnknownMachine {
		return err
	}

	if c.Recorder != nil {
		if err := c.Recorder.Forget(ctx, mid); err != nil {
			return err
		}
	}

	c.Lock()
	delete(c.changed, mid)
	delete(c.sources, mid)
	c.deleted[mid] = true
	c.Unlock()

	return nil
}

// Restore spawns the given machines at their states.  Machines named
// in the configuration that aren't restored are then spawned fresh.
func (c *Crew) Restore(ctx context.Context, ms map[string]*crew.Machine) error {
	ids := make([]string, 0, len(ms))
	for mid := range ms {
		ids = append(ids, mid)
	}
	sort.Strings(ids)
	for _, mid := range ids {
		m := ms[mid]
		if err := c.SetMachine(ctx, mid, m.SpecSource, m.State, nil); err != nil {
			return err
		}
	}

	ids = ids[:0]
	for mid := range c.Conf.Machines {
		ids = append(ids, mid)
	}
	sort.Strings(ids)
	for _, mid := range ids {
		if c.Crew.Get(mid) != nil {
			continue
		}
		mc := c.Conf.Machines[mid]
		if err := c.SetMachine(ctx, mid, crew.NewSpecSource(mc.Spec), nil, mc.Context); err != nil {
			return err
		}
	}
	return nil
}

// ProcessMsg processes the given message and returns the results,
// which can then be processed by the crew's Result coupling.
func (c *Crew) ProcessMsg(ctx context.Context, msg interface{}) (*Result, error) {
	c.logger.Debug("ProcessMsg", zap.String("msg", JShort(msg)))

	// Some emitted messages are routed back to the crew.  Rather
	// than route recursively, we take a breadth-first approach.
	pending := make([]interface{}, 0, 8)
	if msg != nil {
		pending = append(pending, msg)
	}

	var (
		r     = &Result{}
		limit = c.maxPending()
		n     = 0
	)

	collect := func(m crew.Message) {
		evt := m.Event.Copy()
		if evt == nil {
			return
		}
		evt["from"] = m.From
		r.Emitted = append(r.Emitted, evt)
		if _, has := evt["to"]; has {
			pending = append(pending, evt)
		}
	}

	c.Crew.Deliver(collect)

	for 0 < len(pending) {
		if limit <= n {
			c.Errorf("dropped %d messages after processing %d", len(pending), n)
			break
		}
		msg := pending[0]
		pending = pending[1:]
		n++

		if err := c.route(ctx, msg); err != nil {
			c.Errorf("%v", err)
		}
		c.Crew.Deliver(collect)
	}

	c.Lock()
	for _, msg := range c.errs {
		r.Emitted = append(r.Emitted, core.Event{"error": msg})
	}
	c.errs = nil
	c.Unlock()

	changed, err := c.getChanged(ctx)
	if err != nil {
		return nil, err
	}
	r.Changed = changed

	return r, nil
}

// route processes one message.
func (c *Crew) route(ctx context.Context, msg interface{}) error {
	var m map[string]interface{}
	switch vv := msg.(type) {
	case map[string]interface{}:
		m = vv
	case core.Event:
		m = vv
	default:
		return fmt.Errorf("bad message %s", JShort(msg))
	}

	if x, have := m["spawn"]; have {
		mid, is := x.(string)
		if !is || mid == "" {
			return fmt.Errorf("bad spawn id in %s", JShort(msg))
		}
		src, err := AsSpecSource(m["spec"])
		if err != nil {
			return err
		}
		var bs core.Bindings
		if x, have := m["context"]; have {
			if y, is := x.(map[string]interface{}); is {
				bs = core.Bindings(y)
			}
		}
		return c.SetMachine(ctx, mid, src, nil, bs)
	}

	if x, have := m["remove"]; have {
		mid, is := x.(string)
		if !is {
			return fmt.Errorf("bad remove id in %s", JShort(msg))
		}
		return c.DeleteMachine(ctx, mid)
	}

	evt := core.Event(m).Copy()
	delete(evt, "to")
	if evt.Type() == "" {
		return fmt.Errorf("no event type in %s", JShort(msg))
	}

	for _, mid := range c.toMachines(m) {
		if err := c.Crew.Send(mid, evt.Copy()); err != nil {
			c.Errorf("%s: %v", mid, err)
		}
	}
	return nil
}

// toMachines determines the set of machines that should see this
// message.
func (c *Crew) toMachines(m map[string]interface{}) []string {
	if x, have := m["to"]; have {
		switch vv := x.(type) {
		case string:
			if vv == "*" {
				return c.Crew.Ids()
			}
			return []string{vv}
		case []string:
			return vv
		case []interface{}:
			mids := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, is := x.(string); is {
					mids = append(mids, s)
				}
			}
			return mids
		}
	}
	return c.Crew.Ids()
}

// getChanged computes the net machine changes since this method was
// previously called.
func (c *Crew) getChanged(ctx context.Context) (map[string]*Changed, error) {
	c.Lock()
	defer c.Unlock()

	changed := make(map[string]*Changed, len(c.changed)+len(c.deleted))

	for mid := range c.deleted {
		changed[mid] = &Changed{
			Deleted: true,
		}
		delete(c.previous, mid)
	}
	c.deleted = make(map[string]bool)

	for mid := range c.changed {
		m := c.Crew.Get(mid)
		if m == nil {
			continue
		}
		ch := &Changed{
			State:   m.Service.GetState(),
			SpecSrc: c.sources[mid],
		}
		js, err := json.Marshal(ch)
		if err != nil {
			return nil, err
		}
		current := string(js)
		if previous, have := c.previous[mid]; have && current == previous {
			continue
		}
		c.previous[mid] = current
		changed[mid] = ch
	}
	c.changed = make(map[string]bool)
	c.sources = make(map[string]*crew.SpecSource)

	return changed, nil
}

// Loop starts the input processing loop in the current goroutine.
//
// This loop calls ProcessMsg on each message that arrives via the
// input coupling and on changes that happen between messages (from
// delays, for example).  The loop halts when ctx.Done().
func (c *Crew) Loop(ctx context.Context) error {
	c.logger.Info("Crew.Loop starting")

	emit := func(r *Result) {
		if r.Empty() {
			return
		}
		select {
		case <-ctx.Done():
		case c.out <- r:
		}
	}

	flush := func() {
		r, err := c.ProcessMsg(ctx, nil)
		if err != nil {
			c.logger.Error("flush", zap.Error(err))
			return
		}
		emit(r)
	}

	// Report what restoring did.
	flush()

LOOP:
	for {
		select {
		case <-c.done:
			if c.Conf.HaltOnInputEOF {
				c.logger.Info("Crew.Loop shutting down (input done)")
				break LOOP
			}
			c.done = nil
		case <-ctx.Done():
			c.logger.Info("Crew.Loop shutting down (ctx.Done)")
			break LOOP
		case msg := <-c.in:
			if msg == nil {
				break LOOP
			}
			r, err := c.ProcessMsg(ctx, msg)
			if err != nil {
				c.logger.Error("ProcessMsg", zap.Error(err))
				continue
			}
			emit(r)
		case <-c.Crew.Mail():
			flush()
		case <-c.dirty:
			flush()
		}
	}

	c.logger.Info("Crew.Loop done")
	return nil
}

// Stop stops every machine.
func (c *Crew) Stop(ctx context.Context) {
	c.Lock()
	for mid, unsubs := range c.unsubs {
		for _, f := range unsubs {
			f()
		}
		delete(c.unsubs, mid)
	}
	c.Unlock()
	c.Crew.Stop()
}

// Machines returns copies of the current machines.
func (c *Crew) Machines() map[string]*crew.Machine {
	return c.Crew.Copy().Machines
}
