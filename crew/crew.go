/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package crew manages a group of running machines that share an
// owner.
//
// A machine in a crew reaches its owner with Meta.SendParent.  The
// crew turns those events into Messages, which the owner consumes via
// Run or Deliver.  Children never hold a reference to the owner.
package crew

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/service"
	"github.com/Comcast/uimachine/timers"

	"go.uber.org/zap"
)

var (
	UnknownMachine = errors.New("unknown machine")
	MachineExists  = errors.New("machine exists")
)

// Message is an event that a machine sent to its owner.
type Message struct {
	From  string     `json:"from"`
	Event core.Event `json:"event"`
}

// Crew is a set of machines.
type Crew struct {
	sync.RWMutex

	Id       string              `json:"id"`
	Machines map[string]*Machine `json:"machines"`

	logger *zap.Logger
	clock  timers.Clock

	mail *mailbox
}

// Option configures a Crew.
type Option func(*Crew)

// WithLogger sets the logger that the crew and its machines use.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crew) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock that the crew's machines use.
func WithClock(clock timers.Clock) Option {
	return func(c *Crew) {
		c.clock = clock
	}
}

// NewCrew makes an empty crew.
func NewCrew(id string, opts ...Option) *Crew {
	c := &Crew{
		Id:       id,
		Machines: make(map[string]*Machine),
		logger:   zap.NewNop(),
		mail:     newMailbox(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("crew", id))
	return c
}

// Spawn makes and starts a machine with the given id.  The crew adds
// its own service options (id, logger, clock, parent) before the
// given ones.
func (c *Crew) Spawn(ctx context.Context, id string, specter core.Specter, opts ...service.Option) (*Machine, error) {
	c.Lock()
	if _, have := c.Machines[id]; have {
		c.Unlock()
		return nil, MachineExists
	}

	spec := specter.Spec()
	base := []service.Option{
		service.WithId(id),
		service.WithLogger(c.logger),
		service.WithParent(func(evt core.Event) {
			c.mail.post(Message{
				From:  id,
				Event: evt,
			})
		}),
	}
	if c.clock != nil {
		base = append(base, service.WithClock(c.clock))
	}
	s, err := service.New(spec, append(base, opts...)...)
	if err != nil {
		c.Unlock()
		return nil, err
	}

	m := &Machine{
		Id:      id,
		Specter: specter,
		Service: s,
	}
	c.Machines[id] = m
	c.Unlock()

	c.logger.Debug("spawn", zap.String("machine", id), zap.String("spec", spec.Name))

	if err = s.Start(ctx); err != nil {
		c.Remove(id)
		return nil, err
	}

	return m, nil
}

// Get returns the machine with the given id or nil.
func (c *Crew) Get(id string) *Machine {
	c.RLock()
	defer c.RUnlock()
	return c.Machines[id]
}

// Remove stops the machine and removes it from the crew.
func (c *Crew) Remove(id string) error {
	c.Lock()
	m, have := c.Machines[id]
	if !have {
		c.Unlock()
		return UnknownMachine
	}
	delete(c.Machines, id)
	c.Unlock()

	c.logger.Debug("remove", zap.String("machine", id))
	m.Service.Stop()
	return nil
}

// Ids returns the ids of the machines in order.
func (c *Crew) Ids() []string {
	c.RLock()
	defer c.RUnlock()
	acc := make([]string, 0, len(c.Machines))
	for id := range c.Machines {
		acc = append(acc, id)
	}
	sort.Strings(acc)
	return acc
}

// Snapshots returns the current state of every machine.
func (c *Crew) Snapshots() map[string]*core.State {
	c.RLock()
	defer c.RUnlock()
	acc := make(map[string]*core.State, len(c.Machines))
	for id, m := range c.Machines {
		acc[id] = m.Service.GetState()
	}
	return acc
}

// Send sends an event to the given machine.
func (c *Crew) Send(id string, evt core.Event) error {
	m := c.Get(id)
	if m == nil {
		return UnknownMachine
	}
	m.Service.Send(evt)
	return nil
}

// Broadcast sends (a copy of) the event to every machine.
func (c *Crew) Broadcast(evt core.Event) {
	for _, id := range c.Ids() {
		c.Send(id, evt.Copy())
	}
}

// Stop stops and removes every machine.
func (c *Crew) Stop() {
	for _, id := range c.Ids() {
		c.Remove(id)
	}
}

// Deliver hands every pending Message to the given function in the
// calling goroutine and returns the number delivered.
func (c *Crew) Deliver(f func(Message)) int {
	n := 0
	for _, msg := range c.mail.take() {
		f(msg)
		n++
	}
	return n
}

// Mail signals when Messages are waiting for Deliver.
func (c *Crew) Mail() <-chan struct{} {
	return c.mail.ready
}

// Run delivers Messages to the given function as they arrive until
// the context is done.
func (c *Crew) Run(ctx context.Context, f func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.mail.ready:
			c.Deliver(f)
		}
	}
}

// ForwardTo makes a Message handler that sends each message's event
// to the given owner machine.  The event gets a "from" property.
func ForwardTo(owner *service.Service) func(Message) {
	return func(msg Message) {
		evt := msg.Event.Copy()
		if evt == nil {
			return
		}
		evt["from"] = msg.From
		owner.Send(evt)
	}
}

// Copy returns a copy of the crew with current states.
func (c *Crew) Copy() *Crew {
	c.RLock()
	ms := make(map[string]*Machine, len(c.Machines))
	for id, m := range c.Machines {
		ms[id] = m.Copy()
	}
	acc := &Crew{
		Id:       c.Id,
		Machines: ms,
	}
	c.RUnlock()
	return acc
}

// mailbox is an unbounded queue of Messages, so posting never blocks
// a machine.
type mailbox struct {
	sync.Mutex
	msgs  []Message
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		ready: make(chan struct{}, 1),
	}
}

func (mb *mailbox) post(msg Message) {
	mb.Lock()
	mb.msgs = append(mb.msgs, msg)
	mb.Unlock()
	select {
	case mb.ready <- struct{}{}:
	default:
	}
}

func (mb *mailbox) take() []Message {
	mb.Lock()
	defer mb.Unlock()
	msgs := mb.msgs
	mb.msgs = nil
	return msgs
}
