package core

import (
	"context"
	"fmt"
	"time"
)

var (
	// DefaultInterpreters will be used in ActionSource.Compile if
	// the given nil interpreters.
	DefaultInterpreters = NewInterpretersMap()
)

// InterpretersMap maps interpreter names to Interpreters.
type InterpretersMap map[string]Interpreter

func NewInterpretersMap() InterpretersMap {
	return make(InterpretersMap)
}

// Find returns the named Interpreter or nil.
func (m InterpretersMap) Find(name string) Interpreter {
	return m[name]
}

// Execution is what a script produces.
type Execution struct {
	// Bs holds context properties to merge into the machine's
	// context.
	Bs Bindings

	// Value is the script's result (a guard's boolean, a delay's
	// milliseconds, a computed field's value).
	Value interface{}

	// Sent are events the script sent to its own machine.
	Sent []Event

	// SentParent are events the script sent to the machine's
	// owner.
	SentParent []Event
}

func NewExecution(bs Bindings) *Execution {
	return &Execution{
		Bs: bs,
	}
}

// Interpreter can optionally compile and execute code for actions,
// guards, delays, and computed fields.
type Interpreter interface {
	// Compile can make something that helps when Exec()ing the
	// code later.
	Compile(ctx context.Context, code interface{}) (interface{}, error)

	// Exec executes the code.  The result of previous Compile()
	// might be provided.
	//
	// The given Bindings are a copy that the Interpreter may do
	// anything with.
	Exec(ctx context.Context, bs Bindings, evt Event, props StepProps, code interface{}, compiled interface{}) (*Execution, error)
}

// StepProps are extra properties made available to scripts.
type StepProps map[string]interface{}

func (ps StepProps) Copy() StepProps {
	acc := make(StepProps, len(ps))
	for p, v := range ps {
		acc[p] = v
	}
	return acc
}

// ActionSource can be compiled to a Script.
type ActionSource struct {
	Interpreter string      `json:"interpreter,omitempty" yaml:",omitempty"`
	Source      interface{} `json:"source"`
	Doc         string      `json:"doc,omitempty" yaml:",omitempty"`
}

// Copy makes a shallow copy.
func (a *ActionSource) Copy() *ActionSource {
	if a == nil {
		return nil
	}
	return &ActionSource{
		Interpreter: a.Interpreter,
		Source:      a.Source,
		Doc:         a.Doc,
	}
}

// Script is a compiled ActionSource.
type Script func(ctx context.Context, bs Bindings, evt Event, props StepProps) (*Execution, error)

// Compile attempts to compile the ActionSource into a Script using
// the given interpreters, which defaults to DefaultInterpreters.
func (a *ActionSource) Compile(ctx context.Context, interpreters InterpretersMap) (Script, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}

	interpreter, have := interpreters[a.Interpreter]
	if !have {
		return nil, InterpreterNotFound
	}

	x, err := interpreter.Compile(ctx, a.Source)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, bs Bindings, evt Event, props StepProps) (*Execution, error) {
		return interpreter.Exec(ctx, bs.DeepCopy(), evt.Copy(), props, a.Source, x)
	}, nil
}

// Scripts holds named sources for the parts of an Implementation
// that a Spec can define itself.
type Scripts struct {
	Guards   map[string]*ActionSource `json:"guards,omitempty" yaml:",omitempty"`
	Actions  map[string]*ActionSource `json:"actions,omitempty" yaml:",omitempty"`
	Delays   map[string]*ActionSource `json:"delays,omitempty" yaml:",omitempty"`
	Computed map[string]*ActionSource `json:"computed,omitempty" yaml:",omitempty"`
}

func (s *Scripts) Copy() *Scripts {
	if s == nil {
		return nil
	}
	cp := func(m map[string]*ActionSource) map[string]*ActionSource {
		if m == nil {
			return nil
		}
		acc := make(map[string]*ActionSource, len(m))
		for k, v := range m {
			acc[k] = v.Copy()
		}
		return acc
	}
	return &Scripts{
		Guards:   cp(s.Guards),
		Actions:  cp(s.Actions),
		Delays:   cp(s.Delays),
		Computed: cp(s.Computed),
	}
}

// ActionFunc is a side effect.  It may modify the given Bindings in
// place.
type ActionFunc func(ctx context.Context, bs Bindings, evt Event, meta *Meta) error

// Meta is what an action or activity can use besides the context
// and the event.
type Meta struct {
	id         string
	state      string
	send       func(Event)
	sendParent func(Event)
	initial    Bindings
	now        func() time.Time
}

// NewMeta makes a Meta.  The sendParent function can be nil when the
// machine has no owner, and now defaults to time.Now.
func NewMeta(id string, send, sendParent func(Event), initial Bindings, now func() time.Time) *Meta {
	if now == nil {
		now = time.Now
	}
	return &Meta{
		id:         id,
		send:       send,
		sendParent: sendParent,
		initial:    initial,
		now:        now,
	}
}

// Id returns the machine's id.
func (m *Meta) Id() string {
	return m.id
}

// State returns the name of the node that was current when the
// dispatch began.
func (m *Meta) State() string {
	return m.state
}

// WithState returns a copy of the Meta for the given node.
func (m *Meta) WithState(state string) *Meta {
	acc := *m
	acc.state = state
	return &acc
}

// Send queues an event for the machine itself.  The event is
// processed after the current dispatch completes.
func (m *Meta) Send(evt Event) {
	if m.send != nil {
		m.send(evt)
	}
}

// SendParent delivers an event to the machine's owner, if any.
func (m *Meta) SendParent(evt Event) {
	if m.sendParent != nil {
		m.sendParent(evt)
	}
}

// HasParent reports whether SendParent goes anywhere.
func (m *Meta) HasParent() bool {
	return m.sendParent != nil
}

// InitialContext returns a fresh copy of the machine's initial
// context.
func (m *Meta) InitialContext() Bindings {
	return m.initial.DeepCopy()
}

// Now returns the time according to the machine's clock.
func (m *Meta) Now() time.Time {
	return m.now()
}

// RunActions runs the named actions in order.
//
// The first action that fails (or panics) stops the list, and the
// result is an *ActionError for it.  Actions that already ran are
// not undone.
func RunActions(ctx context.Context, actions map[string]ActionFunc, names Names, bs Bindings, evt Event, meta *Meta) error {
	for i, name := range names {
		f, have := actions[name]
		if !have {
			return &ActionError{
				Action: name,
				Index:  i,
				State:  meta.State(),
				Event:  evt.Type(),
				Err:    fmt.Errorf("action not found"),
			}
		}
		if err := callAction(ctx, f, bs, evt, meta); err != nil {
			return &ActionError{
				Action: name,
				Index:  i,
				State:  meta.State(),
				Event:  evt.Type(),
				Err:    err,
			}
		}
	}
	return nil
}

func callAction(ctx context.Context, f ActionFunc, bs Bindings, evt Event, meta *Meta) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f(ctx, bs, evt, meta)
}

// RunActions runs the named actions from the compiled Implementation.
func (spec *Spec) RunActions(ctx context.Context, names Names, bs Bindings, evt Event, meta *Meta) error {
	if !spec.compiled {
		return &SpecNotCompiled{Spec: spec}
	}
	return RunActions(ctx, spec.impl.Actions, names, bs, evt, meta)
}
