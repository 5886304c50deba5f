package core

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/jsccast/yaml"
)

// FinalType is the Node.Type of a terminal node.
const FinalType = "final"

// Spec is a specification used to build a machine.
//
// A specification gives the structure of the machine.  This data does
// not include any state (such as the name of the current Node or a
// machine's context).
//
// A Spec must be Compiled before use.  After that, treat it as
// read-only: many running machines can share one Spec.
type Spec struct {
	// Name is the generic name for this machine.  Something like
	// "toast".
	Name string `json:"name,omitempty" yaml:",omitempty"`

	// Version is the version of this generic machine.  Something
	// like "1.2".
	Version string `json:"version,omitempty" yaml:",omitempty"`

	// Doc is general documentation (Markdown) about how this
	// specification works.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Initial is the name of the node a new machine starts in.
	Initial string `json:"initial" yaml:"initial"`

	// Context is the default initial context.  Machines get a
	// deep copy, possibly overlaid with their own values.
	Context Bindings `json:"context,omitempty" yaml:",omitempty"`

	// Nodes is the structure of the machine.
	Nodes map[string]*Node `json:"states" yaml:"states"`

	// On gives the global (root-level) transitions, which are
	// considered when the current node has no transitions at all
	// for an event type.
	On map[string]Transitions `json:"on,omitempty" yaml:",omitempty"`

	// Watch lists watched fields in declaration order.
	Watch []*Watch `json:"watch,omitempty" yaml:",omitempty"`

	// Computed names derived fields.  Each name needs a
	// ComputedFunc in the Implementation (or a script).
	Computed Names `json:"computed,omitempty" yaml:",omitempty"`

	// Activities run for the machine's whole life.
	Activities Names `json:"activities,omitempty" yaml:",omitempty"`

	// Created actions run once when the machine starts, before
	// anything else.
	Created Names `json:"created,omitempty" yaml:",omitempty"`

	// Entry actions run when the machine starts, before the
	// initial node is entered.
	Entry Names `json:"entry,omitempty" yaml:",omitempty"`

	// Exit actions run when a running machine is stopped.
	Exit Names `json:"exit,omitempty" yaml:",omitempty"`

	// Delays declares named delays as durations ("250ms", "2s",
	// "1500" for milliseconds) or cron expressions ("cron:0 9 * * *").
	Delays map[string]string `json:"delays,omitempty" yaml:",omitempty"`

	// Scripts can be compiled into Implementation entries.  See
	// Compile.
	Scripts *Scripts `json:"scripts,omitempty" yaml:",omitempty"`

	impl     *Implementation
	compiled bool
}

// Node represents the structure of a state in a state machine.
type Node struct {
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Type is either empty or "final".
	Type string `json:"type,omitempty" yaml:",omitempty"`

	// Tags are semantic labels ("open", "visible") that consumers
	// can test instead of node names.
	Tags Names `json:"tags,omitempty" yaml:",omitempty"`

	On    map[string]Transitions `json:"on,omitempty" yaml:",omitempty"`
	After map[string]Transitions `json:"after,omitempty" yaml:",omitempty"`

	Activities Names `json:"activities,omitempty" yaml:",omitempty"`
	Entry      Names `json:"entry,omitempty" yaml:",omitempty"`
	Exit       Names `json:"exit,omitempty" yaml:",omitempty"`
}

// Final reports whether the node is terminal.
func (n *Node) Final() bool {
	return n != nil && n.Type == FinalType
}

// Copy makes a deep copy of the Node.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	return &Node{
		Doc:        n.Doc,
		Type:       n.Type,
		Tags:       n.Tags.Copy(),
		On:         copyTransitionMap(n.On),
		After:      copyTransitionMap(n.After),
		Activities: n.Activities.Copy(),
		Entry:      n.Entry.Copy(),
		Exit:       n.Exit.Copy(),
	}
}

// Transition is a rule for leaving (or staying in) a node.
type Transition struct {
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Target is the name of the next node.  An empty Target
	// means an internal transition: the actions run but the node
	// isn't exited.
	Target string `json:"target,omitempty" yaml:",omitempty"`

	// Guard, if given, must evaluate to true for this transition
	// to be taken.
	Guard *GuardRef `json:"guard,omitempty" yaml:",omitempty"`

	Actions Names `json:"actions,omitempty" yaml:",omitempty"`
}

// Internal reports whether taking the transition from the given
// node leaves that node.
func (t *Transition) Internal(from string) bool {
	return t.Target == "" || t.Target == from
}

// Copy makes a deep copy of the Transition.
func (t *Transition) Copy() *Transition {
	if t == nil {
		return nil
	}
	return &Transition{
		Doc:     t.Doc,
		Target:  t.Target,
		Guard:   t.Guard.Copy(),
		Actions: t.Actions.Copy(),
	}
}

// Transitions is an ordered list of candidate transitions.  The first
// one whose guard passes wins.
//
// When decoded, a Transitions can be given as a target name, a single
// transition, or a list.
type Transitions []*Transition

func (ts *Transitions) UnmarshalJSON(bs []byte) error {
	bs = bytes.TrimSpace(bs)
	if len(bs) == 0 {
		return nil
	}
	switch bs[0] {
	case '"':
		var target string
		if err := json.Unmarshal(bs, &target); err != nil {
			return err
		}
		*ts = Transitions{{Target: target}}
	case '[':
		var acc []*Transition
		if err := json.Unmarshal(bs, &acc); err != nil {
			return err
		}
		*ts = acc
	case '{':
		var t Transition
		if err := json.Unmarshal(bs, &t); err != nil {
			return err
		}
		*ts = Transitions{&t}
	case 'n':
		*ts = nil
	default:
		return errors.New("bad transitions: " + string(bs))
	}
	return nil
}

func (ts *Transitions) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var target string
	if err := unmarshal(&target); err == nil {
		*ts = Transitions{{Target: target}}
		return nil
	}
	var acc []*Transition
	if err := unmarshal(&acc); err == nil {
		*ts = acc
		return nil
	}
	var t Transition
	if err := unmarshal(&t); err != nil {
		return err
	}
	*ts = Transitions{&t}
	return nil
}

// Copy makes a deep copy.
func (ts Transitions) Copy() Transitions {
	if ts == nil {
		return nil
	}
	acc := make(Transitions, len(ts))
	for i, t := range ts {
		acc[i] = t.Copy()
	}
	return acc
}

func copyTransitionMap(m map[string]Transitions) map[string]Transitions {
	if m == nil {
		return nil
	}
	acc := make(map[string]Transitions, len(m))
	for k, ts := range m {
		acc[k] = ts.Copy()
	}
	return acc
}

// Names is a list of references (actions, activities, tags).  When
// decoded, a single string is accepted as a list of one.
type Names []string

func (ns *Names) UnmarshalJSON(bs []byte) error {
	bs = bytes.TrimSpace(bs)
	if 0 < len(bs) && bs[0] == '"' {
		var s string
		if err := json.Unmarshal(bs, &s); err != nil {
			return err
		}
		*ns = Names{s}
		return nil
	}
	var acc []string
	if err := json.Unmarshal(bs, &acc); err != nil {
		return err
	}
	*ns = acc
	return nil
}

func (ns *Names) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		*ns = Names{s}
		return nil
	}
	var acc []string
	if err := unmarshal(&acc); err != nil {
		return err
	}
	*ns = acc
	return nil
}

// Has reports whether the given name is present.
func (ns Names) Has(name string) bool {
	for _, n := range ns {
		if n == name {
			return true
		}
	}
	return false
}

func (ns Names) Copy() Names {
	if ns == nil {
		return nil
	}
	acc := make(Names, len(ns))
	copy(acc, ns)
	return acc
}

// Copy makes a deep copy of the Spec's structure.  The copy is not
// compiled.
func (spec *Spec) Copy(version string) *Spec {
	if version == "" {
		version = spec.Version
	}
	ns := make(map[string]*Node, len(spec.Nodes))
	for name, n := range spec.Nodes {
		ns[name] = n.Copy()
	}
	ws := make([]*Watch, len(spec.Watch))
	for i, w := range spec.Watch {
		ws[i] = w.Copy()
	}
	var delays map[string]string
	if spec.Delays != nil {
		delays = make(map[string]string, len(spec.Delays))
		for k, v := range spec.Delays {
			delays[k] = v
		}
	}
	return &Spec{
		Name:       spec.Name,
		Version:    version,
		Doc:        spec.Doc,
		Initial:    spec.Initial,
		Context:    spec.Context.DeepCopy(),
		Nodes:      ns,
		On:         copyTransitionMap(spec.On),
		Watch:      ws,
		Computed:   spec.Computed.Copy(),
		Activities: spec.Activities.Copy(),
		Created:    spec.Created.Copy(),
		Entry:      spec.Entry.Copy(),
		Exit:       spec.Exit.Copy(),
		Delays:     delays,
		Scripts:    spec.Scripts.Copy(),
	}
}

// Compiled reports whether Compile has succeeded.
func (spec *Spec) Compiled() bool {
	return spec.compiled
}

// Implementation returns the Implementation that Compile built.
func (spec *Spec) Implementation() *Implementation {
	return spec.impl
}

// Node returns the named node or an *UnknownState error.
func (spec *Spec) Node(name string) (*Node, error) {
	n, have := spec.Nodes[name]
	if !have || n == nil {
		return nil, &UnknownState{
			Spec:     spec,
			NodeName: name,
		}
	}
	return n, nil
}

// ParseSpec decodes a JSON or YAML representation of a Spec.  Input
// starting with '{' is JSON.
func ParseSpec(bs []byte) (*Spec, error) {
	bs = bytes.TrimSpace(bs)
	if len(bs) == 0 {
		return nil, errors.New("spec source is empty")
	}
	var spec Spec
	var err error
	switch bs[0] {
	case '{':
		err = json.Unmarshal(bs, &spec)
	default:
		err = yaml.Unmarshal(bs, &spec)
	}
	if err != nil {
		return nil, err
	}
	return &spec, nil
}
