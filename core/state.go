package core

import (
	"encoding/json"
	"sort"
)

// State is a snapshot of a running machine: the current node, the
// context, the node's tags, and whether a final node was reached.
//
// A State handed out by an interpreter is a copy.  Changing it does
// not change the machine.
type State struct {
	Value   string   `json:"value"`
	Context Bindings `json:"context"`
	Tags    Names    `json:"tags,omitempty"`
	Done    bool     `json:"done,omitempty"`

	spec *Spec
}

// NewState makes a snapshot for the given node of the given Spec.
// Tags come from the node.
func NewState(spec *Spec, value string, bs Bindings, done bool) *State {
	s := &State{
		Value:   value,
		Context: bs,
		Done:    done,
		spec:    spec,
	}
	if spec != nil {
		if n, have := spec.Nodes[value]; have && n != nil {
			s.Tags = n.Tags.Copy()
		}
	}
	return s
}

func (s *State) String() string {
	js, err := json.Marshal(s)
	if err != nil {
		return s.Value
	}
	return string(js)
}

// Copy makes a deep copy of the State.
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	return &State{
		Value:   s.Value,
		Context: s.Context.DeepCopy(),
		Tags:    s.Tags.Copy(),
		Done:    s.Done,
		spec:    s.spec,
	}
}

// Spec returns the Spec that produced this State, if known.
func (s *State) Spec() *Spec {
	return s.spec
}

// HasTag reports whether the current node carries the given tag.
func (s *State) HasTag(tag string) bool {
	return s.Tags.Has(tag)
}

// Matches reports whether the current node is one of the given
// names.
func (s *State) Matches(values ...string) bool {
	for _, v := range values {
		if s.Value == v {
			return true
		}
	}
	return false
}

// Computed evaluates the named computed field against the snapshot's
// context.  The value is never cached.
func (s *State) Computed(name string) (interface{}, bool) {
	if s.spec == nil || s.spec.impl == nil {
		return nil, false
	}
	f, have := s.spec.impl.Computed[name]
	if !have {
		return nil, false
	}
	return f(s.Context), true
}

// Derived evaluates every computed field the Spec declares.
func (s *State) Derived() map[string]interface{} {
	acc := make(map[string]interface{})
	if s.spec == nil {
		return acc
	}
	names := append([]string(nil), s.spec.Computed...)
	sort.Strings(names)
	for _, name := range names {
		if v, ok := s.Computed(name); ok {
			acc[name] = v
		}
	}
	return acc
}
