package core

import (
	"context"
	"strings"
)

// AfterPrefix starts the type of the synthetic event that a fired
// delay dispatches.
const AfterPrefix = "after:"

// AfterEvent makes the event for the given node's delay.
func AfterEvent(state, key string) Event {
	return Event{
		"type":  AfterPrefix + key,
		"state": state,
		"delay": key,
	}
}

// IsAfterEvent reports whether the event came from a fired delay and,
// if so, the delay's key.
func IsAfterEvent(evt Event) (string, bool) {
	t := evt.Type()
	if !strings.HasPrefix(t, AfterPrefix) {
		return "", false
	}
	return t[len(AfterPrefix):], true
}

// Stride describes the outcome of resolving one event in one node.
type Stride struct {
	// From is the node that was current.
	From string

	// To is the node that will be current.  Same as From for an
	// internal transition.
	To string

	// Internal is true when From isn't exited.
	Internal bool

	// Transition is the winning candidate.
	Transition *Transition

	// Index is the position of the winning candidate in its list.
	Index int

	// Global is true when the candidates came from the root "on"
	// map.
	Global bool
}

// Actions returns the winning transition's actions.
func (s *Stride) Actions() Names {
	return s.Transition.Actions
}

// Candidates returns the transitions to consider for the event type
// at the given node.  The node's own list, if present at all, takes
// precedence over the root list.
func (spec *Spec) Candidates(n *Node, eventType string) (Transitions, bool) {
	if n != nil {
		if ts, have := n.On[eventType]; have {
			return ts, false
		}
	}
	if ts, have := spec.On[eventType]; have {
		return ts, true
	}
	return nil, false
}

// Resolve finds the transition (if any) that the event triggers at
// the given node.
//
// Candidates are considered in order, and the first one whose guard
// passes (or which has no guard) wins.  A nil Stride with a nil
// error means the event has no effect.
//
// A guard failure is returned as a *GuardEvaluationError, and nothing
// is resolved.
func (spec *Spec) Resolve(ctx context.Context, from string, bs Bindings, evt Event) (*Stride, error) {
	if !spec.compiled {
		return nil, &SpecNotCompiled{Spec: spec}
	}

	n, err := spec.Node(from)
	if err != nil {
		return nil, err
	}

	if n.Final() {
		return nil, nil
	}

	var (
		ts     Transitions
		global bool
	)
	if key, is := IsAfterEvent(evt); is {
		ts = n.After[key]
	} else {
		ts, global = spec.Candidates(n, evt.Type())
	}

	return spec.choose(ctx, from, ts, global, bs, evt)
}

// ResolveAfter resolves the node's transitions for the given delay
// key.
func (spec *Spec) ResolveAfter(ctx context.Context, from, key string, bs Bindings) (*Stride, error) {
	return spec.Resolve(ctx, from, bs, AfterEvent(from, key))
}

func (spec *Spec) choose(ctx context.Context, from string, ts Transitions, global bool, bs Bindings, evt Event) (*Stride, error) {
	for i, t := range ts {
		if t == nil {
			continue
		}
		ok, err := EvalGuard(ctx, t.Guard, spec.impl.Guards, bs, evt)
		if err != nil {
			if ge, is := err.(*GuardEvaluationError); is {
				ge.State = from
				ge.Event = evt.Type()
			}
			return nil, err
		}
		if !ok {
			continue
		}
		s := &Stride{
			From:       from,
			To:         from,
			Internal:   t.Internal(from),
			Transition: t,
			Index:      i,
			Global:     global,
		}
		if !s.Internal {
			s.To = t.Target
		}
		return s, nil
	}
	return nil, nil
}
