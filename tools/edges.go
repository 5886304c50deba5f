package tools

import (
	"sort"

	"github.com/Comcast/uimachine/core"
)

// edge is one transition drawn from one node.
type edge struct {
	From string

	// To is empty for an internal transition.
	To string

	// Event is the event type or, for a delay, "after:KEY".
	Event string

	Transition *core.Transition
	Index      int
	Count      int

	// Global edges come from the root "on" and have no From.
	Global bool
}

// order returns node names with the initial node first.
func order(spec *core.Spec) []string {
	names := spec.NodeNames()
	acc := make([]string, 0, len(names))
	if _, have := spec.Nodes[spec.Initial]; have {
		acc = append(acc, spec.Initial)
	}
	for _, name := range names {
		if name != spec.Initial {
			acc = append(acc, name)
		}
	}
	return acc
}

func globalEvents(spec *core.Spec) []string {
	acc := make([]string, 0, len(spec.On))
	for evt := range spec.On {
		acc = append(acc, evt)
	}
	sort.Strings(acc)
	return acc
}

func appendEdges(acc []edge, from, event string, ts core.Transitions, global bool) []edge {
	for i, t := range ts {
		if t == nil {
			continue
		}
		to := t.Target
		if t.Internal(from) {
			to = ""
		}
		acc = append(acc, edge{
			From:       from,
			To:         to,
			Event:      event,
			Transition: t,
			Index:      i,
			Count:      len(ts),
			Global:     global,
		})
	}
	return acc
}

// edges lists every transition: each node's (in order) and then the
// global ones.
func edges(spec *core.Spec) []edge {
	var acc []edge
	for _, name := range order(spec) {
		n := spec.Nodes[name]
		if n == nil {
			continue
		}
		for _, evt := range n.EventTypes() {
			acc = appendEdges(acc, name, evt, n.On[evt], false)
		}
		for _, key := range n.AfterKeys() {
			acc = appendEdges(acc, name, core.AfterPrefix+key, n.After[key], false)
		}
	}
	for _, evt := range globalEvents(spec) {
		acc = appendEdges(acc, "", evt, spec.On[evt], true)
	}
	return acc
}
