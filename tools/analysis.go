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

package tools

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Comcast/uimachine/core"
)

// SpecAnalysis is a summary of a Spec's structure along with things
// that look wrong.  Analyze doesn't need a compiled Spec.
type SpecAnalysis struct {
	spec *core.Spec

	NodeCount   int
	Transitions int
	Guarded     int
	Delayed     int

	FinalNodes []string

	// Unreachable nodes can't be reached from the initial node.
	Unreachable []string

	// MissingTargets are targets that aren't nodes.
	MissingTargets []string

	// UnguardedNotLast lists "node/event" pairs where an
	// unguarded transition hides the ones after it.
	UnguardedNotLast []string

	// DeadEnds are non-final nodes with no way out.
	DeadEnds []string

	// Referenced names by kind.
	Actions    []string
	Guards     []string
	Activities []string
	Delays     []string

	Interpreters []string
}

type set map[string]bool

func (s set) add(names ...string) {
	for _, name := range names {
		s[name] = true
	}
}

func (s set) sorted() []string {
	acc := make([]string, 0, len(s))
	for name := range s {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Analyze examines the spec.
func Analyze(s *core.Spec) (*SpecAnalysis, error) {
	a := &SpecAnalysis{
		spec:      s,
		NodeCount: len(s.Nodes),
	}

	var (
		actions      = make(set)
		guards       = make(set)
		activities   = make(set)
		delays       = make(set)
		final        = make(set)
		missing      = make(set)
		unguarded    = make(set)
		interpreters = make(set)
		exits        = make(map[string]int)
	)

	actions.add(s.Created...)
	actions.add(s.Entry...)
	actions.add(s.Exit...)
	activities.add(s.Activities...)
	for _, w := range s.Watch {
		if w != nil {
			actions.add(w.Actions...)
		}
	}

	for name, n := range s.Nodes {
		if n == nil {
			continue
		}
		if n.Final() {
			final.add(name)
		}
		actions.add(n.Entry...)
		actions.add(n.Exit...)
		activities.add(n.Activities...)
		for _, key := range n.AfterKeys() {
			if _, err := strconv.ParseInt(key, 10, 64); err != nil {
				delays.add(key)
			}
		}
	}

	es := edges(s)
	for _, e := range es {
		a.Transitions++
		t := e.Transition
		actions.add(t.Actions...)
		if t.Guard != nil {
			a.Guarded++
			guards.add(t.Guard.Names()...)
		} else if e.Index < e.Count-1 {
			from := e.From
			if e.Global {
				from = "*"
			}
			unguarded.add(from + "/" + e.Event)
		}
		if strings.HasPrefix(e.Event, core.AfterPrefix) {
			a.Delayed++
		}
		if t.Target != "" {
			if n, have := s.Nodes[t.Target]; !have || n == nil {
				missing.add(t.Target)
			}
		}
		if e.To != "" && !e.Global {
			exits[e.From]++
		}
	}

	if s.Scripts != nil {
		for _, m := range []map[string]*core.ActionSource{s.Scripts.Guards, s.Scripts.Actions, s.Scripts.Delays, s.Scripts.Computed} {
			for _, src := range m {
				if src != nil {
					interpreters.add(src.Interpreter)
				}
			}
		}
	}

	var (
		reached    = reachable(s, es)
		globalExit = hasGlobalExit(es)

		unreachable, deadEnds []string
	)
	for _, name := range s.NodeNames() {
		if !reached[name] {
			unreachable = append(unreachable, name)
		}
		if !final[name] && exits[name] == 0 && !globalExit {
			deadEnds = append(deadEnds, name)
		}
	}

	a.FinalNodes = final.sorted()
	a.Unreachable = unreachable
	a.DeadEnds = deadEnds
	a.MissingTargets = missing.sorted()
	a.UnguardedNotLast = unguarded.sorted()
	a.Actions = actions.sorted()
	a.Guards = guards.sorted()
	a.Activities = activities.sorted()
	a.Delays = delays.sorted()
	a.Interpreters = interpreters.sorted()

	return a, nil
}

func hasGlobalExit(es []edge) bool {
	for _, e := range es {
		if e.Global && e.To != "" {
			return true
		}
	}
	return false
}

// reachable does a breadth-first walk from the initial node.  Global
// transitions are available from every reached node.
func reachable(s *core.Spec, es []edge) set {
	from := make(map[string][]string)
	var global []string
	for _, e := range es {
		if e.To == "" {
			continue
		}
		if e.Global {
			global = append(global, e.To)
		} else {
			from[e.From] = append(from[e.From], e.To)
		}
	}

	seen := make(set)
	if _, have := s.Nodes[s.Initial]; !have {
		return seen
	}
	queue := []string{s.Initial}
	seen.add(s.Initial)
	for 0 < len(queue) {
		name := queue[0]
		queue = queue[1:]
		next := from[name]
		if n := s.Nodes[name]; n != nil && !n.Final() {
			next = append(next, global...)
		}
		for _, to := range next {
			if !seen[to] {
				seen.add(to)
				queue = append(queue, to)
			}
		}
	}
	return seen
}
