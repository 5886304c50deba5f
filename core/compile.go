/* Copyright 2018-2024 Comcast Cable Communications Management, LLC
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

package core

import (
	"context"
	"sort"
)

// Compile binds the Spec to an Implementation and checks that every
// reference can be satisfied.
//
// Sources in Spec.Scripts are compiled with the given interpreters
// (DefaultInterpreters if nil), and declared Spec.Delays are parsed.
// Entries given in the Implementation take precedence over both.
//
// All problems are reported together in one *ConfigurationError.
// The Spec isn't usable until Compile succeeds.
//
// If the Spec has already been compiled, this method does nothing
// unless force is true.
func (spec *Spec) Compile(ctx context.Context, impl *Implementation, interpreters InterpretersMap, force bool) error {
	if spec.compiled && !force {
		return nil
	}

	acc := impl.Copy()
	c := &checker{
		spec: spec,
		impl: acc,
	}

	c.scripts(ctx, interpreters)
	c.delays()

	for name, n := range spec.Nodes {
		if n == nil {
			spec.Nodes[name] = &Node{}
		}
	}

	c.root()
	for _, name := range spec.NodeNames() {
		c.node(name, spec.Nodes[name])
	}

	if 0 < len(c.issues) {
		sort.SliceStable(c.issues, func(i, j int) bool {
			a, b := c.issues[i], c.issues[j]
			if a.Node != b.Node {
				return a.Node < b.Node
			}
			return a.Code < b.Code
		})
		return &ConfigurationError{
			Spec:   spec,
			Issues: c.issues,
		}
	}

	spec.impl = acc
	spec.compiled = true

	return nil
}

// MustCompile is Compile that panics.
func (spec *Spec) MustCompile(ctx context.Context, impl *Implementation) *Spec {
	if err := spec.Compile(ctx, impl, nil, false); err != nil {
		panic(err)
	}
	return spec
}

type checker struct {
	spec   *Spec
	impl   *Implementation
	issues []*Issue
}

func (c *checker) add(code, node, name, msg string) {
	c.issues = append(c.issues, &Issue{
		Code: code,
		Node: node,
		Name: name,
		Msg:  msg,
	})
}

func (c *checker) scripts(ctx context.Context, interpreters InterpretersMap) {
	ss := c.spec.Scripts
	if ss == nil {
		return
	}
	each := func(m map[string]*ActionSource, f func(name string, s Script)) {
		for _, name := range sortedSourceNames(m) {
			src := m[name]
			if src == nil {
				c.add(BadScript, "", name, "no source")
				continue
			}
			s, err := src.Compile(ctx, interpreters)
			if err != nil {
				c.add(BadScript, "", name, err.Error())
				continue
			}
			f(name, s)
		}
	}
	each(ss.Guards, func(name string, s Script) {
		if _, have := c.impl.Guards[name]; !have {
			c.impl.Guards[name] = s.Guard()
		}
	})
	each(ss.Actions, func(name string, s Script) {
		if _, have := c.impl.Actions[name]; !have {
			c.impl.Actions[name] = s.Action()
		}
	})
	each(ss.Delays, func(name string, s Script) {
		if _, have := c.impl.Delays[name]; !have {
			c.impl.Delays[name] = s.Delay()
		}
	})
	each(ss.Computed, func(name string, s Script) {
		if _, have := c.impl.Computed[name]; !have {
			c.impl.Computed[name] = s.Computed()
		}
	})
}

func (c *checker) delays() {
	names := make([]string, 0, len(c.spec.Delays))
	for name := range c.spec.Delays {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := ParseDelay(c.spec.Delays[name])
		if err != nil {
			c.add(InvalidDelay, "", name, err.Error())
			continue
		}
		if _, have := c.impl.Delays[name]; !have {
			c.impl.Delays[name] = f
		}
	}
}

func (c *checker) actions(node string, names Names) {
	for _, name := range names {
		if _, have := c.impl.Actions[name]; !have {
			c.add(MissingAction, node, name, "")
		}
	}
}

func (c *checker) activities(node string, names Names) {
	for _, name := range names {
		if _, have := c.impl.Activities[name]; !have {
			c.add(MissingActivity, node, name, "")
		}
	}
}

func (c *checker) guard(node string, g *GuardRef) {
	if g == nil {
		return
	}
	if err := g.check(); err != nil {
		c.add(InvalidGuard, node, g.String(), err.Error())
		return
	}
	for _, name := range g.Names() {
		if _, have := c.impl.Guards[name]; !have {
			c.add(MissingGuard, node, name, "")
		}
	}
}

func (c *checker) transitions(node, label string, ts Transitions) {
	for i, t := range ts {
		if t == nil {
			c.add(InvalidTarget, node, label, "nil transition")
			continue
		}
		if t.Target != "" {
			if n, have := c.spec.Nodes[t.Target]; !have || n == nil {
				c.add(InvalidTarget, node, t.Target, "in "+label)
			}
		}
		c.guard(node, t.Guard)
		c.actions(node, t.Actions)
		if t.Guard == nil && i < len(ts)-1 {
			c.add(UnreachableTransition, node, label, "unguarded transition isn't last")
		}
	}
}

func (c *checker) root() {
	spec := c.spec
	switch {
	case spec.Initial == "":
		c.add(MissingInitial, "", "", "")
	default:
		if n, have := spec.Nodes[spec.Initial]; !have || n == nil {
			c.add(InvalidInitial, "", spec.Initial, "")
		}
	}

	c.actions("", spec.Created)
	c.actions("", spec.Entry)
	c.actions("", spec.Exit)
	c.activities("", spec.Activities)

	for _, evt := range sortedKeys(spec.On) {
		c.transitions("", evt, spec.On[evt])
	}

	for _, name := range spec.Computed {
		if _, have := c.impl.Computed[name]; !have {
			c.add(MissingComputed, "", name, "")
		}
	}

	for _, w := range spec.Watch {
		if w == nil || w.Field == "" {
			c.add(InvalidWatch, "", "", "watch needs a field")
			continue
		}
		if w.Equal != "" {
			if _, have := c.impl.Equals[w.Equal]; !have {
				c.add(MissingEqual, "", w.Equal, "")
			}
		}
		c.actions("", w.Actions)
	}
}

func (c *checker) node(name string, n *Node) {
	if n.Final() && (0 < len(n.On) || 0 < len(n.After)) {
		c.add(FinalWithTransitions, name, "", "")
	}

	c.actions(name, n.Entry)
	c.actions(name, n.Exit)
	c.activities(name, n.Activities)

	for _, evt := range n.EventTypes() {
		c.transitions(name, evt, n.On[evt])
	}

	for _, key := range n.AfterKeys() {
		if _, ok := literalDelay(key); !ok {
			if _, have := c.impl.Delays[key]; !have {
				c.add(MissingDelay, name, key, "")
			}
		}
		c.transitions(name, AfterPrefix+key, n.After[key])
	}
}

func sortedSourceNames(m map[string]*ActionSource) []string {
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}
