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

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GuardFunc is a predicate over a machine's context and the event
// being considered.
type GuardFunc func(ctx context.Context, bs Bindings, evt Event) (bool, error)

// GuardRef is a reference to a named guard or a composite of other
// GuardRefs.  Exactly one of Name, And, Or, or Not should be given.
//
// When decoded, a plain string is a Name.  Otherwise the
// representation is a map with an "and", "or", or "not" property:
//
//	guard:
//	  and: [hasTypeChanged, isLoadingType]
type GuardRef struct {
	Name string      `json:"name,omitempty" yaml:",omitempty"`
	And  []*GuardRef `json:"and,omitempty" yaml:",omitempty"`
	Or   []*GuardRef `json:"or,omitempty" yaml:",omitempty"`
	Not  *GuardRef   `json:"not,omitempty" yaml:",omitempty"`
}

// Named makes a reference to a named guard.
func Named(name string) *GuardRef {
	return &GuardRef{Name: name}
}

// And is true when all of the given guards are true.
func And(gs ...*GuardRef) *GuardRef {
	return &GuardRef{And: gs}
}

// Or is true when any of the given guards is true.
func Or(gs ...*GuardRef) *GuardRef {
	return &GuardRef{Or: gs}
}

// Not negates the given guard.
func Not(g *GuardRef) *GuardRef {
	return &GuardRef{Not: g}
}

// guardRef avoids recursion when decoding.
type guardRef GuardRef

func (g *GuardRef) UnmarshalJSON(bs []byte) error {
	bs = bytes.TrimSpace(bs)
	if 0 < len(bs) && bs[0] == '"' {
		return json.Unmarshal(bs, &g.Name)
	}
	var r guardRef
	if err := json.Unmarshal(bs, &r); err != nil {
		return err
	}
	*g = GuardRef(r)
	return nil
}

func (g *GuardRef) MarshalJSON() ([]byte, error) {
	if g.Leaf() {
		return json.Marshal(g.Name)
	}
	r := guardRef(*g)
	return json.Marshal(&r)
}

func (g *GuardRef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err == nil {
		g.Name = name
		return nil
	}
	var r guardRef
	if err := unmarshal(&r); err != nil {
		return err
	}
	*g = GuardRef(r)
	return nil
}

func (g *GuardRef) MarshalYAML() (interface{}, error) {
	if g.Leaf() {
		return g.Name, nil
	}
	r := guardRef(*g)
	return &r, nil
}

// Leaf reports whether the reference is just a name.
func (g *GuardRef) Leaf() bool {
	return g.Name != "" && g.And == nil && g.Or == nil && g.Not == nil
}

// check reports what's structurally wrong with the reference (if
// anything).
func (g *GuardRef) check() error {
	if g == nil {
		return errors.New("nil guard")
	}
	n := 0
	if g.Name != "" {
		n++
	}
	if g.And != nil {
		n++
	}
	if g.Or != nil {
		n++
	}
	if g.Not != nil {
		n++
	}
	if n != 1 {
		return errors.New("guard needs exactly one of name, and, or, not")
	}
	for _, sub := range g.And {
		if err := sub.check(); err != nil {
			return err
		}
	}
	for _, sub := range g.Or {
		if err := sub.check(); err != nil {
			return err
		}
	}
	if g.Not != nil {
		return g.Not.check()
	}
	return nil
}

// Names returns the guard names referenced (recursively) in
// declaration order.  Duplicates are retained.
func (g *GuardRef) Names() []string {
	if g == nil {
		return nil
	}
	if g.Name != "" {
		return []string{g.Name}
	}
	var acc []string
	for _, sub := range g.And {
		acc = append(acc, sub.Names()...)
	}
	for _, sub := range g.Or {
		acc = append(acc, sub.Names()...)
	}
	if g.Not != nil {
		acc = append(acc, g.Not.Names()...)
	}
	return acc
}

// String renders the guard as "and(a, not(b))".
func (g *GuardRef) String() string {
	if g == nil {
		return ""
	}
	join := func(op string, gs []*GuardRef) string {
		parts := make([]string, len(gs))
		for i, sub := range gs {
			parts[i] = sub.String()
		}
		return op + "(" + strings.Join(parts, ", ") + ")"
	}
	switch {
	case g.Name != "":
		return g.Name
	case g.And != nil:
		return join("and", g.And)
	case g.Or != nil:
		return join("or", g.Or)
	case g.Not != nil:
		return "not(" + g.Not.String() + ")"
	}
	return "?"
}

// Copy makes a deep copy.
func (g *GuardRef) Copy() *GuardRef {
	if g == nil {
		return nil
	}
	acc := &GuardRef{
		Name: g.Name,
		Not:  g.Not.Copy(),
	}
	if g.And != nil {
		acc.And = make([]*GuardRef, len(g.And))
		for i, sub := range g.And {
			acc.And[i] = sub.Copy()
		}
	}
	if g.Or != nil {
		acc.Or = make([]*GuardRef, len(g.Or))
		for i, sub := range g.Or {
			acc.Or[i] = sub.Copy()
		}
	}
	return acc
}

// EvalGuard evaluates the guard against the given registry.
//
// "and" stops at the first false and "or" stops at the first true.
// An empty "and" is true and an empty "or" is false.
//
// A failing (or panicking) named guard produces a
// *GuardEvaluationError naming that guard.  The State and Event
// fields are left for the caller.
func EvalGuard(ctx context.Context, g *GuardRef, guards map[string]GuardFunc, bs Bindings, evt Event) (bool, error) {
	if g == nil {
		return true, nil
	}
	switch {
	case g.Name != "":
		f, have := guards[g.Name]
		if !have {
			return false, &GuardEvaluationError{
				Guard: g.Name,
				Event: evt.Type(),
				Err:   errors.New("guard not found"),
			}
		}
		ok, err := callGuard(ctx, f, bs, evt)
		if err != nil {
			return false, &GuardEvaluationError{
				Guard: g.Name,
				Event: evt.Type(),
				Err:   err,
			}
		}
		return ok, nil
	case g.And != nil:
		for _, sub := range g.And {
			ok, err := EvalGuard(ctx, sub, guards, bs, evt)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case g.Or != nil:
		for _, sub := range g.Or {
			ok, err := EvalGuard(ctx, sub, guards, bs, evt)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case g.Not != nil:
		ok, err := EvalGuard(ctx, g.Not, guards, bs, evt)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, &GuardEvaluationError{
		Guard: g.String(),
		Event: evt.Type(),
		Err:   errors.New("empty guard"),
	}
}

func callGuard(ctx context.Context, f GuardFunc, bs Bindings, evt Event) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f(ctx, bs, evt)
}
