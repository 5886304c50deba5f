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
	"context"
	"fmt"
	"math"
	"time"
)

// ComputedFunc derives a value from a context.  It must not modify
// the context.
type ComputedFunc func(bs Bindings) interface{}

// Implementation supplies everything a Spec refers to by name.
type Implementation struct {
	Guards     map[string]GuardFunc
	Actions    map[string]ActionFunc
	Activities map[string]ActivityFunc
	Delays     map[string]DelayFunc
	Computed   map[string]ComputedFunc
	Equals     map[string]EqualFunc
}

// NewImplementation makes an Implementation with empty registries.
func NewImplementation() *Implementation {
	return &Implementation{
		Guards:     make(map[string]GuardFunc),
		Actions:    make(map[string]ActionFunc),
		Activities: make(map[string]ActivityFunc),
		Delays:     make(map[string]DelayFunc),
		Computed:   make(map[string]ComputedFunc),
		Equals:     make(map[string]EqualFunc),
	}
}

// Copy returns an Implementation with copies of the registries (but
// the same functions).  A nil Implementation copies to an empty one.
func (impl *Implementation) Copy() *Implementation {
	acc := NewImplementation()
	if impl == nil {
		return acc
	}
	for k, v := range impl.Guards {
		acc.Guards[k] = v
	}
	for k, v := range impl.Actions {
		acc.Actions[k] = v
	}
	for k, v := range impl.Activities {
		acc.Activities[k] = v
	}
	for k, v := range impl.Delays {
		acc.Delays[k] = v
	}
	for k, v := range impl.Computed {
		acc.Computed[k] = v
	}
	for k, v := range impl.Equals {
		acc.Equals[k] = v
	}
	return acc
}

// Merge adds the other Implementation's entries to this one.  Entries
// already present are kept.
func (impl *Implementation) Merge(other *Implementation) *Implementation {
	if other == nil {
		return impl
	}
	for k, v := range other.Guards {
		if _, have := impl.Guards[k]; !have {
			impl.Guards[k] = v
		}
	}
	for k, v := range other.Actions {
		if _, have := impl.Actions[k]; !have {
			impl.Actions[k] = v
		}
	}
	for k, v := range other.Activities {
		if _, have := impl.Activities[k]; !have {
			impl.Activities[k] = v
		}
	}
	for k, v := range other.Delays {
		if _, have := impl.Delays[k]; !have {
			impl.Delays[k] = v
		}
	}
	for k, v := range other.Computed {
		if _, have := impl.Computed[k]; !have {
			impl.Computed[k] = v
		}
	}
	for k, v := range other.Equals {
		if _, have := impl.Equals[k]; !have {
			impl.Equals[k] = v
		}
	}
	return impl
}

// The following adapters turn compiled Scripts into registry
// entries.  A script sees a copy of the context; its Execution.Bs (if
// any) is merged back by actions only.

// Guard makes a GuardFunc from a Script that returns a boolean.
func (s Script) Guard() GuardFunc {
	return func(ctx context.Context, bs Bindings, evt Event) (bool, error) {
		exe, err := s(ctx, bs, evt, nil)
		if err != nil {
			return false, err
		}
		b, is := exe.Value.(bool)
		if !is {
			return false, NotBool
		}
		return b, nil
	}
}

// Action makes an ActionFunc from a Script.  Returned bindings are
// merged into the context, and sent events are forwarded via the
// Meta.
func (s Script) Action() ActionFunc {
	return func(ctx context.Context, bs Bindings, evt Event, meta *Meta) error {
		props := StepProps{
			"id":    meta.Id(),
			"state": meta.State(),
			"now":   meta.Now(),
		}
		exe, err := s(ctx, bs, evt, props)
		if err != nil {
			return err
		}
		bs.Merge(exe.Bs)
		for _, e := range exe.Sent {
			meta.Send(e)
		}
		for _, e := range exe.SentParent {
			meta.SendParent(e)
		}
		return nil
	}
}

// Delay makes a DelayFunc from a Script that returns milliseconds.
func (s Script) Delay() DelayFunc {
	return func(bs Bindings) (time.Duration, error) {
		exe, err := s(context.Background(), bs, nil, nil)
		if err != nil {
			return 0, err
		}
		return Millis(exe.Value)
	}
}

// Computed makes a ComputedFunc from a Script.  A failing script
// produces nil.
func (s Script) Computed() ComputedFunc {
	return func(bs Bindings) interface{} {
		exe, err := s(context.Background(), bs, nil, nil)
		if err != nil {
			return nil
		}
		return exe.Value
	}
}

// Millis interprets a number of milliseconds as a Duration.
// millis converts milliseconds to a Duration.  Values too large for
// a Duration are Never.
func millis(n int64) time.Duration {
	if int64(Never/time.Millisecond) <= n {
		return Never
	}
	return time.Duration(n) * time.Millisecond
}

func Millis(x interface{}) (time.Duration, error) {
	switch vv := x.(type) {
	case int:
		return millis(int64(vv)), nil
	case int64:
		return millis(vv), nil
	case float64:
		if math.IsInf(vv, 1) || float64(Never/time.Millisecond) <= vv {
			return Never, nil
		}
		return time.Duration(vv * float64(time.Millisecond)), nil
	case time.Duration:
		return vv, nil
	default:
		return 0, fmt.Errorf("%#v (%T) isn't a number of milliseconds", x, x)
	}
}
