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
	"errors"
)

// Bindings is a machine's context: a map from field names to
// values.
//
// A running machine owns its Bindings exclusively.  Actions may
// modify them in place.
type Bindings map[string]interface{}

func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Extend adds the property; modifies and returns the Bindings.
func (bs Bindings) Extend(p string, v interface{}) Bindings {
	bs[p] = v
	return bs
}

// Extendm adds the properties; modifies and returns the Bindings.
func (bs Bindings) Extendm(pairs ...interface{}) (Bindings, error) {
	for i := 0; i < len(pairs); i += 2 {
		p, is := pairs[i].(string)
		if !is {
			return nil, errors.New("Bindings.Extendm given a non-string key")
		}
		if len(pairs) <= i+1 {
			return nil, errors.New("odd args to Bindings.Extendm")
		}
		bs[p] = pairs[i+1]
	}
	return bs, nil
}

// Merge copies every property of the given Bindings into the
// receiver, which is modified and returned.
func (bs Bindings) Merge(more Bindings) Bindings {
	for p, v := range more {
		bs[p] = v
	}
	return bs
}

// Copy makes a shallow copy of the Bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// DeepCopy copies the Bindings along with any nested maps and slices
// of the kinds that JSON and YAML decoding produce.  Other values
// (functions, structs, pointers) are shared.
func (bs Bindings) DeepCopy() Bindings {
	if bs == nil {
		return nil
	}
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = DeepCopy(v)
	}
	return acc
}

// DeepCopy copies maps and slices recursively.  See Bindings.DeepCopy.
func DeepCopy(x interface{}) interface{} {
	switch vv := x.(type) {
	case Bindings:
		return vv.DeepCopy()
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[k] = DeepCopy(v)
		}
		return acc
	case Event:
		return vv.Copy()
	case []interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = DeepCopy(v)
		}
		return acc
	case []string:
		acc := make([]string, len(vv))
		copy(acc, vv)
		return acc
	default:
		return x
	}
}

// Event is a message sent to a machine.  Its "type" property selects
// transitions; everything else is payload.
type Event map[string]interface{}

// NewEvent makes an Event with the given type and payload pairs.
//
// Non-string keys and a trailing key without a value are ignored.
func NewEvent(typ string, pairs ...interface{}) Event {
	evt := Event{"type": typ}
	for i := 0; i+1 < len(pairs); i += 2 {
		if p, is := pairs[i].(string); is {
			evt[p] = pairs[i+1]
		}
	}
	return evt
}

// Type returns the event's type or the empty string.
func (e Event) Type() string {
	if e == nil {
		return ""
	}
	s, _ := e["type"].(string)
	return s
}

// Get returns the value of the given payload property.
func (e Event) Get(p string) (interface{}, bool) {
	v, have := e[p]
	return v, have
}

// Copy makes a deep copy of the Event.
func (e Event) Copy() Event {
	if e == nil {
		return nil
	}
	acc := make(Event, len(e))
	for k, v := range e {
		acc[k] = DeepCopy(v)
	}
	return acc
}
