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

package core

import (
	"encoding/json"
	"math/rand"
	"sort"
	"time"
)

// alphabet is used by Gensym.
var alphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Gensym makes a random string of the given length.
//
// Since we're returning a string and not (somehow a symbol), should
// be named something else.  Using this name just brings back good
// memories.
func Gensym(n int) string {
	bs := make([]byte, n)
	for i := 0; i < len(bs); i++ {
		bs[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(bs)
}

// Canonicalize round-trips the given value through JSON.
//
// Script interpreters hand back values with their own map and number
// types.  After Canonicalize, those values look like what
// encoding/json would have produced.
func Canonicalize(x interface{}) (interface{}, error) {
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err = json.Unmarshal(js, &y); err != nil {
		return nil, err
	}
	return y, nil
}

// Timestamp returns a string representing the current time in
// RFC3339Nano.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// sortedKeys returns the keys of a map of Transitions in order.
func sortedKeys(m map[string]Transitions) []string {
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

// NodeNames returns the names of the spec's nodes in order.
func (spec *Spec) NodeNames() []string {
	acc := make([]string, 0, len(spec.Nodes))
	for name := range spec.Nodes {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// AfterKeys returns the node's delay keys in order.
func (n *Node) AfterKeys() []string {
	return sortedKeys(n.After)
}

// EventTypes returns the event types the node handles in order.
func (n *Node) EventTypes() []string {
	return sortedKeys(n.On)
}
