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
	"fmt"

	. "github.com/Comcast/uimachine/util/testutil"
)

// Example demonstrates resolving events by hand.  A Service does this
// (and much more) for you.
func Example() {
	spec, err := ParseSpec([]byte(`
initial: idle
context:
  count: 0
states:
  idle:
    on:
      CLICK:
        - guard: {not: tooMany}
          target: busy
          actions: increment
  busy:
    tags: [working]
    on:
      DONE: idle
`))
	if err != nil {
		panic(err)
	}

	impl := NewImplementation()
	impl.Guards["tooMany"] = func(ctx context.Context, bs Bindings, evt Event) (bool, error) {
		n, _ := bs["count"].(int)
		return 1 < n, nil
	}
	impl.Actions["increment"] = func(ctx context.Context, bs Bindings, evt Event, meta *Meta) error {
		n, _ := bs["count"].(int)
		bs["count"] = n + 1
		return nil
	}

	ctx := context.Background()
	if err = spec.Compile(ctx, impl, nil, false); err != nil {
		panic(err)
	}

	bs := spec.Context.DeepCopy()
	at := spec.Initial
	meta := NewMeta("example", nil, nil, spec.Context, nil)

	for _, typ := range []string{"CLICK", "DONE", "CLICK", "DONE", "CLICK"} {
		evt := NewEvent(typ)
		s, err := spec.Resolve(ctx, at, bs, evt)
		if err != nil {
			panic(err)
		}
		if s == nil {
			fmt.Printf("%s ignored at %s\n", typ, at)
			continue
		}
		if err = spec.RunActions(ctx, s.Actions(), bs, evt, meta.WithState(at)); err != nil {
			panic(err)
		}
		at = s.To
		fmt.Printf("%s -> %s %s\n", typ, at, JS(NewState(spec, at, bs, false)))
	}

	// Output:
	// CLICK -> busy {"value":"busy","context":{"count":1},"tags":["working"]}
	// DONE -> idle {"value":"idle","context":{"count":1}}
	// CLICK -> busy {"value":"busy","context":{"count":2},"tags":["working"]}
	// DONE -> idle {"value":"idle","context":{"count":2}}
	// CLICK ignored at idle
}
