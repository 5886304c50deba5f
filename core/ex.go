package core

import (
	"context"
)

// TurnstileSpec makes an example Spec that's useful to have around.
//
// See https://en.wikipedia.org/wiki/Finite-state_machine#Example:_coin-operated_turnstile.
//
// The machine counts coins in its "coins" context property, and a
// "locked" turnstile relocks itself after "timeout" milliseconds of
// no pushing.
func TurnstileSpec(ctx context.Context) (*Spec, error) {
	spec := &Spec{
		Name:    "turnstile",
		Initial: "locked",
		Context: Bindings{
			"coins": 0,
		},
		Nodes: map[string]*Node{
			"locked": {
				Tags: Names{"closed"},
				On: map[string]Transitions{
					"coin": {{Target: "unlocked", Actions: Names{"count"}}},
					"push": {{Target: "locked"}},
				},
			},
			"unlocked": {
				Tags: Names{"open"},
				On: map[string]Transitions{
					"coin": {{Actions: Names{"count"}}},
					"push": {{Target: "locked"}},
				},
				After: map[string]Transitions{
					"timeout": {{Target: "locked"}},
				},
			},
		},
		Delays: map[string]string{
			"timeout": "10s",
		},
	}

	impl := NewImplementation()
	impl.Actions["count"] = func(ctx context.Context, bs Bindings, evt Event, meta *Meta) error {
		var n int
		switch vv := bs["coins"].(type) {
		case int:
			n = vv
		case float64:
			// Context that went through JSON.
			n = int(vv)
		}
		bs["coins"] = n + 1
		return nil
	}

	if err := spec.Compile(ctx, impl, nil, true); err != nil {
		return nil, err
	}

	return spec, nil
}
