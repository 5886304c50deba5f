package core

import (
	"context"
	"testing"
	"time"
)

func TestCompileReportsEverything(t *testing.T) {
	spec := &Spec{
		Name:    "broken",
		Initial: "nowhere",
		Nodes: map[string]*Node{
			"a": {
				Activities: Names{"ghost"},
				On: map[string]Transitions{
					"GO": {
						{Target: "b"},
						{Target: "c", Guard: Named("missing")},
					},
				},
				After: map[string]Transitions{
					"SOON": {{Target: "a"}},
				},
			},
			"c": {
				Type: FinalType,
				On: map[string]Transitions{
					"AGAIN": {{Target: "a", Actions: Names{"nope"}}},
				},
			},
		},
		Watch: []*Watch{
			{Field: "x", Equal: "byDay"},
		},
		Delays: map[string]string{
			"LATER": "soonish",
		},
	}

	err := spec.Compile(context.Background(), nil, nil, false)
	ce, is := err.(*ConfigurationError)
	if !is {
		t.Fatalf("%#v", err)
	}

	for _, code := range []string{
		InvalidInitial,
		InvalidTarget,
		MissingGuard,
		MissingAction,
		MissingActivity,
		MissingDelay,
		InvalidDelay,
		MissingEqual,
		UnreachableTransition,
		FinalWithTransitions,
	} {
		if !ce.Has(code) {
			t.Fatalf("no %s in %s", code, ce.Error())
		}
	}

	if spec.Compiled() {
		t.Fatal("shouldn't be compiled")
	}
	if _, err := spec.Resolve(context.Background(), "a", nil, NewEvent("GO")); err == nil {
		t.Fatal("uncompiled spec resolved")
	} else if _, is := err.(*SpecNotCompiled); !is {
		t.Fatalf("%#v", err)
	}
}

func TestCompileIssuesAreOrdered(t *testing.T) {
	mk := func() *Spec {
		return &Spec{
			Initial: "a",
			Nodes: map[string]*Node{
				"a": {Entry: Names{"x", "y"}},
				"b": {Exit: Names{"z"}},
			},
			Created: Names{"w"},
		}
	}
	err1 := mk().Compile(context.Background(), nil, nil, false)
	err2 := mk().Compile(context.Background(), nil, nil, false)
	if err1 == nil || err1.Error() != err2.Error() {
		t.Fatal(err1, err2)
	}
	ce := err1.(*ConfigurationError)
	if len(ce.Issues) != 4 {
		t.Fatal(ce.Error())
	}
	if ce.Issues[0].Node != "" || ce.Issues[0].Name != "w" {
		t.Fatal(ce.Issues[0])
	}
}

func TestCompileImplementationWins(t *testing.T) {
	spec := &Spec{
		Initial: "a",
		Nodes: map[string]*Node{
			"a": {
				After: map[string]Transitions{"D": {{Target: "a"}}},
			},
		},
		Delays: map[string]string{"D": "2s"},
	}
	impl := NewImplementation()
	impl.Delays["D"] = func(bs Bindings) (time.Duration, error) {
		return 7 * time.Millisecond, nil
	}
	if err := spec.Compile(context.Background(), impl, nil, false); err != nil {
		t.Fatal(err)
	}
	d, err := spec.ResolveDelay("D", nil)
	if err != nil {
		t.Fatal(err)
	}
	if d != 7*time.Millisecond {
		t.Fatal(d)
	}
}
