package uimachine

import (
	"context"
	"testing"

	"github.com/Comcast/uimachine/core"
)

func TestCreateMachine(t *testing.T) {
	ctx := context.Background()

	impl := core.NewImplementation()
	impl.Guards["isOpen"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		return true, nil
	}

	s, err := CreateMachineFromSource(ctx, []byte(`
initial: closed
states:
  closed:
    tags: closed
    on:
      TOGGLE: open
  open:
    tags: open
    on:
      TOGGLE:
        guard: isOpen
        target: closed
`), impl)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	s.SendType("TOGGLE")
	if st := s.GetState(); !st.HasTag("open") {
		t.Fatal(st)
	}
	s.SendType("TOGGLE")
	if st := s.GetState(); !st.HasTag("closed") {
		t.Fatal(st)
	}
}

func TestCreateMachineConfigurationError(t *testing.T) {
	_, err := CreateMachineFromSource(context.Background(), []byte(`
initial: a
states:
  a:
    on:
      GO:
        guard: {and: [isRangePicker, isSelectingEndDate]}
        target: b
  b: {}
`), nil)
	ce, is := err.(*core.ConfigurationError)
	if !is {
		t.Fatalf("%#v", err)
	}
	if len(ce.Issues) != 2 || !ce.Has(core.MissingGuard) {
		t.Fatal(ce)
	}
}

func TestCreateMachineReusesDefinition(t *testing.T) {
	ctx := context.Background()

	spec, err := core.ParseSpec([]byte(`
initial: a
states:
  a:
    on:
      GO:
        guard: ok
        target: b
  b: {}
`))
	if err != nil {
		t.Fatal(err)
	}

	bind := func(ok bool) *core.Implementation {
		impl := core.NewImplementation()
		impl.Guards["ok"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
			return ok, nil
		}
		return impl
	}

	var values []string
	for _, ok := range []bool{false, true} {
		s, err := CreateMachine(ctx, spec, bind(ok))
		if err != nil {
			t.Fatal(err)
		}
		if err = s.Start(ctx); err != nil {
			t.Fatal(err)
		}
		s.SendType("GO")
		values = append(values, s.GetState().Value)
		s.Stop()
	}
	if values[0] != "a" || values[1] != "b" {
		t.Fatal(values)
	}

	// A compiled spec can also be given no new implementation.
	s, err := CreateMachine(ctx, spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Spec() == spec {
		t.Fatal("compiled spec wasn't copied")
	}
}
