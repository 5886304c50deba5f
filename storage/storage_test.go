package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/timers"
)

type provider map[string]*core.Spec

func (p provider) FindSpec(ctx context.Context, s *crew.SpecSource) (*core.Spec, error) {
	if s == nil {
		return nil, errors.New("no source")
	}
	spec, have := p[s.Name]
	if !have {
		return nil, errors.New("unknown spec " + s.Name)
	}
	return spec, nil
}

func TestRecordAndRestore(t *testing.T) {
	ctx := context.Background()
	spec, err := core.TurnstileSpec(ctx)
	if err != nil {
		t.Fatal(err)
	}
	clock := timers.NewManualClock(time.Unix(0, 0))

	var (
		mem = NewMem()
		rec = NewRecorder(mem, "gates", nil)
		c   = crew.NewCrew("gates", crew.WithClock(clock))
	)

	m, err := c.Spawn(ctx, "g1", spec)
	if err != nil {
		t.Fatal(err)
	}
	m.SpecSource = crew.NewSpecSource("turnstile")
	stop := rec.Record(ctx, m)

	mss, err := mem.GetCrew(ctx, "gates")
	if err != nil {
		t.Fatal(err)
	}
	if len(mss) != 1 || mss[0].Value != "locked" {
		t.Fatal(mss)
	}

	c.Send("g1", core.NewEvent("coin"))
	c.Send("g1", core.NewEvent("coin"))
	stop()
	c.Send("g1", core.NewEvent("push"))
	c.Stop()

	mss, err = mem.GetCrew(ctx, "gates")
	if err != nil {
		t.Fatal(err)
	}
	if len(mss) != 1 || mss[0].Value != "unlocked" || mss[0].SpecSource.Name != "turnstile" {
		t.Fatal(mss)
	}
	if n, _ := core.Millis(mss[0].Context["coins"]); n != 2*time.Millisecond {
		t.Fatal(mss[0].Context)
	}

	c2 := crew.NewCrew("gates", crew.WithClock(clock))
	defer c2.Stop()
	if err = Restore(ctx, mem, c2, provider{"turnstile": spec}); err != nil {
		t.Fatal(err)
	}
	m2 := c2.Get("g1")
	if m2 == nil {
		t.Fatal(c2.Ids())
	}
	st := m2.Service.GetState()
	if st.Value != "unlocked" || !st.HasTag("open") {
		t.Fatal(st)
	}
	if m2.SpecSource.Name != "turnstile" {
		t.Fatal(m2.SpecSource)
	}

	// The restored node's delay was armed.
	clock.Advance(10 * time.Second)
	if st = m2.Service.GetState(); st.Value != "locked" {
		t.Fatal(st)
	}

	if err = rec.Forget(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if mss, _ = mem.GetCrew(ctx, "gates"); len(mss) != 0 {
		t.Fatal(mss)
	}
}

func TestAsMachineStates(t *testing.T) {
	mss := AsMachineStates(map[string]*core.State{
		"b": {Value: "x", Context: core.Bindings{"n": 1}},
		"a": {Value: "y", Done: true},
	})
	if len(mss) != 2 || mss[0].Mid != "a" || !mss[0].Done || mss[1].Value != "x" {
		t.Fatal(mss)
	}
	ms := AsMachines(mss)
	if ms["b"].State.Value != "x" || ms["b"].State.Context["n"] != 1 {
		t.Fatal(ms["b"])
	}
}

func TestNoop(t *testing.T) {
	var s Storage = Noop{}
	ctx := context.Background()
	if err := s.WriteState(ctx, "c", []*MachineState{{Mid: "a"}}); err != nil {
		t.Fatal(err)
	}
	if mss, err := s.GetCrew(ctx, "c"); err != nil || mss != nil {
		t.Fatal(mss, err)
	}
}

func TestMemRemCrew(t *testing.T) {
	s := NewMem()
	ctx := context.Background()
	if err := s.RemCrew(ctx, "c"); err != UnknownCrew {
		t.Fatal(err)
	}
	if err := s.MakeCrew(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemCrew(ctx, "c"); err != nil {
		t.Fatal(err)
	}
}
