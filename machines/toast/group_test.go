package toast

import (
	"context"
	"testing"
	"time"

	"github.com/Comcast/uimachine/timers"
)

func TestGroup(t *testing.T) {
	var (
		ctx   = context.Background()
		clock = timers.NewManualClock(epoch)
		g     = NewGroup("toasts", GroupClock(clock))
	)
	defer g.Stop()

	info, err := g.Create(ctx, Options{Type: Info, Title: "Hello"})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := g.Create(ctx, Options{Type: Success, Placement: "top"})
	if err != nil {
		t.Fatal(err)
	}
	if info == ok {
		t.Fatal(info)
	}

	ts := g.Toasts()
	if len(ts) != 2 || ts[0].Id != info || ts[1].Id != ok {
		t.Fatal(ts)
	}
	if ps := g.Placements(); len(ps["top"]) != 1 || len(ps["bottom"]) != 1 {
		t.Fatal(ps)
	}

	clock.Advance(2 * time.Second)
	if st := g.Toasts()[1].State; st.Value != "dismissing" {
		t.Fatal(st)
	}

	clock.Advance(time.Second)
	if n := g.Deliver(); n != 1 {
		t.Fatal(n)
	}
	if ts = g.Toasts(); len(ts) != 1 || ts[0].Id != info {
		t.Fatal(ts)
	}

	g.PauseAll()
	clock.Advance(10 * time.Second)
	st := g.Toasts()[0].State
	if !Paused(st) {
		t.Fatal(st)
	}
	if d, _ := Remaining(st); d != 2*time.Second {
		t.Fatal(d)
	}

	g.ResumeAll()
	clock.Advance(2 * time.Second)
	clock.Advance(time.Second)
	g.Deliver()
	if ts = g.Toasts(); len(ts) != 0 {
		t.Fatal(ts)
	}
}

func TestGroupMax(t *testing.T) {
	var (
		ctx   = context.Background()
		clock = timers.NewManualClock(epoch)
		g     = NewGroup("toasts", GroupClock(clock))
	)
	defer g.Stop()
	g.Max = 1

	a, err := g.Create(ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = g.Create(ctx, Options{}); err != nil {
		t.Fatal(err)
	}

	ts := g.Toasts()
	if len(ts) != 2 || ts[0].Id != a || ts[0].State.Value != "dismissing" {
		t.Fatal(ts)
	}
	if ts[1].State.Value != "active" {
		t.Fatal(ts[1].State)
	}
}

func TestGroupUpdateAndDismiss(t *testing.T) {
	var (
		ctx   = context.Background()
		clock = timers.NewManualClock(epoch)
		g     = NewGroup("toasts", GroupClock(clock))
	)
	defer g.Stop()

	id, err := g.Create(ctx, Options{Type: Loading})
	if err != nil {
		t.Fatal(err)
	}
	if err = g.Update(id, map[string]interface{}{"type": "error", "duration": 100}); err != nil {
		t.Fatal(err)
	}
	if err = g.Resume(id); err != nil {
		t.Fatal(err)
	}
	clock.Advance(100 * time.Millisecond)
	if st := g.Toasts()[0].State; st.Value != "dismissing" {
		t.Fatal(st)
	}

	if err = g.Dismiss("nope"); err == nil {
		t.Fatal("dismissed nothing")
	}
	if err = g.Remove(id); err != nil {
		t.Fatal(err)
	}
	if len(g.Toasts()) != 0 {
		t.Fatal(g.Toasts())
	}
}
