package toast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/service"
	"github.com/Comcast/uimachine/timers"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	sync.Mutex
	calls  []string
	parent []core.Event
}

func (r *recorder) add(s string) {
	r.Lock()
	r.calls = append(r.calls, s)
	r.Unlock()
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnEntered: func(id string) { r.add("entered:" + id) },
		OnUpdate:  func(id string) { r.add("update:" + id) },
		OnExiting: func(id string) { r.add("exiting:" + id) },
		OnExited:  func(id string) { r.add("exited:" + id) },
	}
}

func (r *recorder) send(evt core.Event) {
	r.Lock()
	r.parent = append(r.parent, evt)
	r.Unlock()
}

func startToast(t *testing.T, o Options, r *recorder) (*service.Service, *timers.ManualClock) {
	clock := timers.NewManualClock(epoch)
	s, err := New(context.Background(), o, service.WithClock(clock), service.WithParent(r.send))
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s, clock
}

func expect(t *testing.T, s *service.Service, value string) *core.State {
	t.Helper()
	st := s.GetState()
	if st.Value != value {
		t.Fatalf("expected %s but have %s", value, st)
	}
	return st
}

func TestDefaultDurations(t *testing.T) {
	for typ, want := range map[Type]time.Duration{
		Info:    5 * time.Second,
		Error:   5 * time.Second,
		Success: 2 * time.Second,
		Loading: core.Never,
		Custom:  5 * time.Second,
	} {
		if got := DefaultDuration(typ); got != want {
			t.Fatal(typ, got)
		}
	}
	if Duration(time.Second, Loading) != time.Second {
		t.Fatal("explicit duration ignored")
	}
}

func TestPauseResume(t *testing.T) {
	r := &recorder{}
	s, clock := startToast(t, Options{Id: "t", Type: Info, Hooks: r.hooks()}, r)
	defer s.Stop()

	st := expect(t, s, "active")
	if !Visible(st) || Paused(st) {
		t.Fatal(st)
	}
	if d, _ := Remaining(st); d != 5*time.Second {
		t.Fatal(d)
	}

	clock.Advance(2 * time.Second)
	s.SendType("PAUSE")

	st = expect(t, s, "persist")
	if !Paused(st) {
		t.Fatal(st)
	}
	if d, _ := Remaining(st); d != 3*time.Second {
		t.Fatal(d)
	}
	if ids := s.PendingDelays(); len(ids) != 0 {
		t.Fatal(ids)
	}

	// Frozen while paused.
	clock.Advance(10 * time.Second)
	st = expect(t, s, "persist")
	if d, _ := Remaining(st); d != 3*time.Second {
		t.Fatal(d)
	}

	s.SendType("RESUME")
	expect(t, s, "active")
	if ids := s.PendingDelays(); len(ids) != 1 {
		t.Fatal(ids)
	}

	clock.Advance(3*time.Second - time.Millisecond)
	expect(t, s, "active")

	clock.Advance(time.Millisecond)
	expect(t, s, "dismissing")

	clock.Advance(999 * time.Millisecond)
	expect(t, s, "dismissing")
	if len(r.parent) != 0 {
		t.Fatal(r.parent)
	}

	clock.Advance(time.Millisecond)
	st = expect(t, s, "inactive")
	if !st.Done || Visible(st) {
		t.Fatal(st)
	}

	if len(r.parent) != 1 || r.parent[0].Type() != RemoveEvent || r.parent[0]["id"] != "t" {
		t.Fatal(r.parent)
	}

	want := []string{"entered:t", "exiting:t", "exited:t"}
	if len(r.calls) != len(want) {
		t.Fatal(r.calls)
	}
	for i, c := range want {
		if r.calls[i] != c {
			t.Fatal(r.calls)
		}
	}
}

func TestDismiss(t *testing.T) {
	r := &recorder{}
	s, clock := startToast(t, Options{Id: "d", Type: Error, RemoveDelay: 200 * time.Millisecond}, r)
	defer s.Stop()

	s.SendType("DISMISS")
	expect(t, s, "dismissing")

	clock.Advance(200 * time.Millisecond)
	expect(t, s, "inactive")

	// The old VISIBLE_DURATION timer was canceled.
	clock.Advance(time.Minute)
	if len(r.parent) != 1 {
		t.Fatal(r.parent)
	}
}

func TestUpdateRetargets(t *testing.T) {
	r := &recorder{}
	s, clock := startToast(t, Options{Id: "u", Type: Info, Hooks: r.hooks()}, r)
	defer s.Stop()

	clock.Advance(time.Second)
	s.Send(core.NewEvent("UPDATE", "toast", map[string]interface{}{
		"duration": 8000,
		"title":    "Saved",
	}))

	st := expect(t, s, "active:temp")
	if !st.HasTag("updating") {
		t.Fatal(st)
	}
	if st.Context["title"] != "Saved" || st.Context["type"] != "info" {
		t.Fatal(st)
	}

	clock.Advance(0)
	st = expect(t, s, "active")
	if d, _ := Remaining(st); d != 8*time.Second {
		t.Fatal(d)
	}

	clock.Advance(8*time.Second - time.Millisecond)
	expect(t, s, "active")
	clock.Advance(time.Millisecond)
	expect(t, s, "dismissing")

	if r.calls[1] != "update:u" {
		t.Fatal(r.calls)
	}
}

func TestLoading(t *testing.T) {
	r := &recorder{}
	s, clock := startToast(t, Options{Id: "l", Type: Loading}, r)
	defer s.Stop()

	st := expect(t, s, "persist")
	if _, ok := Remaining(st); ok {
		t.Fatal(st)
	}

	// A loading toast doesn't resume.
	s.SendType("RESUME")
	expect(t, s, "persist")

	clock.Advance(time.Hour)
	expect(t, s, "persist")

	s.Send(core.NewEvent("UPDATE", "toast", map[string]interface{}{
		"type": "success",
	}))
	st = expect(t, s, "persist")
	if st.Context["type"] != "success" {
		t.Fatal(st)
	}
	if d, _ := Remaining(st); d != 2*time.Second {
		t.Fatal(d)
	}

	s.SendType("RESUME")
	expect(t, s, "active")
	clock.Advance(2 * time.Second)
	expect(t, s, "dismissing")
}

func TestPauseOnPageIdle(t *testing.T) {
	var (
		r    = &recorder{}
		page = NewPage()
	)
	s, clock := startToast(t, Options{
		Id:              "p",
		PauseOnPageIdle: true,
		Visibility:      page,
	}, r)

	if n := page.Watchers(); n != 1 {
		t.Fatal(n)
	}

	clock.Advance(time.Second)
	page.SetHidden(true)
	st := expect(t, s, "persist")
	if d, _ := Remaining(st); d != 4*time.Second {
		t.Fatal(d)
	}
	if n := page.Watchers(); n != 1 {
		t.Fatal(n)
	}

	page.SetHidden(false)
	expect(t, s, "active")

	s.Stop()
	if n := page.Watchers(); n != 0 {
		t.Fatal(n)
	}
}

func TestNoPageIdleWithoutOption(t *testing.T) {
	page := NewPage()
	s, _ := startToast(t, Options{Visibility: page}, &recorder{})
	defer s.Stop()
	if n := page.Watchers(); n != 0 {
		t.Fatal(n)
	}
	page.SetHidden(true)
	expect(t, s, "active")
}

func TestSpecCompiles(t *testing.T) {
	spec, err := Spec(context.Background(), Options{Type: Custom, Placement: "top-end"})
	if err != nil {
		t.Fatal(err)
	}
	if spec.Initial != "active" || spec.Context["placement"] != "top-end" {
		t.Fatal(spec.Initial, spec.Context)
	}
	if spec.Doc == "" {
		t.Fatal("no doc")
	}
}
