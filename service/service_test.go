package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/timers"
	. "github.com/Comcast/uimachine/util/testutil"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// harness records what a machine does.
type harness struct {
	sync.Mutex
	log    []string
	errs   []error
	states []*core.State
}

func (h *harness) add(s string) {
	h.Lock()
	h.log = append(h.log, s)
	h.Unlock()
}

func (h *harness) trace() string {
	h.Lock()
	defer h.Unlock()
	return strings.Join(h.log, ",")
}

func (h *harness) action(name string) core.ActionFunc {
	return func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		h.add(name)
		return nil
	}
}

func (h *harness) activity(name string) core.ActivityFunc {
	return func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) (core.Disposer, error) {
		h.add("start:" + name)
		return core.DisposeFunc(func() { h.add("stop:" + name) }), nil
	}
}

func (h *harness) watch(s *Service) {
	s.Subscribe(func(st *core.State) {
		h.Lock()
		h.states = append(h.states, st)
		h.Unlock()
	})
	s.OnError(func(err error) {
		h.Lock()
		h.errs = append(h.errs, err)
		h.Unlock()
	})
}

func compile(t *testing.T, src string, impl *core.Implementation) *core.Spec {
	spec, err := core.ParseSpec([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if err = spec.Compile(context.Background(), impl, nil, false); err != nil {
		t.Fatal(err)
	}
	return spec
}

func start(t *testing.T, spec *core.Spec, h *harness, opts ...Option) (*Service, *timers.ManualClock) {
	clock := timers.NewManualClock(epoch)
	opts = append([]Option{WithClock(clock), WithId("test")}, opts...)
	s, err := New(spec, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if h != nil {
		h.watch(s)
	}
	if err = s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s, clock
}

func TestStartOrder(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	for _, name := range []string{"created", "rootEntry", "idleEntry", "changed"} {
		impl.Actions[name] = h.action(name)
	}
	impl.Activities["live"] = h.activity("live")
	impl.Activities["poll"] = h.activity("poll")

	spec := compile(t, `
initial: idle
context:
  x: 1
created: created
entry: rootEntry
activities: live
watch:
  - field: x
    actions: changed
states:
  idle:
    entry: idleEntry
    activities: poll
`, impl)

	s, _ := start(t, spec, h)

	if got := h.trace(); got != "created,start:live,rootEntry,idleEntry,start:poll" {
		t.Fatal(got)
	}
	if len(h.states) != 1 || h.states[0].Value != "idle" {
		t.Fatal(JS(h.states))
	}

	s.Stop()
	if got := h.trace(); !strings.HasSuffix(got, "stop:poll,stop:live") {
		t.Fatal(got)
	}
	if err := s.Start(context.Background()); err != AlreadyStarted {
		t.Fatal(err)
	}
}

func TestNoMatchIsNoop(t *testing.T) {
	h := &harness{}
	spec := compile(t, `
initial: a
context:
  n: 1
states:
  a:
    on:
      GO: b
  b: {}
`, nil)

	s, _ := start(t, spec, h)
	before := JS(s.GetState())

	s.SendType("NOPE")
	s.Send(core.NewEvent("ALSO_NOPE", "n", 2))

	if after := JS(s.GetState()); before != after {
		t.Fatal(before, after)
	}
	if len(h.states) != 1 {
		t.Fatalf("notified %d times", len(h.states))
	}
	if len(h.errs) != 0 {
		t.Fatal(h.errs)
	}
}

func TestFirstPassingGuardWins(t *testing.T) {
	impl := core.NewImplementation()
	impl.Guards["first"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		return false, nil
	}
	impl.Guards["second"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		return true, nil
	}
	impl.Guards["third"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		return true, nil
	}
	spec := compile(t, `
initial: start
states:
  start:
    on:
      PICK:
        - {guard: first, target: one}
        - {guard: second, target: two}
        - {guard: third, target: three}
  one: {}
  two: {}
  three: {}
`, impl)

	s, _ := start(t, spec, nil)
	s.SendType("PICK")
	if v := s.GetState().Value; v != "two" {
		t.Fatal(v)
	}
}

func TestDelayCancellation(t *testing.T) {
	h := &harness{}
	spec := compile(t, `
initial: a
states:
  a:
    after:
      "1000": b
    on:
      LEAVE: c
  b: {}
  c:
    on:
      BACK: a
`, nil)

	s, clock := start(t, spec, h)
	if n := len(s.PendingDelays()); n != 1 {
		t.Fatal(n)
	}

	clock.Advance(500 * time.Millisecond)
	s.SendType("LEAVE")
	if n := len(s.PendingDelays()); n != 0 {
		t.Fatal(n)
	}

	clock.Advance(2 * time.Second)
	if v := s.GetState().Value; v != "c" {
		t.Fatal(v)
	}

	// Reentering arms a fresh timer for the full delay.
	s.SendType("BACK")
	clock.Advance(999 * time.Millisecond)
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}
	clock.Advance(time.Millisecond)
	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}
}

func TestNamedAndNeverDelays(t *testing.T) {
	impl := core.NewImplementation()
	impl.Delays["computed"] = func(bs core.Bindings) (time.Duration, error) {
		ms, _ := bs["ms"].(int)
		return time.Duration(ms) * time.Millisecond, nil
	}
	spec := compile(t, `
initial: a
context:
  ms: 300
delays:
  forever: never
states:
  a:
    after:
      computed: b
  b:
    after:
      forever: a
`, impl)

	s, clock := start(t, spec, nil)
	clock.Advance(299 * time.Millisecond)
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}
	clock.Advance(time.Millisecond)
	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}
	if n := len(s.PendingDelays()); n != 0 {
		t.Fatal("never delay was armed")
	}
}

func TestActivityCleanupOnce(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Activities["listen"] = h.activity("listen")
	spec := compile(t, `
initial: a
states:
  a:
    activities: listen
    on:
      STAY: {actions: []}
      GO: b
  b:
    activities: listen
`, impl)

	s, _ := start(t, spec, h)
	s.SendType("STAY")
	if got := h.trace(); got != "start:listen" {
		t.Fatal(got)
	}
	s.SendType("GO")
	if got := h.trace(); got != "start:listen,stop:listen,start:listen" {
		t.Fatal(got)
	}

	s.Stop()
	s.Stop()
	if got := h.trace(); got != "start:listen,stop:listen,start:listen,stop:listen" {
		t.Fatal(got)
	}

	select {
	case <-s.Stopped():
	default:
		t.Fatal("not stopped")
	}

	s.SendType("GO")
	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}
}

func TestWatchCustomEquality(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Actions["set"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		bs["date"] = evt["date"]
		return nil
	}
	impl.Actions["dateChanged"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		h.add("changed:" + evt.Type())
		return nil
	}
	impl.Equals["sameDay"] = func(a, b interface{}) bool {
		x, _ := a.(string)
		y, _ := b.(string)
		return strings.SplitN(x, "T", 2)[0] == strings.SplitN(y, "T", 2)[0]
	}
	spec := compile(t, `
initial: idle
context:
  date: "2024-03-01T08:00"
watch:
  - field: date
    equal: sameDay
    actions: dateChanged
states:
  idle:
    on:
      SET:
        actions: set
`, impl)

	s, _ := start(t, spec, h)

	s.Send(core.NewEvent("SET", "date", "2024-03-01T17:30"))
	if got := h.trace(); got != "" {
		t.Fatal(got)
	}

	s.Send(core.NewEvent("SET", "date", "2024-03-02T08:00"))
	if got := h.trace(); got != "changed:SET" {
		t.Fatal(got)
	}
}

func TestReentrantSendIsQueued(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Actions["kick"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		meta.Send(core.NewEvent("NEXT"))
		h.add("kick")
		return nil
	}
	impl.Actions["entered"] = h.action("entered")
	spec := compile(t, `
initial: a
states:
  a:
    on:
      GO:
        target: b
        actions: kick
  b:
    entry: entered
    on:
      NEXT: c
  c: {}
`, impl)

	s, _ := start(t, spec, h)
	s.SendType("GO")

	if got := h.trace(); got != "kick,entered" {
		t.Fatal(got)
	}
	var values []string
	for _, st := range h.states {
		values = append(values, st.Value)
	}
	if strings.Join(values, ",") != "a,b,c" {
		t.Fatal(values)
	}
}

func TestActionErrorStillAdvances(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Actions["fail"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		return errors.New("nope")
	}
	impl.Actions["after"] = h.action("after")
	impl.Actions["entered"] = h.action("entered")
	impl.Activities["poll"] = h.activity("poll")
	spec := compile(t, `
initial: a
states:
  a:
    on:
      GO:
        target: b
        actions: [fail, after]
  b:
    entry: entered
    activities: poll
    after:
      "10": c
  c: {}
`, impl)

	s, clock := start(t, spec, h)
	s.SendType("GO")

	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}
	if got := h.trace(); got != "start:poll" {
		t.Fatal(got)
	}
	if len(h.errs) != 1 {
		t.Fatal(h.errs)
	}
	var ae *core.ActionError
	if !errors.As(h.errs[0], &ae) || ae.Action != "fail" {
		t.Fatalf("%#v", h.errs[0])
	}

	clock.Advance(10 * time.Millisecond)
	if v := s.GetState().Value; v != "c" {
		t.Fatal(v)
	}
}

func TestGuardErrorLeavesState(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Guards["broken"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		panic("broken")
	}
	impl.Actions["touch"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		bs["touched"] = true
		return nil
	}
	spec := compile(t, `
initial: a
states:
  a:
    on:
      GO:
        guard: broken
        target: b
        actions: touch
  b: {}
`, impl)

	s, _ := start(t, spec, h)
	s.SendType("GO")

	st := s.GetState()
	if st.Value != "a" || st.Context["touched"] != nil {
		t.Fatal(JS(st))
	}
	if len(h.errs) != 1 {
		t.Fatal(h.errs)
	}
	if _, is := h.errs[0].(*core.GuardEvaluationError); !is {
		t.Fatalf("%#v", h.errs[0])
	}
}

func TestFinalState(t *testing.T) {
	h := &harness{}
	spec := compile(t, `
initial: a
on:
  RESET: a
states:
  a:
    on:
      END: z
  z:
    type: final
`, nil)

	s, _ := start(t, spec, h)
	s.SendType("END")
	st := s.GetState()
	if !st.Done || st.Value != "z" {
		t.Fatal(JS(st))
	}
	s.SendType("RESET")
	if v := s.GetState().Value; v != "z" {
		t.Fatal(v)
	}
}

func TestTimerRaceIsDropped(t *testing.T) {
	var clock *timers.ManualClock
	impl := core.NewImplementation()
	impl.Actions["tick"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		meta.Send(core.NewEvent("LEAVE"))
		// The delay fires while this event is being processed,
		// so it's queued behind LEAVE.
		clock.Advance(time.Second)
		return nil
	}
	spec := compile(t, `
initial: a
states:
  a:
    after:
      "100": b
    on:
      TICK:
        actions: tick
      LEAVE: c
  b: {}
  c: {}
`, impl)

	s, c := start(t, spec, nil)
	clock = c
	s.SendType("TICK")
	if v := s.GetState().Value; v != "c" {
		t.Fatal(v)
	}
}

func TestStopDropsEventsAndTimers(t *testing.T) {
	spec := compile(t, `
initial: a
states:
  a:
    after:
      "100": b
  b: {}
`, nil)

	s, clock := start(t, spec, nil)
	s.Stop()
	clock.Advance(time.Second)
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}
	if clock.Pending() != 0 {
		t.Fatal(clock.Pending())
	}
}

func TestStopFromAction(t *testing.T) {
	h := &harness{}
	var s *Service
	impl := core.NewImplementation()
	impl.Actions["quit"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		s.Stop()
		meta.Send(core.NewEvent("LATER"))
		return nil
	}
	impl.Activities["poll"] = h.activity("poll")
	spec := compile(t, `
initial: a
states:
  a:
    activities: poll
    on:
      QUIT:
        actions: quit
      LATER: b
  b: {}
`, impl)

	s, _ = start(t, spec, h)
	s.SendType("QUIT")

	select {
	case <-s.Stopped():
	default:
		t.Fatal("not stopped")
	}
	if got := h.trace(); got != "start:poll,stop:poll" {
		t.Fatal(got)
	}
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}
}

func TestRestore(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Actions["entered"] = h.action("entered")
	impl.Actions["created"] = h.action("created")
	impl.Activities["poll"] = h.activity("poll")
	var initial core.Bindings
	impl.Actions["peek"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		initial = meta.InitialContext()
		return nil
	}
	spec := compile(t, `
initial: a
created: created
context:
  n: 0
states:
  a:
    on:
      GO: b
  b:
    entry: entered
    activities: poll
    on:
      PEEK: {actions: peek}
    after:
      "50": a
`, impl)

	saved := &core.State{
		Value:   "b",
		Context: core.Bindings{"n": 7},
	}
	s, clock := start(t, spec, h, WithContext(core.Bindings{"label": "fresh"}), WithRestore(saved))

	st := s.GetState()
	if st.Value != "b" || st.Context["n"] != 7 {
		t.Fatal(JS(st))
	}
	if got := h.trace(); got != "start:poll" {
		t.Fatal(got)
	}

	// The initial context is the definition's, not the restored one.
	s.SendType("PEEK")
	if got := JS(initial); got != `{"label":"fresh","n":0}` {
		t.Fatal(got)
	}
	if n := s.GetState().Context["n"]; n != 7 {
		t.Fatal(n)
	}
	clock.Advance(50 * time.Millisecond)
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}

	if _, err := New(spec, WithRestore(&core.State{Value: "nowhere"})); err == nil {
		t.Fatal("restored to an unknown node")
	}
}

func TestSendParentAndMeta(t *testing.T) {
	var sent []core.Event
	impl := core.NewImplementation()
	impl.Actions["notify"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		meta.SendParent(core.NewEvent("REMOVE", "id", meta.Id(), "at", meta.Now()))
		return nil
	}
	impl.Actions["reset"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		for k := range bs {
			delete(bs, k)
		}
		bs.Merge(meta.InitialContext())
		return nil
	}
	impl.Actions["bump"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		n, _ := bs["n"].(int)
		bs["n"] = n + 1
		return nil
	}
	spec := compile(t, `
initial: a
context:
  n: 0
states:
  a:
    on:
      BUMP: {actions: bump}
      RESET: {actions: reset}
      DONE: {actions: notify}
`, impl)

	s, _ := start(t, spec, nil,
		WithContext(core.Bindings{"n": 10}),
		WithParent(func(evt core.Event) { sent = append(sent, evt) }))

	s.SendType("BUMP")
	s.SendType("BUMP")
	if n := s.GetState().Context["n"]; n != 12 {
		t.Fatal(n)
	}
	s.SendType("RESET")
	if n := s.GetState().Context["n"]; n != 10 {
		t.Fatal(n)
	}

	s.SendType("DONE")
	if len(sent) != 1 || sent[0].Type() != "REMOVE" || sent[0]["id"] != "test" {
		t.Fatal(sent)
	}
	if at, _ := sent[0]["at"].(time.Time); !at.Equal(epoch) {
		t.Fatal(at)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	spec := compile(t, `
initial: a
context:
  items: [x]
states:
  a:
    tags: [open]
`, nil)
	s, _ := start(t, spec, nil)

	st := s.GetState()
	st.Context["items"].([]interface{})[0] = "y"
	st.Tags[0] = "closed"

	again := s.GetState()
	if again.Context["items"].([]interface{})[0] != "x" || !again.HasTag("open") {
		t.Fatal(JS(again))
	}
}

func TestConcurrentSends(t *testing.T) {
	impl := core.NewImplementation()
	impl.Actions["inc"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		n, _ := bs["n"].(int)
		bs["n"] = n + 1
		return nil
	}
	spec := compile(t, `
initial: a
states:
  a:
    on:
      INC: {actions: inc}
`, impl)

	s, err := New(spec)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SendType("INC")
			}
		}()
	}
	wg.Wait()

	// The last sender might return while another goroutine is
	// still draining.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.GetState().Context["n"] == 800 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(s.GetState().Context["n"])
}

func TestUncompiledSpec(t *testing.T) {
	if _, err := New(&core.Spec{Initial: "a"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestCleanupPanicIsReported(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Activities["listen"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) (core.Disposer, error) {
		return core.DisposeFunc(func() { panic("cleanup failed") }), nil
	}
	spec := compile(t, `
initial: a
states:
  a:
    activities: listen
    on:
      GO: b
  b:
    on:
      BACK: c
  c: {}
`, impl)

	s, _ := start(t, spec, h)
	s.SendType("GO")
	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}
	if len(h.errs) != 1 {
		t.Fatal(h.errs)
	}
	var ae *core.ActivityError
	if !errors.As(h.errs[0], &ae) || !ae.Cleanup || ae.State != "a" {
		t.Fatalf("%#v", h.errs[0])
	}

	s.SendType("BACK")
	if v := s.GetState().Value; v != "c" {
		t.Fatal(v)
	}
	s.Stop()
}

func TestComputedAndEqualPanicsAreReported(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Actions["set"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		bs["value"] = evt["value"]
		return nil
	}
	impl.Actions["changed"] = h.action("changed")
	impl.Computed["label"] = func(bs core.Bindings) interface{} {
		return "#" + bs["value"].(string)
	}
	impl.Equals["prefix"] = func(a, b interface{}) bool {
		return a.(string)[:1] == b.(string)[:1]
	}
	spec := compile(t, `
initial: a
context:
  value: x
computed: label
watch:
  - field: label
    actions: changed
  - field: value
    equal: prefix
    actions: changed
states:
  a:
    on:
      SET: {actions: set}
`, impl)

	s, _ := start(t, spec, h)
	if len(h.errs) != 0 {
		t.Fatal(h.errs)
	}

	s.Send(core.NewEvent("SET", "value", 1))
	if len(h.errs) != 2 {
		t.Fatal(h.errs)
	}
	for _, err := range h.errs {
		if _, is := err.(*core.WatchError); !is {
			t.Fatalf("%#v", err)
		}
	}
	if got := h.trace(); got != "" {
		t.Fatal(got)
	}

	s.Send(core.NewEvent("SET", "value", "y"))
	if v := s.GetState().Context["value"]; v != "y" {
		t.Fatal(v)
	}
	s.Stop()
}

// panickyClock fails to arm timers.
type panickyClock struct {
	*timers.ManualClock
}

func (c panickyClock) AfterFunc(d time.Duration, f func()) timers.Stopper {
	panic("no timers here")
}

func TestDispatchPanicDoesNotWedge(t *testing.T) {
	h := &harness{}
	spec := compile(t, `
initial: a
states:
  a:
    on:
      GO: b
  b:
    after:
      "10": a
    on:
      BACK: a
`, nil)

	clock := panickyClock{timers.NewManualClock(epoch)}
	s, err := New(spec, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	h.watch(s)
	if err = s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.SendType("GO")
	if len(h.errs) != 1 {
		t.Fatal(h.errs)
	}
	if dp, is := h.errs[0].(*core.DispatchPanic); !is || dp.Event != "GO" {
		t.Fatalf("%#v", h.errs[0])
	}
	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}

	s.SendType("BACK")
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}
	s.Stop()
}

func TestExternalDelayEventIgnored(t *testing.T) {
	spec := compile(t, `
initial: a
states:
  a:
    after:
      "1000": b
  b: {}
`, nil)

	s, clock := start(t, spec, nil)
	s.Send(core.Event{"type": "after:1000"})
	if v := s.GetState().Value; v != "a" {
		t.Fatal(v)
	}
	clock.Advance(time.Second)
	if v := s.GetState().Value; v != "b" {
		t.Fatal(v)
	}
	s.Stop()
}

func TestWatchAfterActionError(t *testing.T) {
	h := &harness{}
	impl := core.NewImplementation()
	impl.Actions["bump"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		n, _ := bs["n"].(int)
		bs["n"] = n + 1
		return nil
	}
	impl.Actions["fail"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		return errors.New("nope")
	}
	impl.Actions["changed"] = h.action("changed")
	spec := compile(t, `
initial: a
context:
  n: 0
watch:
  - field: n
    actions: changed
states:
  a:
    on:
      BUMP: {actions: [bump, fail]}
      NOOP: {actions: []}
`, impl)

	s, _ := start(t, spec, h)
	s.SendType("BUMP")
	if got := h.trace(); got != "" {
		t.Fatal(got)
	}
	s.SendType("NOOP")
	if got := h.trace(); got != "changed" {
		t.Fatal(got)
	}
	s.Stop()
}
