package timers

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTimersBasic(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	ts := NewTimers(10, clock, nil)

	var heard []string
	f := func(_ context.Context, t *Timer) {
		heard = append(heard, t.Id)
	}

	ft := func(id string, d time.Duration) {
		if err := ts.Add(ctx, &Timer{
			Id: id,
			At: clock.Now().Add(d),
			F:  f,
		}); err != nil {
			t.Fatal(err)
		}
	}

	ft("3", 1000*time.Millisecond)
	ft("2", 500*time.Millisecond)
	ft("1", 100*time.Millisecond)
	if err := ts.Rem("2"); err != nil {
		t.Fatal(err)
	}
	ft("5", 1500*time.Millisecond)
	ft("4", 1200*time.Millisecond)
	ts.Rem("5")
	ft("6", 2500*time.Millisecond)

	if ids := ts.Ids(); len(ids) != 4 || ids[0] != "1" || ids[3] != "6" {
		t.Fatal(ids)
	}

	clock.Advance(5 * time.Second)

	want := []string{"1", "3", "4", "6"}
	if len(heard) != len(want) {
		t.Fatal(heard)
	}
	for i, s := range heard {
		if want[i] != s {
			t.Fatalf("expected '%s' but got '%s' at %d", want[i], s, i)
		}
	}
	if ts.Len() != 0 || clock.Pending() != 0 {
		t.Fatal(ts.Len(), clock.Pending())
	}
}

func TestTimersErrors(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	ts := NewTimers(2, clock, nil)
	nop := func(context.Context, *Timer) {}

	if err := ts.Add(ctx, &Timer{Id: "a", At: epoch.Add(time.Second), F: nop}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(ctx, &Timer{Id: "a", At: epoch, F: nop}); err != IdExists {
		t.Fatal(err)
	}
	if err := ts.Add(ctx, &Timer{Id: "b", At: epoch, F: nop}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(ctx, &Timer{Id: "c", At: epoch, F: nop}); err != TooMany {
		t.Fatal(err)
	}
	if err := ts.Rem("z"); err != NotFound {
		t.Fatal(err)
	}

	ts.Stop()
	ts.Stop()
	if err := ts.Add(ctx, &Timer{Id: "d", At: epoch, F: nop}); err != Stopped {
		t.Fatal(err)
	}
	if clock.Pending() != 0 {
		t.Fatal(clock.Pending())
	}
}

func TestTimersRemPrefix(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	ts := NewTimers(0, clock, nil)

	fired := 0
	f := func(context.Context, *Timer) { fired++ }
	for _, id := range []string{"active/1/a", "active/1/b", "persist/2/a"} {
		if err := ts.Add(ctx, &Timer{Id: id, At: epoch.Add(time.Second), F: f}); err != nil {
			t.Fatal(err)
		}
	}
	if n := ts.RemPrefix("active/1/"); n != 2 {
		t.Fatal(n)
	}
	clock.Advance(time.Minute)
	if fired != 1 {
		t.Fatal(fired)
	}
}

func TestTimersRemoveHead(t *testing.T) {
	ctx := context.Background()
	ts := NewTimers(0, nil, nil)

	var mu sync.Mutex
	fired := make(map[string]bool)
	f := func(_ context.Context, t *Timer) {
		mu.Lock()
		fired[t.Id] = true
		mu.Unlock()
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		id := strconv.Itoa(i)
		if err := ts.Add(ctx, &Timer{Id: id, At: now.Add(20 * time.Millisecond), F: f}); err != nil {
			t.Fatal(err)
		}
	}
	// Only the soonest (head) timer is removed.
	ts.Rem("0")

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired["0"] || !fired["1"] || !fired["2"] {
		t.Fatal(fired)
	}
}

func TestManualClockCascade(t *testing.T) {
	clock := NewManualClock(epoch)
	var at []time.Duration
	clock.AfterFunc(time.Second, func() {
		at = append(at, clock.Now().Sub(epoch))
		clock.AfterFunc(time.Second, func() {
			at = append(at, clock.Now().Sub(epoch))
		})
	})
	clock.Advance(3 * time.Second)
	if len(at) != 2 || at[0] != time.Second || at[1] != 2*time.Second {
		t.Fatal(at)
	}
	if clock.Now().Sub(epoch) != 3*time.Second {
		t.Fatal(clock.Now())
	}
}
