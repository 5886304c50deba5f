package toast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Comcast/uimachine/core"
)

// ms reads a number of milliseconds from the bindings.
func ms(bs core.Bindings, key string) (int64, error) {
	x, have := bs[key]
	if !have {
		return 0, fmt.Errorf("no %s", key)
	}
	switch vv := x.(type) {
	case int64:
		return vv, nil
	case int:
		return int64(vv), nil
	case float64:
		if vv < 0 {
			return Infinite, nil
		}
		return int64(math.Round(vv)), nil
	}
	d, err := core.Millis(x)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Millisecond), nil
}

// update returns the "toast" property of an UPDATE event.
func update(evt core.Event) map[string]interface{} {
	switch vv := evt["toast"].(type) {
	case map[string]interface{}:
		return vv
	case core.Bindings:
		return vv
	}
	return nil
}

func typeOf(bs core.Bindings) Type {
	s, _ := bs["type"].(string)
	return Type(s)
}

func updateType(evt core.Event) (Type, bool) {
	u := update(evt)
	if u == nil {
		return "", false
	}
	switch vv := u["type"].(type) {
	case string:
		return Type(vv), true
	case Type:
		return vv, true
	}
	return "", false
}

// updateDuration returns the update's duration in milliseconds.
func updateDuration(evt core.Event) (int64, bool) {
	u := update(evt)
	if u == nil {
		return 0, false
	}
	if d, is := u["duration"].(time.Duration); is {
		return millis(d), true
	}
	n, err := ms(core.Bindings(u), "duration")
	if err != nil {
		return 0, false
	}
	return n, true
}

func nowMillis(meta *core.Meta) int64 {
	return meta.Now().UnixNano() / int64(time.Millisecond)
}

func hook(f func(string)) core.ActionFunc {
	return func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		if f != nil {
			f(meta.Id())
		}
		return nil
	}
}

func implementation(o Options) *core.Implementation {
	impl := core.NewImplementation()

	impl.Guards["isLoadingType"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		if t, ok := updateType(evt); ok && t == Loading {
			return true, nil
		}
		return typeOf(bs) == Loading, nil
	}

	impl.Guards["hasTypeChanged"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		t, _ := updateType(evt)
		return t != typeOf(bs), nil
	}

	impl.Guards["hasDurationChanged"] = func(ctx context.Context, bs core.Bindings, evt core.Event) (bool, error) {
		d, ok := updateDuration(evt)
		if !ok {
			return true, nil
		}
		have, err := ms(bs, "duration")
		if err != nil {
			return false, err
		}
		return d != have, nil
	}

	impl.Delays["VISIBLE_DURATION"] = func(bs core.Bindings) (time.Duration, error) {
		n, err := ms(bs, "remaining")
		if err != nil {
			return 0, err
		}
		if n == Infinite {
			return core.Never, nil
		}
		return time.Duration(n) * time.Millisecond, nil
	}

	impl.Delays["REMOVE_DELAY"] = func(bs core.Bindings) (time.Duration, error) {
		n, err := ms(bs, "removeDelay")
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Millisecond, nil
	}

	impl.Actions["setRemainingDuration"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		remaining, err := ms(bs, "remaining")
		if err != nil {
			return err
		}
		if remaining == Infinite {
			return nil
		}
		created, err := ms(bs, "createdAt")
		if err != nil {
			return err
		}
		remaining -= nowMillis(meta) - created
		if remaining < 0 {
			remaining = 0
		}
		bs["remaining"] = remaining
		return nil
	}

	impl.Actions["setCreatedAt"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		bs["createdAt"] = nowMillis(meta)
		return nil
	}

	impl.Actions["setContext"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		u := update(evt)
		if u == nil {
			return nil
		}
		typ, ok := updateType(evt)
		if !ok {
			typ = typeOf(bs)
		}
		var d time.Duration
		if n, ok := updateDuration(evt); ok {
			if n == Infinite {
				d = core.Never
			} else {
				d = time.Duration(n) * time.Millisecond
			}
		}
		for k, v := range u {
			if k == "duration" || k == "id" {
				continue
			}
			if t, is := v.(Type); is {
				v = string(t)
			}
			bs[k] = v
		}
		n := millis(Duration(d, typ))
		bs["type"] = string(typ)
		bs["duration"] = n
		bs["remaining"] = n
		bs["createdAt"] = nowMillis(meta)
		return nil
	}

	impl.Actions["notifyParentToRemove"] = func(ctx context.Context, bs core.Bindings, evt core.Event, meta *core.Meta) error {
		meta.SendParent(core.NewEvent(RemoveEvent, "id", meta.Id()))
		return nil
	}

	impl.Actions["invokeOnEntered"] = hook(o.Hooks.OnEntered)
	impl.Actions["invokeOnUpdate"] = hook(o.Hooks.OnUpdate)
	impl.Actions["invokeOnExiting"] = hook(o.Hooks.OnExiting)
	impl.Actions["invokeOnExited"] = hook(o.Hooks.OnExited)

	impl.Activities["trackDocumentVisibility"] = trackVisibility(o.Visibility)

	return impl
}
