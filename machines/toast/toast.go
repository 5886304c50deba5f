// Package toast is a complete machine built on uimachine: a
// notification that shows for a while, can be paused and resumed,
// and then asks its owner to remove it.
package toast

import (
	"context"
	"time"

	"github.com/Comcast/uimachine"
	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/service"
)

// Type is the kind of a toast.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Error   Type = "error"
	Loading Type = "loading"
	Custom  Type = "custom"
)

// RemoveEvent is the type of the event a toast sends to its owner
// when it's finished.
const RemoveEvent = "REMOVE_TOAST"

// Infinite is the context's representation of a duration that never
// ends.
const Infinite int64 = -1

// DefaultRemoveDelay is how long a toast stays in "dismissing".
const DefaultRemoveDelay = time.Second

// DefaultDuration returns how long a toast of the given type is
// visible.  Loading toasts are visible until updated.
func DefaultDuration(typ Type) time.Duration {
	switch typ {
	case Success:
		return 2 * time.Second
	case Loading:
		return core.Never
	default:
		return 5 * time.Second
	}
}

// Duration returns d if given, otherwise the type's default.
func Duration(d time.Duration, typ Type) time.Duration {
	if d != 0 {
		return d
	}
	return DefaultDuration(typ)
}

// Hooks are called as a toast moves through its life.  Any can be
// nil.
type Hooks struct {
	OnEntered func(id string)
	OnUpdate  func(id string)
	OnExiting func(id string)
	OnExited  func(id string)
}

// Options configure a toast.
type Options struct {
	Id          string
	Type        Type
	Title       string
	Description string

	// Duration zero means the type's default.
	Duration time.Duration

	// RemoveDelay zero means DefaultRemoveDelay.
	RemoveDelay time.Duration

	// Placement is "bottom" by default.
	Placement string

	// PauseOnPageIdle pauses the toast while the Visibility
	// source reports hidden.
	PauseOnPageIdle bool
	Visibility      Visibility

	Hooks Hooks
}

func (o Options) withDefaults() Options {
	if o.Id == "" {
		o.Id = "toast"
	}
	if o.Type == "" {
		o.Type = Info
	}
	if o.RemoveDelay == 0 {
		o.RemoveDelay = DefaultRemoveDelay
	}
	if o.Placement == "" {
		o.Placement = "bottom"
	}
	return o
}

// millis renders a duration for the context.
func millis(d time.Duration) int64 {
	if d == core.Never {
		return Infinite
	}
	return int64(d / time.Millisecond)
}

// Context returns the toast's initial context.  Durations are
// milliseconds, and createdAt is a Unix time in milliseconds.
func (o Options) Context() core.Bindings {
	o = o.withDefaults()
	d := millis(Duration(o.Duration, o.Type))
	bs := core.Bindings{
		"id":              o.Id,
		"type":            string(o.Type),
		"duration":        d,
		"remaining":       d,
		"removeDelay":     millis(o.RemoveDelay),
		"createdAt":       int64(0),
		"placement":       o.Placement,
		"pauseOnPageIdle": o.PauseOnPageIdle,
	}
	if o.Title != "" {
		bs["title"] = o.Title
	}
	if o.Description != "" {
		bs["description"] = o.Description
	}
	return bs
}

// Spec returns a compiled toast Spec for the given options.
//
// Each toast gets its own Spec because the implementation closes
// over the toast's hooks and visibility source.
func Spec(ctx context.Context, o Options) (*core.Spec, error) {
	spec, err := parse(o)
	if err != nil {
		return nil, err
	}
	if err = spec.Compile(ctx, implementation(o.withDefaults()), nil, false); err != nil {
		return nil, err
	}
	return spec, nil
}

func parse(o Options) (*core.Spec, error) {
	o = o.withDefaults()
	spec, err := core.ParseSpec([]byte(src))
	if err != nil {
		return nil, err
	}
	spec.Context = o.Context()
	if o.Type == Loading {
		spec.Initial = "persist"
	}
	return spec, nil
}

// New makes a toast Service.  Call Start to show it.
func New(ctx context.Context, o Options, opts ...service.Option) (*service.Service, error) {
	o = o.withDefaults()
	spec, err := parse(o)
	if err != nil {
		return nil, err
	}
	opts = append([]service.Option{service.WithId(o.Id)}, opts...)
	return uimachine.CreateMachine(ctx, spec, implementation(o), opts...)
}

// Remaining returns the toast's remaining visible time as of the
// snapshot.  The second value is false for a toast that never
// expires.
func Remaining(st *core.State) (time.Duration, bool) {
	n, err := ms(st.Context, "remaining")
	if err != nil || n == Infinite {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

// Visible reports whether the snapshot is of a toast that's showing.
func Visible(st *core.State) bool {
	return st.HasTag("visible")
}

// Paused reports whether the snapshot is of a paused toast.
func Paused(st *core.State) bool {
	return st.HasTag("paused")
}
