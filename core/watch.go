package core

import (
	"context"
	"fmt"
	"reflect"
)

// EqualFunc decides if two values of a watched field are the same.
type EqualFunc func(a, b interface{}) bool

// DefaultEqual is structural equality.
func DefaultEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// Watch binds a context (or computed) field to actions that run when
// the field's value changes.
type Watch struct {
	Field   string `json:"field" yaml:"field"`
	Actions Names  `json:"actions" yaml:"actions"`

	// Equal optionally names an EqualFunc.  The default is
	// DefaultEqual.
	Equal string `json:"equal,omitempty" yaml:",omitempty"`
}

func (w *Watch) Copy() *Watch {
	if w == nil {
		return nil
	}
	return &Watch{
		Field:   w.Field,
		Actions: w.Actions.Copy(),
		Equal:   w.Equal,
	}
}

// Watched is a captured set of watched values.
type Watched []interface{}

// unreadable stands in for a field whose computed function panicked.
// It's never different from anything.
type unreadable struct{}

// Capture reads every watched field.  Values are deep copies, so
// later in-place changes to the context are visible as differences.
//
// A field that can't be read is reported as a *WatchError and
// doesn't count as changed in the next call to Changed.
func (spec *Spec) Capture(bs Bindings) (Watched, []error) {
	var errs []error
	acc := make(Watched, len(spec.Watch))
	for i, w := range spec.Watch {
		v, err := spec.Field(bs, w.Field)
		if err != nil {
			errs = append(errs, err)
			acc[i] = unreadable{}
			continue
		}
		acc[i] = DeepCopy(v)
	}
	return acc, errs
}

// Field reads a context field, falling back to a computed field of
// that name.  A panicking computed function gives a *WatchError.
func (spec *Spec) Field(bs Bindings, name string) (v interface{}, err error) {
	if v, have := bs[name]; have {
		return v, nil
	}
	if spec.impl == nil {
		return nil, nil
	}
	f, have := spec.impl.Computed[name]
	if !have {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = &WatchError{
				Field: name,
				Err:   fmt.Errorf("computed panic: %v", r),
			}
		}
	}()
	return f(bs), nil
}

// Changed returns the indexes (in declaration order) of the watches
// whose field differs between the two captures.
//
// An equality function that panics gives a *WatchError, and its
// watch isn't considered changed.
func (spec *Spec) Changed(before, after Watched) ([]int, []error) {
	var (
		acc  []int
		errs []error
	)
	for i, w := range spec.Watch {
		if len(before) <= i || len(after) <= i {
			break
		}
		if _, is := before[i].(unreadable); is {
			continue
		}
		if _, is := after[i].(unreadable); is {
			continue
		}
		eq := DefaultEqual
		if w.Equal != "" && spec.impl != nil {
			if f, have := spec.impl.Equals[w.Equal]; have {
				eq = f
			}
		}
		same, err := callEqual(w, eq, before[i], after[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !same {
			acc = append(acc, i)
		}
	}
	return acc, errs
}

func callEqual(w *Watch, eq EqualFunc, a, b interface{}) (same bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WatchError{
				Field: w.Field,
				Err:   fmt.Errorf("equal %q panic: %v", w.Equal, r),
			}
		}
	}()
	return eq(a, b), nil
}

// RunWatches runs the actions of each changed watch, in order, with
// the event that caused the change.  Every changed watch runs even if
// an earlier one fails; the errors are returned together.
func (spec *Spec) RunWatches(ctx context.Context, changed []int, bs Bindings, evt Event, meta *Meta) []error {
	var errs []error
	for _, i := range changed {
		if err := spec.RunActions(ctx, spec.Watch[i].Actions, bs, evt, meta); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
