package service

import (
	"context"
	"sync"

	"github.com/Comcast/uimachine/core"
)

// activitySet holds the handles of running activities.  Only the
// processing goroutine changes one.
type activitySet struct {
	sync.Mutex
	handles []*core.Handle
}

func newActivitySet() *activitySet {
	return &activitySet{}
}

// start starts each named activity.  Failures are returned, and the
// other activities still start.
func (as *activitySet) start(ctx context.Context, spec *core.Spec, names core.Names, bs core.Bindings, evt core.Event, meta *core.Meta) []error {
	var errs []error
	impl := spec.Implementation()
	for _, name := range names {
		f, have := impl.Activities[name]
		if !have {
			errs = append(errs, &core.ActivityError{
				Activity: name,
				State:    meta.State(),
				Err:      core.InterpreterNotFound,
			})
			continue
		}
		h, err := core.StartActivity(ctx, name, f, bs, evt, meta)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		as.Lock()
		as.handles = append(as.handles, h)
		as.Unlock()
	}
	return errs
}

// dispose disposes every handle (in reverse start order) and empties
// the set.  A cleanup that panics doesn't stop the others.
func (as *activitySet) dispose() []error {
	as.Lock()
	hs := as.handles
	as.handles = nil
	as.Unlock()
	var errs []error
	for i := len(hs) - 1; 0 <= i; i-- {
		if err := hs[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (as *activitySet) keys() []string {
	as.Lock()
	defer as.Unlock()
	acc := make([]string, len(as.handles))
	for i, h := range as.handles {
		acc[i] = h.Key
	}
	return acc
}

// Activities returns the names of the running activities.
func (s *Service) Activities() []string {
	return append(s.rootActs.keys(), s.nodeActs.keys()...)
}
