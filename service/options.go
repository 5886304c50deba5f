package service

import (
	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/timers"

	"go.uber.org/zap"
)

// Option configures a Service.
type Option func(*Service)

// WithId sets the machine's id.  The default is a random one.
func WithId(id string) Option {
	return func(s *Service) {
		s.id = id
	}
}

// WithLogger sets the logger.  The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for delays and Meta.Now.
func WithClock(clock timers.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithParent gives the machine an owner.  Meta.SendParent calls the
// given function.
func WithParent(send func(core.Event)) Option {
	return func(s *Service) {
		s.parent = send
	}
}

// WithContext overlays the Spec's default context.  The given
// Bindings are copied.
func WithContext(bs core.Bindings) Option {
	return func(s *Service) {
		s.overlay = bs.DeepCopy()
	}
}

// WithRestore starts the machine at a previously saved State.  No
// created or entry actions run, but the node's delays are armed and
// its activities (and the root activities) are started.
// Meta.InitialContext is still the definition's context.
func WithRestore(st *core.State) Option {
	return func(s *Service) {
		s.restore = st.Copy()
	}
}

// WithMaxTimers limits the number of pending delays.
func WithMaxTimers(n int) Option {
	return func(s *Service) {
		s.maxTimers = n
	}
}
