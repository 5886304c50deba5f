package service

import (
	"context"
	"strconv"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/timers"

	"go.uber.org/zap"
)

// timerPrefix is the prefix of the ids of the timers armed for the
// current node entry.
func (s *Service) timerPrefix() string {
	return strconv.FormatUint(s.gen, 10) + "/"
}

// armDelays starts one timer for each of the node's "after" entries.
// A delay that resolves to core.Never isn't armed.
func (s *Service) armDelays(n *core.Node) []error {
	var errs []error
	state, gen := s.value, s.gen
	for _, key := range n.AfterKeys() {
		d, err := s.spec.ResolveDelay(key, s.bs)
		if err != nil {
			errs = append(errs, &core.DelayError{
				Delay: key,
				State: state,
				Err:   err,
			})
			continue
		}
		if d == core.Never {
			s.logger.Debug("delay never fires", zap.String("state", state), zap.String("delay", key))
			continue
		}
		evt := core.AfterEvent(state, key)
		t := &timers.Timer{
			Id: s.timerPrefix() + state + "/" + key,
			At: s.clock.Now().Add(d),
			F: func(ctx context.Context, t *timers.Timer) {
				s.enqueue(item{
					evt:   evt,
					state: state,
					gen:   gen,
					timer: true,
				})
			},
		}
		if err := s.timers.Add(s.ctx, t); err != nil {
			errs = append(errs, &core.DelayError{
				Delay: key,
				State: state,
				Err:   err,
			})
			continue
		}
		s.logger.Debug("delay armed", zap.String("state", state), zap.String("delay", key), zap.Duration("in", d))
	}
	return errs
}

// cancelDelays cancels the timers armed by the current node entry.
func (s *Service) cancelDelays() {
	if n := s.timers.RemPrefix(s.timerPrefix()); 0 < n {
		s.logger.Debug("delays canceled", zap.String("state", s.value), zap.Int("count", n))
	}
}

// PendingDelays returns the ids of the armed delays.
func (s *Service) PendingDelays() []string {
	return s.timers.Ids()
}
