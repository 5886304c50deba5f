package service

import (
	"github.com/Comcast/uimachine/core"

	"go.uber.org/zap"
)

// dispatch accumulates the outcome of processing one event.
type dispatch struct {
	evt core.Event

	// failed is set by the first ActionError.  Remaining actions
	// are skipped, but structural changes still happen.
	failed bool
	errs   []error
}

func (d *dispatch) add(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if _, is := err.(*core.ActionError); is {
			d.failed = true
		}
		d.errs = append(d.errs, err)
	}
}

func (s *Service) run(d *dispatch, names core.Names, state string) {
	if d.failed || len(names) == 0 {
		return
	}
	d.add(s.spec.RunActions(s.ctx, names, s.bs, d.evt, s.meta.WithState(state)))
}

// process handles one queued event.
func (s *Service) process(it item) {
	log := s.logger.With(zap.String("event", it.evt.Type()), zap.String("state", s.value))

	defer s.recoverPanic(it.evt)

	if s.done {
		log.Debug("ignoring event after final state")
		return
	}

	if key, is := core.IsAfterEvent(it.evt); is && !it.timer {
		log.Warn("ignoring delay event that no timer sent", zap.String("delay", key))
		return
	}

	if it.timer && (it.state != s.value || it.gen != s.gen) {
		key, _ := core.IsAfterEvent(it.evt)
		log.Debug("dropping stale delay", zap.Error(&core.TimerRace{
			State: it.state,
			Delay: key,
		}))
		return
	}

	stride, err := s.spec.Resolve(s.ctx, s.value, s.bs, it.evt)
	if err != nil {
		s.report(err)
		return
	}
	if stride == nil {
		log.Debug("no transition")
		return
	}

	d := &dispatch{
		evt: it.evt,
	}

	if stride.Internal {
		s.run(d, stride.Actions(), s.value)
	} else {
		log.Debug("transition", zap.String("to", stride.To))
		s.exit(d)
		s.run(d, stride.Actions(), s.value)
		s.value = stride.To
		d.add(s.enter(it.evt, !d.failed)...)
	}

	s.watch(d)

	st := s.commit()
	s.report(d.errs...)
	s.notify(st)

	if st.Done {
		log.Debug("done", zap.String("final", st.Value))
	}
}

// exit leaves the current node: its activities are disposed, its
// delays are canceled, and its exit actions run.
func (s *Service) exit(d *dispatch) {
	d.add(s.nodeActs.dispose()...)
	s.cancelDelays()
	n, err := s.spec.Node(s.value)
	if err != nil {
		d.add(err)
		return
	}
	s.run(d, n.Exit, s.value)
}

// enter enters the (already set) current node: a new generation
// begins, entry actions run (if requested), delays are armed, and
// activities start.
func (s *Service) enter(evt core.Event, entryActions bool) []error {
	s.gen++

	n, err := s.spec.Node(s.value)
	if err != nil {
		return []error{err}
	}

	d := &dispatch{
		evt:    evt,
		failed: !entryActions,
	}
	s.run(d, n.Entry, s.value)

	if n.Final() {
		s.done = true
	} else if !s.done {
		d.add(s.armDelays(n)...)
	}

	d.add(s.nodeActs.start(s.ctx, s.spec, n.Activities, s.bs, evt, s.meta.WithState(s.value))...)

	return d.errs
}

// recoverPanic is deferred around dispatches.  A panic that no user
// function wrapper caught is reported as a *core.DispatchPanic, and
// whatever had been done is committed.
func (s *Service) recoverPanic(evt core.Event) {
	r := recover()
	if r == nil {
		return
	}
	err := &core.DispatchPanic{
		State: s.value,
		Event: evt.Type(),
		Value: r,
	}
	s.logger.Error("dispatch panic", zap.Error(err))
	st := s.commit()
	s.report(err)
	s.notify(st)
}
