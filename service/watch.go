package service

// watch compares the watched fields with their values after the
// previous dispatch and runs the actions of those that changed.
//
// The baseline is captured again after the watch actions run, so
// changes made by watch actions don't trigger watches later.
//
// After an ActionError the watches don't run and the baseline is
// kept, so the next successful dispatch reports the changes that the
// actions which did run had made.
func (s *Service) watch(d *dispatch) {
	if len(s.spec.Watch) == 0 || d.failed {
		return
	}
	now, errs := s.spec.Capture(s.bs)
	d.add(errs...)
	changed, errs := s.spec.Changed(s.watched, now)
	d.add(errs...)
	if 0 < len(changed) {
		d.add(s.spec.RunWatches(s.ctx, changed, s.bs, d.evt, s.meta.WithState(s.value))...)
		now, errs = s.spec.Capture(s.bs)
		d.add(errs...)
	}
	s.watched = now
}
