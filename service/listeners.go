package service

import (
	"sync"

	"github.com/Comcast/uimachine/core"

	"go.uber.org/zap"
)

// Listener receives a snapshot after each transition.  Each listener
// gets its own copy.
type Listener func(st *core.State)

// ErrorHandler receives errors that occur while processing events.
type ErrorHandler func(err error)

type listeners struct {
	mu       sync.Mutex
	count    int
	states   map[int]Listener
	handlers map[int]ErrorHandler
}

func newListeners() *listeners {
	return &listeners{
		states:   make(map[int]Listener),
		handlers: make(map[int]ErrorHandler),
	}
}

// Subscribe registers a Listener and returns a function that removes
// it.
func (ls *listeners) Subscribe(l Listener) func() {
	ls.mu.Lock()
	ls.count++
	id := ls.count
	ls.states[id] = l
	ls.mu.Unlock()
	return func() {
		ls.mu.Lock()
		delete(ls.states, id)
		ls.mu.Unlock()
	}
}

// OnError registers an ErrorHandler and returns a function that
// removes it.
func (ls *listeners) OnError(h ErrorHandler) func() {
	ls.mu.Lock()
	ls.count++
	id := ls.count
	ls.handlers[id] = h
	ls.mu.Unlock()
	return func() {
		ls.mu.Lock()
		delete(ls.handlers, id)
		ls.mu.Unlock()
	}
}

func (ls *listeners) stateListeners() []Listener {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	acc := make([]Listener, 0, len(ls.states))
	for id := 1; id <= ls.count; id++ {
		if l, have := ls.states[id]; have {
			acc = append(acc, l)
		}
	}
	return acc
}

func (ls *listeners) errorHandlers() []ErrorHandler {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	acc := make([]ErrorHandler, 0, len(ls.handlers))
	for id := 1; id <= ls.count; id++ {
		if h, have := ls.handlers[id]; have {
			acc = append(acc, h)
		}
	}
	return acc
}

// notify calls the listeners in subscription order.  No locks are
// held.
func (s *Service) notify(st *core.State) {
	for _, l := range s.stateListeners() {
		s.safely(func() { l(st.Copy()) })
	}
}

// report logs the errors and hands them to the error handlers.
func (s *Service) report(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		s.logger.Warn("dispatch error", zap.Error(err))
		for _, h := range s.errorHandlers() {
			s.safely(func() { h(err) })
		}
	}
}

// safely calls f, logging (and otherwise ignoring) a panic.
func (s *Service) safely(f func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("listener panic", zap.Any("panic", r))
		}
	}()
	f()
}
