package core

// These errors are user errors, not internal errors.

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes reported in a ConfigurationError.
const (
	MissingInitial        = "MISSING_INITIAL"
	InvalidInitial        = "INVALID_INITIAL"
	InvalidTarget         = "INVALID_TARGET"
	MissingGuard          = "MISSING_GUARD"
	InvalidGuard          = "INVALID_GUARD"
	MissingAction         = "MISSING_ACTION"
	MissingActivity       = "MISSING_ACTIVITY"
	MissingDelay          = "MISSING_DELAY"
	InvalidDelay          = "INVALID_DELAY"
	MissingComputed       = "MISSING_COMPUTED"
	MissingEqual          = "MISSING_EQUAL"
	InvalidWatch          = "INVALID_WATCH"
	UnreachableTransition = "UNREACHABLE_TRANSITION"
	FinalWithTransitions  = "FINAL_WITH_TRANSITIONS"
	BadScript             = "BAD_SCRIPT"
)

// Issue is one problem found by Spec.Compile.
type Issue struct {
	Code string `json:"code"`

	// Node is the name of the node (if any) where the problem
	// was found.  Empty for root-level problems.
	Node string `json:"node,omitempty"`

	// Name is the offending reference (guard name, target, ...).
	Name string `json:"name,omitempty"`

	Msg string `json:"msg,omitempty"`
}

func (i *Issue) String() string {
	s := i.Code
	if i.Node != "" {
		s += ` at node "` + i.Node + `"`
	}
	if i.Name != "" {
		s += ` "` + i.Name + `"`
	}
	if i.Msg != "" {
		s += ": " + i.Msg
	}
	return s
}

// ConfigurationError occurs when Spec.Compile finds references that
// the Implementation can't satisfy or a structure that can't work.
//
// All problems are reported together.
type ConfigurationError struct {
	Spec   *Spec
	Issues []*Issue
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return `spec "` + e.Spec.Name + `" configuration: ` + strings.Join(msgs, "; ")
}

// Has reports whether an Issue with the given code was found.
func (e *ConfigurationError) Has(code string) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// SpecNotCompiled occurs when a Spec is used (say via Resolve())
// before it has been Compile()ed.
type SpecNotCompiled struct {
	Spec *Spec
}

func (e *SpecNotCompiled) Error() string {
	return `spec "` + e.Spec.Name + `" not compiled`
}

// UnknownState occurs when a state value isn't a node in the Spec.
type UnknownState struct {
	Spec     *Spec
	NodeName string
}

func (e *UnknownState) Error() string {
	return `node "` + e.NodeName + `" not found in spec "` + e.Spec.Name + `"`
}

// GuardEvaluationError occurs when a guard returns an error or
// panics.  The dispatch that needed the guard is abandoned.
type GuardEvaluationError struct {
	Guard string
	State string
	Event string
	Err   error
}

func (e *GuardEvaluationError) Error() string {
	return fmt.Sprintf(`guard "%s" failed in state "%s" on event "%s": %v`, e.Guard, e.State, e.Event, e.Err)
}

func (e *GuardEvaluationError) Unwrap() error {
	return e.Err
}

// ActionError occurs when an action returns an error or panics.
//
// Actions listed before Index have already run; there is no
// rollback.
type ActionError struct {
	Action string
	Index  int
	State  string
	Event  string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf(`action "%s" (%d) failed in state "%s" on event "%s": %v`,
		e.Action, e.Index, e.State, e.Event, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// ActivityError occurs when an activity fails to start or when its
// cleanup panics.
type ActivityError struct {
	Activity string
	State    string

	// Cleanup is true when the failure came from the activity's
	// Disposer.
	Cleanup bool

	Err error
}

func (e *ActivityError) Error() string {
	what := "start"
	if e.Cleanup {
		what = "clean up"
	}
	return fmt.Sprintf(`activity "%s" failed to %s in state "%s": %v`, e.Activity, what, e.State, e.Err)
}

func (e *ActivityError) Unwrap() error {
	return e.Err
}

// WatchError occurs when a computed field or an equality function
// used by a watch panics.  The watch is treated as unchanged.
type WatchError struct {
	Field string
	Err   error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf(`watch on "%s": %v`, e.Field, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// DispatchPanic occurs when processing an event panics somewhere
// that isn't a user function with its own error type.  The machine
// keeps whatever had been done and goes on with the next event.
type DispatchPanic struct {
	State string
	Event string
	Value interface{}
}

func (e *DispatchPanic) Error() string {
	return fmt.Sprintf(`panic in state "%s" on event "%s": %v`, e.State, e.Event, e.Value)
}

// DelayError occurs when a delay can't be resolved to a duration.
type DelayError struct {
	Delay string
	State string
	Err   error
}

func (e *DelayError) Error() string {
	return fmt.Sprintf(`delay "%s" in state "%s": %v`, e.Delay, e.State, e.Err)
}

func (e *DelayError) Unwrap() error {
	return e.Err
}

// TimerRace describes a delay that fired after its state was exited.
//
// It's not a failure.  Interpreters drop the timer and might log
// this value.
type TimerRace struct {
	State string
	Delay string
}

func (e *TimerRace) Error() string {
	return `stale delay "` + e.Delay + `" for exited state "` + e.State + `"`
}

var (
	// InterpreterNotFound occurs when you try to Compile an
	// ActionSource, and the required interpreter isn't in the
	// given map of interpreters.
	InterpreterNotFound = errors.New("interpreter not found")

	// NotBool occurs when a scripted guard returns a non-boolean.
	NotBool = errors.New("guard result is not a boolean")
)
