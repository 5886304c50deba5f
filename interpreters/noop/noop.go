// Package noop has an Interpreter that does nothing, which is handy
// for checking specs without running their scripts.
package noop

import (
	"context"

	"github.com/Comcast/uimachine/core"

	"go.uber.org/zap"
)

// Interpreter is an core.Interpreter which returns no changes.  A
// guard run by it is false.
type Interpreter struct {
	// Logger gets a warning for each use.  Nil is silent.
	Logger *zap.Logger
}

func (i *Interpreter) warn(what string) {
	if i.Logger != nil {
		i.Logger.Warn("using noop interpreter", zap.String("for", what))
	}
}

func (i *Interpreter) Compile(ctx context.Context, code interface{}) (interface{}, error) {
	i.warn("compilation")
	return nil, nil
}

func (i *Interpreter) Exec(ctx context.Context, bs core.Bindings, evt core.Event, props core.StepProps, code interface{}, compiled interface{}) (*core.Execution, error) {
	i.warn("execution")
	exe := core.NewExecution(nil)
	if _, is := props["id"]; !is {
		// Not an action.
		exe.Value = false
	}
	return exe, nil
}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}
