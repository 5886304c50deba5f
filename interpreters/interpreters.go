// Package interpreters collects the standard script interpreters.
package interpreters

import (
	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/interpreters/goja"
	"github.com/Comcast/uimachine/interpreters/noop"

	"go.uber.org/zap"
)

// Standard returns the usual interpreters.  Scripts log to the given
// logger (which can be nil).
func Standard(logger *zap.Logger) core.InterpretersMap {
	is := core.NewInterpretersMap()

	g := goja.NewInterpreter()
	if logger != nil {
		g.Logger = logger
	}
	is["goja"] = g
	is["ecmascript"] = g
	is["ecmascript-5.1"] = g

	is["noop"] = noop.NewInterpreter()

	return is
}
