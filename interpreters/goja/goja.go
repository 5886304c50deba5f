// Package goja provides an ECMAScript interpreter for scripted
// guards, actions, delays, and computed fields.
package goja

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Comcast/uimachine/core"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Exec if the execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)
)

// init adds a Interpreter as one of the DefaultInterpreters
func init() {
	i := NewInterpreter()
	core.DefaultInterpreters["goja"] = i
	core.DefaultInterpreters["ecmascript"] = i
}

// Interpreter implements core.Intepreter using Goja, which is a
// Go implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
type Interpreter struct {

	// Testing is used to expose or hide some runtime
	// capabilities.
	Testing bool

	// Logger receives what scripts _.log().
	Logger *zap.Logger

	// LibraryProvider resolves the names in a source's
	// "requires".  Nil means DefaultLibraryProvider.
	LibraryProvider func(ctx context.Context, i *Interpreter, libraryName string) (string, error)
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Logger: zap.NewNop(),
	}
}

// ProvideLibrary resolves the library name into a library.
func (i *Interpreter) ProvideLibrary(ctx context.Context, name string) (string, error) {
	if i.LibraryProvider != nil {
		return i.LibraryProvider(ctx, i, name)
	}
	return DefaultLibraryProvider(ctx, i, name)
}

var DefaultLibraryProvider = MakeFileLibraryProvider(".")

// MakeFileLibraryProvider makes a provider for names like
// "file://lib/util.js", relative to the given directory.
func MakeFileLibraryProvider(dir string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			filename := filepath.Clean(parts[1])
			if strings.HasPrefix(filename, "..") {
				return "", fmt.Errorf("library '%s' is outside %s", name, dir)
			}
			bs, err := os.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}

func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// parseSource looks into the given map to try to find "requires" and
// "code" properties.
func parseSource(vv map[string]interface{}) (code string, libs []string, err error) {
	x := vv["code"]
	if s, is := x.(string); is {
		code = s
	} else {
		err = errors.New("bad Goja code")
		return
	}

	switch vv := vv["requires"].(type) {
	case nil:
	case string:
		libs = []string{vv}
	case []string:
		libs = vv
	case []interface{}:
		libs = make([]string, 0, len(vv))
		for _, x := range vv {
			switch vv := x.(type) {
			case string:
				libs = append(libs, vv)
			default:
				err = errors.New("bad library")
				return
			}
		}
	default:
		err = errors.New("bad requires")
	}

	return
}

// AsSource accepts either plain code or a map with "code" and
// "requires".
func AsSource(src interface{}) (code string, libs []string, err error) {
	switch vv := src.(type) {
	case string:
		code = vv
		return
	case map[interface{}]interface{}:
		m := make(map[string]interface{})
		for k, v := range vv {
			str, ok := k.(string)
			if !ok {
				err = fmt.Errorf("bad src key (%T)", k)
				return
			}
			m[str] = v
		}
		return parseSource(m)
	case map[string]interface{}:
		return parseSource(vv)
	default:
		err = fmt.Errorf("bad Goja source (%T)", src)
		return
	}
}

// Compile prepends any required libraries and calls goja.Compile.
//
// Code is the body of a function, so it should "return" its result.
//
// This method can block if the interpreter's library provider
// blocks.
func (i *Interpreter) Compile(ctx context.Context, src interface{}) (interface{}, error) {
	code, libs, err := AsSource(src)
	if err != nil {
		return nil, err
	}

	code = wrapSrc(code)

	var libsSrc string
	for _, lib := range libs {
		libSrc, err := i.ProvideLibrary(ctx, lib)
		if err != nil {
			return nil, err
		}
		libsSrc += libSrc + "\n"
	}

	code = libsSrc + code

	obj, err := goja.Compile("", code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}

	return obj, nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

func export(x interface{}) interface{} {
	if v, is := x.(goja.Value); is {
		return v.Export()
	}
	return x
}

// asEvent makes an event from a script's argument: either a type
// string or an object with a "type".
func asEvent(o *goja.Runtime, x interface{}) core.Event {
	switch vv := export(x).(type) {
	case string:
		return core.NewEvent(vv)
	case map[string]interface{}:
		if _, is := vv["type"].(string); !is {
			protest(o, "event needs a type")
		}
		return core.Event(vv)
	}
	protest(o, "bad event")
	return nil
}

func now(props core.StepProps) time.Time {
	if t, is := props["now"].(time.Time); is {
		return t
	}
	return time.Now()
}

// Exec implements the Interpreter method of the same name.
//
// The following properties are available from the runtime at _.
//
//	context: a copy of the machine's context.  Changes are kept
//	  when the script is an action.
//	event: the event being processed.
//	props: id, state, and now (when the script is an action).
//	send(evt): queue an event (a type or an object) for the machine.
//	sendParent(evt): send an event to the machine's owner.
//	now(): the machine's time in milliseconds.
//	cronNext(expr): the next time (RFC3339Nano) for the cron
//	  expression.
//	gensym(): generate a random string.
//	log(x): log x.
//
// For testing only (see Testing):
//
//	sleep(ms): sleep for the given number of milliseconds.
//
// An object returned by an action is merged into the context.  A
// guard should return a boolean, a delay a number of milliseconds.
func (i *Interpreter) Exec(ctx context.Context, bs core.Bindings, evt core.Event, props core.StepProps, src interface{}, compiled interface{}) (*core.Execution, error) {
	exe := core.NewExecution(nil)

	if compiled == nil {
		var err error
		if compiled, err = i.Compile(ctx, src); err != nil {
			return exe, err
		}
	}
	p, is := compiled.(*goja.Program)
	if !is {
		return exe, fmt.Errorf("Goja bad compilation: %T %#v", compiled, compiled)
	}

	if bs == nil {
		bs = core.NewBindings()
	}
	cx := map[string]interface{}(bs)

	env := map[string]interface{}{
		"context": cx,
	}
	if evt != nil {
		env["event"] = map[string]interface{}(evt)
	}
	if props == nil {
		env["props"] = map[string]interface{}{}
	} else {
		env["props"] = map[string]interface{}(props.Copy())
	}

	o := goja.New()

	o.Set("_", env)

	if i.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	env["gensym"] = func() interface{} {
		return core.Gensym(32)
	}

	env["now"] = func() interface{} {
		return now(props).UnixNano() / int64(time.Millisecond)
	}

	env["cronNext"] = func(x interface{}) interface{} {
		cronExpr, is := export(x).(string)
		if !is {
			protest(o, "not a string")
		}

		c, err := cronexpr.Parse(cronExpr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(now(props)).UTC().Format(time.RFC3339Nano)
	}

	env["send"] = func(x interface{}) interface{} {
		exe.Sent = append(exe.Sent, asEvent(o, x))
		return nil
	}

	env["sendParent"] = func(x interface{}) interface{} {
		exe.SentParent = append(exe.SentParent, asEvent(o, x))
		return nil
	}

	logger := i.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	env["log"] = func(x interface{}) interface{} {
		x = export(x)
		logger.Info("script", zap.Any("value", x))
		return x
	}

	// We want to make sure that the following goroutine is
	// terminated as soon as possible.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If this Exec method calls cancel() after RunProgram
		// returns, then we'll never see this
		// InterruptedMessage, which is actually the behavior
		// we want.  In this case, we weren't actually interrupted.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}

	x := v.Export()
	exe.Value = x
	exe.Bs = core.Bindings(cx)

	switch vv := x.(type) {
	case *goja.InterruptedError:
		return nil, vv
	case map[string]interface{}:
		exe.Bs.Merge(core.Bindings(vv))
	}

	return exe, nil
}
