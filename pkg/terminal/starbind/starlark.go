// Package starbind runs starlark scripts inside a dlv-ql session.
package starbind

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/service"
	"github.com/go-delve/quicklook/service/api"
)

const (
	commandPrefix = "command_"
	cancelLocal   = "dlv-ql.context"
)

func init() {
	resolve.AllowNestedDef = true
	resolve.AllowLambda = true
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowBitwise = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// Context is what scripts act upon: the server connection, the terminal
// commands and the quick look extraction.
type Context interface {
	Client() service.Client
	RegisterCommand(name, helpMsg string, cmdfn func(args string) error)
	CallCommand(cmdstr string) error
	QuickLook(scope api.EvalScope, expr string, opts quicklook.Options) (string, error)
	Scope() api.EvalScope
	LoadConfig() api.LoadConfig
	// Fs is the filesystem used by read_file and write_file.
	Fs() afero.Fs
}

// Env holds the predeclared values of scripts and the thread currently
// running.
type Env struct {
	ctx     Context
	globals starlark.StringDict
	doc     map[string]string

	mu     sync.Mutex
	out    io.Writer
	thread *starlark.Thread
	cancel context.CancelFunc
}

// New creates an environment whose scripts print to out.
func New(ctx Context, out io.Writer) *Env {
	env := &Env{
		ctx:     ctx,
		out:     out,
		globals: starlark.StringDict{},
		doc:     map[string]string{},
	}
	env.defineBuiltins()
	env.defineAPIBuiltins()
	return env
}

// Redirect sends the output of scripts to out.
func (env *Env) Redirect(out io.Writer) {
	env.mu.Lock()
	env.out = out
	env.mu.Unlock()
}

func (env *Env) output() io.Writer {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.out
}

// Execute runs the script at path, or source when it is not nil (a
// string, []byte or io.Reader). Globals starting with "command_" become
// terminal commands and capitalized globals stay visible to later
// scripts. Then the function mainFnName, if the script defines it, is
// called with args.
func (env *Env) Execute(path string, source interface{}, mainFnName string, args []interface{}) (_ starlark.Value, err error) {
	defer func() {
		if ierr := recover(); ierr != nil {
			err = fmt.Errorf("panic executing starlark script: %v", ierr)
			fmt.Fprintf(env.output(), "%v\n%s", err, debug.Stack())
		}
	}()

	thread := env.newThread()
	globals, err := starlark.ExecFile(thread, path, source, env.globals)
	if err != nil {
		return starlark.None, err
	}
	env.export(globals)

	if mainFnName == "" || globals[mainFnName] == nil {
		return starlark.None, nil
	}
	mainfn, ok := globals[mainFnName].(*starlark.Function)
	if !ok {
		return starlark.None, fmt.Errorf("%s is not a function", mainFnName)
	}
	if mainfn.NumParams() != len(args) {
		return starlark.None, fmt.Errorf("wrong number of arguments for %s", mainFnName)
	}
	argtuple := make(starlark.Tuple, len(args))
	for i := range args {
		argtuple[i] = env.toStarlark(args[i])
	}
	return starlark.Call(thread, mainfn, argtuple, nil)
}

func (env *Env) export(globals starlark.StringDict) {
	for name, val := range globals {
		if strings.HasPrefix(name, commandPrefix) {
			if fn, ok := val.(*starlark.Function); ok {
				env.registerCommand(strings.TrimPrefix(name, commandPrefix), fn)
			}
			continue
		}
		if r, _ := utf8.DecodeRuneInString(name); unicode.IsUpper(r) {
			env.globals[name] = val
		}
	}
}

func (env *Env) registerCommand(name string, fn *starlark.Function) {
	helpMsg := fn.Doc()
	if helpMsg == "" {
		helpMsg = "user defined"
	}
	env.ctx.RegisterCommand(name, helpMsg, func(args string) error {
		thread := env.newThread()
		callArgs, err := env.commandArgs(thread, fn, args)
		if err != nil {
			return err
		}
		_, err = starlark.Call(thread, fn, callArgs, nil)
		return err
	})
}

// commandArgs passes the argument string unchanged to functions with a
// single parameter named args. For other functions it is evaluated as
// the content of a tuple.
func (env *Env) commandArgs(thread *starlark.Thread, fn *starlark.Function, args string) (starlark.Tuple, error) {
	if fn.NumParams() == 1 {
		if p, _ := fn.Param(0); p == "args" {
			return starlark.Tuple{starlark.String(args)}, nil
		}
	}
	v, err := starlark.Eval(thread, "<input>", "("+args+")", env.globals)
	if err != nil {
		return nil, err
	}
	if t, ok := v.(starlark.Tuple); ok {
		return t, nil
	}
	return starlark.Tuple{v}, nil
}

// Cancel interrupts the script or command currently running.
func (env *Env) Cancel() {
	if env == nil {
		return
	}
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.cancel != nil {
		env.cancel()
		env.cancel = nil
	}
	if env.thread != nil {
		env.thread.Cancel("user interrupt")
	}
}

func (env *Env) newThread() *starlark.Thread {
	ctx, cancel := context.WithCancel(context.Background())
	thread := &starlark.Thread{
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(env.output(), msg) },
	}
	thread.SetLocal(cancelLocal, ctx)

	env.mu.Lock()
	env.thread, env.cancel = thread, cancel
	env.mu.Unlock()
	return thread
}

func isCancelled(thread *starlark.Thread) error {
	if ctx, ok := thread.Local(cancelLocal).(context.Context); ok {
		return ctx.Err()
	}
	return nil
}

// decorateError prefixes err with the position of the script calling the
// builtin.
func decorateError(thread *starlark.Thread, err error) error {
	if err == nil {
		return nil
	}
	pos := thread.CallFrame(1).Pos
	if pos.Col > 0 {
		return fmt.Errorf("%s:%d:%d: %v", pos.Filename(), pos.Line, pos.Col, err)
	}
	return fmt.Errorf("%s:%d: %v", pos.Filename(), pos.Line, err)
}
