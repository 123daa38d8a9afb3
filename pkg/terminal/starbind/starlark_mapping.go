package starbind

import (
	"fmt"
	"reflect"

	"go.starlark.net/starlark"

	"github.com/go-delve/quicklook/service/rpc2"
)

// apiBuiltin describes a builtin calling a server method. Positional
// arguments fill the fields of In in order, keyword arguments fill the
// field with the same name.
type apiBuiltin struct {
	name   string
	method string
	doc    string
	in     interface{}
	out    interface{}
}

var apiBuiltins = []apiBuiltin{
	{"eval", "Eval", "returns an api.Variable.", rpc2.EvalIn{}, rpc2.EvalOut{}},
	{"examine_memory", "ExamineMemory", "returns the raw memory stored at the given address.\nLength can not be greater than 1000.", rpc2.ExamineMemoryIn{}, rpc2.ExaminedMemoryOut{}},
	{"list_breakpoints", "ListBreakpoints", "gets all breakpoints.", rpc2.ListBreakpointsIn{}, rpc2.ListBreakpointsOut{}},
	{"process_pid", "ProcessPid", "returns the pid of the process we are debugging.", rpc2.ProcessPidIn{}, rpc2.ProcessPidOut{}},
	{"stacktrace", "Stacktrace", "returns stacktrace of goroutine Id up to the specified Depth.", rpc2.StacktraceIn{}, rpc2.StacktraceOut{}},
	{"state", "State", "returns the current debugger state.", rpc2.StateIn{}, rpc2.StateOut{}},
	{"toggle_breakpoint", "ToggleBreakpoint", "toggles on or off a breakpoint by Name (if Name is not an empty string) or by ID.", rpc2.ToggleBreakpointIn{}, rpc2.ToggleBreakpointOut{}},
}

func (env *Env) defineAPIBuiltins() {
	for _, b := range apiBuiltins {
		b := b
		env.define(b.name, "("+b.params()+")", b.doc, func(_ *starlark.Thread, _ string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			in := reflect.New(reflect.TypeOf(b.in))
			out := reflect.New(reflect.TypeOf(b.out))
			if err := b.unmarshalArgs(args, kwargs, in.Elem()); err != nil {
				return nil, err
			}
			if err := env.ctx.Client().CallAPI(b.method, in.Interface(), out.Interface()); err != nil {
				return nil, err
			}
			return env.toStarlark(out.Elem().Interface()), nil
		})
	}
}

func (b *apiBuiltin) params() string {
	typ := reflect.TypeOf(b.in)
	s := ""
	for i := 0; i < typ.NumField(); i++ {
		if i > 0 {
			s += ", "
		}
		s += typ.Field(i).Name
	}
	return s
}

func (b *apiBuiltin) unmarshalArgs(args starlark.Tuple, kwargs []starlark.Tuple, dst reflect.Value) error {
	typ := dst.Type()
	if len(args) > typ.NumField() {
		return fmt.Errorf("too many arguments to %s", b.name)
	}
	for i := range args {
		if args[i] == starlark.None {
			continue
		}
		name := typ.Field(i).Name
		if err := fromStarlark(args[i], dst.Field(i).Addr().Interface(), name); err != nil {
			return err
		}
	}
	for _, kv := range kwargs {
		name, _ := kv[0].(starlark.String)
		field := dst.FieldByName(string(name))
		if !field.IsValid() {
			return fmt.Errorf("unknown argument %q", string(name))
		}
		if err := fromStarlark(kv[1], field.Addr().Interface(), string(name)); err != nil {
			return err
		}
	}
	return nil
}
