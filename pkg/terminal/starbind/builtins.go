package starbind

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.starlark.net/starlark"

	"github.com/go-delve/quicklook/pkg/quicklook"
)

type builtinFunc func(thread *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// define predeclares a builtin. Errors returned by fn are prefixed with
// the position of the caller.
func (env *Env) define(name, params, descr string, fn builtinFunc) {
	env.globals[name] = starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := isCancelled(thread); err != nil {
			return starlark.None, decorateError(thread, err)
		}
		v, err := fn(thread, b.Name(), args, kwargs)
		if err != nil {
			return starlark.None, decorateError(thread, err)
		}
		if v == nil {
			v = starlark.None
		}
		return v, nil
	})
	env.doc[name] = name + params + "\n\n" + name + " " + descr
}

func (env *Env) defineBuiltins() {
	env.define("quicklook", `(expr, filename="", lite=False, frame=-1)`,
		"saves the data of the object expr evaluates to and previews it. Returns the path of the saved file.\nframe selects the frame expr is evaluated in, -1 is the current frame.",
		env.quickLook)
	env.define("dlv_command", "(command)", "runs a terminal command.", env.dlvCommand)
	env.define("read_file", "(path)", "reads a file.", env.readFile)
	env.define("write_file", "(path, text)", "writes text to the specified file.", env.writeFile)
	env.define("cur_scope", "()", "returns the current scope.",
		func(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
				return nil, err
			}
			return env.toStarlark(env.ctx.Scope()), nil
		})
	env.define("default_load_config", "()", "returns the load configuration used by print.",
		func(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
				return nil, err
			}
			return env.toStarlark(env.ctx.LoadConfig()), nil
		})
	env.define("help", "(object)", "prints help for object.", env.help)
}

func (env *Env) quickLook(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		expr  string
		opts  quicklook.Options
		frame = -1
	)
	err := starlark.UnpackArgs(name, args, kwargs, "expr", &expr, "filename?", &opts.Filename, "lite?", &opts.Lite, "frame?", &frame)
	if err != nil {
		return nil, err
	}
	scope := env.ctx.Scope()
	if frame >= 0 {
		scope.Frame = frame
	}
	path, err := env.ctx.QuickLook(scope, expr, opts)
	if err != nil {
		return nil, err
	}
	return starlark.String(path), nil
}

func (env *Env) dlvCommand(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s does not accept keyword arguments", name)
	}
	words := make([]string, len(args))
	for i := range args {
		s, ok := starlark.AsString(args[i])
		if !ok {
			return nil, fmt.Errorf("argument of %s is not a string", name)
		}
		words[i] = s
	}
	err := env.ctx.CallCommand(strings.Join(words, " "))
	if err != nil && strings.Contains(err.Error(), " has exited with status ") {
		// the script may want to react to the end of the target
		return starlark.String(err.Error()), nil
	}
	return starlark.None, err
}

func (env *Env) readFile(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &path); err != nil {
		return nil, err
	}
	buf, err := afero.ReadFile(env.ctx.Fs(), path)
	if err != nil {
		return nil, err
	}
	return starlark.String(buf), nil
}

func (env *Env) writeFile(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path string
		text starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(name, args, kwargs, 2, &path, &text); err != nil {
		return nil, err
	}
	s, ok := starlark.AsString(text)
	if !ok {
		s = text.String()
	}
	return starlark.None, afero.WriteFile(env.ctx.Fs(), path, []byte(s), 0640)
}

func (env *Env) help(_ *starlark.Thread, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	out := env.output()
	switch len(args) {
	case 0:
		fmt.Fprintln(out, "Available builtins:")
		names := make([]string, 0, len(env.globals))
		for name, value := range env.globals {
			if _, ok := value.(*starlark.Builtin); ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "\t%s\n", name)
		}
	case 1:
		switch x := args[0].(type) {
		case *starlark.Builtin:
			if doc := env.doc[x.Name()]; doc != "" {
				fmt.Fprintln(out, doc)
			} else {
				fmt.Fprintf(out, "no help for builtin %s\n", x.Name())
			}
		case *starlark.Function:
			fmt.Fprintf(out, "user defined function %s\n", x.Name())
			if doc := x.Doc(); doc != "" {
				fmt.Fprintln(out, doc)
			}
		default:
			fmt.Fprintf(out, "no help for object of type %s\n", args[0].Type())
		}
	default:
		return nil, fmt.Errorf("%s: got %d arguments, want at most 1", name, len(args))
	}
	return starlark.None, nil
}
