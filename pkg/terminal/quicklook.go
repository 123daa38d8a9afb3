package terminal

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cosiner/argv"
	"github.com/spf13/pflag"

	"github.com/go-delve/quicklook/pkg/quicklook"
)

// ArgError is returned when the arguments of a command can not be parsed.
type ArgError struct {
	Cmd string
	Err error
}

func (err *ArgError) Error() string {
	return fmt.Sprintf("%s: %v", err.Cmd, err.Err)
}

func (err *ArgError) Unwrap() error {
	return err.Err
}

var errMissingSeparator = errors.New(`options must be followed by "--" and an expression`)

// optionsEnd matches the first standalone "--".
var optionsEnd = regexp.MustCompile(`(^|\s)--(\s|$)`)

// parseQuickLookArgs splits args into options and expression. Options are
// only recognized when args starts with '-', in that case they end at the
// first standalone "--" and everything after it is the expression,
// verbatim.
func parseQuickLookArgs(cmd, args string, allowLite bool) (string, quicklook.Options, error) {
	var opts quicklook.Options
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(args, "-") {
		if args == "" {
			return "", opts, &ArgError{cmd, errors.New("not enough arguments")}
		}
		return args, opts, nil
	}

	loc := optionsEnd.FindStringIndex(args)
	if loc == nil {
		return "", opts, &ArgError{cmd, errMissingSeparator}
	}
	optstr, expr := args[:loc[0]], strings.TrimSpace(args[loc[1]:])
	if expr == "" {
		return "", opts, &ArgError{cmd, errors.New("not enough arguments")}
	}

	words, err := splitOptions(optstr)
	if err != nil {
		return "", opts, &ArgError{cmd, err}
	}

	flags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVarP(&opts.Filename, "filename", "f", "", "name of the saved file")
	if allowLite {
		flags.BoolVarP(&opts.Lite, "lite", "l", false, "use the lite previewer")
	}
	if err := flags.Parse(words); err != nil {
		return "", opts, &ArgError{cmd, err}
	}
	if flags.NArg() > 0 {
		return "", opts, &ArgError{cmd, fmt.Errorf("unexpected argument %q", flags.Arg(0))}
	}
	if flags.Changed("filename") && strings.TrimSpace(opts.Filename) == "" {
		return "", opts, &ArgError{cmd, errors.New("empty file name")}
	}
	return expr, opts, nil
}

// splitOptions splits the options of a command the way a shell would.
func splitOptions(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := argv.Argv(s,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal options '%s'", s)
	}
	return v[0], nil
}

func quickLookCmd(t *Term, ctx callContext, args string) error {
	expr, opts, err := parseQuickLookArgs("quicklook", args, true)
	if err != nil {
		return err
	}
	if t.conf.Lite {
		opts.Lite = true
	}
	_, err = t.quickLook(ctx.Scope, expr, opts)
	return err
}

func quickLookLiteCmd(t *Term, ctx callContext, args string) error {
	expr, opts, err := parseQuickLookArgs("ql", args, false)
	if err != nil {
		return err
	}
	opts.Lite = true
	_, err = t.quickLook(ctx.Scope, expr, opts)
	return err
}
