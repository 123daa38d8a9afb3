// Package terminal implements the interactive dlv-ql prompt and the
// commands it dispatches to the server.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"

	"github.com/go-delve/quicklook/service"
	"github.com/go-delve/quicklook/service/api"
)

// callContext is the scope a command runs in.
type callContext struct {
	Scope api.EvalScope
}

type frameDirection int

const (
	frameSet frameDirection = iota
	frameUp
	frameDown
)

type cmdfunc func(t *Term, ctx callContext, args string) error

type command struct {
	// aliases[0] is the name of the command.
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Commands represents the commands for the dlv-ql terminal.
type Commands struct {
	cmds   []command
	client service.Client
	// frame is the frame selected by frame, up and down.
	frame int
}

// DebugCommands returns the builtin commands.
func DebugCommands(client service.Client) *Commands {
	c := &Commands{client: client}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"quicklook", "qlf"}, group: quickLookCmds, cmdFn: quickLookCmd, helpMsg: `Saves the data of an object and previews it.

	quicklook [-f|--filename <name>] [-l|--lite] [--] <expression>

The object <expression> evaluates to must have two methods:

	QuickLookDebugData() []byte
	QuickLookDebugFilename() string

Both are called in the stopped process, with breakpoints disabled, on the
selected goroutine and frame. The returned bytes are saved to
<temp-dir>/<target>/<filename> and the file is opened with Quick Look in
Finder. The lite previewer is used instead when GUI scripting is not
enabled or the "lite" option is set.

	-f, --filename	use this file name instead of calling QuickLookDebugFilename
	-l, --lite	use the lite previewer

When options are given they must be followed by a standalone "--":

	quicklook -f shot.png -- img`},
		{aliases: []string{"ql"}, group: quickLookCmds, cmdFn: quickLookLiteCmd, helpMsg: `Saves the data of an object and opens it with the lite previewer.

	ql [-f|--filename <name>] [--] <expression>

See "help quicklook".`},
		{aliases: []string{"print", "p"}, group: dataCmds, cmdFn: printVar, helpMsg: `Evaluate an expression.

	print <expression>

The expression is evaluated in the selected frame.`},
		{aliases: []string{"stack", "bt"}, group: stackCmds, cmdFn: stackCommand, helpMsg: `Print stack trace.

	stack [<depth>]`},
		{aliases: []string{"frame"}, group: stackCmds,
			cmdFn: func(t *Term, ctx callContext, arg string) error {
				return c.frameCommand(t, ctx, arg, frameSet)
			},
			helpMsg: `Set the current frame.

	frame <m>
	frame <m> <command>

The first form sets the current frame, the second runs the command on frame <m>.
The current frame is used to evaluate the expressions of print, quicklook and ql.`},
		{aliases: []string{"up"}, group: stackCmds,
			cmdFn: func(t *Term, ctx callContext, arg string) error {
				return c.frameCommand(t, ctx, arg, frameUp)
			},
			helpMsg: `Move the current frame up.

	up [<m>]
	up [<m>] <command>

Move the current frame up by <m>. The second form runs the command on the given frame.`},
		{aliases: []string{"down"}, group: stackCmds,
			cmdFn: func(t *Term, ctx callContext, arg string) error {
				return c.frameCommand(t, ctx, arg, frameDown)
			},
			helpMsg: `Move the current frame down.

	down [<m>]
	down [<m>] <command>

Move the current frame down by <m>. The second form runs the command on the given frame.`},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of dlv-ql commands.

	source <path>

If path ends with the .star extension it will be interpreted as a starlark script.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit dlv-ql.

	exit [-c|--continue]

The target process is left stopped. With -c it is resumed before
disconnecting.`},
	}
	for i := range c.cmds {
		c.cmds[i].builtinAliases = slices.Clone(c.cmds[i].aliases)
	}
	return c
}

func (c *Commands) lookup(name string) *command {
	for i := range c.cmds {
		if slices.Contains(c.cmds[i].aliases, name) {
			return &c.cmds[i]
		}
	}
	return nil
}

// Register adds a command, or replaces the command already answering to
// name.
func (c *Commands) Register(name string, cf cmdfunc, helpMsg string) {
	if cmd := c.lookup(name); cmd != nil {
		cmd.cmdFn, cmd.helpMsg = cf, helpMsg
		return
	}
	c.cmds = append(c.cmds, command{aliases: []string{name}, builtinAliases: []string{name}, cmdFn: cf, helpMsg: helpMsg})
}

// Find returns the function of the command answering to name. An empty
// name does nothing, an unknown one fails with errNoCmd.
func (c *Commands) Find(name string) cmdfunc {
	if name == "" {
		return nullCommand
	}
	if cmd := c.lookup(name); cmd != nil {
		return cmd.cmdFn
	}
	return noCmdAvailable
}

// CallWithContext runs the command line cmdstr in ctx.
func (c *Commands) CallWithContext(cmdstr string, t *Term, ctx callContext) error {
	name, args, _ := strings.Cut(strings.TrimSpace(cmdstr), " ")
	return c.Find(name)(t, ctx, strings.TrimSpace(args))
}

// Call runs the command line cmdstr on the selected frame.
func (c *Commands) Call(cmdstr string, t *Term) error {
	return c.CallWithContext(cmdstr, t, callContext{Scope: api.EvalScope{GoroutineID: -1, Frame: c.frame}})
}

// Merge replaces the user defined aliases of every command with the ones
// in allAliases, keyed by command name.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		cmd := &c.cmds[i]
		cmd.aliases = append(slices.Clone(cmd.builtinAliases), allAliases[cmd.builtinAliases[0]]...)
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, ctx callContext, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, ctx callContext, args string) error {
	return nil
}

func (c *Commands) help(t *Term, ctx callContext, args string) error {
	if args != "" {
		cmd := c.lookup(args)
		if cmd == nil {
			return errNoCmd
		}
		fmt.Fprintln(t.stdout, cmd.helpMsg)
		return nil
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := tabwriter.NewWriter(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			summary, _, _ := strings.Cut(cmd.helpMsg, "\n")
			name := cmd.aliases[0]
			if len(cmd.aliases) > 1 {
				name += " (alias: " + strings.Join(cmd.aliases[1:], " | ") + ")"
			}
			fmt.Fprintf(w, "    %s \t %s\n", name, summary)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func split2PartsBySpace(s string) []string {
	v := strings.SplitN(s, " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}

// frameCommand implements frame, up and down. With a trailing command it
// runs the command on the frame without selecting it.
func (c *Commands) frameCommand(t *Term, ctx callContext, argstr string, direction frameDirection) error {
	if argstr == "" && direction == frameSet {
		return errors.New("not enough arguments")
	}
	n, rest := 1, ""
	if argstr != "" {
		v := split2PartsBySpace(argstr)
		var err error
		if n, err = strconv.Atoi(v[0]); err != nil {
			return err
		}
		if len(v) == 2 {
			rest = v[1]
		}
	}

	frame := n
	switch direction {
	case frameUp:
		frame = c.frame + n
	case frameDown:
		frame = c.frame - n
	}
	if frame < 0 {
		return fmt.Errorf("invalid frame %d", frame)
	}
	if rest != "" {
		ctx.Scope.Frame = frame
		return c.CallWithContext(rest, t, ctx)
	}

	stack, err := t.client.Stacktrace(ctx.Scope.GoroutineID, frame, 0, nil)
	if err != nil {
		return err
	}
	if frame >= len(stack) {
		return fmt.Errorf("invalid frame %d", frame)
	}
	c.frame = frame
	loc := stack[frame]
	t.Println(fmt.Sprintf("Frame %d: ", frame), fmt.Sprintf("%s:%d (PC: %x)", loc.File, loc.Line, loc.PC))
	return nil
}

func printVar(t *Term, ctx callContext, args string) error {
	if args == "" {
		return errors.New("not enough arguments")
	}
	v, err := t.client.EvalVariable(ctx.Scope, args, t.loadConfig())
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, v.MultilineString(""))
	return nil
}

func stackCommand(t *Term, ctx callContext, args string) error {
	depth := 10
	if args != "" {
		var err error
		depth, err = strconv.Atoi(args)
		if err != nil || depth < 0 {
			return fmt.Errorf("depth must be a positive number")
		}
	}
	stack, err := t.client.Stacktrace(ctx.Scope.GoroutineID, depth, 0, nil)
	if err != nil {
		return err
	}
	printStack(t, stack)
	return nil
}

func printStack(t *Term, stack []api.Stackframe) {
	width := len(strconv.Itoa(max(len(stack)-1, 0)))
	pad := strings.Repeat(" ", width+2)
	for i, f := range stack {
		if f.Err != "" {
			fmt.Fprintf(t.stdout, "%serror: %s\n", pad, f.Err)
			continue
		}
		name := "(nil)"
		if f.Function != nil {
			name = f.Function.Name()
		}
		fmt.Fprintf(t.stdout, "%*d  0x%016x in %s\n", width, i, f.PC, name)
		fmt.Fprintf(t.stdout, "%sat %s:%d\n", pad, f.File, f.Line)
	}
}

func (c *Commands) sourceCommand(t *Term, ctx callContext, args string) error {
	if args == "" {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}
	if filepath.Ext(args) == ".star" {
		src, err := afero.ReadFile(t.fs, args)
		if err != nil {
			return err
		}
		_, err = t.starlarkEnv.Execute(args, src, "main", nil)
		return err
	}
	return c.executeFile(t, args)
}

// ExitRequestError is returned by the exit command.
type ExitRequestError struct {
	// Continue resumes the target when disconnecting.
	Continue bool
}

func (ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, ctx callContext, args string) error {
	switch args {
	case "":
		return ExitRequestError{}
	case "-c", "--continue":
		return ExitRequestError{Continue: true}
	}
	return fmt.Errorf("unknown argument %q to exit", args)
}

// executeFile runs the commands in the file name, one per line. Blank
// lines and lines starting with # are skipped. A failing command is
// reported with its line number and does not stop the file, exit does.
func (c *Commands) executeFile(t *Term, name string) error {
	f, err := t.fs.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for lineno := 1; s.Scan(); lineno++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := c.Call(line, t)
		var exit ExitRequestError
		switch {
		case errors.As(err, &exit):
			return err
		case err != nil:
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}
	return s.Err()
}
