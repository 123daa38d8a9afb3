package terminal

import (
	"errors"
	"fmt"
	"io"
	"net/rpc"
	"os"
	"os/signal"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"

	"github.com/go-delve/quicklook/pkg/config"
	"github.com/go-delve/quicklook/pkg/logflags"
	"github.com/go-delve/quicklook/pkg/preview"
	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/pkg/session"
	"github.com/go-delve/quicklook/pkg/terminal/starbind"
	"github.com/go-delve/quicklook/service"
	"github.com/go-delve/quicklook/service/api"
)

const (
	historyFile                 string = ".dbg_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const ansiBlue = 34

// Term represents the terminal running dlv-ql.
type Term struct {
	client      service.Client
	conf        *config.Config
	prompt      string
	line        *liner.State
	cmds        *Commands
	dumb        bool
	stdout      io.Writer
	InitFile    string
	starlarkEnv *starbind.Env

	// fs receives the files saved by the quick look commands.
	fs        afero.Fs
	previewer quicklook.Previewer

	// quitting is set when the user disconnects from SIGINT.
	quitting atomic.Bool
}

// New returns a new Term.
func New(client service.Client, conf *config.Config) *Term {
	cmds := DebugCommands(client)
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	var w io.Writer

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	prompt := "(dlv-ql) "
	if conf.Prompt != "" {
		prompt = conf.Prompt
	}

	t := &Term{
		client:    client,
		conf:      conf,
		prompt:    prompt,
		line:      liner.NewLiner(),
		cmds:      cmds,
		dumb:      dumb,
		stdout:    w,
		fs:        afero.NewOsFs(),
		previewer: preview.New(conf.GetAccessibilityMarker(), conf.PreviewArgv()),
	}
	t.starlarkEnv = starbind.New(starlarkContext{t}, t.stdout)
	return t
}

// Close restores the terminal mode changed by the prompt.
func (t *Term) Close() {
	t.line.Close()
}

// sigintGuard interrupts the running script and stops the target on
// SIGINT. Clients of a multi-client server may instead disconnect and
// leave the target running.
func (t *Term) sigintGuard(ch <-chan os.Signal, multiClient bool) {
	for range ch {
		t.starlarkEnv.Cancel()
		if !multiClient {
			fmt.Fprintln(t.stdout, "received SIGINT, stopping process (will not forward signal)")
			t.report(t.halt())
			continue
		}
		answer, err := t.line.Prompt("Would you like to [s]top the target or [q]uit this client, leaving the target running [s/q]? ")
		if err != nil {
			t.report(err)
			continue
		}
		switch strings.TrimSpace(answer) {
		case "s":
			t.report(t.halt())
		case "q":
			t.quitting.Store(true)
			if err := t.client.Disconnect(false); err != nil {
				t.report(err)
				continue
			}
			t.Close()
		default:
			fmt.Fprintln(t.stdout, "only s or q allowed")
		}
	}
}

func (t *Term) halt() error {
	_, err := t.client.Halt()
	return err
}

func (t *Term) report(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// Run reads and executes commands until exit or the end of the input. It
// returns the exit status of dlv-ql.
func (t *Term) Run() (int, error) {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch, t.client.IsMulticlient())

	t.line.SetCompleter(t.completer())
	t.loadHistory()
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		var exit ExitRequestError
		switch {
		case errors.As(err, &exit):
			return t.handleExit(exit.Continue)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(t.stdout, "exit")
			return t.handleExit(false)
		}
		if err != nil {
			return 1, errors.New("prompt for input failed")
		}

		err = t.cmds.Call(cmdstr, t)
		var exit ExitRequestError
		switch {
		case err == nil:
		case errors.As(err, &exit):
			return t.handleExit(exit.Continue)
		case isErrProcessExited(err):
			// the target is gone but other commands, like config, still work
			fmt.Fprintln(os.Stderr, err)
		case t.quitting.Load():
			return t.handleExit(false)
		default:
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// completer completes command names and aliases.
func (t *Term) completer() liner.Completer {
	names := trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			names.Add(alias, nil)
		}
	}
	return func(line string) []string {
		if strings.Contains(line, " ") {
			return nil
		}
		c := names.PrefixSearch(strings.ToLower(line))
		sort.Strings(c)
		return c
	}
}

// Println prints prefix, highlighted unless the terminal is dumb, followed
// by str.
func (t *Term) Println(prefix, str string) {
	if !t.dumb {
		prefix = fmt.Sprintf(terminalHighlightEscapeCode, ansiBlue) + prefix + terminalResetEscapeCode
	}
	fmt.Fprintln(t.stdout, prefix+str)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

func (t *Term) loadHistory() {
	path, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(t.stdout, "Unable to load history file: %v.\n", err)
		return
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		fmt.Fprintf(t.stdout, "Unable to open history file: %v. History will not be saved for this session.\n", err)
		return
	}
	defer f.Close()
	if _, err := t.line.ReadHistory(f); err != nil {
		logflags.TerminalLogger().Warnf("reading history: %v", err)
	}
}

func (t *Term) saveHistory() {
	path, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintln(t.stdout, "Error saving history file:", err)
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		fmt.Fprintln(t.stdout, "Error saving history file:", err)
		return
	}
	defer f.Close()
	if _, err := t.line.WriteHistory(f); err != nil {
		fmt.Fprintln(t.stdout, "readline history error:", err)
	}
}

// handleExit saves the history and disconnects from the server. The
// target is left stopped unless cont is set, it belongs to whoever
// started the server.
func (t *Term) handleExit(cont bool) (int, error) {
	t.saveHistory()
	if t.quitting.Load() {
		return 0, nil
	}
	if err := t.client.Disconnect(cont); err != nil {
		return 1, err
	}
	return 0, nil
}

// loadConfig is the load configuration of print, adjusted by the
// max-string-len and max-array-values settings.
func (t *Term) loadConfig() api.LoadConfig {
	cfg := api.LoadConfig{FollowPointers: true, MaxVariableRecurse: 1, MaxStringLen: 64, MaxArrayValues: 64, MaxStructFields: -1}
	if t.conf == nil {
		return cfg
	}
	if n := t.conf.MaxStringLen; n != nil {
		cfg.MaxStringLen = *n
	}
	if n := t.conf.MaxArrayValues; n != nil {
		cfg.MaxArrayValues = *n
	}
	return cfg
}

// quickLook saves the data of the object expr evaluates to in the frame
// selected by scope and previews it.
func (t *Term) quickLook(scope api.EvalScope, expr string, opts quicklook.Options) (string, error) {
	s := session.New(t.client, session.Config{
		Frame:        scope.Frame,
		MaxStringLen: t.conf.GetMaxStringLen(),
		UnsafeCall:   t.conf.UnsafeCall,
	})
	cmd := &quicklook.Command{
		Extractor: &quicklook.Extractor{Session: s, TempDir: t.conf.GetTempDir(), Fs: t.fs},
		Previewer: t.previewer,
	}
	logflags.TerminalLogger().Debugf("quicklook %q frame=%d lite=%v", expr, scope.Frame, opts.Lite)
	return cmd.Run(t.stdout, expr, opts)
}

// resetPreviewer replaces the previewer after a change of its
// configuration.
func (t *Term) resetPreviewer() {
	if _, ok := t.previewer.(*preview.Launcher); ok {
		t.previewer = preview.New(t.conf.GetAccessibilityMarker(), t.conf.PreviewArgv())
	}
}

var processExitedRegex = regexp.MustCompile(`Process \d+ has exited with status \d+`)

// isErrProcessExited reports whether err carries the error the server
// returns for a target that has exited.
func isErrProcessExited(err error) bool {
	var rpcError rpc.ServerError
	return errors.As(err, &rpcError) && processExitedRegex.MatchString(string(rpcError))
}
