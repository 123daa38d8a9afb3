package cmds

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/go-delve/quicklook/pkg/config"
	"github.com/go-delve/quicklook/pkg/logflags"
	"github.com/go-delve/quicklook/pkg/preview"
	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/pkg/session"
	"github.com/go-delve/quicklook/pkg/terminal"
	"github.com/go-delve/quicklook/pkg/version"
	"github.com/go-delve/quicklook/service"
	"github.com/go-delve/quicklook/service/rpc2"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string
	// tempDir overrides the temp-dir option of the configuration file.
	tempDir string

	// options of the exec subcommand
	execFilename string
	execLite     bool
	execFrame    int

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

// newClient connects to the headless instance listening at addr.
var newClient = func(addr string) (service.Client, error) {
	client, err := rpc2.NewClient(addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newPreviewer returns the previewer used by the exec subcommand.
var newPreviewer = func(conf *config.Config) quicklook.Previewer {
	return preview.New(conf.GetAccessibilityMarker(), conf.PreviewArgv())
}

// outFs receives the files saved by the exec subcommand.
var outFs = afero.NewOsFs()

var errMissingSeparator = errors.New("options must be separated from the expression by --")

const dlvQLCommandLongDesc = `dlv-ql saves and previews the data of objects held by a Go program
stopped under a headless Delve instance.

An object takes part by implementing two methods:

	func (x *T) QuickLookDebugData() []byte
	func (x *T) QuickLookDebugFilename() string

Start the program with 'dlv debug --headless --accept-multiclient' (or any
other headless mode) and connect to it:

` + "`dlv-ql connect 127.0.0.1:2345`" + `

The data is written to <temp-dir>/<target>/<file name> and opened with the
platform's file preview.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	var err error
	conf, err = config.LoadConfig()
	if err != nil && !docCall {
		fmt.Fprintf(os.Stderr, "Unable to load configuration: %v\n", err)
	}

	// Main dlv-ql root command.
	rootCommand = &cobra.Command{
		Use:           "dlv-ql",
		Short:         "Quick look at the data of Go objects in a Delve session.",
		Long:          dlvQLCommandLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logflags.Setup(log, logOutput, logDest); err != nil {
				return err
			}
			if tempDir != "" {
				conf.TempDir = tempDir
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'dlv-ql help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'dlv-ql help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "Directory under which extracted data is saved.")

	// 'connect' subcommand.
	connectCommand := &cobra.Command{
		Use:   "connect addr",
		Short: "Connect to a headless debug server.",
		Long: `Connect to a running headless debug server and start an interactive
prompt offering the quicklook commands.

Leaving the prompt disconnects without resuming or killing the target.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errors.New("you must provide an address as the first argument")
			}
			return nil
		},
		Run: connectCmd,
	}
	rootCommand.AddCommand(connectCommand)

	// 'exec' subcommand.
	execCommand := &cobra.Command{
		Use:   "exec addr [-f name] [-l] [--frame n] -- <expression>",
		Short: "Save and preview the data of one object, then disconnect.",
		Long: `Connect to a running headless debug server, save the data of the object
denoted by <expression> and open the preview.

When options are given the expression must follow a standalone '--'.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return errors.New("you must provide an address as the first argument")
			}
			if len(args) < 2 {
				return errors.New("you must provide an expression")
			}
			return nil
		},
		RunE: execCmd,
	}
	execCommand.Flags().StringVarP(&execFilename, "filename", "f", "", "Name of the saved file, instead of the one returned by QuickLookDebugFilename.")
	execCommand.Flags().BoolVarP(&execLite, "lite", "l", false, "Open the lightweight previewer.")
	execCommand.Flags().IntVar(&execFrame, "frame", 0, "Frame of the selected goroutine the expression is evaluated in.")
	rootCommand.AddCommand(execCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dlv-ql\n%s\n", version.QuickLookVersion)
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolP("verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	rpc		Log all RPC messages
	session		Log accessor calls and memory reads
	preview		Log previewer invocations
	terminal	Log terminal commands

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func connectCmd(cmd *cobra.Command, args []string) {
	os.Exit(connect(args[0], conf))
}

func connect(addr string, conf *config.Config) int {
	client, err := newClient(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", addr, err)
		return 1
	}
	if client.IsMulticlient() {
		state, _ := client.GetStateNonBlocking()
		// A running target has to be stopped before accessors can be
		// called.
		if state != nil && state.Running {
			_, err := client.Halt()
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not halt: %v", err)
				return 1
			}
		}
	}
	term := terminal.New(client, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}

func execCmd(cmd *cobra.Command, args []string) error {
	expr, err := execExpression(cmd, args)
	if err != nil {
		return err
	}
	client, err := newClient(args[0])
	if err != nil {
		return fmt.Errorf("could not connect to %s: %v", args[0], err)
	}
	defer client.Disconnect(false)

	opts := quicklook.Options{Filename: execFilename, Lite: execLite || conf.Lite}
	_, err = runQuickLook(client, conf, cmd.OutOrStdout(), expr, execFrame, opts)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Command failed: %s\n", err)
	}
	return err
}

// execExpression returns the expression of the exec subcommand. Options
// are only accepted when the expression follows a standalone "--".
func execExpression(cmd *cobra.Command, args []string) (string, error) {
	dash := cmd.ArgsLenAtDash()
	optionsSet := cmd.Flags().Changed("filename") || cmd.Flags().Changed("lite") || cmd.Flags().Changed("frame")
	switch {
	case dash < 0 && optionsSet:
		return "", errMissingSeparator
	case dash > 1:
		return "", fmt.Errorf("unexpected argument %q", args[1])
	}
	if cmd.Flags().Changed("filename") && strings.TrimSpace(execFilename) == "" {
		return "", errors.New("empty file name")
	}
	expr := strings.TrimSpace(strings.Join(args[1:], " "))
	if expr == "" {
		return "", errors.New("you must provide an expression")
	}
	return expr, nil
}

func runQuickLook(client service.Client, conf *config.Config, out io.Writer, expr string, frame int, opts quicklook.Options) (string, error) {
	s := session.New(client, session.Config{
		Frame:        frame,
		MaxStringLen: conf.GetMaxStringLen(),
		UnsafeCall:   conf.UnsafeCall,
	})
	qlcmd := &quicklook.Command{
		Extractor: &quicklook.Extractor{Session: s, TempDir: conf.GetTempDir(), Fs: outFs},
		Previewer: newPreviewer(conf),
	}
	return qlcmd.Run(out, expr, opts)
}
