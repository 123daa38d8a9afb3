// Package preview opens extracted files in the host's previewer.
package preview

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-delve/quicklook/pkg/logflags"
)

// Runner runs external commands.
type Runner interface {
	// Run runs argv to completion with stdin as its standard input.
	Run(argv []string, stdin string) error
	// Start starts argv and returns without waiting for it to exit. The
	// returned function waits for it.
	Start(argv []string) (wait func() error, err error)
}

// Launcher opens files with the full previewer when GUI scripting is
// available and with the lite previewer otherwise.
type Launcher struct {
	// Marker is the file whose presence enables the full previewer.
	Marker string
	// LiteCommand is the lite previewer, the path of the file is appended
	// to it.
	LiteCommand []string
	// Runner runs the previewers.
	Runner Runner

	log logflags.Logger
}

// New returns a Launcher for the current platform. A non empty
// liteCommand replaces the platform's lite previewer.
func New(marker string, liteCommand []string) *Launcher {
	if len(liteCommand) == 0 {
		liteCommand = defaultLiteCommand
	}
	return &Launcher{
		Marker:      marker,
		LiteCommand: liteCommand,
		Runner:      execRunner{},
		log:         logflags.PreviewLogger(),
	}
}

// Open previews path. Unless lite is set the full previewer is used when
// available, it runs to completion. The lite previewer is started and
// left running.
func (l *Launcher) Open(path string, lite bool) error {
	if l.log == nil {
		l.log = logflags.PreviewLogger()
	}
	if !lite && l.fullAvailable() {
		l.log.Debugf("opening %s in Finder", path)
		return l.Runner.Run([]string{"osascript", "-"}, finderScript(path))
	}
	return l.openLite(path)
}

func (l *Launcher) fullAvailable() bool {
	if !fullSupported || l.Marker == "" {
		return false
	}
	ok := markerExists(l.Marker)
	if !ok {
		l.log.Debugf("%s not found, using the lite previewer", l.Marker)
	}
	return ok
}

func (l *Launcher) openLite(path string) error {
	if len(l.LiteCommand) == 0 {
		return errors.New("no previewer configured")
	}
	argv := make([]string, 0, len(l.LiteCommand)+1)
	argv = append(argv, l.LiteCommand...)
	argv = append(argv, path)
	l.log.Debugf("starting %s", strings.Join(argv, " "))
	wait, err := l.Runner.Start(argv)
	if err != nil {
		return err
	}
	go func() {
		if err := wait(); err != nil {
			l.log.Warnf("%s: %v", argv[0], err)
			return
		}
		l.log.Debugf("%s exited", argv[0])
	}()
	return nil
}

// finderScript returns an AppleScript program that reveals path in Finder
// and opens Quick Look on it.
func finderScript(path string) string {
	return fmt.Sprintf(`set theFile to (%s as POSIX file)
tell application "Finder"
	activate
	open (container of file theFile)
	select theFile
end tell
tell application "System Events" to keystroke "y" using command down
`, appleScriptString(path))
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

type execRunner struct{}

func (execRunner) Run(argv []string, stdin string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(stdin)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %v: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %v", argv[0], err)
	}
	return nil
}

func (execRunner) Start(argv []string) (func() error, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}
