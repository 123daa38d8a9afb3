package quicklook

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/go-delve/quicklook/pkg/logflags"
)

const (
	// DataAccessor is the method returning the bytes to save.
	DataAccessor = "QuickLookDebugData"
	// FilenameAccessor is the method returning the name of the saved file.
	FilenameAccessor = "QuickLookDebugFilename"
)

// Session is the debugger context an extraction runs against. It replaces
// the debugger's selected target, process, thread and frame.
type Session interface {
	// Target returns the name of the debugged target. It fails with
	// ErrNoTarget if there is no target or its process can not be inspected.
	Target() (string, error)
	// Object binds expr to the selected frame, or to the whole target when
	// no frame is selected. Accessors are evaluated with breakpoints
	// disabled.
	Object(expr string) Provider
	// ReadMemory reads length bytes starting at addr.
	ReadMemory(addr uint64, length int) ([]byte, error)
}

// Provider is an object that takes part in quick look.
type Provider interface {
	// DebugData evaluates the data accessor.
	DebugData() (Data, error)
	// DebugFilename evaluates the filename accessor.
	DebugFilename() (string, error)
}

// Data is a handle to a byte buffer living in the stopped process. It is
// only valid while the process stays stopped.
type Data interface {
	// Nil reports whether the accessor returned a nil buffer.
	Nil() bool
	// Len returns the number of bytes in the buffer.
	Len() (int64, error)
	// Bytes returns the address of the first byte of the buffer.
	Bytes() (uint64, error)
}

// Options configures a single invocation.
type Options struct {
	// Filename overrides the name returned by the filename accessor.
	Filename string
	// Lite selects the lightweight previewer.
	Lite bool
}

// Extractor copies the data of an object into a file.
type Extractor struct {
	Session Session
	// TempDir is the root of the per-target directories.
	TempDir string
	// Fs is the filesystem files are written to.
	Fs afero.Fs
}

// NewExtractor returns an Extractor writing to the OS filesystem.
func NewExtractor(s Session, tempDir string) *Extractor {
	return &Extractor{Session: s, TempDir: tempDir, Fs: afero.NewOsFs()}
}

// Extract evaluates the accessors of the object described by expr and
// writes its data to <TempDir>/<target>/<filename>, replacing any file
// already there. It returns the path of the written file.
func (e *Extractor) Extract(expr string, opts Options) (string, error) {
	if strings.TrimSpace(expr) == "" {
		return "", &DebuggerError{Msg: "no expression provided"}
	}
	logger := logflags.SessionLogger().WithField("expr", expr)

	target, err := e.Session.Target()
	if err != nil {
		var dbgErr *DebuggerError
		if errors.As(err, &dbgErr) {
			return "", err
		}
		return "", wrap(ErrNoTarget, err)
	}
	if target == "" {
		return "", ErrNoTarget
	}

	obj := e.Session.Object(expr)

	data, err := obj.DebugData()
	if err != nil {
		return "", evalError(DataAccessor, err)
	}
	if data == nil || data.Nil() {
		return "", ErrNilData
	}

	length, err := data.Len()
	if err != nil {
		return "", evalError("length of "+DataAccessor, err)
	}
	if length < 0 {
		return "", wrap(ErrReadMemory, fmt.Errorf("invalid length %d", length))
	}

	buf := []byte{}
	if length > 0 {
		addr, err := data.Bytes()
		if err != nil {
			return "", evalError("bytes of "+DataAccessor, err)
		}
		logger.Debugf("reading %d bytes at %#x", length, addr)
		buf, err = e.Session.ReadMemory(addr, int(length))
		if err != nil {
			return "", wrap(ErrReadMemory, err)
		}
		if int64(len(buf)) != length {
			return "", wrap(ErrReadMemory, fmt.Errorf("short read: %d of %d bytes", len(buf), length))
		}
	}

	filename := opts.Filename
	if filename == "" {
		filename, err = obj.DebugFilename()
		if err != nil {
			logger.Debugf("%s failed: %v", FilenameAccessor, err)
			return "", wrap(ErrNoFilename, err)
		}
	}
	if strings.TrimSpace(filename) == "" {
		return "", ErrNoFilename
	}

	dir := filepath.Join(e.TempDir, target)
	if err := e.Fs.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if err := afero.WriteFile(e.Fs, path, buf, 0644); err != nil {
		return "", err
	}
	logger.Debugf("wrote %d bytes to %s", len(buf), path)
	return path, nil
}

// Previewer opens a saved file.
type Previewer interface {
	Open(path string, lite bool) error
}

// Command chains an extraction and the preview of its result.
type Command struct {
	Extractor *Extractor
	Previewer Previewer
}

// Run extracts the data of expr, prints a confirmation to out and opens
// the file with the previewer. A failure of the previewer is returned
// after the confirmation was printed, together with the path.
func (c *Command) Run(out io.Writer, expr string, opts Options) (string, error) {
	path, err := c.Extractor.Extract(expr, opts)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Data written to %s\n", path)
	if c.Previewer == nil {
		return path, nil
	}
	if err := c.Previewer.Open(path, opts.Lite); err != nil {
		return path, fmt.Errorf("could not open preview: %w", err)
	}
	return path, nil
}
