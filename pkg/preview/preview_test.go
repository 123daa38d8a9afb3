package preview

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	runs     [][]string
	stdin    []string
	starts   [][]string
	runErr   error
	startErr error
	waited   chan struct{}
}

func (r *fakeRunner) Run(argv []string, stdin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, argv)
	r.stdin = append(r.stdin, stdin)
	return r.runErr
}

func (r *fakeRunner) Start(argv []string) (func() error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.starts = append(r.starts, argv)
	return func() error {
		close(r.waited)
		return errors.New("exit status 1")
	}, nil
}

func withFullSupported(t *testing.T, v bool) {
	old := fullSupported
	fullSupported = v
	t.Cleanup(func() { fullSupported = old })
}

func newTestLauncher(t *testing.T, marker bool) (*Launcher, *fakeRunner) {
	dir := t.TempDir()
	markerPath := filepath.Join(dir, ".AccessibilityAPIEnabled")
	if marker {
		require.NoError(t, os.WriteFile(markerPath, nil, 0o644))
	}
	r := &fakeRunner{waited: make(chan struct{})}
	l := New(markerPath, []string{"qlmanage", "-p"})
	l.Runner = r
	return l, r
}

func TestOpenFull(t *testing.T) {
	withFullSupported(t, true)
	l, r := newTestLauncher(t, true)

	require.NoError(t, l.Open("/tmp/MyApp/shot.png", false))
	require.Len(t, r.runs, 1)
	assert.Equal(t, []string{"osascript", "-"}, r.runs[0])
	assert.Contains(t, r.stdin[0], `set theFile to ("/tmp/MyApp/shot.png" as POSIX file)`)
	assert.Contains(t, r.stdin[0], `keystroke "y" using command down`)
	assert.Empty(t, r.starts)
}

func TestOpenFullError(t *testing.T) {
	withFullSupported(t, true)
	l, r := newTestLauncher(t, true)
	r.runErr = errors.New("osascript: exit status 1")

	require.EqualError(t, l.Open("/tmp/MyApp/shot.png", false), "osascript: exit status 1")
}

func TestOpenFallsBackWithoutMarker(t *testing.T) {
	withFullSupported(t, true)
	l, r := newTestLauncher(t, false)

	require.NoError(t, l.Open("/tmp/MyApp/shot.png", false))
	assert.Empty(t, r.runs)
	require.Len(t, r.starts, 1)
	assert.Equal(t, []string{"qlmanage", "-p", "/tmp/MyApp/shot.png"}, r.starts[0])
	<-r.waited
}

func TestOpenLite(t *testing.T) {
	withFullSupported(t, true)
	l, r := newTestLauncher(t, true)

	require.NoError(t, l.Open("/tmp/MyApp/shot.png", true))
	assert.Empty(t, r.runs)
	require.Len(t, r.starts, 1)
	<-r.waited
}

func TestOpenUnsupportedPlatform(t *testing.T) {
	withFullSupported(t, false)
	l, r := newTestLauncher(t, true)

	require.NoError(t, l.Open("/tmp/MyApp/shot.png", false))
	assert.Empty(t, r.runs)
	require.Len(t, r.starts, 1)
	<-r.waited
}

func TestOpenLiteStartError(t *testing.T) {
	l, r := newTestLauncher(t, false)
	r.startErr = errors.New(`exec: "qlmanage": executable file not found in $PATH`)

	require.Error(t, l.Open("/tmp/MyApp/shot.png", true))
}

func TestFinderScriptQuoting(t *testing.T) {
	s := finderScript(`/tmp/a "b"\c.png`)
	first := strings.SplitN(s, "\n", 2)[0]
	assert.Equal(t, `set theFile to ("/tmp/a \"b\"\\c.png" as POSIX file)`, first)
}

func TestDefaultLiteCommand(t *testing.T) {
	l := New("", nil)
	assert.Equal(t, defaultLiteCommand, l.LiteCommand)
	assert.False(t, l.fullAvailable())
}
