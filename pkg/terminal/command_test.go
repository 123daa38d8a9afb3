package terminal

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-delve/quicklook/internal/fakeserver"
	"github.com/go-delve/quicklook/pkg/config"
	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/service/api"
)

type fakePreviewer struct {
	paths []string
	lite  []bool
	err   error
}

func (p *fakePreviewer) Open(path string, lite bool) error {
	p.paths = append(p.paths, path)
	p.lite = append(p.lite, lite)
	return p.err
}

type FakeTerminal struct {
	*Term
	t        testing.TB
	srv      *fakeserver.Server
	previews *fakePreviewer
}

func withTestTerminal(t *testing.T, conf *config.Config, fn func(*FakeTerminal)) {
	srv := fakeserver.NewServer()
	srv.SetData("(img)", 0xc000100000, []byte("\x89PNG"))
	srv.SetFilename("(img)", "shot.png")
	srv.SetVar(0, "n", &api.Variable{Name: "n", Kind: reflect.Int, Type: "int", Value: "3"})
	srv.Frames = []api.Stackframe{
		{Location: api.Location{PC: 0x4a1000, File: "/app/main.go", Line: 12, Function: &api.Function{Name_: "main.render"}}},
		{Location: api.Location{PC: 0x4a2000, File: "/app/main.go", Line: 30, Function: &api.Function{Name_: "main.main"}}},
		{Location: api.Location{PC: 0x43c000, File: "/usr/local/go/src/runtime/proc.go", Line: 250, Function: &api.Function{Name_: "runtime.main"}}},
	}

	term := New(srv.Client(t), conf)
	defer term.Close()
	term.dumb = true
	term.fs = afero.NewMemMapFs()
	previews := &fakePreviewer{}
	term.previewer = previews

	fn(&FakeTerminal{Term: term, t: t, srv: srv, previews: previews})
}

func (ft *FakeTerminal) Exec(cmdstr string) (string, error) {
	var buf bytes.Buffer
	stdout := ft.Term.stdout
	ft.Term.stdout = &buf
	ft.starlarkEnv.Redirect(&buf)
	defer func() {
		ft.Term.stdout = stdout
		ft.starlarkEnv.Redirect(stdout)
	}()
	err := ft.cmds.Call(cmdstr, ft.Term)
	return buf.String(), err
}

func (ft *FakeTerminal) ExecStarlark(starlarkProgram string) (string, error) {
	var buf bytes.Buffer
	stdout := ft.Term.stdout
	ft.Term.stdout = &buf
	ft.starlarkEnv.Redirect(&buf)
	defer func() {
		ft.Term.stdout = stdout
		ft.starlarkEnv.Redirect(stdout)
	}()
	_, err := ft.starlarkEnv.Execute("<stdin>", starlarkProgram, "main", nil)
	return buf.String(), err
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Errorf("output of %q: %q", cmdstr, outstr)
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func (ft *FakeTerminal) AssertExec(cmdstr, tgt string) {
	out := ft.MustExec(cmdstr)
	if out != tgt {
		ft.t.Fatalf("Error executing %q, expected %q got %q", cmdstr, tgt, out)
	}
}

func (ft *FakeTerminal) AssertExecError(cmdstr, tgterr string) {
	_, err := ft.Exec(cmdstr)
	if err == nil {
		ft.t.Fatalf("Expected error executing %q", cmdstr)
	}
	if err.Error() != tgterr {
		ft.t.Fatalf("Expected error %q executing %q, got error %q", tgterr, cmdstr, err.Error())
	}
}

func (ft *FakeTerminal) readFile(path string) []byte {
	b, err := afero.ReadFile(ft.fs, path)
	require.NoError(ft.t, err)
	return b
}

var shotPath = filepath.Join("/tmp", "MyApp", "shot.png")

func TestQuickLook(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.AssertExec("quicklook img", "Data written to "+shotPath+"\n")
		assert.Equal(t, []byte("\x89PNG"), term.readFile(shotPath))
		assert.Equal(t, []string{shotPath}, term.previews.paths)
		assert.Equal(t, []bool{false}, term.previews.lite)
		require.Len(t, term.srv.Calls, 2)
		assert.Equal(t, "(img).QuickLookDebugData()", term.srv.Calls[0].Expr)
		assert.Equal(t, "(img).QuickLookDebugFilename()", term.srv.Calls[1].Expr)
		assert.Equal(t, int64(1), term.srv.Calls[0].GoroutineID)
	})
}

func TestQuickLookOptions(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		path := filepath.Join("/tmp", "MyApp", "other.png")
		term.AssertExec("qlf -f other.png -l -- img", "Data written to "+path+"\n")
		assert.Equal(t, []bool{true}, term.previews.lite)
		require.Len(t, term.srv.Calls, 1)
		assert.Equal(t, "(img).QuickLookDebugData()", term.srv.Calls[0].Expr)

		term.MustExec("quicklook --filename=\"with space.png\" -- img")
		assert.Equal(t, []byte("\x89PNG"), term.readFile(filepath.Join("/tmp", "MyApp", "with space.png")))
	})
}

func TestQuickLookLite(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.AssertExec("ql img", "Data written to "+shotPath+"\n")
		assert.Equal(t, []bool{true}, term.previews.lite)

		_, err := term.Exec("ql -l -- img")
		var argErr *ArgError
		require.True(t, errors.As(err, &argErr))
	})
}

func TestQuickLookConfiguredLite(t *testing.T) {
	withTestTerminal(t, &config.Config{Lite: true}, func(term *FakeTerminal) {
		term.MustExec("quicklook img")
		assert.Equal(t, []bool{true}, term.previews.lite)
	})
}

func TestQuickLookTempDir(t *testing.T) {
	withTestTerminal(t, &config.Config{TempDir: "/var/ql"}, func(term *FakeTerminal) {
		term.AssertExec("quicklook img", "Data written to "+filepath.Join("/var/ql", "MyApp", "shot.png")+"\n")
	})
}

func TestQuickLookOptionsNeedSeparator(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		_, err := term.Exec("quicklook -f x.png img")
		var argErr *ArgError
		require.True(t, errors.As(err, &argErr))
		assert.Equal(t, "quicklook", argErr.Cmd)
		assert.Empty(t, term.srv.Calls)
		assert.Empty(t, term.previews.paths)
	})
}

func TestQuickLookErrors(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.AssertExecError("quicklook nope", "could not evaluate QuickLookDebugData: could not find symbol value for nope")

		term.srv.Objects["(img)"].Data.Base = 0
		term.srv.Objects["(img)"].Data.Len = 0
		term.AssertExecError("quicklook img", "can't get debug data, make sure the object has a non-nil response to QuickLookDebugData")

		term.srv.Objects["(img)"].Data.Base = 0xdead0000
		term.srv.Objects["(img)"].Data.Len = 4
		term.AssertExecError("quicklook img", "couldn't read memory: could not read memory at 0xdead0000: input/output error")

		term.srv.State.Exited = true
		_, err := term.Exec("quicklook img")
		require.ErrorIs(t, err, quicklook.ErrNoTarget)
		assert.Empty(t, term.previews.paths)
	})
}

func TestQuickLookNoFilename(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.srv.SetFilename("(img)", "")
		_, err := term.Exec("quicklook img")
		require.ErrorIs(t, err, quicklook.ErrNoFilename)

		term.srv.Objects["(img)"].Filename = nil
		_, err = term.Exec("quicklook img")
		require.ErrorIs(t, err, quicklook.ErrNoFilename)
	})
}

func TestQuickLookPreviewFailure(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.previews.err = errors.New(`exec: "qlmanage": executable file not found in $PATH`)
		out, err := term.Exec("quicklook img")
		require.Error(t, err)
		assert.Equal(t, "Data written to "+shotPath+"\n", out)
		assert.Equal(t, []byte("\x89PNG"), term.readFile(shotPath))
	})
}

func TestQuickLookIgnoresBreakpoints(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.srv.Breakpoints = []*api.Breakpoint{
			{ID: -1, Name: "unrecovered-panic"},
			{ID: 1, File: "/app/image.go", Line: 40},
			{ID: 2, File: "/app/image.go", Line: 52, Disabled: true},
		}
		term.srv.Objects["(img)"].Breakpoint = 1

		term.MustExec("quicklook img")
		for _, c := range term.srv.Calls {
			assert.Empty(t, c.Enabled, c.Expr)
		}
		assert.False(t, term.srv.Breakpoints[1].Disabled)
		assert.True(t, term.srv.Breakpoints[2].Disabled)
	})
}

func TestQuickLookLargeData(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		data := bytes.Repeat([]byte("0123456789"), 250)
		term.srv.SetData("(img)", 0xc000400000, data)
		term.MustExec("quicklook img")
		assert.Equal(t, data, term.readFile(shotPath))
		assert.Equal(t, []int{1000, 1000, 500}, term.srv.Reads)
	})
}

func TestQuickLookPanic(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.srv.Objects["(img)"].Panic = "index out of range"
		term.AssertExecError("quicklook img", `could not evaluate QuickLookDebugData: QuickLookDebugData panicked: "index out of range"`)
	})
}

func TestQuickLookFrame(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.srv.SetVar(1, "img", &api.Variable{Name: "img", Kind: reflect.Ptr, Type: "*main.Image", Children: []api.Variable{{OnlyAddr: true, Addr: 0xc0000a0000}}})
		term.srv.SetData("(*main.Image)(0xc0000a0000)", 0xc000300000, []byte("GIF8"))
		term.srv.SetFilename("(*main.Image)(0xc0000a0000)", "caller.gif")

		term.AssertExec("frame 1", "Frame 1: /app/main.go:30 (PC: 4a2000)\n")
		term.MustExec("quicklook img")
		assert.Equal(t, []byte("GIF8"), term.readFile(filepath.Join("/tmp", "MyApp", "caller.gif")))

		term.AssertExecError("frame 5", "invalid frame 5")
		term.MustExec("down")
		term.AssertExec("quicklook img", "Data written to "+shotPath+"\n")

		term.MustExec("up 1 quicklook -f up.gif -- img")
		assert.Equal(t, []byte("GIF8"), term.readFile(filepath.Join("/tmp", "MyApp", "up.gif")))
		assert.Equal(t, 0, term.cmds.frame)
	})
}

func TestPrintAndStack(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		term.AssertExec("print n", "3\n")
		term.AssertExec("p n", "3\n")
		term.AssertExecError("print", "not enough arguments")

		out := term.MustExec("stack")
		assert.Contains(t, out, "0  0x00000000004a1000 in main.render\n   at /app/main.go:12\n")
		assert.Contains(t, out, "2  0x000000000043c000 in runtime.main\n")
	})
}

func TestHelp(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		out := term.MustExec("help")
		assert.Contains(t, out, "Saving and previewing object data:")
		assert.Contains(t, out, "quicklook (alias: qlf)")
		assert.Contains(t, term.MustExec("help qlf"), "QuickLookDebugFilename() string")
		term.AssertExecError("help nope", "command not available")
		term.AssertExecError("nope", "command not available")
	})
}

func TestConfigCommand(t *testing.T) {
	withTestTerminal(t, &config.Config{}, func(term *FakeTerminal) {
		term.MustExec("config lite true")
		assert.True(t, term.conf.Lite)
		term.MustExec("config max-string-len 200")
		assert.Equal(t, 200, term.conf.GetMaxStringLen())
		term.MustExec("config temp-dir /var/tmp/ql")
		assert.Equal(t, "/var/tmp/ql", term.conf.GetTempDir())
		term.AssertExecError("config nope 1", `"nope" is not a configuration parameter`)

		out := term.MustExec("config -list")
		assert.Contains(t, out, "lite")
		assert.Contains(t, out, `"/var/tmp/ql"`)

		term.MustExec("config alias quicklook look")
		term.MustExec("look img")
		assert.Equal(t, []bool{true}, term.previews.lite)
	})
}

func TestSourceCommandFile(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		path := filepath.Join("/home/gopher", "cmds")
		require.NoError(t, afero.WriteFile(term.fs, path, []byte("# save the image\nquicklook -f from-file.png -- img\nprint missing\n"), 0o600))

		out := term.MustExec("source " + path)
		assert.Contains(t, out, "Data written to "+filepath.Join("/tmp", "MyApp", "from-file.png"))
		assert.Contains(t, out, path+":3: ")
	})
}

func TestExit(t *testing.T) {
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		_, err := term.Exec("exit")
		assert.IsType(t, ExitRequestError{}, err)
		_, err = term.Exec("q")
		assert.IsType(t, ExitRequestError{}, err)
		_, err = term.Exec("exit -c")
		assert.Equal(t, ExitRequestError{Continue: true}, err)
		term.AssertExecError("exit now", `unknown argument "now" to exit`)
	})
}

func TestExitContinue(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	withTestTerminal(t, nil, func(term *FakeTerminal) {
		status, err := term.handleExit(true)
		require.NoError(t, err)
		assert.Equal(t, 0, status)
		assert.Eventually(t, term.srv.Resumed, time.Second, 10*time.Millisecond)
	})
}

func TestParseQuickLookArgs(t *testing.T) {
	for _, tc := range []struct {
		args      string
		allowLite bool
		expr      string
		opts      quicklook.Options
		err       bool
	}{
		{args: "img", expr: "img"},
		{args: "  views[0].img  ", expr: "views[0].img"},
		{args: "a - b", expr: "a - b"},
		{args: "a -- b", expr: "a -- b"},
		{args: "-- -x", expr: "-x"},
		{args: "-f a.png -- img", expr: "img", opts: quicklook.Options{Filename: "a.png"}},
		{args: "--filename=a.png -- img", expr: "img", opts: quicklook.Options{Filename: "a.png"}},
		{args: "-l -- img", allowLite: true, expr: "img", opts: quicklook.Options{Lite: true}},
		{args: "-l -f 'my shot.png' -- m[\"k\"]", allowLite: true, expr: `m["k"]`, opts: quicklook.Options{Filename: "my shot.png", Lite: true}},
		{args: "-f x.png -- a -- b", expr: "a -- b", opts: quicklook.Options{Filename: "x.png"}},
		{args: "-l -- img", allowLite: false, err: true},
		{args: "-f x.png img", err: true},
		{args: "-f -- img", err: true},
		{args: "-f x.png --", err: true},
		{args: "-x -- img", err: true},
		{args: "-f a.png extra -- img", err: true},
		{args: "", err: true},
	} {
		expr, opts, err := parseQuickLookArgs("quicklook", tc.args, tc.allowLite)
		if tc.err {
			var argErr *ArgError
			if !errors.As(err, &argErr) {
				t.Errorf("%q: expected ArgError, got %v", tc.args, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.args, err)
			continue
		}
		if expr != tc.expr || opts != tc.opts {
			t.Errorf("%q: got %q %#v, expected %q %#v", tc.args, expr, opts, tc.expr, tc.opts)
		}
	}
}

func TestMerge(t *testing.T) {
	cmds := DebugCommands(nil)
	cmds.Merge(map[string][]string{"quicklook": {"look"}})
	cmds.Merge(map[string][]string{"quicklook": {"peek"}})
	for _, cmd := range cmds.cmds {
		if cmd.aliases[0] == "quicklook" {
			assert.Equal(t, []string{"quicklook", "qlf", "peek"}, cmd.aliases)
		}
	}
	assert.True(t, strings.HasPrefix(cmds.cmds[0].helpMsg, "Prints the help message."))
}
