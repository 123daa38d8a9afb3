package session

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/service/api"
)

type callRecord struct {
	goroutineID int64
	expr        string
	// user breakpoints that were enabled while the call ran
	enabled []int
}

type fakeClient struct {
	state    *api.DebuggerState
	stateErr error

	// results of injected calls by expression
	calls   map[string]api.Variable
	callLog []callRecord

	vars    map[api.EvalScope]map[string]*api.Variable
	bps     []*api.Breakpoint
	mem     map[uint64][]byte
	reads   []int
	retCfg  *api.LoadConfig
	toggles []int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		state: &api.DebuggerState{
			Pid:               42,
			TargetCommandLine: "/home/gopher/bin/MyApp -v",
			SelectedGoroutine: &api.Goroutine{ID: 1},
			CurrentThread:     &api.Thread{ID: 100, GoroutineID: 1},
		},
		calls: map[string]api.Variable{},
		vars:  map[api.EvalScope]map[string]*api.Variable{},
		mem:   map[uint64][]byte{},
	}
}

func (c *fakeClient) GetStateNonBlocking() (*api.DebuggerState, error) {
	return c.state, c.stateErr
}

func (c *fakeClient) Call(goroutineID int64, expr string, unsafe bool) (*api.DebuggerState, error) {
	var enabled []int
	for _, bp := range c.bps {
		if bp.ID > 0 && !bp.Disabled {
			enabled = append(enabled, bp.ID)
		}
	}
	c.callLog = append(c.callLog, callRecord{goroutineID, expr, enabled})
	v, ok := c.calls[expr]
	if !ok {
		return &api.DebuggerState{}, fmt.Errorf("could not find symbol value for %s", expr)
	}
	return &api.DebuggerState{CurrentThread: &api.Thread{ID: 100, ReturnValues: []api.Variable{v}, CallReturn: true}}, nil
}

func (c *fakeClient) EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error) {
	if v, ok := c.vars[scope][expr]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("could not find symbol value for %s", expr)
}

func (c *fakeClient) ListBreakpoints(all bool) ([]*api.Breakpoint, error) {
	return c.bps, nil
}

func (c *fakeClient) ToggleBreakpoint(id int) (*api.Breakpoint, error) {
	c.toggles = append(c.toggles, id)
	for _, bp := range c.bps {
		if bp.ID == id {
			bp.Disabled = !bp.Disabled
			return bp, nil
		}
	}
	return nil, fmt.Errorf("no breakpoint with id %d", id)
}

func (c *fakeClient) ExamineMemory(address uint64, length int) ([]byte, bool, error) {
	if length > 1000 {
		return nil, false, errors.New("len must be less than or equal to 1000")
	}
	c.reads = append(c.reads, length)
	for base, b := range c.mem {
		if address >= base && address+uint64(length) <= base+uint64(len(b)) {
			off := address - base
			return b[off : off+uint64(length)], true, nil
		}
	}
	return nil, false, fmt.Errorf("ReadProcessMemory: input/output error at %#x", address)
}

func (c *fakeClient) SetReturnValuesLoadConfig(cfg *api.LoadConfig) {
	c.retCfg = cfg
}

func byteSlice(base uint64, n int64) api.Variable {
	return api.Variable{Kind: reflect.Slice, Type: "[]uint8", RealType: "[]uint8", Len: n, Cap: n, Base: base}
}

func str(s string) api.Variable {
	return api.Variable{Kind: reflect.String, Type: "string", Value: s, Len: int64(len(s))}
}

func TestTarget(t *testing.T) {
	c := newFakeClient()
	s := New(c, Config{})

	name, err := s.Target()
	require.NoError(t, err)
	assert.Equal(t, "MyApp", name)
	require.NotNil(t, c.retCfg)
	assert.Equal(t, 1024, c.retCfg.MaxStringLen)
}

func TestTargetInvalid(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(*fakeClient)
	}{
		{"exited", func(c *fakeClient) { c.state.Exited = true }},
		{"running", func(c *fakeClient) { c.state.Running = true }},
		{"no state", func(c *fakeClient) { c.state = nil }},
		{"rpc error", func(c *fakeClient) { c.stateErr = errors.New("connection is shut down") }},
		{"unnamed", func(c *fakeClient) { c.state.TargetCommandLine = ""; c.state.Pid = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newFakeClient()
			tc.setup(c)
			_, err := New(c, Config{}).Target()
			require.ErrorIs(t, err, quicklook.ErrNoTarget)
		})
	}
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "app", TargetName(&api.DebuggerState{TargetCommandLine: `"/opt/app" serve`, Pid: 1}))
	assert.Equal(t, "__debug_bin", TargetName(&api.DebuggerState{TargetCommandLine: "./__debug_bin -test.run X"}))
	assert.Equal(t, "pid-7", TargetName(&api.DebuggerState{Pid: 7}))
	assert.Equal(t, "", TargetName(&api.DebuggerState{}))
}

func TestDebugDataTopFrame(t *testing.T) {
	c := newFakeClient()
	c.calls["(v).QuickLookDebugData()"] = byteSlice(0xc000100000, 4)
	c.calls["(v).QuickLookDebugFilename()"] = str("shot.png")
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	obj := s.Object("v")
	d, err := obj.DebugData()
	require.NoError(t, err)
	assert.False(t, d.Nil())
	n, err := d.Len()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	addr, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xc000100000), addr)

	name, err := obj.DebugFilename()
	require.NoError(t, err)
	assert.Equal(t, "shot.png", name)

	require.Len(t, c.callLog, 2)
	assert.Equal(t, int64(1), c.callLog[0].goroutineID)
}

func TestDebugDataTargetScope(t *testing.T) {
	c := newFakeClient()
	c.state.SelectedGoroutine = nil
	c.calls["(main.cache).QuickLookDebugData()"] = byteSlice(0x5000, 1)
	s := New(c, Config{Frame: 3})
	_, err := s.Target()
	require.NoError(t, err)

	_, err = s.Object("main.cache").DebugData()
	require.NoError(t, err)
	require.Len(t, c.callLog, 1)
	assert.Equal(t, int64(-1), c.callLog[0].goroutineID)
}

func TestDebugDataPinsReceiverOfDeeperFrame(t *testing.T) {
	c := newFakeClient()
	c.vars[api.EvalScope{GoroutineID: 1, Frame: 2}] = map[string]*api.Variable{
		"img":  {Kind: reflect.Ptr, Type: "*example.com/app.Image", Children: []api.Variable{{OnlyAddr: true, Addr: 0xc0000a0000}}},
		"val":  {Kind: reflect.Struct, Type: "main.Image", Addr: 0xc0000b0000},
		"nilp": {Kind: reflect.Ptr, Type: "*main.Image", Children: []api.Variable{{Addr: 0}}},
	}
	c.calls[`("*example.com/app.Image")(0xc0000a0000).QuickLookDebugData()`] = byteSlice(0x1000, 2)
	c.calls[`(*main.Image)(0xc0000b0000).QuickLookDebugData()`] = byteSlice(0x2000, 2)
	s := New(c, Config{Frame: 2})
	_, err := s.Target()
	require.NoError(t, err)

	_, err = s.Object("img").DebugData()
	require.NoError(t, err)
	_, err = s.Object("val").DebugData()
	require.NoError(t, err)
	_, err = s.Object("nilp").DebugData()
	require.EqualError(t, err, "nilp is nil")
}

func TestNilData(t *testing.T) {
	c := newFakeClient()
	c.calls["(v).QuickLookDebugData()"] = byteSlice(0, 0)
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	d, err := s.Object("v").DebugData()
	require.NoError(t, err)
	assert.True(t, d.Nil())
}

func TestUnsupportedDataType(t *testing.T) {
	for _, tc := range []struct {
		name string
		ret  api.Variable
		err  string
	}{
		{"pointer", api.Variable{Kind: reflect.Ptr, Type: "*bytes.Buffer", Children: []api.Variable{{Addr: 0x10}}},
			"QuickLookDebugData returned *bytes.Buffer, expected []byte or string"},
		{"slice of slices", api.Variable{Kind: reflect.Slice, Type: "[][]uint8", RealType: "[][]uint8", Len: 3, Cap: 3, Base: 0x1000},
			"QuickLookDebugData returned [][]uint8, expected []byte or string"},
		{"nil int slice", api.Variable{Kind: reflect.Slice, Type: "[]int", RealType: "[]int"},
			"QuickLookDebugData returned []int, expected []byte or string"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newFakeClient()
			c.calls["(v).QuickLookDebugData()"] = tc.ret
			s := New(c, Config{})
			_, err := s.Target()
			require.NoError(t, err)

			d, err := s.Object("v").DebugData()
			require.EqualError(t, err, tc.err)
			assert.Nil(t, d)
		})
	}
}

func TestNamedByteSlice(t *testing.T) {
	c := newFakeClient()
	c.calls["(v).QuickLookDebugData()"] = api.Variable{Kind: reflect.Slice, Type: "main.Blob", RealType: "[]uint8", Len: 2, Cap: 2, Base: 0x1000}
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	d, err := s.Object("v").DebugData()
	require.NoError(t, err)
	n, err := d.Len()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFilenameNotString(t *testing.T) {
	c := newFakeClient()
	c.calls["(v).QuickLookDebugFilename()"] = api.Variable{Kind: reflect.Int, Type: "int", Value: "3"}
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	_, err = s.Object("v").DebugFilename()
	require.EqualError(t, err, "QuickLookDebugFilename returned int, expected string")
}

func TestTruncatedFilename(t *testing.T) {
	c := newFakeClient()
	c.calls["(v).QuickLookDebugFilename()"] = api.Variable{Kind: reflect.String, Type: "string", Value: "abc", Len: 2000}
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	_, err = s.Object("v").DebugFilename()
	require.Error(t, err)
}

func TestBreakpointsDisabledDuringCall(t *testing.T) {
	c := newFakeClient()
	c.bps = []*api.Breakpoint{
		{ID: -1, Name: "unrecovered-panic"},
		{ID: 1},
		{ID: 2, Disabled: true},
		{ID: 3},
	}
	c.calls["(v).QuickLookDebugData()"] = byteSlice(0x1000, 2)
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	_, err = s.Object("v").DebugData()
	require.NoError(t, err)
	require.Len(t, c.callLog, 1)
	assert.Empty(t, c.callLog[0].enabled)
	assert.Equal(t, []int{1, 3, 1, 3}, c.toggles)
	assert.False(t, c.bps[1].Disabled)
	assert.True(t, c.bps[2].Disabled)
	assert.False(t, c.bps[3].Disabled)

	// breakpoints come back after a failed call too
	c.toggles = nil
	_, err = s.Object("missing").DebugData()
	require.Error(t, err)
	assert.Equal(t, []int{1, 3, 1, 3}, c.toggles)
	assert.False(t, c.bps[1].Disabled)
}

func TestPanickingAccessor(t *testing.T) {
	c := newFakeClient()
	c.calls["(v).QuickLookDebugData()"] = api.Variable{Name: "~panic", Kind: reflect.String, Type: "string", Value: "boom", Len: 4}
	s := New(c, Config{})
	_, err := s.Target()
	require.NoError(t, err)

	_, err = s.Object("v").DebugData()
	require.EqualError(t, err, `QuickLookDebugData panicked: "boom"`)
}

func TestReadMemoryChunks(t *testing.T) {
	c := newFakeClient()
	buf := make([]byte, 2500)
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	c.mem[0x10000] = buf
	s := New(c, Config{})

	got, err := s.ReadMemory(0x10000, len(buf))
	require.NoError(t, err)
	assert.Equal(t, buf, got)
	assert.Equal(t, []int{1000, 1000, 500}, c.reads)
}

func TestReadMemoryFailure(t *testing.T) {
	c := newFakeClient()
	c.mem[0x10000] = make([]byte, 1200)
	s := New(c, Config{})

	_, err := s.ReadMemory(0x10000, 1500)
	require.Error(t, err)
}

func TestReadMemoryCorruptLength(t *testing.T) {
	c := newFakeClient()
	s := New(c, Config{})

	_, err := s.ReadMemory(0x10000, 1<<40)
	require.Error(t, err)
	assert.Equal(t, []int{1000}, c.reads)
}
