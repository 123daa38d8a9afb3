// Package fakeserver provides an in-process Delve server for tests. It serves
// the subset of the JSON-RPC API version 2 used by dlv-ql over an
// in-memory connection and simulates a process stopped at a breakpoint.
package fakeserver

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/go-delve/quicklook/service/api"
	"github.com/go-delve/quicklook/service/rpc2"
)

// Call is an injected function call received by a Server.
type Call struct {
	GoroutineID int64
	Expr        string
	// Enabled lists the IDs of the user breakpoints that were enabled when
	// the call was made.
	Enabled []int
}

// Object is the simulated receiver of the accessors.
type Object struct {
	// Data is returned by QuickLookDebugData.
	Data *api.Variable
	// Filename is returned by QuickLookDebugFilename.
	Filename *api.Variable
	// Breakpoint is the ID of a breakpoint the accessors run into when it
	// is enabled.
	Breakpoint int
	// Panic makes the accessors panic with this value.
	Panic string
}

// Server is a fake Delve server. Exported fields are meant to be set up
// before the first client connects.
type Server struct {
	mu sync.Mutex

	State       api.DebuggerState
	Breakpoints []*api.Breakpoint
	// Objects maps receiver expressions, as they appear in the injected
	// calls, to objects.
	Objects map[string]*Object
	// Vars maps frame numbers to the variables Eval finds in them.
	Vars   map[int]map[string]*api.Variable
	Frames []api.Stackframe
	Memory map[uint64][]byte

	Calls []Call
	Reads []int

	resumed bool

	retCfg *api.LoadConfig
}

// NewServer returns a server simulating MyApp, pid 4242, stopped on
// goroutine 1.
func NewServer() *Server {
	return &Server{
		State: api.DebuggerState{
			Pid:               4242,
			TargetCommandLine: "/home/gopher/go/bin/MyApp -addr :8080",
			CurrentThread:     &api.Thread{ID: 4242, GoroutineID: 1, File: "/home/gopher/app/main.go", Line: 12, Function: &api.Function{Name_: "main.main"}},
			SelectedGoroutine: &api.Goroutine{ID: 1},
		},
		Objects: map[string]*Object{},
		Vars:    map[int]map[string]*api.Variable{},
		Memory:  map[uint64][]byte{},
	}
}

// SetData makes the object reachable through recv return b, stored at
// addr, from its data accessor.
func (s *Server) SetData(recv string, addr uint64, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memory[addr] = b
	s.object(recv).Data = &api.Variable{
		Kind:     reflect.Slice,
		Type:     "[]uint8",
		RealType: "[]uint8",
		Len:      int64(len(b)),
		Cap:      int64(len(b)),
		Base:     addr,
	}
}

// SetFilename makes the object reachable through recv return name from
// its filename accessor.
func (s *Server) SetFilename(recv, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.object(recv).Filename = &api.Variable{Kind: reflect.String, Type: "string", Value: name, Len: int64(len(name))}
}

// SetVar makes Eval return v for expr in frame.
func (s *Server) SetVar(frame int, expr string, v *api.Variable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Vars[frame] == nil {
		s.Vars[frame] = map[string]*api.Variable{}
	}
	s.Vars[frame][expr] = v
}

// Resumed reports whether a client continued the target.
func (s *Server) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

func (s *Server) object(recv string) *Object {
	o := s.Objects[recv]
	if o == nil {
		o = &Object{}
		s.Objects[recv] = o
	}
	return o
}

// Client serves a new connection and returns a client connected to it.
// The connection is closed when the test ends.
func (s *Server) Client(t testing.TB) *rpc2.RPCClient {
	t.Helper()
	c, err := rpc2.NewClientFromConn(s.Listen(t))
	if err != nil {
		t.Fatalf("could not connect to fake server: %v", err)
	}
	return c
}

// Listen serves a new connection and returns its client side.
func (s *Server) Listen(t testing.TB) net.Conn {
	t.Helper()
	srv := rpc.NewServer()
	if err := srv.RegisterName("RPCServer", &rpcServer{s}); err != nil {
		t.Fatalf("could not register fake server: %v", err)
	}
	client, conn := net.Pipe()
	go srv.ServeCodec(jsonrpc.NewServerCodec(conn))
	t.Cleanup(func() { client.Close() })
	return client
}

// rpcServer holds the methods served as RPCServer.
type rpcServer struct {
	s *Server
}

func (r *rpcServer) SetApiVersion(args api.SetAPIVersionIn, out *api.SetAPIVersionOut) error {
	if args.APIVersion != 2 {
		return fmt.Errorf("unknown API version %d", args.APIVersion)
	}
	return nil
}

func (r *rpcServer) ProcessPid(args rpc2.ProcessPidIn, out *rpc2.ProcessPidOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out.Pid = r.s.State.Pid
	return nil
}

func (r *rpcServer) IsMulticlient(args rpc2.IsMulticlientIn, out *rpc2.IsMulticlientOut) error {
	out.IsMulticlient = true
	return nil
}

func (r *rpcServer) State(args rpc2.StateIn, out *rpc2.StateOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.State
	out.State = &st
	return nil
}

func (r *rpcServer) Command(cmd api.DebuggerCommand, out *rpc2.CommandOut) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd.Name {
	case api.Halt:
		s.State.Running = false
		out.State = s.State
		return nil
	case api.Continue:
		s.resumed = true
		s.State.Exited = true
		out.State = s.State
		return nil
	case api.Call:
		if cmd.ReturnInfoLoadConfig != nil {
			s.retCfg = cmd.ReturnInfoLoadConfig
		}
		return s.call(cmd, out)
	}
	return fmt.Errorf("unsupported command %q", cmd.Name)
}

func (s *Server) call(cmd api.DebuggerCommand, out *rpc2.CommandOut) error {
	if s.State.Exited {
		return fmt.Errorf("Process %d has exited with status %d", s.State.Pid, s.State.ExitStatus)
	}
	c := Call{GoroutineID: cmd.GoroutineID, Expr: cmd.Expr}
	for _, bp := range s.Breakpoints {
		if bp.ID > 0 && !bp.Disabled {
			c.Enabled = append(c.Enabled, bp.ID)
		}
	}
	s.Calls = append(s.Calls, c)

	expr := strings.TrimSuffix(cmd.Expr, "()")
	dot := strings.LastIndex(expr, ".")
	if dot < 0 {
		return fmt.Errorf("could not evaluate %s", cmd.Expr)
	}
	recv, method := expr[:dot], expr[dot+1:]
	o := s.Objects[recv]
	if o == nil {
		return fmt.Errorf("could not find symbol value for %s", strings.Trim(recv, "()"))
	}

	th := *s.State.CurrentThread
	th.CallReturn = true
	out.State = s.State
	out.State.CurrentThread = &th

	for _, bp := range s.Breakpoints {
		if bp.ID == o.Breakpoint && !bp.Disabled {
			th.CallReturn = false
			th.Breakpoint = bp
			return nil
		}
	}
	if o.Panic != "" {
		th.ReturnValues = []api.Variable{{Name: "~panic", Kind: reflect.String, Type: "string", Value: o.Panic, Len: int64(len(o.Panic))}}
		return nil
	}

	var ret *api.Variable
	switch method {
	case "QuickLookDebugData":
		ret = o.Data
	case "QuickLookDebugFilename":
		ret = o.Filename
	}
	if ret == nil {
		return fmt.Errorf("%s has no member %s", strings.Trim(recv, "()"), method)
	}
	v := *ret
	v.Name = "~r0"
	if v.Kind == reflect.String && s.retCfg != nil && len(v.Value) > s.retCfg.MaxStringLen {
		v.Value = v.Value[:s.retCfg.MaxStringLen]
	}
	th.ReturnValues = []api.Variable{v}
	return nil
}

func (r *rpcServer) ListBreakpoints(args rpc2.ListBreakpointsIn, out *rpc2.ListBreakpointsOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, bp := range r.s.Breakpoints {
		bp1 := *bp
		out.Breakpoints = append(out.Breakpoints, &bp1)
	}
	return nil
}

func (r *rpcServer) ToggleBreakpoint(args rpc2.ToggleBreakpointIn, out *rpc2.ToggleBreakpointOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, bp := range r.s.Breakpoints {
		if (args.Id != 0 && bp.ID == args.Id) || (args.Name != "" && bp.Name == args.Name) {
			bp.Disabled = !bp.Disabled
			bp1 := *bp
			out.Breakpoint = &bp1
			return nil
		}
	}
	return fmt.Errorf("no breakpoint with id %d", args.Id)
}

func (r *rpcServer) Eval(args rpc2.EvalIn, out *rpc2.EvalOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if v, ok := r.s.Vars[args.Scope.Frame][args.Expr]; ok {
		v1 := *v
		out.Variable = &v1
		return nil
	}
	return fmt.Errorf("could not find symbol value for %s", args.Expr)
}

func (r *rpcServer) Stacktrace(args rpc2.StacktraceIn, out *rpc2.StacktraceOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := len(r.s.Frames)
	if args.Depth+1 < n {
		n = args.Depth + 1
	}
	out.Locations = append(out.Locations, r.s.Frames[:n]...)
	return nil
}

func (r *rpcServer) ExamineMemory(args rpc2.ExamineMemoryIn, out *rpc2.ExaminedMemoryOut) error {
	if args.Length > 1000 {
		return errors.New("len must be less than or equal to 1000")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.Reads = append(r.s.Reads, args.Length)
	for base, b := range r.s.Memory {
		end := base + uint64(len(b))
		if args.Address >= base && args.Address+uint64(args.Length) <= end {
			off := args.Address - base
			out.Mem = append([]byte(nil), b[off:off+uint64(args.Length)]...)
			out.IsLittleEndian = true
			return nil
		}
	}
	return fmt.Errorf("could not read memory at %#x: input/output error", args.Address)
}
