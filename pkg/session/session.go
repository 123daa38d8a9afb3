// Package session implements quicklook.Session on top of a Delve client.
//
// Accessors are evaluated with function call injection. Delve injects
// calls on the topmost frame of a goroutine, so when a deeper frame is
// selected the receiver is evaluated in that frame first and passed to
// the call by address.
package session

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-delve/quicklook/pkg/logflags"
	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/service/api"
	"github.com/go-delve/quicklook/service/rpc2"
)

// Client is the part of service.Client used by a Session.
type Client interface {
	GetStateNonBlocking() (*api.DebuggerState, error)
	Call(goroutineID int64, expr string, unsafe bool) (*api.DebuggerState, error)
	EvalVariable(scope api.EvalScope, expr string, cfg api.LoadConfig) (*api.Variable, error)
	ListBreakpoints(all bool) ([]*api.Breakpoint, error)
	ToggleBreakpoint(id int) (*api.Breakpoint, error)
	ExamineMemory(address uint64, length int) ([]byte, bool, error)
	SetReturnValuesLoadConfig(*api.LoadConfig)
}

// Config configures a Session.
type Config struct {
	// Frame is the frame of the selected goroutine expressions are
	// evaluated in.
	Frame int
	// MaxStringLen bounds the length of the file name returned by the
	// filename accessor.
	MaxStringLen int
	// UnsafeCall disables the escape check of injected calls.
	UnsafeCall bool
}

// receiverLoadConfig loads just enough of a receiver to know its address.
var receiverLoadConfig = api.LoadConfig{FollowPointers: false, MaxVariableRecurse: 0, MaxStringLen: 0, MaxArrayValues: 0, MaxStructFields: 0}

// Session evaluates quick look accessors in a process stopped under Delve.
type Session struct {
	client Client
	conf   Config
	state  *api.DebuggerState
	log    logflags.Logger
}

var _ quicklook.Session = &Session{}

// New returns a Session using client. It changes the load configuration
// the client uses for return values.
func New(client Client, conf Config) *Session {
	if conf.MaxStringLen <= 0 {
		conf.MaxStringLen = 1024
	}
	client.SetReturnValuesLoadConfig(&api.LoadConfig{
		FollowPointers:     false,
		MaxVariableRecurse: 1,
		MaxStringLen:       conf.MaxStringLen,
		MaxArrayValues:     16,
		MaxStructFields:    -1,
	})
	return &Session{client: client, conf: conf, log: logflags.SessionLogger()}
}

// Target returns the name of the target. The process must exist and be
// stopped.
func (s *Session) Target() (string, error) {
	state, err := s.client.GetStateNonBlocking()
	if err != nil {
		return "", quicklook.NoTarget(err.Error())
	}
	switch {
	case state == nil:
		return "", quicklook.NoTarget("no debugger state")
	case state.Exited:
		return "", quicklook.NoTarget(fmt.Sprintf("process %d has exited with status %d", state.Pid, state.ExitStatus))
	case state.Running:
		return "", quicklook.NoTarget("process is running")
	}
	s.state = state
	name := TargetName(state)
	if name == "" {
		return "", quicklook.NoTarget("unknown target")
	}
	return name, nil
}

// TargetName returns the base name of the executable of the target, or
// pid-<pid> if the command line is not known.
func TargetName(state *api.DebuggerState) string {
	if fields := strings.Fields(state.TargetCommandLine); len(fields) > 0 {
		name := filepath.Base(strings.Trim(fields[0], `"'`))
		if name != "." && name != string(filepath.Separator) {
			return name
		}
	}
	if state.Pid > 0 {
		return fmt.Sprintf("pid-%d", state.Pid)
	}
	return ""
}

// Object returns the accessors of the object described by expr.
func (s *Session) Object(expr string) quicklook.Provider {
	return &object{s: s, expr: expr}
}

// ReadMemory reads length bytes at addr, splitting the read in requests
// the server accepts.
func (s *Session) ReadMemory(addr uint64, length int) ([]byte, error) {
	// length comes from the target, grow the buffer as reads succeed
	buf := make([]byte, 0, min(length, rpc2.MaxExamineMemory))
	for len(buf) < length {
		n := length - len(buf)
		if n > rpc2.MaxExamineMemory {
			n = rpc2.MaxExamineMemory
		}
		cur := addr + uint64(len(buf))
		mem, _, err := s.client.ExamineMemory(cur, n)
		if err != nil {
			return nil, err
		}
		if len(mem) == 0 {
			return nil, fmt.Errorf("no data read at %#x", cur)
		}
		buf = append(buf, mem...)
	}
	return buf[:length], nil
}

// scope returns the scope of the selected frame. The second return value
// is false when there is no selected goroutine and the evaluation happens
// on the current thread.
func (s *Session) scope() (api.EvalScope, bool) {
	if s.state == nil || s.state.SelectedGoroutine == nil {
		return api.EvalScope{GoroutineID: -1}, false
	}
	return api.EvalScope{GoroutineID: s.state.SelectedGoroutine.ID, Frame: s.conf.Frame}, true
}

// receiver returns an expression for the object described by expr that
// can be used from the topmost frame.
func (s *Session) receiver(expr string, scope api.EvalScope, framed bool) (string, error) {
	if !framed || scope.Frame == 0 {
		return "(" + expr + ")", nil
	}
	v, err := s.client.EvalVariable(scope, expr, receiverLoadConfig)
	if err != nil {
		return "", err
	}
	return pinnedReceiver(expr, v)
}

func pinnedReceiver(expr string, v *api.Variable) (string, error) {
	if v.Unreadable != "" {
		return "", fmt.Errorf("%s is unreadable: %s", expr, v.Unreadable)
	}
	switch v.Kind {
	case reflect.Ptr:
		if len(v.Children) == 0 || v.Children[0].Addr == 0 {
			return "", fmt.Errorf("%s is nil", expr)
		}
		return fmt.Sprintf("(%s)(%#x)", v.TypeString(), v.Children[0].Addr), nil
	case reflect.Interface:
		if len(v.Children) == 0 || v.Children[0].Kind == reflect.Invalid {
			return "", fmt.Errorf("%s is nil", expr)
		}
		return pinnedReceiver(expr, &v.Children[0])
	default:
		if v.Addr == 0 {
			return "", fmt.Errorf("%s is not addressable", expr)
		}
		return fmt.Sprintf("(*%s)(%#x)", v.TypeString(), v.Addr), nil
	}
}

// call injects a call to method on the object described by expr, with all
// user breakpoints disabled, and returns its first return value.
func (s *Session) call(expr, method string) (*api.Variable, error) {
	scope, framed := s.scope()
	recv, err := s.receiver(expr, scope, framed)
	if err != nil {
		return nil, err
	}
	callExpr := recv + "." + method + "()"
	s.log.Debugf("calling %s on goroutine %d", callExpr, scope.GoroutineID)

	var ret *api.Variable
	err = s.withBreakpointsDisabled(func() error {
		state, err := s.client.Call(scope.GoroutineID, callExpr, s.conf.UnsafeCall)
		if err != nil {
			return err
		}
		th := state.CurrentThread
		if th == nil {
			return fmt.Errorf("no current thread after calling %s", method)
		}
		if len(th.ReturnValues) == 0 {
			if th.Breakpoint != nil {
				return fmt.Errorf("call to %s stopped at breakpoint %d", method, th.Breakpoint.ID)
			}
			return fmt.Errorf("%s returned no value", method)
		}
		rv := th.ReturnValues[0]
		if rv.Name == "~panic" {
			return fmt.Errorf("%s panicked: %s", method, rv.SinglelineString())
		}
		ret = &rv
		return nil
	})
	return ret, err
}

// withBreakpointsDisabled runs fn with every enabled user breakpoint
// disabled and enables them again afterwards.
func (s *Session) withBreakpointsDisabled(fn func() error) (err error) {
	bps, err := s.client.ListBreakpoints(false)
	if err != nil {
		return err
	}
	var toggled []int
	defer func() {
		for _, id := range toggled {
			if _, err1 := s.client.ToggleBreakpoint(id); err1 != nil {
				s.log.Errorf("could not enable breakpoint %d again: %v", id, err1)
				if err == nil {
					err = fmt.Errorf("could not enable breakpoint %d again: %v", id, err1)
				}
			}
		}
	}()
	for _, bp := range bps {
		if bp.ID <= 0 || bp.Disabled {
			continue
		}
		if _, err := s.client.ToggleBreakpoint(bp.ID); err != nil {
			return err
		}
		toggled = append(toggled, bp.ID)
	}
	if len(toggled) > 0 {
		s.log.Debugf("disabled breakpoints %v", toggled)
	}
	return fn()
}

type object struct {
	s    *Session
	expr string
}

func (o *object) DebugData() (quicklook.Data, error) {
	v, err := o.s.call(o.expr, quicklook.DataAccessor)
	if err != nil {
		return nil, err
	}
	d := &data{v: v}
	if err := d.check(); err != nil {
		return nil, err
	}
	return d, nil
}

func (o *object) DebugFilename() (string, error) {
	v, err := o.s.call(o.expr, quicklook.FilenameAccessor)
	if err != nil {
		return "", err
	}
	if v.Kind != reflect.String {
		return "", fmt.Errorf("%s returned %s, expected string", quicklook.FilenameAccessor, v.Type)
	}
	if int64(len(v.Value)) < v.Len {
		return "", fmt.Errorf("%s returned a name longer than %d bytes", quicklook.FilenameAccessor, len(v.Value))
	}
	return v.Value, nil
}

// data is the return value of the data accessor, a byte slice or a
// string. Its type is checked when it is created.
type data struct {
	v *api.Variable
}

func (d *data) Nil() bool {
	return d.v.Kind == reflect.Slice && d.v.Base == 0
}

func (d *data) check() error {
	if d.v.Unreadable != "" {
		return fmt.Errorf("%s returned an unreadable value: %s", quicklook.DataAccessor, d.v.Unreadable)
	}
	switch d.v.Kind {
	case reflect.String:
		return nil
	case reflect.Slice:
		// named byte slices have the real type []uint8
		if d.v.Type == "[]uint8" || d.v.Type == "[]byte" || d.v.RealType == "[]uint8" {
			return nil
		}
	}
	return fmt.Errorf("%s returned %s, expected []byte or string", quicklook.DataAccessor, d.v.Type)
}

func (d *data) Len() (int64, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.v.Len, nil
}

func (d *data) Bytes() (uint64, error) {
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.v.Base, nil
}
