package rpc2

import (
	"github.com/go-delve/quicklook/service/api"
)

// Arguments and results of the RPCServer methods called by RPCClient. They
// mirror the definitions of the Delve server for API version 2.
type (
	ProcessPidIn struct {
	}

	ProcessPidOut struct {
		Pid int
	}

	StateIn struct {
		// If NonBlocking is true State will return immediately even if the target process is running.
		NonBlocking bool
	}

	StateOut struct {
		State *api.DebuggerState
	}

	CommandOut struct {
		State api.DebuggerState
	}

	ListBreakpointsIn struct {
		All bool
	}

	ListBreakpointsOut struct {
		Breakpoints []*api.Breakpoint
	}

	ToggleBreakpointIn struct {
		Id   int
		Name string
	}

	ToggleBreakpointOut struct {
		Breakpoint *api.Breakpoint
	}

	StacktraceIn struct {
		Id     int64
		Depth  int
		Full   bool
		Defers bool // read deferred functions (equivalent to passing StacktraceReadDefers in Opts)
		Opts   api.StacktraceOptions
		Cfg    *api.LoadConfig
	}

	StacktraceOut struct {
		Locations []api.Stackframe
	}

	EvalIn struct {
		Scope api.EvalScope
		Expr  string
		Cfg   *api.LoadConfig
	}

	EvalOut struct {
		Variable *api.Variable
	}

	IsMulticlientIn struct {
	}

	IsMulticlientOut struct {
		// IsMulticlient returns true if the headless instance was started with --accept-multiclient
		IsMulticlient bool
	}

	ExamineMemoryIn struct {
		Address uint64
		Length  int
	}

	ExaminedMemoryOut struct {
		Mem            []byte
		IsLittleEndian bool
	}
)
