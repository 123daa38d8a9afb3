package terminal

import (
	"github.com/spf13/afero"

	"github.com/go-delve/quicklook/pkg/quicklook"
	"github.com/go-delve/quicklook/pkg/terminal/starbind"
	"github.com/go-delve/quicklook/service"
	"github.com/go-delve/quicklook/service/api"
)

type starlarkContext struct {
	term *Term
}

var _ starbind.Context = starlarkContext{}

func (ctx starlarkContext) Client() service.Client {
	return ctx.term.client
}

func (ctx starlarkContext) RegisterCommand(name, helpMsg string, fn func(args string) error) {
	cmdfn := func(t *Term, ctx callContext, args string) error {
		return fn(args)
	}
	ctx.term.cmds.Register(name, cmdfn, helpMsg)
}

func (ctx starlarkContext) CallCommand(cmdstr string) error {
	return ctx.term.cmds.Call(cmdstr, ctx.term)
}

func (ctx starlarkContext) QuickLook(scope api.EvalScope, expr string, opts quicklook.Options) (string, error) {
	return ctx.term.quickLook(scope, expr, opts)
}

func (ctx starlarkContext) Scope() api.EvalScope {
	return api.EvalScope{GoroutineID: -1, Frame: ctx.term.cmds.frame}
}

func (ctx starlarkContext) LoadConfig() api.LoadConfig {
	return ctx.term.loadConfig()
}

func (ctx starlarkContext) Fs() afero.Fs {
	return ctx.term.fs
}
