// Package script embeds the scripting policy layer: one gopher-lua
// interpreter per worker, a global keystone.add_route(method, pattern,
// fn) API for registering routes, and a reusable exchange userdata that
// exposes the current request/response to the script. The exchange holds
// spans into the connection's buffer; each script read of a request
// field copies that field into a new string.
package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/keystonegw/keystone/core/router"
)

// ErrScriptFailure wraps a protected call failure (a Lua runtime error
// or an uncaught script exception) into the 500 the connection sends;
// no script error detail is leaked into the response body.
var ErrScriptFailure = errors.New("script: handler invocation failed")

const exchangeMetatableName = "keystone.ctx"

// Engine is one worker's interpreter, its route table, and its handler
// registry. Nothing here is safe to share across workers — the whole
// point of the shard-per-core design is that each worker owns one of
// these exclusively.
type Engine struct {
	L        *lua.LState
	router   *router.Router
	registry *HandlerRegistry

	// ctxUD and headersUD are the worker's single reusable userdata
	// values for the exchange and its header proxy. A worker's event
	// loop invokes at most one handler at a time, so repointing
	// Value at the current Exchange is safe and avoids allocating a
	// new userdata per request.
	ctxUD     *lua.LUserData
	headersUD *lua.LUserData
}

// NewEngine creates an interpreter bound to router: calling
// keystone.add_route from a loaded script registers directly into it.
func NewEngine(r *router.Router) *Engine {
	e := &Engine{
		L:        lua.NewState(),
		router:   r,
		registry: NewHandlerRegistry(),
	}
	e.installGlobals()
	e.installExchangeMetatable()
	e.installHeadersMetatable()
	e.ctxUD = e.L.NewUserData()
	e.ctxUD.Metatable = e.L.GetTypeMetatable(exchangeMetatableName)
	e.headersUD = e.L.NewUserData()
	e.headersUD.Metatable = e.L.GetTypeMetatable(headersMetatableName)
	return e
}

// Close releases the interpreter's resources.
func (e *Engine) Close() {
	e.L.Close()
}

// LoadScript runs source as the worker's route-table bootstrap. It is
// expected to call keystone.add_route zero or more times and then
// return; it is not re-run per request.
func (e *Engine) LoadScript(source string) error {
	return e.L.DoString(source)
}

func (e *Engine) installGlobals() {
	keystone := e.L.NewTable()
	e.L.SetGlobal("keystone", keystone)
	e.L.SetField(keystone, "add_route", e.L.NewFunction(e.luaAddRoute))
}

// luaAddRoute implements keystone.add_route(method, pattern, fn). A
// rejected pattern (spec's empty/duplicate `{name}` policy) or a
// non-function third argument raises a Lua error rather than returning
// a Go error, since this runs during script bootstrap, not the hot path.
func (e *Engine) luaAddRoute(L *lua.LState) int {
	method := L.CheckString(1)
	pattern := L.CheckString(2)
	fn := L.CheckFunction(3)

	ref := e.registry.Register(fn)
	if err := e.router.Add(method, pattern, ref); err != nil {
		L.RaiseError("add_route %s %s: %s", method, pattern, err)
		return 0
	}
	return 0
}

// Invoke calls the handler registered under ref with exch pushed as the
// single `ctx` argument, inside a protected call so a script error or
// panic becomes ErrScriptFailure instead of crashing the worker.
func (e *Engine) Invoke(ref int, exch *Exchange) error {
	fn, ok := e.registry.Get(ref)
	if !ok {
		return fmt.Errorf("%w: unknown handler ref %d", ErrScriptFailure, ref)
	}

	e.ctxUD.Value = exch
	e.headersUD.Value = exch

	err := e.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, e.ctxUD)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrScriptFailure, err)
	}
	return nil
}
