package script

import lua "github.com/yuin/gopher-lua"

// HandlerRegistry maps the opaque integer HandlerRef the router stores
// back to the Lua callable add_route registered it with. The router
// never interprets a HandlerRef; only the engine that issued it does.
type HandlerRegistry struct {
	handlers []*lua.LFunction
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register appends fn and returns its stable ref. Refs are never reused
// or invalidated for the lifetime of the registry — one registry lives
// for the lifetime of one worker's interpreter.
func (r *HandlerRegistry) Register(fn *lua.LFunction) int {
	r.handlers = append(r.handlers, fn)
	return len(r.handlers) - 1
}

// Get resolves ref back to its callable.
func (r *HandlerRegistry) Get(ref int) (*lua.LFunction, bool) {
	if ref < 0 || ref >= len(r.handlers) {
		return nil, false
	}
	return r.handlers[ref], true
}
