package script

import (
	lua "github.com/yuin/gopher-lua"
)

const headersMetatableName = "keystone.headers"

// installHeadersMetatable wires the reusable headers proxy: __index
// scans request headers first, then response headers, case-insensitive;
// __newindex validates the name/value pair and writes into the
// response headers, silently rejecting an invalid pair rather than
// raising (a script handing a malformed header name shouldn't crash the
// handler, just lose that header).
func (e *Engine) installHeadersMetatable() {
	mt := e.L.NewTypeMetatable(headersMetatableName)
	e.L.SetField(mt, "__index", e.L.NewFunction(headersIndex))
	e.L.SetField(mt, "__newindex", e.L.NewFunction(headersNewIndex))
}

func headersIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	name := L.CheckString(2)
	exch, ok := ud.Value.(*Exchange)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	if v, found := exch.RequestHeader(name); found {
		L.Push(lua.LString(v))
		return 1
	}
	if v, found := exch.ResponseHeaderValue(name); found {
		L.Push(lua.LString(v))
		return 1
	}
	L.Push(lua.LNil)
	return 1
}

func headersNewIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	name := L.CheckString(2)
	value := L.CheckString(3)
	exch, ok := ud.Value.(*Exchange)
	if !ok {
		return 0
	}

	if !validHeaderName(name) || !validHeaderValue(value) {
		return 0
	}
	exch.SetResponseHeader(name, value)
	return 0
}
