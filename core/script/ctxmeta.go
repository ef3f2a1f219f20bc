package script

import (
	lua "github.com/yuin/gopher-lua"
)

// installExchangeMetatable wires ctx.method/path/body/status/params/
// headers. Reads return scalars or the reusable headers proxy; writes
// only honor status and body, everything else is a silent no-op per
// spec — a script cannot reassign ctx.method or ctx.params out from
// under the router.
func (e *Engine) installExchangeMetatable() {
	mt := e.L.NewTypeMetatable(exchangeMetatableName)
	e.L.SetField(mt, "__index", e.L.NewFunction(e.ctxIndex))
	e.L.SetField(mt, "__newindex", e.L.NewFunction(e.ctxNewIndex))
}

func (e *Engine) ctxIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	exch, ok := ud.Value.(*Exchange)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	switch key {
	case "method":
		L.Push(lua.LString(exch.Method()))
	case "path":
		L.Push(lua.LString(exch.Path()))
	case "body":
		L.Push(lua.LString(exch.Body()))
	case "status":
		L.Push(lua.LNumber(exch.Status))
	case "params":
		L.Push(buildParamsTable(L, exch))
	case "headers":
		L.Push(e.headersUD)
	default:
		L.Push(lua.LNil)
	}
	return 1
}

func (e *Engine) ctxNewIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	exch, ok := ud.Value.(*Exchange)
	if !ok {
		return 0
	}

	switch key {
	case "status":
		exch.Status = int(L.CheckNumber(3))
	case "body":
		exch.SetResponseBody(L.CheckString(3))
	default:
		// method, path, params, headers, and anything else are
		// read-only; ignored rather than raising, matching the
		// tolerant write semantics spec'd for unknown fields.
	}
	return 0
}

// buildParamsTable refills a fresh table from the current ParamArray.
// Params are few (capacity 4) and read rarely relative to the request
// rate, so this is not on the zero-allocation hot path the router's
// Match guarantees — only script code that actually reads ctx.params
// pays for it.
func buildParamsTable(L *lua.LState, exch *Exchange) *lua.LTable {
	t := L.NewTable()
	for i := 0; i < exch.params.Len(); i++ {
		p := exch.params.Get(i)
		t.RawSetString(p.Key, lua.LString(p.Value))
	}
	return t
}
