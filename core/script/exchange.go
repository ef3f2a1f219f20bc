package script

import (
	"github.com/keystonegw/keystone/core/arena"
	httpshim "github.com/keystonegw/keystone/core/http"
	"github.com/keystonegw/keystone/core/router"
)

// ResponseHeader is one response header name/value pair set by script.
type ResponseHeader struct {
	Name  string
	Value string
}

// Exchange is the connection-owned, per-request view handed to the
// scripting bridge. It is repointed at a new request's spans and reset
// between requests rather than allocated fresh — one Exchange lives for
// the whole lifetime of one connection.
type Exchange struct {
	buf    []byte
	req    *httpshim.Request
	params *router.ParamArray
	arena  *arena.Arena

	Status          int
	ResponseHeaders []ResponseHeader
	ResponseBody    []byte
}

// NewExchange creates an Exchange bound to connection-owned storage. The
// request view is repointed per request via Reset; the Exchange itself
// is allocated once and lives for the connection's whole lifetime.
func NewExchange(a *arena.Arena) *Exchange {
	return &Exchange{arena: a}
}

// Reset repoints the exchange at the current request and clears response
// state, retaining the response header slice's capacity.
func (e *Exchange) Reset(buf []byte, req *httpshim.Request, params *router.ParamArray) {
	e.buf = buf
	e.req = req
	e.params = params
	e.Status = 200
	e.ResponseHeaders = e.ResponseHeaders[:0]
	e.ResponseBody = nil
}

// Method returns a copy of the request method's span in the connection
// buffer; the returned string does not alias the buffer.
func (e *Exchange) Method() string { return string(e.req.Method.Get(e.buf)) }

// Path returns a copy of the request path's span in the connection
// buffer; the returned string does not alias the buffer.
func (e *Exchange) Path() string { return string(e.req.Path.Get(e.buf)) }

// Body returns a copy of the request body's span in the connection
// buffer; the returned string does not alias the buffer.
func (e *Exchange) Body() string { return string(e.req.Body.Get(e.buf)) }

// Param looks up a captured path parameter by name.
func (e *Exchange) Param(name string) (string, bool) {
	return e.params.Lookup(name)
}

// RequestHeader scans request headers case-insensitively.
func (e *Exchange) RequestHeader(name string) (string, bool) {
	for i := 0; i < e.req.NumHeaders; i++ {
		h := e.req.Headers[i]
		if headerEqualFold(h.Name.Get(e.buf), name) {
			return string(h.Value.Get(e.buf)), true
		}
	}
	return "", false
}

// ResponseHeaderValue scans response headers case-insensitively, last
// write wins for a repeated name.
func (e *Exchange) ResponseHeaderValue(name string) (string, bool) {
	found := ""
	ok := false
	for _, h := range e.ResponseHeaders {
		if headerEqualFold([]byte(h.Name), name) {
			found = h.Value
			ok = true
		}
	}
	return found, ok
}

// SetResponseBody copies src into the connection's arena immediately,
// per the decision that response_body is duplicated out of script-owned
// memory at assignment time rather than lazily at first read.
func (e *Exchange) SetResponseBody(src string) {
	e.ResponseBody = e.arena.Bytes([]byte(src))
}

// SetResponseHeader appends or overwrites (last write wins) a response
// header. Name/value validity is the caller's (bridge's) responsibility.
func (e *Exchange) SetResponseHeader(name, value string) {
	for i := range e.ResponseHeaders {
		if headerEqualFold([]byte(e.ResponseHeaders[i].Name), name) {
			e.ResponseHeaders[i].Value = e.arena.String(value)
			return
		}
	}
	e.ResponseHeaders = append(e.ResponseHeaders, ResponseHeader{
		Name:  e.arena.String(name),
		Value: e.arena.String(value),
	})
}
