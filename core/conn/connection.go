// Package conn implements the per-connection state machine: Reading,
// Parsing, Matching, Invoking, Serializing, Writing, Resetting, and
// Closed. One Connection is bound to one fd for its entire lifetime and
// is never migrated to another worker.
package conn

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/keystonegw/keystone/core/arena"
	httpshim "github.com/keystonegw/keystone/core/http"
	"github.com/keystonegw/keystone/core/ring"
	"github.com/keystonegw/keystone/core/router"
	"github.com/keystonegw/keystone/core/script"
)

// State is a connection's position in the state machine.
type State int

const (
	Reading State = iota
	Parsing
	Matching
	Invoking
	Serializing
	Writing
	Resetting
	Closed
)

// Connection owns one accepted fd plus every per-connection resource:
// its ring buffer, write buffer and cursor, arena, captured-parameter
// array, parsed-request view, and the exchange handed to the scripting
// bridge. Nothing here is shared with any other connection.
type Connection struct {
	FD    int
	State State

	ring      *ring.Buffer
	writeBuf  []byte
	writeOff  int
	arena     *arena.Arena
	params    router.ParamArray
	req       httpshim.Request
	exch      *script.Exchange
	keepAlive bool

	// consumed is the number of ring-buffer bytes (request line +
	// headers + body) belonging to the request currently being
	// handled. It is not consumed from the ring until FinishRequest,
	// so every Span in req stays valid (relative to an unshifted
	// buffer) across Match, Invoke, and Serialize.
	consumed int
}

// New allocates a Connection with the given ring and write buffer
// capacities. Connections are expected to be pooled (see
// pools.ConnectionPool) and reset rather than recreated between accepts.
func New(readBufSize, writeBufSize int) *Connection {
	c := &Connection{
		ring:     ring.New(readBufSize),
		writeBuf: make([]byte, 0, writeBufSize),
	}
	c.arena = arena.New(writeBufSize)
	c.exch = script.NewExchange(c.arena)
	return c
}

// Bind assigns fd to the connection and puts it in its initial state.
// Matches the ConnectionPoolable contract's SetFD.
func (c *Connection) Bind(fd int) {
	c.FD = fd
	c.State = Reading
	c.keepAlive = true
}

// SetFD implements pools.ConnectionPoolable.
func (c *Connection) SetFD(fd int) { c.Bind(fd) }

// Reset implements pools.ConnectionPoolable: returns every per-connection
// resource to its zero-length, capacity-retained state, per spec's
// resetting discipline. The fd itself is left alone — callers close it
// before returning the Connection to the pool.
func (c *Connection) Reset() {
	c.ring.Reset()
	c.writeBuf = c.writeBuf[:0]
	c.writeOff = 0
	c.arena.Reset()
	c.params.Reset()
	c.req = httpshim.Request{}
	c.consumed = 0
	c.State = Reading
	c.keepAlive = true
}

// Recv reads available bytes from the fd into the ring buffer. Returns
// (0, nil) on EAGAIN — the caller should return to the event loop and
// wait for the next readable completion — and transitions State to
// Closed on EOF or a fatal I/O error.
//
// If the ring buffer's writable tail is already exhausted, there is
// nothing to read() — a zero-length read would return (0, nil)
// indistinguishably from EOF, so Recv moves straight to Parsing instead
// and lets Parse's Full()-aware Incomplete handling fail the request as
// oversized rather than mistaking a full buffer for a closed socket.
func (c *Connection) Recv() (int, error) {
	if len(c.ring.Writable()) == 0 {
		c.State = Parsing
		return 0, nil
	}

	n, err := unix.Read(c.FD, c.ring.Writable())
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		c.State = Closed
		return 0, err
	}
	if n == 0 {
		c.State = Closed
		return 0, nil
	}
	if cerr := c.ring.CommitWrite(n); cerr != nil {
		c.State = Closed
		return 0, cerr
	}
	c.State = Parsing
	return n, nil
}

// Parse drives the HTTP parser shim over the ring buffer's readable
// slice. On Incomplete it leaves the buffer untouched and returns to
// Reading — unless the ring buffer is already Full(), in which case no
// amount of further recv'ing will ever complete the request, and it is
// failed as oversized (spec: "Oversized request (> ring buffer) → send
// 400; close") exactly like an Invalid parse. On Invalid it moves to
// Writing with a 400 response queued. On Complete it records how many
// bytes the finished request occupies (consumed only once FinishRequest
// runs, so every span handed to the router and the scripting bridge
// stays valid) and moves to Matching.
func (c *Connection) Parse() httpshim.Outcome {
	outcome, n := httpshim.Parse(c.ring.Readable(), &c.req)
	switch outcome {
	case httpshim.Incomplete:
		if c.ring.Full() {
			c.queueStatusOnly(400)
			c.State = Writing
		} else {
			c.State = Reading
		}
	case httpshim.Invalid:
		c.queueStatusOnly(400)
		c.State = Writing
	case httpshim.Complete:
		c.consumed = n
		c.updateKeepAliveFromRequest()
		c.State = Matching
	}
	return outcome
}

// updateKeepAliveFromRequest is the single place that decides whether the
// connection stays alive after the request now in c.req: HTTP/1.0 and an
// explicit "Connection: close" request header both close it. Called once,
// right after a Complete parse, so every later stage — a 200 from script,
// a 404 from Match, a 500 from Invoke or a malformed status — shares the
// same answer instead of each recomputing (or forgetting to recompute) it.
func (c *Connection) updateKeepAliveFromRequest() {
	c.keepAlive = c.req.MinorVersion != 0
	if v, ok := c.requestHeaderValue("Connection"); ok && headerIsClose(v) {
		c.keepAlive = false
	}
}

// requestHeaderValue scans the parsed request's own headers directly,
// independent of the scripting exchange — needed because Match's 404 path
// queues its response before the exchange is ever pointed at this request.
func (c *Connection) requestHeaderValue(name string) (string, bool) {
	buf := c.ring.Readable()
	for i := 0; i < c.req.NumHeaders; i++ {
		h := c.req.Headers[i]
		if strings.EqualFold(string(h.Name.Get(buf)), name) {
			return string(h.Value.Get(buf)), true
		}
	}
	return "", false
}

// Match looks up the parsed request's method and path in r, writing any
// captured parameters into the connection's ParamArray. A miss queues a
// 404 and moves to Writing (kept alive per the keep-alive-after-404
// decision); a hit moves to Invoking.
func (c *Connection) Match(r *router.Router) (handlerRef int, matched bool) {
	c.params.Reset()
	h, err := r.Match(c.methodString(), c.pathString(), &c.params)
	if err != nil {
		c.queueStatusOnly(404)
		c.State = Writing
		return 0, false
	}
	c.State = Invoking
	return h.(int), true
}

// Invoke points the connection's exchange at its current request and
// calls into the scripting engine. A script failure queues a 500; a
// successful call moves to Serializing.
func (c *Connection) Invoke(e *script.Engine, ref int) error {
	c.exch.Reset(c.ring.Readable(), &c.req, &c.params)
	if err := e.Invoke(ref, c.exch); err != nil {
		c.queueStatusOnly(500)
		c.State = Writing
		return err
	}
	c.State = Serializing
	return nil
}

// Serialize builds the full HTTP/1.1 response (status line, response
// headers, mandatory Content-Length, blank line, body) into the write
// buffer and moves to Writing. A status outside 100..599 is a malformed
// response (spec §4.5) — it is replaced wholesale by a clean 500,
// discarding whatever headers/body the handler set, rather than writing
// a half-valid response built from an invalid status line.
func (c *Connection) Serialize() {
	if c.exch.Status < 100 || c.exch.Status > 599 {
		c.queueStatusOnly(500)
		c.State = Writing
		return
	}

	c.writeBuf = c.writeBuf[:0]
	c.writeBuf = appendStatusLine(c.writeBuf, c.exch.Status)
	for _, h := range c.exch.ResponseHeaders {
		c.writeBuf = append(c.writeBuf, h.Name...)
		c.writeBuf = append(c.writeBuf, ':', ' ')
		c.writeBuf = append(c.writeBuf, h.Value...)
		c.writeBuf = append(c.writeBuf, '\r', '\n')
	}
	c.writeBuf = append(c.writeBuf, "Content-Length: "...)
	c.writeBuf = appendInt(c.writeBuf, len(c.exch.ResponseBody))
	c.writeBuf = append(c.writeBuf, '\r', '\n', '\r', '\n')
	c.writeBuf = append(c.writeBuf, c.exch.ResponseBody...)
	c.writeOff = 0
	c.State = Writing
}

// queueStatusOnly builds a response whose body is the status's reason
// phrase, for 400/404/500 paths that never reach the scripting bridge.
func (c *Connection) queueStatusOnly(status int) {
	body := httpshim.StatusText(status)
	c.writeBuf = c.writeBuf[:0]
	c.writeBuf = appendStatusLine(c.writeBuf, status)
	c.writeBuf = append(c.writeBuf, "Content-Length: "...)
	c.writeBuf = appendInt(c.writeBuf, len(body))
	c.writeBuf = append(c.writeBuf, '\r', '\n', '\r', '\n')
	c.writeBuf = append(c.writeBuf, body...)
	c.writeOff = 0

	if status == 400 {
		c.keepAlive = false
	}
}

// Send writes as much of the write buffer as the fd will currently
// accept. Returns true once the whole buffer has been written, at which
// point the caller should move to Resetting.
func (c *Connection) Send() (done bool, err error) {
	for c.writeOff < len(c.writeBuf) {
		n, werr := unix.Write(c.FD, c.writeBuf[c.writeOff:])
		if werr != nil {
			if werr == unix.EAGAIN {
				return false, nil
			}
			c.State = Closed
			return false, werr
		}
		c.writeOff += n
	}
	return true, nil
}

// KeepAlive reports whether the connection should return to Reading
// after Resetting rather than close.
func (c *Connection) KeepAlive() bool { return c.keepAlive }

// FinishRequest implements the Resetting state: the ring buffer finally
// drops the bytes belonging to the request just served (so a pipelined
// request already buffered behind it becomes the new Readable head),
// the write buffer and arena are rewound retaining capacity, and the
// connection moves to Reading for the next request on the same socket —
// or the caller closes the fd if KeepAlive is false.
func (c *Connection) FinishRequest() {
	c.ring.Consume(c.consumed)
	c.consumed = 0
	c.writeBuf = c.writeBuf[:0]
	c.writeOff = 0
	c.arena.Reset()
	c.params.Reset()
	c.req = httpshim.Request{}
	c.State = Reading
}

func (c *Connection) methodString() string { return string(c.req.Method.Get(c.ring.Readable())) }
func (c *Connection) pathString() string   { return string(c.req.Path.Get(c.ring.Readable())) }

func headerIsClose(v string) bool {
	return strings.EqualFold(v, "close")
}

func appendStatusLine(b []byte, status int) []byte {
	b = append(b, "HTTP/1.1 "...)
	b = appendInt(b, status)
	b = append(b, ' ')
	b = append(b, httpshim.StatusText(status)...)
	b = append(b, '\r', '\n')
	return b
}

// appendInt appends the decimal representation of a non-negative status
// code without going through strconv/fmt, matching the hot-path
// allocation discipline the rest of the write path follows.
func appendInt(b []byte, i int) []byte {
	if i == 0 {
		return append(b, '0')
	}
	start := len(b)
	for i > 0 {
		b = append(b, byte('0'+i%10))
		i /= 10
	}
	// digits were appended least-significant-first; reverse in place
	end := len(b) - 1
	for start < end {
		b[start], b[end] = b[end], b[start]
		start++
		end--
	}
	return b
}
