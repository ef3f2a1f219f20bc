// Package worker implements the shard-per-core unit: one event loop, one
// listening socket, one router, one scripting interpreter, and one
// connection pool per CPU, with no synchronization between workers after
// startup beyond the shared BPF-ready flag.
package worker

import (
	"log"

	"golang.org/x/sys/unix"

	"github.com/keystonegw/keystone/core/bpf"
	"github.com/keystonegw/keystone/core/conn"
	"github.com/keystonegw/keystone/core/eventloop"
	"github.com/keystonegw/keystone/core/listener"
	"github.com/keystonegw/keystone/core/pools"
	"github.com/keystonegw/keystone/core/router"
	"github.com/keystonegw/keystone/core/script"
)

// Config carries the constants a Worker needs to bind and run.
type Config struct {
	Host            string
	Port            int
	Backlog         int
	ReadBufferSize  int
	WriteBufferSize int
	WorkerCount     int
	WorkerIndex     int
	EnableAffinity  bool
}

// Worker owns every long-lived, per-core resource in the system. Route
// registration happens once, via a script loaded through
// Engine().LoadScript, before Run is called.
type Worker struct {
	cfg      Config
	loop     *eventloop.Loop
	listener *listener.Listener
	router   *router.Router
	engine   *script.Engine
	pool     *pools.ConnectionPool

	active map[int]*conn.Connection
	stats  Stats
}

// New creates a Worker and binds its listening socket, blocking on
// barrier if it isn't worker 0. Script must be loaded into the returned
// Worker's Engine() before Run is called.
func New(cfg Config, barrier *bpf.AttachBarrier) (*Worker, error) {
	r := router.New()
	ln, err := listener.Bind(cfg.Host, cfg.Port, cfg.Backlog, cfg.WorkerCount, cfg.WorkerIndex, cfg.EnableAffinity, barrier)
	if err != nil {
		return nil, err
	}

	loop, err := eventloop.New(1024)
	if err != nil {
		ln.Close()
		return nil, err
	}

	w := &Worker{
		cfg:      cfg,
		loop:     loop,
		listener: ln,
		router:   r,
		engine:   script.NewEngine(r),
		pool: pools.NewConnectionPool(1024, func() any {
			return conn.New(cfg.ReadBufferSize, cfg.WriteBufferSize)
		}),
		active: make(map[int]*conn.Connection, 1024),
	}
	return w, nil
}

// Engine exposes the worker's interpreter so the caller can load the
// bootstrap script before Run starts serving traffic.
func (w *Worker) Engine() *script.Engine { return w.engine }

// Stats returns a point-in-time snapshot of the worker's connection
// pool, active-connection counters, and process-wide GC stats. GC stats
// are process-wide rather than per-worker, but are surfaced here since
// this is the operator-facing introspection point every worker already
// exposes.
func (w *Worker) Stats() Stats {
	w.stats.PoolGets, w.stats.PoolPuts, w.stats.PoolHitRate = w.pool.Stats()
	w.stats.ActiveConnections = len(w.active)
	w.stats.GC = pools.GetGCStats()
	return w.stats
}

// Run submits the listening socket for read interest and blocks
// forever, driving the event loop. There is no graceful shutdown path —
// matching the pool's join-indefinitely lifecycle.
func (w *Worker) Run() error {
	if err := w.loop.Submit(w.listener.FD, eventloop.InterestRead); err != nil {
		return err
	}

	for {
		completions, err := w.loop.Wait(100)
		if err != nil {
			log.Printf("worker %d: event loop wait error: %v", w.cfg.WorkerIndex, err)
			continue
		}

		for _, c := range completions {
			if c.Fd == w.listener.FD {
				w.acceptAll()
				continue
			}
			w.handleCompletion(c)
		}
	}
}

func (w *Worker) acceptAll() {
	for {
		fd, ok, err := w.listener.Accept()
		if err != nil {
			log.Printf("worker %d: accept error: %v", w.cfg.WorkerIndex, err)
			return
		}
		if !ok {
			return
		}

		c := w.pool.Get().(*conn.Connection)
		c.Bind(fd)
		w.active[fd] = c
		w.stats.Accepted++

		if err := w.loop.Submit(fd, eventloop.InterestRead); err != nil {
			w.closeConn(c)
			continue
		}
	}
}

func (w *Worker) handleCompletion(c eventloop.Completion) {
	cn, ok := w.active[c.Fd]
	if !ok {
		return
	}

	if c.HangUp && !c.Readable {
		w.closeConn(cn)
		return
	}

	if c.Readable && cn.State == conn.Reading {
		if _, err := cn.Recv(); err != nil || cn.State == conn.Closed {
			w.closeConn(cn)
			return
		}
	}

	w.driveRequest(cn)
}

// driveRequest advances cn through as many states as it can make
// progress on without blocking: a handler invocation is synchronous, so
// Matching through Serializing always complete in one call; only Send
// can legitimately return "not yet" (EAGAIN), and only Reading can
// legitimately be waiting on more bytes from the peer.
func (w *Worker) driveRequest(cn *conn.Connection) {
	var handlerRef int

	for {
		switch cn.State {
		case conn.Reading:
			// Either just received new bytes, or a pipelined
			// request is already sitting in the ring buffer from
			// the previous FinishRequest — either way, attempting
			// to parse is how we find out which. Parse itself
			// sends us back to Reading (and we return below) if
			// there truly isn't a full request buffered yet.
			cn.State = conn.Parsing

		case conn.Parsing:
			// Parse itself decides where Incomplete goes: back to
			// Reading when more bytes are needed, or to Writing
			// with a 400 already queued when the ring buffer is
			// full and will never hold a complete request. Only
			// the former actually needs to wait on the event loop.
			cn.Parse()
			if cn.State == conn.Reading {
				return
			}

		case conn.Matching:
			ref, _ := cn.Match(w.router)
			handlerRef = ref

		case conn.Invoking:
			cn.Invoke(w.engine, handlerRef)

		case conn.Serializing:
			cn.Serialize()

		case conn.Writing:
			done, err := cn.Send()
			if err != nil {
				w.closeConn(cn)
				return
			}
			if !done {
				w.loop.Submit(cn.FD, eventloop.InterestWrite)
				return
			}
			cn.State = conn.Resetting

		case conn.Resetting:
			cn.FinishRequest()
			if !cn.KeepAlive() {
				w.closeConn(cn)
				return
			}
			w.loop.Submit(cn.FD, eventloop.InterestRead)
			w.stats.Served++

		case conn.Closed:
			w.closeConn(cn)
			return

		default:
			return
		}
	}
}

func (w *Worker) closeConn(cn *conn.Connection) {
	w.loop.Cancel(cn.FD)
	delete(w.active, cn.FD)
	unix.Close(cn.FD)
	cn.Reset()
	w.pool.Put(cn)
}
