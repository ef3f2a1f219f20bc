// Package app wires configuration, GC tuning, and the worker pool into a
// single runnable unit.
package app

import (
	"fmt"
	"log"

	"github.com/keystonegw/keystone/config"
	"github.com/keystonegw/keystone/core/pools"
	"github.com/keystonegw/keystone/core/worker"
)

// App is the application instance: configuration plus the pool of
// shard-per-core workers it drives.
type App struct {
	cfg  *config.Config
	pool *worker.Pool
}

// New binds one worker per CPU (runtime.NumCPU()) and loads
// script into every worker's interpreter. Route registration happens
// inside script via add_route — there is no programmatic registration
// surface, unlike the teacher's Engine().GET()/POST().
func New(cfg *config.Config, script string) (*App, error) {
	wcfg := worker.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Backlog:         cfg.AcceptBacklog,
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		WorkerCount:     0,
		EnableAffinity:  cfg.EnableBPFAffinity,
	}

	pool, err := worker.NewPool(wcfg, script)
	if err != nil {
		return nil, fmt.Errorf("app: new pool: %w", err)
	}

	return &App{cfg: cfg, pool: pool}, nil
}

// Run applies high-throughput GC tuning and then blocks forever driving
// every worker's event loop. There is no signal-handling goroutine here —
// shutdown-on-signal is out of scope; the pool's join waits for all
// workers indefinitely.
func (a *App) Run() error {
	pools.OptimizeForHighThroughput()

	log.Printf("🚀 keystone starting on %s:%d", a.cfg.Host, a.cfg.Port)
	log.Printf("⚡ shard-per-core workers, BPF affinity: %v", a.cfg.EnableBPFAffinity)

	return a.pool.Run()
}

// Stats returns a per-worker snapshot of pool and connection counters.
func (a *App) Stats() []worker.Stats {
	return a.pool.Stats()
}
