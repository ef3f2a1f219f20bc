package worker

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/keystonegw/keystone/core/bpf"
)

// Pool owns every worker and the single cross-thread word in the
// system: the BPF-ready flag. Workers are spawned one per detected CPU;
// the bootstrap script is loaded into each worker's interpreter before it starts
// serving, so every worker's route table is identical.
type Pool struct {
	workers []*Worker
}

// NewPool binds workerCount workers (runtime.NumCPU() if workerCount <=
// 0) to host:port and loads script into each one's interpreter. Every
// worker's Bind runs concurrently, so the BPF attach-ordering barrier
// inside listener.Bind is actually contended: worker 0's goroutine may
// finish its own bind before or after its siblings reach theirs, and
// either way siblings correctly spin until worker 0 opens the barrier.
func NewPool(cfg Config, script string) (*Pool, error) {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	barrier := bpf.NewAttachBarrier()
	p := &Pool{workers: make([]*Worker, workerCount)}

	var wg sync.WaitGroup
	errs := make([]error, workerCount)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wcfg := cfg
			wcfg.WorkerCount = workerCount
			wcfg.WorkerIndex = i

			w, err := New(wcfg, barrier)
			if err != nil {
				errs[i] = fmt.Errorf("worker %d: bind: %w", i, err)
				return
			}
			if err := w.Engine().LoadScript(script); err != nil {
				errs[i] = fmt.Errorf("worker %d: load script: %w", i, err)
				return
			}
			p.workers[i] = w
			log.Printf("🚀 worker %d/%d bound to %s:%d", i, workerCount, cfg.Host, cfg.Port)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Run starts every worker's event loop and blocks until all of them
// exit — which, absent a crash, is never: there is no graceful shutdown
// path in scope, so Run waits indefinitely.
func (p *Pool) Run() error {
	var wg sync.WaitGroup
	errs := make(chan error, len(p.workers))

	for i, w := range p.workers {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			if err := w.Run(); err != nil {
				errs <- fmt.Errorf("worker %d: %w", i, err)
			}
		}(i, w)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a per-worker snapshot, indexed by worker index.
func (p *Pool) Stats() []Stats {
	out := make([]Stats, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.Stats()
	}
	return out
}
