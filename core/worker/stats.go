package worker

import "github.com/keystonegw/keystone/core/pools"

// Stats is the supplemented pool-statistics surface: an operator-facing
// snapshot of one worker's steady-state memory reuse, request throughput,
// and process-wide GC behavior, not part of the wire protocol.
type Stats struct {
	Accepted          uint64
	Served            uint64
	ActiveConnections int
	PoolGets          uint64
	PoolPuts          uint64
	PoolHitRate       float64
	GC                pools.GCStats
}
