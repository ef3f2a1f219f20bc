package bpf

import (
	"runtime"
	"sync/atomic"
)

// AttachBarrier coordinates a SO_REUSEPORT group so exactly one worker
// attaches the affinity filter. The kernel applies a REUSEPORT group's
// filter to the whole group, so attaching it more than once is
// redundant, and attaching it after a sibling has already accepted
// connections would change routing mid-flight. Worker 0 binds, attaches,
// and flips the barrier; every other worker binds first, then spins
// until the barrier opens before it starts listening.
type AttachBarrier struct {
	ready atomic.Bool
}

// NewAttachBarrier returns a barrier in the not-ready state.
func NewAttachBarrier() *AttachBarrier {
	return &AttachBarrier{}
}

// MarkReady opens the barrier. Called once, by worker 0, after its own
// Attach call returns (success or tolerated failure — either way the
// group's filter state is now settled).
func (b *AttachBarrier) MarkReady() {
	b.ready.Store(true)
}

// Wait spins until MarkReady has been called. Workers other than worker
// 0 call this after their own bind, before their own listen, so no
// worker starts accepting connections ahead of the group's filter being
// attached.
func (b *AttachBarrier) Wait() {
	for !b.ready.Load() {
		runtime.Gosched()
	}
}
