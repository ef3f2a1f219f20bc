// Package bpf assembles and attaches the classic BPF program that binds
// one TCP connection to one worker for its entire lifetime. Worker 0
// attaches the three-instruction program once for the whole SO_REUSEPORT
// group (see AttachBarrier); the kernel picks the group member whose index equals the
// connection's RX hash modulo the worker count, so the same fd always
// lands on the same worker's accept queue.
package bpf

import (
	"errors"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidWorkerCount rejects N=0: there is no group member to
	// route to.
	ErrInvalidWorkerCount = errors.New("bpf: worker count must be >= 1")
	// ErrProgramTooLarge guards the kernel's classic-BPF instruction
	// limit. The affinity program is always 3 instructions, so this is
	// unreachable in practice; it exists so Attach never silently
	// truncates a program instead of failing loudly.
	ErrProgramTooLarge = errors.New("bpf: program exceeds maximum instruction count")

	// maxInstructions mirrors BPF_MAXINSNS (4096) from the kernel's
	// classic BPF verifier.
	maxInstructions = 4096
)

// Program assembles the classic BPF affinity filter for workerCount
// group members: load the kernel's RX hash extension, reduce it modulo
// workerCount, and return the result as the socket index within the
// REUSEPORT group. For workerCount == 1 every connection still passes
// through the filter and always returns index 0.
func Program(workerCount int) ([]unix.SockFilter, error) {
	if workerCount < 1 {
		return nil, ErrInvalidWorkerCount
	}

	insns := []bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtRXHash},
		bpf.ALUOpConstant{Op: bpf.ALUOpMod, Val: uint32(workerCount)},
		bpf.RetA{},
	}

	if len(insns) > maxInstructions {
		return nil, ErrProgramTooLarge
	}

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, err
	}

	filter := make([]unix.SockFilter, len(raw))
	for i, r := range raw {
		filter[i] = unix.SockFilter{
			Code: r.Op,
			Jt:   r.Jt,
			Jf:   r.Jf,
			K:    r.K,
		}
	}
	return filter, nil
}

// Attach assembles and attaches the affinity program to fd via
// SO_ATTACH_REUSEPORT_CBPF. A non-nil error here is meant to be logged
// and tolerated by the caller, not propagated as a startup failure — an
// older kernel or a missing capability degrades to ordinary (unordered)
// REUSEPORT load balancing rather than failing the listener.
func Attach(fd, workerCount int) error {
	filter, err := Program(workerCount)
	if err != nil {
		return err
	}

	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_REUSEPORT_CBPF, &prog)
}
