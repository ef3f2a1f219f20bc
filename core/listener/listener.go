// Package listener binds the per-worker listening socket: a nonblocking
// SO_REUSEPORT+SO_REUSEADDR STREAM socket, gated behind the BPF
// attach-ordering barrier, then listen with the caller's backlog (128 in
// the default config).
package listener

import (
	"log"

	"golang.org/x/sys/unix"

	"github.com/keystonegw/keystone/core/bpf"
)

// Listener is one worker's bound, listening socket.
type Listener struct {
	FD int
}

// Bind creates, binds, and (after the barrier opens) listens on
// host:port. When enableAffinity is set, workerIndex 0 attaches the BPF
// affinity filter and opens barrier, and every other index waits on it
// after its own bind; otherwise the barrier is not used. A BPF
// attach failure is logged and tolerated — the listener still comes up,
// just without kernel-assisted connection affinity.
func Bind(host string, port int, backlog int, workerCount, workerIndex int, enableAffinity bool, barrier *bpf.AttachBarrier) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	addr := &unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], parseIPv4(host))
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}

	if enableAffinity {
		if workerIndex == 0 {
			if aerr := bpf.Attach(fd, workerCount); aerr != nil {
				log.Printf("bpf: attach failed, falling back to unordered REUSEPORT balancing: %v", aerr)
			}
			barrier.MarkReady()
		} else {
			barrier.Wait()
		}
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Listener{FD: fd}, nil
}

// Accept accepts one pending connection, sets it nonblocking with
// TCP_NODELAY, and returns its fd. Returns (0, false, nil) on EAGAIN —
// no connection currently pending.
func (l *Listener) Accept() (fd int, ok bool, err error) {
	nfd, _, aerr := unix.Accept4(l.FD, unix.SOCK_NONBLOCK)
	if aerr != nil {
		if aerr == unix.EAGAIN {
			return 0, false, nil
		}
		return 0, false, aerr
	}

	if serr := unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); serr != nil {
		unix.Close(nfd)
		return 0, false, serr
	}

	return nfd, true, nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.FD)
}

// parseIPv4 parses a dotted-quad string without pulling in net.ParseIP,
// since this module never otherwise needs the net package's IPv6 and
// DNS machinery.
func parseIPv4(host string) []byte {
	var out [4]byte
	octet := 0
	val := 0
	for i := 0; i < len(host); i++ {
		c := host[i]
		if c == '.' {
			out[octet] = byte(val)
			octet++
			val = 0
			continue
		}
		val = val*10 + int(c-'0')
	}
	out[octet] = byte(val)
	return out[:]
}
