// Package eventloop implements the proactor-style interface the worker
// and connection state machine are built against: callers Submit an
// interest in a readiness kind for an fd and later Wait for Completions.
//
// Linux gives us epoll, a reactor: it tells you an fd is ready, not that
// an operation finished. There is no io_uring dependency here, so this
// package emulates the proactor vocabulary on top of it — a Completion
// means "the read/write/accept you submitted interest for may now make
// progress," and the connection state machine still performs the actual
// read(2)/write(2)/accept4(2) itself after being notified. This is a
// deliberate layering choice, not a true asynchronous I/O backend; it
// keeps the call sites written against submit/complete semantics so a
// future io_uring backend could be dropped in without changing callers.
package eventloop

import (
	"golang.org/x/sys/unix"
)

// Interest is the readiness kind a caller submits for an fd.
type Interest int

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Completion reports that fd has become ready for the interest kinds
// set. A single completion can report both read and write readiness in
// one event, mirroring epoll's combined event mask.
type Completion struct {
	Fd       int
	Readable bool
	Writable bool
	// HangUp is set when the peer closed its end (EPOLLRDHUP/EPOLLHUP)
	// or an error condition was reported (EPOLLERR) alongside the fd.
	HangUp bool
}

// Loop wraps one epoll instance. Each worker owns exactly one Loop for
// its listening socket and every connection fd assigned to it.
type Loop struct {
	epfd        int
	events      []unix.EpollEvent
	completions []Completion
}

// New creates a Loop sized to report up to maxEvents completions per
// Wait call.
func New(maxEvents int) (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Loop{
		epfd:        epfd,
		events:      make([]unix.EpollEvent, maxEvents),
		completions: make([]Completion, maxEvents),
	}, nil
}

// Close releases the underlying epoll fd.
func (l *Loop) Close() error {
	return unix.Close(l.epfd)
}

func toEpollMask(interest Interest) uint32 {
	mask := uint32(unix.EPOLLRDHUP)
	if interest&InterestRead != 0 {
		mask |= unix.EPOLLIN
	}
	if interest&InterestWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Submit registers fd for the given interest, level-triggered. Submit is
// also how a caller switches a previously-registered fd from one
// interest to another (e.g. done reading, now wants write readiness) —
// it always performs EPOLL_CTL_MOD after the first EPOLL_CTL_ADD.
func (l *Loop) Submit(fd int, interest Interest) error {
	ev := unix.EpollEvent{
		Events: toEpollMask(interest),
		Fd:     int32(fd),
	}
	err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	if err == unix.EEXIST {
		err = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	return err
}

// Cancel removes fd from the watch set, used when a connection closes.
func (l *Loop) Cancel(fd int) error {
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks up to timeoutMs (negative blocks indefinitely) and returns
// the completions ready since the last call. A nil, nil result on
// EINTR is not an error — the caller just loops back into Wait.
func (l *Loop) Wait(timeoutMs int) ([]Completion, error) {
	n, err := unix.EpollWait(l.epfd, l.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	for i := 0; i < n; i++ {
		ev := l.events[i]
		l.completions[i] = Completion{
			Fd:       int(ev.Fd),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			HangUp:   ev.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0,
		}
	}
	return l.completions[:n], nil
}
