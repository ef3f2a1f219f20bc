package listener

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/keystonegw/keystone/core/bpf"
)

func TestParseIPv4(t *testing.T) {
	got := parseIPv4("127.0.0.1")
	want := []byte{127, 0, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseIPv4 = %v, want %v", got, want)
		}
	}
}

func TestBindListenAcceptLoopback(t *testing.T) {
	ln, err := Bind("127.0.0.1", 0, 16, 1, 0, false, bpf.NewAttachBarrier())
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ln.Close()

	sa, err := unix.Getsockname(ln.FD)
	if err != nil {
		t.Fatalf("Getsockname: %v", err)
	}
	inet4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("Getsockname returned %T", sa)
	}

	clientFD, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	defer unix.Close(clientFD)

	dial := &unix.SockaddrInet4{Port: inet4.Port, Addr: inet4.Addr}
	if err := unix.Connect(clientFD, dial); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	fd, ok, err := acceptRetry(ln)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !ok {
		t.Fatalf("Accept did not return a connection")
	}
	defer unix.Close(fd)
}

// acceptRetry spins briefly since the connection may not be queued
// immediately after Connect returns on a nonblocking accept socket.
func acceptRetry(ln *Listener) (int, bool, error) {
	for i := 0; i < 1000; i++ {
		fd, ok, err := ln.Accept()
		if err != nil {
			return 0, false, err
		}
		if ok {
			return fd, true, nil
		}
	}
	return 0, false, nil
}
