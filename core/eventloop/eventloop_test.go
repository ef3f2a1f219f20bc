package eventloop

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestSubmitAndWaitReportsReadable(t *testing.T) {
	fds, err := unixPipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	l, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if err := l.Submit(fds[0], InterestRead); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	completions, err := l.Wait(1000)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(completions) != 1 {
		t.Fatalf("len(completions) = %d, want 1", len(completions))
	}
	if completions[0].Fd != fds[0] || !completions[0].Readable {
		t.Fatalf("completion = %+v", completions[0])
	}
}

func TestCancelStopsReporting(t *testing.T) {
	fds, err := unixPipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	l, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	if err := l.Submit(fds[0], InterestRead); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := l.Cancel(fds[0]); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	completions, err := l.Wait(50)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(completions) != 0 {
		t.Fatalf("len(completions) = %d, want 0 after Cancel", len(completions))
	}
}

func unixPipe() ([2]int, error) {
	var fds [2]int
	err := unix.Pipe(fds[:])
	return fds, err
}
