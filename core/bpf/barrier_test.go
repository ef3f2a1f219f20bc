package bpf

import (
	"testing"
	"time"
)

func TestBarrierBlocksUntilReady(t *testing.T) {
	b := NewAttachBarrier()
	done := make(chan struct{})

	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Wait returned before MarkReady")
	case <-time.After(20 * time.Millisecond):
	}

	b.MarkReady()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return after MarkReady")
	}
}
