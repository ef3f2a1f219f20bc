package arena

import "testing"

func TestBytesCopies(t *testing.T) {
	a := New(64)
	src := []byte("hello")
	got := a.Bytes(src)

	src[0] = 'X'
	if string(got) != "hello" {
		t.Fatalf("arena copy aliased source: got %q", got)
	}
}

func TestResetRetainsCapacity(t *testing.T) {
	a := New(8)
	a.Bytes([]byte("abcdefgh"))
	if cap(a.buf) < 8 {
		t.Fatalf("expected capacity >= 8, got %d", cap(a.buf))
	}

	a.Reset()
	if a.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", a.Len())
	}
	if cap(a.buf) < 8 {
		t.Fatalf("Reset freed capacity: cap=%d", cap(a.buf))
	}
}

func TestStringIndependentOfSource(t *testing.T) {
	a := New(16)
	src := []byte("value")
	s := a.String(string(src))
	src[0] = 'z'
	if s != "value" {
		t.Fatalf("arena string aliased source: got %q", s)
	}
}
