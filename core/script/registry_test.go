package script

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewHandlerRegistry()
	fn := &lua.LFunction{}

	ref := reg.Register(fn)
	got, ok := reg.Get(ref)
	if !ok || got != fn {
		t.Fatalf("Get(%d) = %v, %v", ref, got, ok)
	}
}

func TestRegistryUnknownRef(t *testing.T) {
	reg := NewHandlerRegistry()
	if _, ok := reg.Get(0); ok {
		t.Fatalf("Get(0) on empty registry = ok, want not found")
	}
	if _, ok := reg.Get(-1); ok {
		t.Fatalf("Get(-1) = ok, want not found")
	}
}
