package object

import "testing"

func TestCellInlineValue(t *testing.T) {
	mem := NewMemory(64)
	c := &Cell{}
	if err := c.Set(mem, 42, "t.sc", 1, 1); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	v, err := c.Get(mem, "t.sc", 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestCellAddressTakenRoutesThroughMemory(t *testing.T) {
	mem := NewMemory(64)
	addr, err := mem.Alloc(4)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	c := &Cell{Addr: addr, HasAddr: true}
	if err := c.Set(mem, 7, "t.sc", 1, 1); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	got, err := mem.ReadWord(addr, "t.sc", 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != 7 {
		t.Errorf("expected memory-backed cell to read 7, got %d", got)
	}
}

func TestMemoryBoundsChecking(t *testing.T) {
	mem := NewMemory(8)
	if _, err := mem.ReadWord(8, "t.sc", 1, 1); err == nil {
		t.Errorf("expected an out-of-bounds error")
	}
	if err := mem.WriteWord(5, 1, "t.sc", 1, 1); err == nil {
		t.Errorf("expected an out-of-bounds error for an unaligned tail write")
	}
}

func TestMemoryMarkAndReset(t *testing.T) {
	mem := NewMemory(64)
	mark := mem.Mark()
	if _, err := mem.Alloc(16); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	mem.Reset(mark)
	if mem.Mark() != mark {
		t.Errorf("expected Reset to rewind the bump pointer")
	}
}

func TestFrameLookupWalksChain(t *testing.T) {
	global := NewGlobalFrame()
	global.Declare("g", &Cell{Cached: 1})

	call := NewCallFrame(global)
	block := NewChildFrame(call)
	block.Declare("x", &Cell{Cached: 2})

	if _, ok := block.Lookup("g"); !ok {
		t.Errorf("expected to find global variable through the chain")
	}
	if _, ok := block.Lookup("x"); !ok {
		t.Errorf("expected to find locally declared variable")
	}
	if _, ok := call.Lookup("x"); ok {
		t.Errorf("block-local variable must not be visible from its parent frame")
	}
}

func TestCallFrameParentsToGlobalNotCaller(t *testing.T) {
	global := NewGlobalFrame()
	caller := NewCallFrame(global)
	caller.Declare("onlyInCaller", &Cell{Cached: 1})

	callee := NewCallFrame(global)
	if _, ok := callee.Lookup("onlyInCaller"); ok {
		t.Errorf("callee frame must not see the caller's bindings (no closures)")
	}
}

func TestArrayDeclareAndLookup(t *testing.T) {
	global := NewGlobalFrame()
	global.DeclareArray("arr", &ArrayRef{Addr: 16, Length: 4})

	a, ok := global.Lookup("arr")
	if ok {
		t.Errorf("array name must not resolve via scalar Lookup: got %v", a)
	}
	ar, ok := global.LookupArray("arr")
	if !ok {
		t.Fatalf("expected to find declared array")
	}
	if ar.Length != 4 {
		t.Errorf("expected length 4, got %d", ar.Length)
	}
}
