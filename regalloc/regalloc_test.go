package regalloc

import "testing"

func TestAllocIsLIFO(t *testing.T) {
	a := New()

	r1, err := a.Alloc(Temp)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	r2, err := a.Alloc(Temp)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	a.Free(r2)

	r3, err := a.Alloc(Temp)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r3 != r2 {
		t.Errorf("expected LIFO reuse of %d, got %d", r2, r3)
	}
	_ = r1
}

func TestClassesAreDisjoint(t *testing.T) {
	a := New()

	seen := make(map[int]Class)
	for _, c := range []Class{Temp, Local, Arg} {
		for a.Available(c) {
			n, err := a.Alloc(c)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if prev, ok := seen[n]; ok {
				t.Fatalf("register %d allocated from both %v and %v", n, prev, c)
			}
			seen[n] = c
		}
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := New()

	for a.Available(Arg) {
		if _, err := a.Alloc(Arg); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}

	if _, err := a.Alloc(Arg); err == nil {
		t.Errorf("expected an error allocating from an exhausted class")
	}
}

func TestFreeOfUnallocatedRegisterIsNoOp(t *testing.T) {
	a := New()
	a.Free(999) // never allocated; must not panic
}

func TestName(t *testing.T) {
	if Name(3) != "r3" {
		t.Errorf("expected \"r3\", got %q", Name(3))
	}
}

func TestUnknownClassIsError(t *testing.T) {
	a := New()
	if _, err := a.Alloc(Class(99)); err == nil {
		t.Errorf("expected an error for an unknown register class")
	}
}
