// Package regalloc assigns machine registers to temporaries, locals,
// and arguments during code generation.
//
// Each register class is an independent free-list with LIFO push/pop
// semantics: a register given back becomes the next one handed out,
// which keeps generated code reusing a small, low-numbered working set
// instead of ratcheting upward through the whole file.
package regalloc

import "fmt"

// Class identifies which of the three disjoint register pools a
// register belongs to.
type Class int

const (
	// Temp holds intermediate expression results.
	Temp Class = iota
	// Local holds local-variable storage.
	Local
	// Arg holds incoming/outgoing call arguments.
	Arg
)

func (c Class) String() string {
	switch c {
	case Temp:
		return "temp"
	case Local:
		return "local"
	case Arg:
		return "arg"
	default:
		return "unknown"
	}
}

// freeList is a LIFO stack of register numbers belonging to one class.
type freeList struct {
	free []int
}

func newFreeList(lo, hi int) *freeList {
	f := &freeList{}
	// push in descending order so the lowest-numbered register of the
	// class is handed out first.
	for n := hi; n >= lo; n-- {
		f.free = append(f.free, n)
	}
	return f
}

func (f *freeList) pop() (int, bool) {
	l := len(f.free)
	if l == 0 {
		return 0, false
	}
	n := f.free[l-1]
	f.free = f.free[:l-1]
	return n, true
}

func (f *freeList) push(n int) {
	f.free = append(f.free, n)
}

// Allocator hands out registers r0-r30 (r31 is reserved, read-only,
// per the data model) across the three classes. Class boundaries are
// fixed at construction time so a given register number always maps
// to exactly one class.
type Allocator struct {
	classes map[Class]*freeList
	owner   map[int]Class
}

// Default layout: temps get the bottom of the range, then locals, then
// arguments, leaving r31 untouched.
const (
	tempLo, tempHi   = 0, 10
	localLo, localHi = 11, 25
	argLo, argHi     = 26, 30
)

// New builds an Allocator with the default temp/local/arg register
// ranges.
func New() *Allocator {
	a := &Allocator{
		classes: map[Class]*freeList{
			Temp:  newFreeList(tempLo, tempHi),
			Local: newFreeList(localLo, localHi),
			Arg:   newFreeList(argLo, argHi),
		},
		owner: make(map[int]Class),
	}
	return a
}

// Alloc pops the next free register of the given class. It returns an
// error if the class is exhausted; the allocator has no spill mechanism
// of its own, so a caller that can spill checks Available first.
func (a *Allocator) Alloc(c Class) (int, error) {
	fl, ok := a.classes[c]
	if !ok {
		return 0, fmt.Errorf("regalloc: unknown register class %v", c)
	}
	n, ok := fl.pop()
	if !ok {
		return 0, fmt.Errorf("regalloc: out of %s registers", c)
	}
	a.owner[n] = c
	return n, nil
}

// Free returns a previously allocated register to its class's
// free-list. Freeing a register not currently allocated is a no-op
// rather than a panic, so a double-free in caller bookkeeping cannot
// crash code generation.
func (a *Allocator) Free(n int) {
	c, ok := a.owner[n]
	if !ok {
		return
	}
	delete(a.owner, n)
	a.classes[c].push(n)
}

// Available reports whether a class still has at least one free
// register.
func (a *Allocator) Available(c Class) bool {
	fl, ok := a.classes[c]
	if !ok {
		return false
	}
	return len(fl.free) > 0
}

// Name renders a register number in the assembly syntax expected by
// the code generator, e.g. Name(3) == "r3".
func Name(n int) string {
	return fmt.Sprintf("r%d", n)
}
