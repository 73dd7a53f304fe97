// Package object defines the runtime value representation and storage
// model used by the tree-walking interpreter: scalar storage cells,
// the frame-stack environment chain, and the byte-addressable
// simulated memory that backs arrays and address-taken scalars.
//
// Every value is a single fixed uint32 word rather than a polymorphic
// union, since the language has no other runtime representation to
// carry. Address-taken scalars are routed through the same
// byte-addressable Memory that backs arrays, so that `&x` and `*p`
// always observe one consistent address space instead of two separate
// storage models that could disagree.
package object

import (
	"encoding/binary"

	"github.com/skx/muc/diagnostics"
)

// Value is a single 32-bit machine word. Signedness is not a property
// of the stored bits (both u32 and i32 are the same 32 bits) but of
// how an operation interprets them, per the data model.
type Value uint32

// AsI32 reinterprets the word as a two's-complement signed integer.
func (v Value) AsI32() int32 { return int32(v) }

// AsU32 reinterprets the word as an unsigned integer.
func (v Value) AsU32() uint32 { return uint32(v) }

// Memory is the simulated byte-addressable address space backing
// arrays and address-taken scalars, laid out little-endian per the
// data model. It is a simple bump allocator with mark/reset support so
// the interpreter can free a function's local region on return,
// mirroring the downward-growing software stack of the code generator
// without modeling actual stack-pointer arithmetic (the interpreter
// has no register file to grow it in).
type Memory struct {
	bytes []byte
	next  uint32
}

// NewMemory allocates size bytes of zero-filled simulated memory.
func NewMemory(size int) *Memory {
	return &Memory{bytes: make([]byte, size)}
}

// Alloc bump-allocates n bytes and returns their base address.
func (m *Memory) Alloc(n int) (uint32, error) {
	addr := m.next
	end := uint64(addr) + uint64(n)
	if end > uint64(len(m.bytes)) {
		return 0, diagnostics.New(diagnostics.Runtime, "", 0, 0,
			"out of simulated memory allocating %d bytes", n)
	}
	m.next = uint32(end)
	return addr, nil
}

// Mark returns the current bump-pointer position.
func (m *Memory) Mark() uint32 { return m.next }

// Reset rewinds the bump pointer to a previously captured Mark,
// freeing everything allocated since then. Freed bytes are not
// zeroed; re-allocation will overwrite them before use.
func (m *Memory) Reset(mark uint32) { m.next = mark }

// ReadWord reads a little-endian 32-bit word at addr.
func (m *Memory) ReadWord(addr uint32, file string, line, col int) (Value, error) {
	if uint64(addr)+4 > uint64(len(m.bytes)) {
		return 0, diagnostics.New(diagnostics.Runtime, file, line, col,
			"memory read out of bounds at address 0x%x", addr)
	}
	return Value(binary.LittleEndian.Uint32(m.bytes[addr : addr+4])), nil
}

// WriteWord writes a little-endian 32-bit word at addr.
func (m *Memory) WriteWord(addr uint32, v Value, file string, line, col int) error {
	if uint64(addr)+4 > uint64(len(m.bytes)) {
		return diagnostics.New(diagnostics.Runtime, file, line, col,
			"memory write out of bounds at address 0x%x", addr)
	}
	binary.LittleEndian.PutUint32(m.bytes[addr:addr+4], uint32(v))
	return nil
}

// Size reports the total size of the simulated address space.
func (m *Memory) Size() int {
	return len(m.bytes)
}

// Cell is a single scalar binding. When HasAddr is set the cell's
// value of record lives in Memory at Addr (because its address was
// taken somewhere in the owning function); otherwise the value lives
// inline in Cached, avoiding a memory round-trip for the common case.
type Cell struct {
	Addr      uint32
	HasAddr   bool
	Cached    Value
	Signed    bool
	Volatile  bool
	IsPointer bool
}

// Get reads the cell's current value, routing through mem when the
// cell is address-taken.
func (c *Cell) Get(mem *Memory, file string, line, col int) (Value, error) {
	if c.HasAddr {
		return mem.ReadWord(c.Addr, file, line, col)
	}
	return c.Cached, nil
}

// Set writes the cell's value, routing through mem when the cell is
// address-taken. Volatile cells always route through their canonical
// store rather than relying on any interpreter-level caching, which
// falls out naturally here since Cached/Memory are the only two
// stores and both are written immediately.
func (c *Cell) Set(mem *Memory, v Value, file string, line, col int) error {
	if c.HasAddr {
		return mem.WriteWord(c.Addr, v, file, line, col)
	}
	c.Cached = v
	return nil
}

// ArrayRef describes a declared array: its base address in Memory and
// its element count. Arrays always live in Memory so that pointer
// arithmetic derived from `&arr[0]` agrees with ordinary indexing.
type ArrayRef struct {
	Addr   uint32
	Length int
}

// Frame is one level of the environment chain: either the single
// global frame, or a block/function scope whose parent is the
// enclosing lexical scope (function-call base frames are the one
// exception, parented directly to the global frame — see NewCallFrame).
type Frame struct {
	vars   map[string]*Cell
	arrays map[string]*ArrayRef
	parent *Frame
}

// NewGlobalFrame creates the root frame with no parent.
func NewGlobalFrame() *Frame {
	return &Frame{vars: make(map[string]*Cell), arrays: make(map[string]*ArrayRef)}
}

// NewCallFrame creates a function-call's base frame, parented directly
// to global regardless of the frame the call occurred in — the
// language has no closures or dynamic scoping.
func NewCallFrame(global *Frame) *Frame {
	return &Frame{vars: make(map[string]*Cell), arrays: make(map[string]*ArrayRef), parent: global}
}

// NewChildFrame creates a nested block scope, parented to whatever
// frame is lexically current (which may itself be a function's base
// frame or another nested block).
func NewChildFrame(parent *Frame) *Frame {
	return &Frame{vars: make(map[string]*Cell), arrays: make(map[string]*ArrayRef), parent: parent}
}

// Declare introduces a new scalar variable in this frame.
func (f *Frame) Declare(name string, c *Cell) {
	f.vars[name] = c
}

// DeclareArray introduces a new array in this frame.
func (f *Frame) DeclareArray(name string, a *ArrayRef) {
	f.arrays[name] = a
}

// Lookup finds a variable cell by name, searching this frame then its
// ancestors.
func (f *Frame) Lookup(name string) (*Cell, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if c, ok := fr.vars[name]; ok {
			return c, true
		}
	}
	return nil, false
}

// LookupArray finds an array by name, searching this frame then its
// ancestors.
func (f *Frame) LookupArray(name string) (*ArrayRef, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if a, ok := fr.arrays[name]; ok {
			return a, true
		}
	}
	return nil, false
}

// Names reports the scalar variable names declared directly in this
// frame (not its ancestors), for an observer such as internal/debugger
// that wants to render "locals in scope" without a map reference.
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.vars))
	for n := range f.vars {
		names = append(names, n)
	}
	return names
}

// Parent returns this frame's lexical parent, or nil for the global
// frame.
func (f *Frame) Parent() *Frame { return f.parent }
