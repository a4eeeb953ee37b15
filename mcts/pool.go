// Package mcts implements a Monte-Carlo Tree Search player with the RAVE
// enhancement. Tree nodes live in a fixed-capacity bump-allocated pool and
// reference each other through relative byte offsets, so the whole tree is
// position independent and discarding it between moves is a single cursor
// write.
package mcts

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Pool is a bump allocator over one contiguous buffer. There is no
// per-allocation metadata and no individual free; Reset discards every
// allocation at once in O(1).
type Pool struct {
	words []uint64 // backing store; word-typed for 8-byte alignment
	base  unsafe.Pointer
	cap   uintptr
	len   uintptr
}

// NewPool allocates a pool of the given byte capacity, rounded down to
// whole words.
func NewPool(capacity uintptr) (*Pool, error) {
	capacity &^= 7
	if capacity == 0 {
		return nil, errors.New("mcts: pool capacity must be at least one word")
	}

	p := &Pool{words: make([]uint64, capacity/8)}
	p.base = unsafe.Pointer(&p.words[0])
	p.cap = capacity
	return p, nil
}

// Alloc rounds the cursor up to align, reserves size bytes, and returns a
// pointer to them. It returns nil once the pool cannot satisfy the request;
// an allocation of exactly the remaining capacity still succeeds.
func (p *Pool) Alloc(align, size uintptr) unsafe.Pointer {
	aligned := (p.len + align - 1) &^ (align - 1)
	if aligned+size > p.cap {
		return nil
	}

	ptr := unsafe.Add(p.base, aligned)
	p.len = aligned + size
	return ptr
}

// Reset discards every allocation.
func (p *Pool) Reset() { p.len = 0 }

// Len returns the bytes currently allocated.
func (p *Pool) Len() uintptr { return p.len }

// Cap returns the pool capacity in bytes.
func (p *Pool) Cap() uintptr { return p.cap }
