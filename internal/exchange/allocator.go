// Package exchange owns the fixed-size text buffers handed to a recognition engine.
//
// Buffers are allocated as a set, lent to the engine as a view, harvested as strings
// and released exactly once on every exit path.
package exchange

import (
	"errors"
	"sync"
)

var (
	// ErrAllocation is returned when a buffer set cannot be fully allocated.
	ErrAllocation = errors.New("exchange: buffer allocation failed")
	// ErrDoubleFree is reported when a buffer is returned to an allocator twice.
	ErrDoubleFree = errors.New("exchange: buffer freed twice")
)

// Allocator hands out and takes back fixed-size buffers.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte) error
}

// HeapAllocator allocates from the Go heap and tracks buffers that are still out.
type HeapAllocator struct {
	mu  sync.Mutex
	out map[*byte]struct{}
}

// NewHeapAllocator returns an allocator with no outstanding buffers.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{out: make(map[*byte]struct{})}
}

func (a *HeapAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrAllocation
	}
	buf := make([]byte, size)
	a.mu.Lock()
	a.out[&buf[0]] = struct{}{}
	a.mu.Unlock()
	return buf, nil
}

func (a *HeapAllocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return ErrDoubleFree
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.out[&buf[0]]; !ok {
		return ErrDoubleFree
	}
	delete(a.out, &buf[0])
	return nil
}

// Outstanding returns how many buffers have been allocated but not freed.
func (a *HeapAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.out)
}

// PoolAllocator recycles buffers through one sync.Pool per buffer size. A buffer
// goes back to its pool only if it is currently out.
type PoolAllocator struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
	out   map[*byte]struct{}
}

// NewPoolAllocator returns an allocator with a pool pre-created for size.
func NewPoolAllocator(size int) *PoolAllocator {
	p := &PoolAllocator{
		pools: make(map[int]*sync.Pool),
		out:   make(map[*byte]struct{}),
	}
	p.poolFor(size)
	return p
}

func (p *PoolAllocator) poolFor(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.pools[size]
	if !ok {
		pool = &sync.Pool{New: func() any {
			b := make([]byte, size)
			return &b
		}}
		p.pools[size] = pool
	}
	return pool
}

func (p *PoolAllocator) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrAllocation
	}
	b := p.poolFor(size).Get().(*[]byte)
	clear(*b)
	p.mu.Lock()
	p.out[&(*b)[0]] = struct{}{}
	p.mu.Unlock()
	return *b, nil
}

func (p *PoolAllocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return ErrDoubleFree
	}
	p.mu.Lock()
	if _, ok := p.out[&buf[0]]; !ok {
		p.mu.Unlock()
		return ErrDoubleFree
	}
	delete(p.out, &buf[0])
	p.mu.Unlock()
	p.poolFor(len(buf)).Put(&buf)
	return nil
}

// Outstanding returns how many buffers have been allocated but not freed.
func (p *PoolAllocator) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.out)
}
