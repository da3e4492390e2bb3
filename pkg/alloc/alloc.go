// Package alloc is the public surface of the allocator: a heap backed by a
// wazero WASM linear memory, exposing the four calls a guest
// would make across a syscall boundary — Init, Malloc, Free, Realloc —
// without exposing any of internal/alloc's block-pointer machinery.
package alloc

import (
	"context"
	"sync"

	coreAlloc "github.com/xv6-labs/umalloc-go/internal/alloc"
	"github.com/xv6-labs/umalloc-go/internal/substrate"
	"github.com/xv6-labs/umalloc-go/internal/xerrors"
)

// Heap is one allocator instance with its own WASM-backed memory. Unlike
// ummalloc.c's single global heap, each New call returns an independent
// handle, and Init/Malloc/Free/Realloc operate on that handle; a mutex
// serializes calls on it.
type Heap struct {
	mu        sync.Mutex
	allocator *coreAlloc.Allocator
	substrate *substrate.WasmHeap
}

// New returns an uninitialized Heap; call Init before any other method.
func New() *Heap {
	return &Heap{allocator: coreAlloc.New()}
}

// Init brings up the backing WASM memory and lays down the allocator's
// initial free chunk. It must be called exactly once before Malloc, Free,
// or Realloc.
func (h *Heap) Init(ctx context.Context, cfg *substrate.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	heap, err := substrate.NewWasmHeap(ctx, cfg)
	if err != nil {
		return err
	}
	if err := h.allocator.Init(heap); err != nil {
		_ = heap.Close(ctx)
		return err
	}
	h.substrate = heap
	return nil
}

// Malloc returns a pointer to a newly allocated block of at least n usable
// bytes, or 0 if none could be allocated.
func (h *Heap) Malloc(n uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocator.Malloc(n)
}

// Free returns the block at ptr to the heap. Free(0) is a no-op.
func (h *Heap) Free(ptr uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocator.Free(ptr)
}

// Realloc resizes the block at ptr to n bytes, preserving its contents up
// to the smaller of the old and new sizes.
func (h *Heap) Realloc(ptr uint32, n uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocator.Realloc(ptr, n)
}

// Stats returns a snapshot of the allocator's lifetime counters.
func (h *Heap) Stats() coreAlloc.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocator.Stats()
}

// Close tears down the backing WASM runtime. Callers must not use the Heap
// afterward.
func (h *Heap) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.substrate == nil {
		return xerrors.ErrInitFailed
	}
	return h.substrate.Close(ctx)
}
