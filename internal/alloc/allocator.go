package alloc

import (
	"github.com/xv6-labs/umalloc-go/internal/substrate"
	"github.com/xv6-labs/umalloc-go/internal/xerrors"
)

// initialChunkBytes is the first extend_heap call's size in ummalloc.c's
// CHUNKSIZE (4096), the amount mm_init requests up front so the first
// malloc calls don't each pay for their own heap growth.
const initialChunkBytes = 4096

// Allocator is the segregated-fit heap itself. It holds no memory of its
// own beyond the 13 bucket heads: every block, free or allocated, lives in
// the substrate.Heap it was initialized with. The bucket heads are kept as
// a plain Go array rather than heap-resident words — ummalloc.c reserves
// them inside the managed region because C has nowhere else address-free
// to put them; Go does, so prologue/epilogue sentinels are the only fixed
// heap layout this allocator still needs.
//
// Allocator is not safe for concurrent use; callers that need that must
// serialize their own access (see Non-goals in the package's governing
// specification).
type Allocator struct {
	heap    substrate.Heap
	buckets [numBuckets]uint32
	stats   Stats
	debug   *Debugger
}

// New returns an uninitialized Allocator; call Init before any Malloc/Free.
func New() *Allocator {
	return &Allocator{}
}

// Init lays down the prologue and epilogue sentinels on heap and performs
// the first chunk-sized extend_heap, mirroring ummalloc.c's mm_init. It
// must be called exactly once per Allocator before any other method.
func (a *Allocator) Init(heap substrate.Heap) error {
	a.heap = heap
	a.buckets = [numBuckets]uint32{}
	a.stats = Stats{}

	// Reserve one alignment padding word, the prologue block (header+
	// footer, size DSIZE, allocated), and the epilogue header (size 0,
	// allocated) — four words, a double-word multiple, so every regular
	// block pointer that follows stays D-aligned. The prologue's own bp
	// is never used as a real block; it exists purely so prevBlock() on
	// the heap's first real block finds an "allocated" neighbor instead
	// of needing a boundary check.
	addr, ok := heap.GrowHeap(4 * wordSize)
	if !ok {
		return xerrors.ErrInitFailed
	}
	prologueWord := packTag(doubleWord, true)
	heap.WriteWord(addr+wordSize, prologueWord)
	heap.WriteWord(addr+2*wordSize, prologueWord)
	heap.WriteWord(addr+3*wordSize, packTag(0, true))

	if _, ok := a.extendHeap(initialChunkBytes); !ok {
		return xerrors.ErrInitFailed
	}
	return nil
}

// extendHeap grows the heap by size bytes (rounded up to a double-word
// multiple, as every caller already passes aligned sizes), lays down a new
// free block and epilogue, and coalesces it with whatever free block
// preceded the old epilogue. It returns the (possibly merged) block
// pointer of the new free space.
func (a *Allocator) extendHeap(size uint32) (uint32, bool) {
	size = (size + doubleWord - 1) &^ (doubleWord - 1)

	bp, ok := a.heap.GrowHeap(size)
	if !ok {
		return 0, false
	}

	a.setTag(bp, size, false)
	a.setPrevFree(bp, 0)
	a.setNextFree(bp, 0)
	// The new epilogue sits in the last word of the grown region: what
	// was HDRP(NEXT_BLKP(bp)) before the growth is now the same address,
	// bp+size-wordSize.
	a.heap.WriteWord(bp+size-wordSize, packTag(0, true))

	return a.coalesce(bp, modeFree, 0), true
}

// place carves asize bytes off the front of free block bp, splitting off
// the remainder as a new free block when it's big enough to hold one
// (header+footer+two links = 2*DSIZE), mirroring ummalloc.c's place(). If
// exist is true, bp is currently linked into a bucket and must be removed
// first; Realloc calls this with exist=false on a block it already pulled
// out of the free path (it was never in a bucket to begin with).
func (a *Allocator) place(bp uint32, asize uint32, exist bool) {
	current := a.blockSize(bp)
	if exist {
		a.remove(bp)
	}

	if current-asize >= 2*doubleWord {
		a.setTag(bp, asize, true)
		remainder := bp + asize
		a.setTag(remainder, current-asize, false)
		a.setPrevFree(remainder, 0)
		a.setNextFree(remainder, 0)
		a.coalesce(remainder, modeFree, 0)
	} else {
		a.setTag(bp, current, true)
	}
}

// Malloc returns a pointer to a newly allocated block of at least n usable
// bytes, or 0 if no block could be found or grown. Malloc(0) returns 0,
// matching ummalloc.c's mm_malloc.
func (a *Allocator) Malloc(n uint32) uint32 {
	defer a.debugCheckAfter("malloc")
	if n == 0 {
		return 0
	}
	asize := align(n)

	if bp, ok := a.findFit(asize); ok {
		a.place(bp, asize, true)
		a.stats.recordAlloc(asize)
		return bp
	}

	// Unlike the naive allocator, a miss here grows the heap by exactly
	// asize rather than max(asize, CHUNKSIZE) — CHUNKSIZE only seeds the
	// very first free block in Init.
	bp, ok := a.extendHeap(asize)
	if !ok {
		a.stats.recordFailure()
		return 0
	}
	a.place(bp, asize, true)
	a.stats.recordAlloc(asize)
	return bp
}

// Free returns bp's block to the free list, coalescing with any free
// physical neighbors. Free(0) is a no-op.
func (a *Allocator) Free(bp uint32) {
	defer a.debugCheckAfter("free")
	if bp == 0 {
		return
	}
	size := a.blockSize(bp)
	a.setTag(bp, size, false)
	a.setPrevFree(bp, 0)
	a.setNextFree(bp, 0)
	a.coalesce(bp, modeFree, 0)
	a.stats.recordFree(size)
}

// Realloc resizes the block at ptr to hold n bytes, preferring an in-place
// grow or shrink over a fresh allocation + copy, mirroring ummalloc.c's
// mm_realloc: shrinking always happens in place (optionally splitting off
// the remainder); growing first tries to absorb a free physical neighbor
// before falling back to malloc+memmove+free. ptr==0 behaves as Malloc(n);
// n==0 behaves as Free(ptr) (returning 0).
func (a *Allocator) Realloc(ptr uint32, n uint32) uint32 {
	if ptr == 0 {
		return a.Malloc(n)
	}
	if n == 0 {
		a.Free(ptr)
		return 0
	}
	defer a.debugCheckAfter("realloc")

	oldSize := a.blockSize(ptr)
	asize := align(n)
	if asize == oldSize {
		return ptr
	}

	if asize < oldSize {
		a.place(ptr, asize, false)
		return ptr
	}

	merged := a.coalesce(ptr, modeRealloc, asize)
	if a.blockSize(merged) >= asize {
		if merged != ptr {
			payload := a.heap.ReadBytes(ptr, oldSize-doubleWord)
			a.heap.WriteBytes(merged, payload)
		}
		a.place(merged, asize, false)
		return merged
	}

	newPtr := a.Malloc(n)
	if newPtr == 0 {
		return 0
	}
	payload := a.heap.ReadBytes(ptr, oldSize-doubleWord)
	a.heap.WriteBytes(newPtr, payload)
	a.Free(ptr)
	return newPtr
}

// Stats returns a snapshot of the allocator's lifetime counters.
func (a *Allocator) Stats() Snapshot {
	return a.stats.snapshot()
}
