package alloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xv6-labs/umalloc-go/internal/substrate"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a := New()
	require.NoError(t, a.Init(substrate.NewBufferHeap()))
	return a
}

func TestAlign(t *testing.T) {
	cases := []struct {
		in   uint32
		want uint32
	}{
		{0, 16},
		{1, 16},
		{8, 16},
		{9, 24},
		{16, 24},
		{24, 32},
		{100, 112},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, align(c.in), "align(%d)", c.in)
	}
}

func TestBucketOf(t *testing.T) {
	assert.Equal(t, 0, bucketOf(8))
	assert.Equal(t, 1, bucketOf(9))
	assert.Equal(t, 1, bucketOf(16))
	assert.Equal(t, 2, bucketOf(17))
	assert.Equal(t, numBuckets-1, bucketOf(1<<20))
}

// Scenario 1: init/malloc/free leaves one maximal free block.
func TestScenario_MallocFreeMergesBackToChunk(t *testing.T) {
	a := newTestAllocator(t)

	p := a.Malloc(1)
	require.NotZero(t, p)
	assert.Equal(t, uint32(0), p%doubleWord)

	a.Free(p)

	bp, ok := a.findFit(initialChunkBytes)
	require.True(t, ok)
	assert.GreaterOrEqual(t, a.blockSize(bp), uint32(initialChunkBytes))
}

// Scenario 2: freeing and reallocating the same size class reuses the slot.
func TestScenario_FirstFitReusesFreedSlot(t *testing.T) {
	a := newTestAllocator(t)

	x := a.Malloc(24)
	y := a.Malloc(24)
	require.NotZero(t, x)
	require.NotZero(t, y)

	a.Free(x)
	z := a.Malloc(24)
	assert.Equal(t, x, z)
}

// Scenario 3: freeing two physically adjacent blocks coalesces them.
func TestScenario_AdjacentFreesCoalesce(t *testing.T) {
	a := newTestAllocator(t)

	x := a.Malloc(16)
	y := a.Malloc(16)
	require.NotZero(t, x)
	require.NotZero(t, y)

	a.Free(x)
	a.Free(y)

	merged, ok := a.findFit(2 * align(16))
	require.True(t, ok)
	assert.GreaterOrEqual(t, bucketOf(a.blockSize(merged)), 2)
}

// Scenario 4: shrinking realloc happens in place and leaves a trailing free
// remainder.
func TestScenario_ShrinkReallocInPlace(t *testing.T) {
	a := newTestAllocator(t)

	p := a.Malloc(64)
	require.NotZero(t, p)
	before := a.blockSize(p)

	q := a.Realloc(p, 16)
	assert.Equal(t, p, q)
	assert.Less(t, a.blockSize(q), before)

	// The split-off remainder immediately tries to coalesce with whatever
	// free space follows it, so its final size is at least before-align(16)
	// (more, if it merged with an already-free neighbor left over from the
	// initial chunk carve-up).
	next := a.nextBlock(q)
	assert.False(t, a.isAllocated(next))
	assert.GreaterOrEqual(t, a.blockSize(next), before-align(16))
}

// Scenario 5: a growing realloc whose freed predecessor (together with the
// free space after the block) is big enough coalesces into it, moving the
// payload down to the predecessor's address.
func TestScenario_GrowReallocRelocatesAndPreservesData(t *testing.T) {
	a := newTestAllocator(t)

	x := a.Malloc(16)
	y := a.Malloc(16)
	require.NotZero(t, x)
	require.NotZero(t, y)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	a.heap.WriteBytes(y, payload)

	a.Free(x)

	c := a.Realloc(y, 48)
	assert.Equal(t, x, c)
	got := a.heap.ReadBytes(c, uint32(len(payload)))
	assert.Equal(t, payload, got)
}

// Scenario 6: a long random workload never violates the heap invariants.
func TestScenario_RandomWorkloadPreservesInvariants(t *testing.T) {
	a := newTestAllocator(t)
	rng := rand.New(rand.NewSource(1))

	live := make([]uint32, 0, 64)
	for i := 0; i < 1000; i++ {
		if len(live) > 0 && rng.Intn(2) == 0 {
			idx := rng.Intn(len(live))
			a.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			n := uint32(rng.Intn(4096) + 1)
			p := a.Malloc(n)
			if p != 0 {
				live = append(live, p)
			}
		}
		assertHeapInvariants(t, a)
	}

	for _, p := range live {
		a.Free(p)
	}
	assertHeapInvariants(t, a)
}

// A growing realloc whose only free neighbor is too small to reach the
// target size must decline the merge without touching anything: coalesce's
// modeRealloc path only removes a neighbor from its free list and rewrites
// tags in the same branch that already knows the merge clears target, so a
// declined attempt should leave bp, its header/footer, and every bucket
// head bitwise identical to before the call.
func TestRealloc_DeclinedCoalesceLeavesHeapUnchanged(t *testing.T) {
	a := newTestAllocator(t)

	prev := a.Malloc(16)
	ptr := a.Malloc(16)
	next := a.Malloc(16)
	require.NotZero(t, prev)
	require.NotZero(t, ptr)
	require.NotZero(t, next)

	a.Free(prev)

	merged := a.blockSize(ptr) + a.blockSize(prev)
	target := merged + doubleWord // one double word past what prev could ever supply

	before := a.heap.ReadBytes(0, a.heap.Size())
	bucketsBefore := a.buckets

	got := a.coalesce(ptr, modeRealloc, target)

	assert.Equal(t, ptr, got, "a declined merge must not relocate bp")
	assert.Equal(t, bucketsBefore, a.buckets, "a declined merge must not touch any bucket head")
	after := a.heap.ReadBytes(0, a.heap.Size())
	assert.Equal(t, before, after, "a declined merge must leave heap bytes bitwise unchanged")

	// The full Realloc call must still succeed, falling back to a fresh
	// allocation and preserving the old payload.
	payload := []byte{9, 8, 7, 6, 5, 4, 3, 2}
	a.heap.WriteBytes(ptr, payload)

	newPtr := a.Realloc(ptr, 200) // align(200) is far larger than merged, so this again can't be satisfied in place
	require.NotZero(t, newPtr)
	assert.NotEqual(t, ptr, newPtr)
	gotPayload := a.heap.ReadBytes(newPtr, uint32(len(payload)))
	assert.Equal(t, payload, gotPayload)
}

// assertHeapInvariants walks every regular block from the first real block
// up to the epilogue and checks the allocator's core invariants: matching
// header/footer, minimum/alignment, no two adjacent free blocks, and every
// free block present exactly once in the bucket its size maps to.
func assertHeapInvariants(t *testing.T, a *Allocator) {
	t.Helper()

	seen := make(map[uint32]bool)
	prevFreeState := false // prologue counts as allocated
	bp := firstBlock(a)

	for a.blockSize(bp) > 0 {
		size := a.blockSize(bp)
		assert.GreaterOrEqual(t, size, uint32(2*doubleWord))
		assert.Equal(t, uint32(0), size%doubleWord)

		hdr := a.heap.ReadWord(header(bp))
		ftr := a.heap.ReadWord(footer(bp, size))
		assert.Equal(t, hdr, ftr, "header/footer mismatch at bp=%d", bp)

		allocated := a.isAllocated(bp)
		if !allocated {
			assert.False(t, prevFreeState, "two adjacent free blocks at bp=%d", bp)
			seen[bp] = true
		}
		prevFreeState = !allocated

		bp = a.nextBlock(bp)
	}

	for idx := 0; idx < numBuckets; idx++ {
		lastSize := uint32(0)
		for node := a.buckets[idx]; node != 0; node = a.nextFree(node) {
			assert.True(t, seen[node], "bucket %d lists unlinked/absent block %d", idx, node)
			delete(seen, node)
			size := a.blockSize(node)
			assert.Equal(t, idx, bucketOf(size), "block %d in wrong bucket", node)
			assert.GreaterOrEqual(t, size, lastSize, "bucket %d not sorted ascending", idx)
			lastSize = size
		}
	}
	assert.Empty(t, seen, "free blocks present in heap but missing from bucket chains")
}

// firstBlock returns the bp of the first regular block. Init reserves 4
// words (padding, prologue header, prologue footer, epilogue header), so
// the first extend_heap's new block starts right after them, at byte
// offset 4*W; its header reuses the word that was the initial epilogue
// placeholder.
func firstBlock(a *Allocator) uint32 {
	return 4 * wordSize
}
