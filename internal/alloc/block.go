// Package alloc is the segregated-fit allocator itself, ported in spirit
// from original_source/user/ummalloc.c: a boundary-tag free list keyed by
// size class, split-on-place, and directional in-place realloc. It never
// touches memory directly — every access goes through a substrate.Heap, the
// one place in this package that reads or writes raw bytes.
package alloc

// wordSize and doubleWord mirror ummalloc.c's WSIZE/DSIZE: all blocks are
// double-word aligned, and a header or footer is one word.
const (
	wordSize   = 4
	doubleWord = 8

	allocBit = 0x1
	sizeMask = ^uint32(0x7)
)

// packTag mirrors PACK(size, alloc): a header/footer word is the block size
// with the allocated bit folded into the low bits the size's own alignment
// never uses.
func packTag(size uint32, allocated bool) uint32 {
	if allocated {
		return size | allocBit
	}
	return size
}

func unpackSize(word uint32) uint32 {
	return word & sizeMask
}

func unpackAlloc(word uint32) bool {
	return word&allocBit != 0
}

// align mirrors ummalloc.c's block-size rounding: requests of DSIZE bytes
// or less become the minimum block (room for a header, footer, and two free
// list links), everything else rounds up to a double-word multiple that
// also carries header+footer overhead.
func align(n uint32) uint32 {
	if n <= doubleWord {
		return 2 * doubleWord
	}
	return doubleWord * ((n + doubleWord + doubleWord - 1) / doubleWord)
}

// header returns HDRP(bp): the address of bp's header word.
func header(bp uint32) uint32 {
	return bp - wordSize
}

// footer returns FTRP(bp) given bp's block size.
func footer(bp uint32, size uint32) uint32 {
	return bp + size - doubleWord
}

func (a *Allocator) blockSize(bp uint32) uint32 {
	return unpackSize(a.heap.ReadWord(header(bp)))
}

func (a *Allocator) isAllocated(bp uint32) bool {
	return unpackAlloc(a.heap.ReadWord(header(bp)))
}

// setTag writes a matching header and footer for bp, the way ummalloc.c's
// callers always write PACK(size, alloc) to both HDRP and FTRP together.
func (a *Allocator) setTag(bp uint32, size uint32, allocated bool) {
	word := packTag(size, allocated)
	a.heap.WriteWord(header(bp), word)
	a.heap.WriteWord(footer(bp, size), word)
}

// nextBlock mirrors NEXT_BLKP(bp): the physically adjacent block that
// follows bp, found in O(1) via bp's own header.
func (a *Allocator) nextBlock(bp uint32) uint32 {
	return bp + a.blockSize(bp)
}

// prevBlock mirrors PREV_BLKP(bp): the physically adjacent block that
// precedes bp, found in O(1) via the predecessor's boundary-tag footer,
// which sits immediately before bp's own header.
func (a *Allocator) prevBlock(bp uint32) uint32 {
	prevSize := unpackSize(a.heap.ReadWord(bp - doubleWord))
	return bp - prevSize
}

// Free-list link words: a free block's payload area doubles as a
// prev/next pointer pair, the way ummalloc.c overlays PREV_FREE/NEXT_FREE
// on the same bytes a used block would treat as payload. 0 is the sentinel
// for "no block" since address 0 is the alignment padding word ahead of the
// prologue.
func (a *Allocator) prevFree(bp uint32) uint32 {
	return a.heap.ReadWord(bp)
}

func (a *Allocator) nextFree(bp uint32) uint32 {
	return a.heap.ReadWord(bp + wordSize)
}

func (a *Allocator) setPrevFree(bp uint32, v uint32) {
	a.heap.WriteWord(bp, v)
}

func (a *Allocator) setNextFree(bp uint32, v uint32) {
	a.heap.WriteWord(bp+wordSize, v)
}
