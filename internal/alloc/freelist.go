package alloc

// insert splices a free block bp into its bucket's list, kept sorted
// ascending by size the way ummalloc.c's insert_node does: walk past every
// node strictly smaller than bp, then link in front of the first node that
// isn't. A 0 link means "no block" (address 0 is the alignment padding
// word ahead of the prologue, so it's never a valid block pointer).
func (a *Allocator) insert(bp uint32) {
	idx := bucketOf(a.blockSize(bp))
	size := a.blockSize(bp)

	var prevNode uint32
	node := a.buckets[idx]
	for node != 0 && a.blockSize(node) < size {
		prevNode = node
		node = a.nextFree(node)
	}

	if prevNode == 0 {
		a.buckets[idx] = bp
		a.setPrevFree(bp, 0)
	} else {
		a.setNextFree(prevNode, bp)
		a.setPrevFree(bp, prevNode)
	}

	if node != 0 {
		a.setPrevFree(node, bp)
	}
	a.setNextFree(bp, node)
}

// remove unlinks a free block from whichever bucket list currently holds
// it, mirroring ummalloc.c's remove_node. The bucket is derived from bp's
// current header size, so callers remove a block before rewriting its size.
func (a *Allocator) remove(bp uint32) {
	idx := bucketOf(a.blockSize(bp))
	prev := a.prevFree(bp)
	next := a.nextFree(bp)

	switch {
	case prev != 0:
		a.setNextFree(prev, next)
		if next != 0 {
			a.setPrevFree(next, prev)
		}
	case next != 0:
		a.buckets[idx] = next
		a.setPrevFree(next, 0)
	default:
		a.buckets[idx] = 0
	}
}

// findFit scans buckets from size's own class upward, returning the first
// free block at least size bytes, the way ummalloc.c's find_fit does. Each
// bucket's list is sorted ascending, so the first hit in a bucket is also
// the best fit within it.
func (a *Allocator) findFit(size uint32) (uint32, bool) {
	for idx := bucketOf(size); idx < numBuckets; idx++ {
		for node := a.buckets[idx]; node != 0; node = a.nextFree(node) {
			if a.blockSize(node) >= size {
				return node, true
			}
		}
	}
	return 0, false
}
