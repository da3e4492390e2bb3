package alloc

import "sync/atomic"

// Stats holds lifetime counters for an Allocator, the same atomic-counter
// idiom the teacher's internal/wasm.CustomAllocator uses for its own
// allocation bookkeeping.
type Stats struct {
	allocs       atomic.Uint64
	frees        atomic.Uint64
	bytesInUse   atomic.Int64
	bytesAlloced atomic.Uint64
	failures     atomic.Uint64
}

func (s *Stats) recordAlloc(size uint32) {
	s.allocs.Add(1)
	s.bytesAlloced.Add(uint64(size))
	s.bytesInUse.Add(int64(size))
}

func (s *Stats) recordFree(size uint32) {
	s.frees.Add(1)
	s.bytesInUse.Add(-int64(size))
}

func (s *Stats) recordFailure() {
	s.failures.Add(1)
}

// Snapshot is a point-in-time, non-atomic copy of Stats safe to pass
// around by value.
type Snapshot struct {
	Allocs         uint64
	Frees          uint64
	BytesInUse     int64
	BytesAllocated uint64
	Failures       uint64
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		Allocs:         s.allocs.Load(),
		Frees:          s.frees.Load(),
		BytesInUse:     s.bytesInUse.Load(),
		BytesAllocated: s.bytesAlloced.Load(),
		Failures:       s.failures.Load(),
	}
}
