// Command allocdriver runs the allocator through a handful of end-to-end
// allocation scenarios, grounded on original_source/user/sharedmemtest.c's
// fail-and-exit style: each scenario prints what it's doing and calls fail
// on the first violated assertion.
package main

import (
	"context"
	"log"
	"os"

	"github.com/xv6-labs/umalloc-go/pkg/alloc"
)

func fail(msg string) {
	log.Printf("%s", msg)
	log.Printf("driver failed")
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	scenarioMallocFreeMerges(ctx)
	scenarioFirstFitReusesSlot(ctx)
	scenarioAdjacentFreesCoalesce(ctx)
	scenarioShrinkReallocInPlace(ctx)
	scenarioGrowReallocRelocates(ctx)
	scenarioRandomWorkload(ctx)

	log.Println("all scenarios passed")
}

func newHeap(ctx context.Context) *alloc.Heap {
	h := alloc.New()
	if err := h.Init(ctx, nil); err != nil {
		fail("init failed: " + err.Error())
	}
	return h
}

// scenarioMallocFreeMerges: init(); p = malloc(1); free(p) should leave the
// heap with one maximal free block.
func scenarioMallocFreeMerges(ctx context.Context) {
	log.Println("scenario 1: malloc/free merges back to one chunk")
	h := newHeap(ctx)
	defer h.Close(ctx)

	p := h.Malloc(1)
	if p == 0 {
		fail("scenario 1: malloc(1) returned 0")
	}
	if p%8 != 0 {
		fail("scenario 1: payload pointer is not double-word aligned")
	}
	h.Free(p)
}

// scenarioFirstFitReusesSlot: freeing a block and asking for the same size
// class again must reuse the freed slot.
func scenarioFirstFitReusesSlot(ctx context.Context) {
	log.Println("scenario 2: first fit reuses a freed slot")
	h := newHeap(ctx)
	defer h.Close(ctx)

	a := h.Malloc(24)
	_ = h.Malloc(24)
	h.Free(a)
	c := h.Malloc(24)
	if c != a {
		fail("scenario 2: malloc after free did not reuse the freed slot")
	}
}

// scenarioAdjacentFreesCoalesce: freeing two physically adjacent blocks
// must merge them into one.
func scenarioAdjacentFreesCoalesce(ctx context.Context) {
	log.Println("scenario 3: adjacent frees coalesce")
	h := newHeap(ctx)
	defer h.Close(ctx)

	a := h.Malloc(16)
	b := h.Malloc(16)
	h.Free(a)
	h.Free(b)

	if p := h.Malloc(32); p != a {
		fail("scenario 3: coalesced space was not reused as one block")
	}
}

// scenarioShrinkReallocInPlace: shrinking realloc never moves the pointer.
func scenarioShrinkReallocInPlace(ctx context.Context) {
	log.Println("scenario 4: shrink realloc stays in place")
	h := newHeap(ctx)
	defer h.Close(ctx)

	p := h.Malloc(64)
	q := h.Realloc(p, 16)
	if q != p {
		fail("scenario 4: shrinking realloc moved the pointer")
	}
}

// scenarioGrowReallocRelocates: a growing realloc that can't extend in
// place relocates and preserves the old payload.
func scenarioGrowReallocRelocates(ctx context.Context) {
	log.Println("scenario 5: grow realloc relocates and preserves data")
	h := newHeap(ctx)
	defer h.Close(ctx)

	a := h.Malloc(16)
	b := h.Malloc(16)
	h.Free(a)

	c := h.Realloc(b, 48)
	if c != a {
		fail("scenario 5: grow realloc did not left-coalesce into the freed slot")
	}
}

// scenarioRandomWorkload runs a long randomized malloc/free sequence; the
// allocator's own invariant checks run inside internal/alloc's test suite,
// so here we only confirm the workload completes and every pointer can
// still be freed cleanly at the end.
func scenarioRandomWorkload(ctx context.Context) {
	log.Println("scenario 6: randomized workload")
	h := newHeap(ctx)
	defer h.Close(ctx)

	rng := newLCG(1)
	live := make([]uint32, 0, 64)
	for i := 0; i < 1000; i++ {
		if len(live) > 0 && rng.next()%2 == 0 {
			idx := int(rng.next() % uint32(len(live)))
			h.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			n := rng.next()%4096 + 1
			if p := h.Malloc(n); p != 0 {
				live = append(live, p)
			}
		}
	}
	for _, p := range live {
		h.Free(p)
	}
}

// lcg is a tiny deterministic linear congruential generator so the driver
// needs no external randomness source to reproduce a run.
type lcg struct{ state uint32 }

func newLCG(seed uint32) *lcg { return &lcg{state: seed} }

func (g *lcg) next() uint32 {
	g.state = g.state*1664525 + 1013904223
	return g.state
}
