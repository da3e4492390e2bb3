package substrate

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const wasmPageSize = 65536

// minimalMemoryModule is a hand-assembled WASM binary equivalent to
//
//	(module (memory (export "heap") 1))
//
// It carries nothing but a single exported linear memory of one page. No
// compiler touched this byte sequence: it is small enough to lay out by
// hand from the module/memory/export sections of the WASM binary format,
// the way a from-scratch assembler would.
var minimalMemoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic "\0asm"
	0x01, 0x00, 0x00, 0x00, // version 1
	// memory section (id 5): 1 entry, no max, min=1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export section (id 7): export memory index 0 as "heap"
	0x07, 0x08, 0x01, 0x04, 0x68, 0x65, 0x61, 0x70, 0x02, 0x00,
}

// WasmHeap is the production Heap: a wazero-instantiated WASM linear memory
// backs the allocator's address space, the way a real kernel's page tables
// back a process break. WASM memory only grows in 64KiB pages, so WasmHeap
// keeps a byte-granular logical break (softBreak) on top of it and only
// maps another page when the break would cross the mapped boundary — the
// same split real kernels draw between brk (byte-precise) and the
// underlying page mapping.
type WasmHeap struct {
	mu  sync.Mutex
	rt  wazero.Runtime
	mem api.Memory

	softBreak uint32
	cfg       *Config
}

// NewWasmHeap compiles and instantiates minimalMemoryModule and returns a
// Heap backed by its exported memory.
func NewWasmHeap(ctx context.Context, cfg *Config) (*WasmHeap, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithMemoryLimitPages(cfg.MemoryLimit))

	compiled, err := rt.CompileModule(ctx, minimalMemoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, newSubstrateError(ErrCodeCompileFailed, "failed to compile heap module", err)
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("heap"))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, newSubstrateError(ErrCodeInstantiateFailed, "failed to instantiate heap module", err)
	}

	mem := instance.Memory()
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, newSubstrateError(ErrCodeMemoryNotInit, "heap module does not export memory", nil)
	}

	h := &WasmHeap{rt: rt, mem: mem, cfg: cfg}

	if cfg.InitialPages > 1 {
		if _, ok := mem.Grow(cfg.InitialPages - 1); !ok {
			_ = rt.Close(ctx)
			return nil, newSubstrateError(ErrCodeGrowFailed, "failed to map initial pages", nil)
		}
	}

	return h, nil
}

// GrowHeap extends the logical break by n bytes, lazily mapping whole WASM
// pages as the break crosses the currently-mapped boundary.
func (h *WasmHeap) GrowHeap(n uint32) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	addr := h.softBreak
	need := addr + n

	if need > h.mem.Size() {
		shortfall := need - h.mem.Size()
		deltaPages := (shortfall + wasmPageSize - 1) / wasmPageSize
		if _, ok := h.mem.Grow(deltaPages); !ok {
			return 0, false
		}
	}

	h.softBreak = need
	return addr, true
}

func (h *WasmHeap) ReadWord(addr uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.mem.ReadUint32Le(addr)
	if !ok {
		panic(newSubstrateError(ErrCodeOutOfBounds, "read word out of bounds", nil))
	}
	return v
}

func (h *WasmHeap) WriteWord(addr uint32, v uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.mem.WriteUint32Le(addr, v) {
		panic(newSubstrateError(ErrCodeWriteFailed, "write word out of bounds", nil))
	}
}

// ReadBytes returns a freshly-copied slice of the n bytes at addr. The copy
// is deliberate: wazero's Memory.Read hands back a view onto the live WASM
// buffer, and realloc's payload move needs to read a whole source region
// before any destination write touches it, even when the two overlap.
func (h *WasmHeap) ReadBytes(addr uint32, n uint32) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.mem.Read(addr, n)
	if !ok {
		panic(newSubstrateError(ErrCodeOutOfBounds, "read bytes out of bounds", nil))
	}
	out := make([]byte, n)
	copy(out, buf)
	return out
}

func (h *WasmHeap) WriteBytes(addr uint32, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.mem.Write(addr, data) {
		panic(newSubstrateError(ErrCodeWriteFailed, "write bytes out of bounds", nil))
	}
}

func (h *WasmHeap) Size() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.softBreak
}

// Close tears down the underlying wazero runtime.
func (h *WasmHeap) Close(ctx context.Context) error {
	return h.rt.Close(ctx)
}
