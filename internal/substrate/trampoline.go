package substrate

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/xv6-labs/umalloc-go/internal/shpage"
	"github.com/xv6-labs/umalloc-go/internal/sysproc"
)

// HostTrampoline exposes the substrate's syscall surface as wazero host
// functions a guest WASM module could import, the way the teacher's
// spacetime.go registers datastore calls on a host module builder. sbrk and
// sleep decode their raw WASM-ABI param with internal/sysproc.ArgInt before
// dispatching; the shared-page calls read their int64 key and holder
// params straight off the stack.
type HostTrampoline struct {
	heap  *WasmHeap
	clock *sysproc.TickClock
	pages *shpage.Table
}

// NewHostTrampoline builds a trampoline over the given heap, using a fresh
// tick clock and shared-page table.
func NewHostTrampoline(heap *WasmHeap) *HostTrampoline {
	return &HostTrampoline{
		heap:  heap,
		clock: sysproc.NewTickClock(),
		pages: shpage.NewTable(),
	}
}

// Clock exposes the trampoline's tick clock, e.g. for a driver goroutine to
// advance it.
func (t *HostTrampoline) Clock() *sysproc.TickClock {
	return t.clock
}

// Instantiate registers the "xv6" host module (sbrk, sleep, and the
// shared-page calls, including bdshpg for binding to an existing page) on
// rt, so a guest module can import them.
func (t *HostTrampoline) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	builder := rt.NewHostModuleBuilder("xv6")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.sbrk), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("sbrk")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.sleep), []api.ValueType{api.ValueTypeI32}, []api.ValueType{}).
		Export("sleep")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.mkshpg), []api.ValueType{api.ValueTypeI64, api.ValueTypeI64}, []api.ValueType{}).
		Export("mkshpg")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.bdshpg), []api.ValueType{api.ValueTypeI64, api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32}).
		Export("bdshpg")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.chshct), []api.ValueType{api.ValueTypeI64, api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32}).
		Export("chshct")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.qyshct), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("qyshct")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(t.qyshn), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32}).
		Export("qyshn")

	_, err := builder.Instantiate(ctx)
	if err != nil {
		return newSubstrateError(ErrCodeInstantiateFailed, "failed to instantiate xv6 host module", err)
	}
	return nil
}

// sbrk is the sys_sbrk trampoline: decode the requested byte delta and grow
// the heap, returning the address of the first new byte or -1 on failure,
// matching kernel/sysproc.c's sys_sbrk contract.
func (t *HostTrampoline) sbrk(ctx context.Context, mod api.Module, stack []uint64) {
	n, err := sysproc.ArgInt(stack, 0)
	if err != nil || n < 0 {
		stack[0] = uint64(uint32(0xFFFFFFFF))
		return
	}
	addr, ok := t.heap.GrowHeap(uint32(n))
	if !ok {
		stack[0] = uint64(uint32(0xFFFFFFFF))
		return
	}
	stack[0] = uint64(addr)
}

// sleep is the sys_sleep trampoline: block the calling goroutine until the
// requested tick count elapses.
func (t *HostTrampoline) sleep(ctx context.Context, mod api.Module, stack []uint64) {
	n, err := sysproc.ArgInt(stack, 0)
	if err != nil {
		return
	}
	t.clock.Sleep(n)
}

func (t *HostTrampoline) mkshpg(ctx context.Context, mod api.Module, stack []uint64) {
	key := int64(stack[0])
	holder := int64(stack[1])
	t.pages.Make(key, holder)
}

func (t *HostTrampoline) bdshpg(ctx context.Context, mod api.Module, stack []uint64) {
	key := int64(stack[0])
	holder := int64(stack[1])
	if _, err := t.pages.Bind(key, holder); err != nil {
		stack[0] = uint64(uint32(0xFFFFFFFF))
		return
	}
	stack[0] = 0
}

func (t *HostTrampoline) chshct(ctx context.Context, mod api.Module, stack []uint64) {
	key := int64(stack[0])
	holder := int64(stack[1])
	if err := t.pages.ChangeCreator(key, holder); err != nil {
		stack[0] = uint64(uint32(0xFFFFFFFF))
		return
	}
	stack[0] = 0
}

func (t *HostTrampoline) qyshct(ctx context.Context, mod api.Module, stack []uint64) {
	key := int64(stack[0])
	creator, err := t.pages.Creator(key)
	if err != nil {
		stack[0] = uint64(uint32(0xFFFFFFFF))
		return
	}
	stack[0] = uint64(creator)
}

func (t *HostTrampoline) qyshn(ctx context.Context, mod api.Module, stack []uint64) {
	key := int64(stack[0])
	n, err := t.pages.HolderCount(key)
	if err != nil {
		stack[0] = uint64(uint32(0xFFFFFFFF))
		return
	}
	stack[0] = uint64(uint32(n))
}
