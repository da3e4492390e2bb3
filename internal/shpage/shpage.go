// Package shpage implements a keyed cross-process shared-page table, a thin
// contract grounded on original_source/user/sharedmemtest.c's
// mkshpg/bdshpg/chshct/qyshct/qyshn syscalls.
//
// Go has no fork, so there is no real cross-process address space to share.
// This models the "cross-process" part as multiple holder ids sharing one
// backing *Page through a single in-process Table — the part of the xv6
// contract that actually matters for a caller (a page is keyed, has exactly
// one creator at a time, and tracks how many holders are bound to it)
// survives; the part that doesn't (two independent OS processes mapping the
// same physical frame) is simply not representable here.
package shpage

import (
	"sync"

	"github.com/xv6-labs/umalloc-go/internal/xerrors"
)

// PageSize matches xv6's PGSIZE; shared pages are fixed-size byte buffers.
const PageSize = 4096

// Page is one shared page: a fixed-size buffer, a creator holder id, and
// the set of holders currently bound to it.
type Page struct {
	mu      sync.Mutex
	Data    [PageSize]byte
	creator int64
	holders map[int64]struct{}
}

// Table is the shared-page table — the Go analogue of xv6's kernel-side
// shared-page registry reached through mkshpg/bdshpg/chshct/qyshct/qyshn.
type Table struct {
	mu    sync.RWMutex
	pages map[int64]*Page
}

// NewTable returns an empty shared-page table.
func NewTable() *Table {
	return &Table{pages: make(map[int64]*Page)}
}

// Make creates the page for key if it does not already exist (mkshpg). The
// calling holder becomes the page's creator. Idempotent: calling Make again
// for an existing key is a no-op.
func (t *Table) Make(key int64, holder int64) *Page {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pages[key]; ok {
		return p
	}

	p := &Page{creator: holder, holders: map[int64]struct{}{holder: {}}}
	t.pages[key] = p
	return p
}

// Bind attaches holder to the page for key and returns it (bdshpg).
func (t *Table) Bind(key int64, holder int64) (*Page, error) {
	t.mu.RLock()
	p, ok := t.pages[key]
	t.mu.RUnlock()
	if !ok {
		return nil, xerrors.ErrUnknownShKey
	}

	p.mu.Lock()
	p.holders[holder] = struct{}{}
	p.mu.Unlock()
	return p, nil
}

// ChangeCreator reassigns the creator of the page for key to holder
// (chshct), binding holder to the page first if it is not already bound.
func (t *Table) ChangeCreator(key int64, holder int64) error {
	t.mu.RLock()
	p, ok := t.pages[key]
	t.mu.RUnlock()
	if !ok {
		return xerrors.ErrUnknownShKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, bound := p.holders[holder]; !bound {
		p.holders[holder] = struct{}{}
	}
	p.creator = holder
	return nil
}

// Creator returns the current creator holder id for key (qyshct).
func (t *Table) Creator(key int64) (int64, error) {
	t.mu.RLock()
	p, ok := t.pages[key]
	t.mu.RUnlock()
	if !ok {
		return 0, xerrors.ErrUnknownShKey
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creator, nil
}

// HolderCount returns how many holders are bound to the page for key
// (qyshn).
func (t *Table) HolderCount(key int64) (int, error) {
	t.mu.RLock()
	p, ok := t.pages[key]
	t.mu.RUnlock()
	if !ok {
		return 0, xerrors.ErrUnknownShKey
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.holders), nil
}
