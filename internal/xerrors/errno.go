// Package xerrors defines the allocator's fixed error taxonomy.
//
// Every public failure is a sentinel numeric code, not a wrapped Go error
// chain: the allocator runs in an environment with no heap to spare on
// error values, so codes are pre-allocated package vars rather than
// constructed per call site.
package xerrors

import "fmt"

// Errno is a fixed allocator error code with a human-readable message.
type Errno struct {
	code uint16
	msg  string
}

// NewErrno creates an Errno with the given code and message.
func NewErrno(code uint16, msg string) *Errno {
	return &Errno{code: code, msg: msg}
}

// Code returns the numeric error code.
func (e *Errno) Code() uint16 {
	return e.code
}

func (e *Errno) Error() string {
	return fmt.Sprintf("errno %d: %s", e.code, e.msg)
}

// Error codes for the allocator's fixed error taxonomy.
const (
	CodeOutOfMemory uint16 = 0x0001
	CodeInitFailed  uint16 = 0x0002
	// Internal-only codes: never returned across the public malloc/free/
	// realloc surface. Of these, only CodeUnknownShKey is returned by any
	// call in this module (by the shared-page table).
	CodeCorruptHeap  uint16 = 0x0010
	CodeBadFree      uint16 = 0x0011
	CodeOutOfBounds  uint16 = 0x0012
	CodeUnknownShKey uint16 = 0x0020
)

var (
	// ErrOutOfMemory names a refused heap growth. No call returns it:
	// Malloc and Realloc report that failure as a 0 pointer.
	ErrOutOfMemory = NewErrno(CodeOutOfMemory, "out of memory")
	// ErrInitFailed is returned by Init when the sentinel reservation or
	// the seed heap extension fails.
	ErrInitFailed = NewErrno(CodeInitFailed, "allocator init failed")
	// ErrCorruptHeap names a heap invariant violation. No call returns it:
	// the internal heap-check walk reports violations as plain formatted
	// errors.
	ErrCorruptHeap = NewErrno(CodeCorruptHeap, "heap invariant violated")
	// ErrBadFree names a free of an address that was never handed out as
	// an allocation. Double-free and foreign-pointer free are undefined
	// behavior at the public surface; Free performs no such check, and no
	// call returns this error.
	ErrBadFree = NewErrno(CodeBadFree, "free of unrecognized address")
	// ErrOutOfBounds names an address access outside the managed heap
	// extent. No call returns it: the substrate's own bounds failures
	// panic with a SubstrateError carrying ErrCodeOutOfBounds.
	ErrOutOfBounds = NewErrno(CodeOutOfBounds, "address out of bounds")
	// ErrUnknownShKey is returned by the shared-page table when a query
	// references a key with no backing page.
	ErrUnknownShKey = NewErrno(CodeUnknownShKey, "no shared page for key")
)
