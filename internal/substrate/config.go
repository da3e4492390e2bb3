package substrate

import "time"

// Config holds configuration for the heap substrate.
type Config struct {
	// MemoryLimit caps the WASM-hosted substrate in 64KiB pages.
	MemoryLimit uint32
	// InitialPages is how many pages are eagerly mapped at NewWasmHeap
	// time, before the first GrowHeap call.
	InitialPages uint32
	// Timeout is carried in the config; no substrate operation (module
	// instantiation, host-function dispatch) reads it.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults: a 1000-page
// (62.5MiB) ceiling, one page mapped up front, and a 30-second timeout.
func DefaultConfig() *Config {
	return &Config{
		MemoryLimit:  1000, // 1000 * 64KiB = 62.5MiB
		InitialPages: 1,
		Timeout:      30 * time.Second,
	}
}
