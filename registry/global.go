package registry

import "sync"

// Process-wide singleton, mirroring the teacher's plugin.defaultRegistry
// pattern: an explicit Init at boot, read through Global everywhere
// else. A lazily-constructed default is deliberately not provided — a
// registry without a wired bus would silently build caches with no
// coherence, which is worse than failing loudly.
var (
	global   *Registry
	globalMu sync.RWMutex
)

// Init installs r as the process-wide registry. Panics if called more
// than once, matching the teacher's SetDefaultRegistry contract.
func Init(r *Registry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		panic("registry: Init called more than once")
	}
	global = r
}

// Global returns the process-wide registry installed by Init, or nil if
// Init has not been called yet.
func Global() *Registry {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// resetGlobalForTest clears the singleton so tests can call Init again.
// Not exported; test files in this package use it via internal access.
func resetGlobalForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}
