package config

import (
	"context"
	"fmt"
	"sync"
)

var (
	globalMu      sync.Mutex
	globalManager *Manager
)

// Initialize loads the global Config from providers using svc (or the
// default Service when nil) and starts its watchers. A second call is a
// no-op: callers that need to replace the global config must Close it
// first.
func Initialize(ctx context.Context, svc Service, providers ...Provider) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager != nil {
		return nil
	}
	mgr := NewManager(svc)
	if _, err := mgr.Load(ctx, providers...); err != nil {
		return fmt.Errorf("failed to initialize global config: %w", err)
	}
	globalManager = mgr
	return nil
}

// Get returns the current global Config. It panics if Initialize has not
// been called, since every caller of Get assumes startup already ran.
func Get() *Config {
	globalMu.Lock()
	mgr := globalManager
	globalMu.Unlock()
	if mgr == nil {
		panic("config: Get called before Initialize")
	}
	return mgr.Get()
}

// OnChange registers a callback on the global Manager. It panics under the
// same precondition as Get.
func OnChange(callback func(*Config)) {
	globalMu.Lock()
	mgr := globalManager
	globalMu.Unlock()
	if mgr == nil {
		panic("config: OnChange called before Initialize")
	}
	mgr.OnChange(callback)
}

// Reload forces the global Manager to reload immediately. It panics under
// the same precondition as Get.
func Reload(ctx context.Context) error {
	globalMu.Lock()
	mgr := globalManager
	globalMu.Unlock()
	if mgr == nil {
		panic("config: Reload called before Initialize")
	}
	return mgr.Reload(ctx)
}

// Close shuts down the global Manager. It is idempotent: closing twice, or
// closing without ever initializing, both succeed silently.
func Close(ctx context.Context) error {
	globalMu.Lock()
	mgr := globalManager
	globalManager = nil
	globalMu.Unlock()
	if mgr == nil {
		return nil
	}
	return mgr.Close(ctx)
}

// resetForTest clears the global Manager without closing it, for tests
// that need a clean slate between cases.
func resetForTest() {
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
}
