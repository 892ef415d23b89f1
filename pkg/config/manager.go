package config

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/ccrouter/ccr/pkg/logger"
)

// Manager owns the current Config, reloading it whenever a Provider it was
// loaded with reports a change, and notifies registered callbacks.
type Manager struct {
	Service Service

	mu        sync.RWMutex
	current   *Config
	providers []Provider
	callbacks []func(*Config)

	debounce  time.Duration
	debounceMu sync.Mutex
	timer      *time.Timer

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// NewManager returns a Manager backed by svc, or NewService() when svc is
// nil.
func NewManager(svc Service) *Manager {
	if svc == nil {
		svc = NewService()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		Service:     svc,
		debounce:    100 * time.Millisecond,
		watchCtx:    ctx,
		watchCancel: cancel,
	}
}

// SetDebounce changes how long Manager waits after the last file-change
// notification before reloading, coalescing bursts of writes into one
// reload.
func (m *Manager) SetDebounce(d time.Duration) {
	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()
	m.debounce = d
}

// Load merges providers into a Config, stores it, notifies callbacks, and
// starts watching every provider for future changes.
func (m *Manager) Load(ctx context.Context, providers ...Provider) (*Config, error) {
	cfg, err := m.Service.Load(ctx, providers...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = cfg
	m.providers = providers
	m.mu.Unlock()

	m.notify(cfg)
	m.watch(providers)
	return cfg, nil
}

// Get returns the current Config, or nil before the first Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers a callback invoked whenever Reload produces a
// different Config than the one currently held.
func (m *Manager) OnChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Reload re-runs Service.Load with the providers from the last Load call
// and swaps in the result if it validates and differs from the current
// Config.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.RLock()
	providers := m.providers
	previous := m.current
	m.mu.RUnlock()

	cfg, err := m.Service.Load(ctx, providers...)
	if err != nil {
		return err
	}
	if configEqual(previous, cfg) {
		return nil
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	m.notify(cfg)
	return nil
}

func (m *Manager) notify(cfg *Config) {
	m.mu.RLock()
	callbacks := append([]func(*Config){}, m.callbacks...)
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (m *Manager) watch(providers []Provider) {
	for _, p := range providers {
		if p == nil {
			continue
		}
		p := p
		if err := p.Watch(m.watchCtx, m.onProviderChange); err != nil {
			logger.FromContext(m.watchCtx).Warn("failed to watch config source", "source", p.Type(), "error", err)
		}
	}
}

// onProviderChange is the shared fsnotify callback every watched provider
// invokes; bursts of events within the debounce window collapse into one
// Reload.
func (m *Manager) onProviderChange() {
	m.debounceMu.Lock()
	d := m.debounce
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(d, func() {
		if err := m.Reload(m.watchCtx); err != nil {
			logger.FromContext(m.watchCtx).Warn("config reload failed", "error", err)
		}
	})
	m.debounceMu.Unlock()
}

// Close stops all provider watches and any pending debounce timer.
func (m *Manager) Close(_ context.Context) error {
	m.debounceMu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.debounceMu.Unlock()

	m.watchCancel()

	m.mu.RLock()
	providers := m.providers
	m.mu.RUnlock()
	for _, p := range providers {
		if p != nil {
			_ = p.Close()
		}
	}
	return nil
}

func configEqual(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
