package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// ErrFunctionNotExported is wrapped into the error returned when a plugin
// does not define the requested function.
var ErrFunctionNotExported = errors.New("function not exported")

// Manager loads named plugins and caches their handles for the lifetime of
// the process. Loading is single-flight per name: concurrent first calls for
// the same plugin resolve to one winning load.
type Manager struct {
	store ports.Store
	root  string

	mu      sync.Mutex
	plugins map[string]*Plugin
	loads   map[string]*loadCall

	logger *slog.Logger
}

// loadCall tracks one in-flight load so that late arrivals wait for its result.
type loadCall struct {
	done   chan struct{}
	plugin *Plugin
	err    error
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for load events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a plugin manager. root is the directory relative plugin
// paths resolve against.
func NewManager(store ports.Store, root string, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		root:    root,
		plugins: make(map[string]*Plugin),
		loads:   make(map[string]*loadCall),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached plugin handle, loading it first if needed. A cache
// hit skips the record lookup entirely and does not re-touch Module.Status.
func (m *Manager) Get(ctx context.Context, name string) (*Plugin, error) {
	m.mu.Lock()
	if plugin, ok := m.plugins[name]; ok {
		m.mu.Unlock()
		return plugin, nil
	}
	if call, ok := m.loads[name]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.plugin, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	m.loads[name] = call
	m.mu.Unlock()

	call.plugin, call.err = m.load(ctx, name)

	m.mu.Lock()
	if call.err == nil {
		m.plugins[name] = call.plugin
	}
	delete(m.loads, name)
	m.mu.Unlock()
	close(call.done)

	return call.plugin, call.err
}

// Start eagerly loads a plugin, discarding the handle.
func (m *Manager) Start(ctx context.Context, name string) error {
	_, err := m.Get(ctx, name)
	return err
}

// Call resolves the plugin (loading on first use) and invokes the named
// exported function.
func (m *Manager) Call(ctx context.Context, name, fn string, args []any) (any, error) {
	plugin, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return plugin.Call(fn, args)
}

func (m *Manager) load(ctx context.Context, name string) (*Plugin, error) {
	record, err := m.store.FindModule(ctx, name)
	if err != nil {
		// Without a record there is no status row to flag.
		return nil, fmt.Errorf("load module %q: %w", name, err)
	}

	path := record.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.root, path)
	}

	plugin, err := newPlugin(name, path)
	if err != nil {
		m.logger.Error("module load failed", "module", name, "file", path, "err", err)
		if statusErr := m.store.UpdateModuleStatus(ctx, name, domain.ModuleStatusError); statusErr != nil {
			m.logger.Error("module status update failed", "module", name, "err", statusErr)
		}
		return nil, fmt.Errorf("load module %q: %w", name, err)
	}

	if err := m.store.UpdateModuleStatus(ctx, name, domain.ModuleStatusRun); err != nil {
		m.logger.Error("module status update failed", "module", name, "err", err)
	}
	m.logger.Info("module loaded", "module", name, "file", path)
	return plugin, nil
}

// statModuleFile reports a friendlier error for a missing plugin source.
func statModuleFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("module file %s: %w", path, err)
	}
	return nil
}
