package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/modules"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/ports"
)

// Version is the library version, stamped at release time.
var Version = "0.1.0"

// Bot is the high-level entry point for the Arbor library.
// It wraps the internal runtime and provides a simplified API for hosts.
type Bot struct {
	engine  *runtime.Engine
	store   ports.FlowStore
	modules *modules.Manager

	logger      *slog.Logger
	pluginRoot  string
	locker      ports.DistributedLocker
	hooks       runtime.Hooks
	maxHops     int
	turnTimeout time.Duration
	notice      string
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPluginRoot sets the directory relative module file paths resolve
// against. Defaults to the working directory.
func WithPluginRoot(dir string) Option {
	return func(b *Bot) {
		b.pluginRoot = dir
	}
}

// WithDistributedLocker enables cross-replica turn serialization.
func WithDistributedLocker(locker ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = locker
	}
}

// WithHooks registers engine lifecycle callbacks, e.g. the Prometheus
// bridge in pkg/observability.
func WithHooks(hooks runtime.Hooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithMaxHops bounds chained go_to re-entries within one turn.
func WithMaxHops(n int) Option {
	return func(b *Bot) {
		b.maxHops = n
	}
}

// WithTurnTimeout bounds one turn end to end.
func WithTurnTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.turnTimeout = d
	}
}

// WithErrorNotice overrides the user-facing failure text.
func WithErrorNotice(text string) Option {
	return func(b *Bot) {
		b.notice = text
	}
}

// New assembles a Bot from a store and an outbound connector.
func New(store ports.FlowStore, connector ports.Connector, opts ...Option) (*Bot, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if connector == nil {
		return nil, fmt.Errorf("connector is required")
	}

	b := &Bot{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.modules = modules.NewManager(store, b.pluginRoot,
		modules.WithLogger(b.logger))

	engineOpts := []runtime.Option{
		runtime.WithLogger(b.logger),
		runtime.WithHooks(b.hooks),
	}
	if b.locker != nil {
		engineOpts = append(engineOpts, runtime.WithLocker(b.locker))
	}
	if b.maxHops > 0 {
		engineOpts = append(engineOpts, runtime.WithMaxHops(b.maxHops))
	}
	if b.turnTimeout > 0 {
		engineOpts = append(engineOpts, runtime.WithTurnTimeout(b.turnTimeout))
	}
	if b.notice != "" {
		engineOpts = append(engineOpts, runtime.WithErrorNotice(b.notice))
	}

	b.engine = runtime.NewEngine(store, connector, b.modules, engineOpts...)
	return b, nil
}

// Process handles one inbound user message: user and session bootstrap,
// block execution, outbound delivery. Turns for the same (userID, platform)
// are serialized; Process may be called concurrently for any mix of users.
func (b *Bot) Process(ctx context.Context, userID, platform, text string, metadata map[string]string) {
	b.engine.Process(ctx, userID, platform, text, metadata)
}

// Store returns the underlying flow store, for operator surfaces.
func (b *Bot) Store() ports.FlowStore {
	return b.store
}
