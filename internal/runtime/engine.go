package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/modules"
	"github.com/aretw0/arbor/internal/script"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

// Event values passed to block scripts.
const (
	// EventMessage marks a user reply to the current block's prompt.
	EventMessage = "message"
	// EventEnter marks first arrival at a block after a go_to, letting the
	// destination render its prompt in the same turn.
	EventEnter = "enter"
)

// DefaultMaxHops bounds chained go_to re-entries within one turn. A flow that
// exceeds it fails the turn like a script error instead of looping forever.
const DefaultMaxHops = 25

// DefaultErrorNotice is the fixed text sent to the user when a block run
// fails. Exactly one notice is sent per failed turn, never a stack trace.
const DefaultErrorNotice = "⚠️ The bot hit an internal error. Please try again."

// Hooks are optional observability callbacks. Nil fields are skipped.
type Hooks struct {
	// TurnFinished fires once per processed turn with result "ok",
	// "script_error", "config_error" or "dropped".
	TurnFinished func(platform, result string, elapsed time.Duration)
	// ScriptRan fires after each block script execution.
	ScriptRan func(blockID int64, elapsed time.Duration, err error)
	// ChunkSent fires per outbound chunk handed to the connector.
	ChunkSent func(platform string)
	// Hops fires with the number of block executions a turn performed.
	Hops func(count int)
}

// Engine orchestrates one inbound message into zero-or-more block executions.
// It owns the session-advance loop and the user/session bootstrap logic.
type Engine struct {
	store     ports.Store
	connector ports.Connector
	modules   *modules.Manager
	sessions  *session.Manager
	locker    ports.DistributedLocker

	logger      *slog.Logger
	hooks       Hooks
	maxHops     int
	turnTimeout time.Duration
	chunkLimit  int
	notice      string
	clock       func() time.Time
	newTurnID   func() string
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers observability callbacks.
func WithHooks(hooks Hooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxHops overrides the chained-go_to bound. Zero or negative keeps the default.
func WithMaxHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithTurnTimeout bounds one turn, covering scripts and plugin calls.
// Expiry is treated as a script failure. Zero disables the bound.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.turnTimeout = d
	}
}

// WithChunkLimit overrides the outbound chunk size (default domain.MaxChunkSize).
func WithChunkLimit(n int) Option {
	return func(e *Engine) {
		e.chunkLimit = n
	}
}

// WithErrorNotice overrides the fixed user-facing failure text.
func WithErrorNotice(text string) Option {
	return func(e *Engine) {
		if text != "" {
			e.notice = text
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithTurnIDFunc injects the turn id generator for tests.
func WithTurnIDFunc(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newTurnID = fn
		}
	}
}

// WithLocker enables distributed session locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// NewEngine wires the conversation engine.
func NewEngine(store ports.Store, connector ports.Connector, mods *modules.Manager, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		connector:  connector,
		modules:    mods,
		logger:     logging.NewNop(),
		maxHops:    DefaultMaxHops,
		chunkLimit: domain.MaxChunkSize,
		notice:     DefaultErrorNotice,
		clock:      time.Now,
		newTurnID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(sessionOpts...)
	return e
}

// Process handles one inbound message end to end: user bootstrap, inbound
// trace, session bootstrap, and the block execution loop. It is side-effect
// only; every failure mode is logged and, where the taxonomy calls for it,
// reported to the user as a single generic notice.
//
// Turns for the same (userID, platform) are serialized; the host may call
// Process concurrently for any mix of users.
func (e *Engine) Process(ctx context.Context, userID, platform, text string, metadata map[string]string) {
	started := e.clock()
	if e.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.turnTimeout)
		defer cancel()
	}

	active, err := e.bootstrapUser(ctx, userID, platform, metadata)
	if err != nil {
		e.logger.Error("user bootstrap failed", "user_id", userID, "platform", platform, "err", err)
		e.finish(platform, "config_error", started)
		return
	}
	if !active {
		e.logger.Debug("dropped message from inactive user", "user_id", userID, "platform", platform)
		e.finish(platform, "dropped", started)
		return
	}

	result := "ok"
	lockErr := e.sessions.WithLock(ctx, domain.SessionKey(userID, platform), func(ctx context.Context) error {
		result = e.turn(ctx, userID, platform, text)
		return nil
	})
	if lockErr != nil {
		e.logger.Error("session lock failed", "user_id", userID, "platform", platform, "err", lockErr)
		result = "config_error"
	}
	e.finish(platform, result, started)
}

// bootstrapUser resolves or creates the BotUser, refreshes the username and
// captures platform metadata as params. It reports whether the user is active.
func (e *Engine) bootstrapUser(ctx context.Context, userID, platform string, metadata map[string]string) (bool, error) {
	username := metadata["username"]

	user, err := e.store.FindUser(ctx, userID, platform)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user = &domain.BotUser{
			UserID:    userID,
			Platform:  platform,
			Username:  username,
			IsActive:  true,
			CreatedAt: e.clock().UTC(),
		}
		if err := e.store.CreateUser(ctx, user); err != nil {
			// Two first-ever messages can race FindUser before either insert
			// lands; the loser's turn must still run against the winner's row.
			existing, findErr := e.store.FindUser(ctx, userID, platform)
			if findErr != nil {
				return false, err
			}
			user = existing
		}
	case err != nil:
		return false, err
	default:
		if username != "" && user.Username != username {
			user.Username = username
			if err := e.store.UpdateUser(ctx, user); err != nil {
				return false, err
			}
		}
	}

	for key, value := range metadata {
		if key == "username" || value == "" {
			continue
		}
		param := &domain.UserParam{UserID: userID, Platform: platform, Key: key, Value: value}
		if err := e.store.SetParam(ctx, param); err != nil {
			return false, err
		}
	}

	return user.IsActive, nil
}

// turn runs spec steps 2-4 under the session lock and returns the result tag.
func (e *Engine) turn(ctx context.Context, userID, platform, text string) string {
	turnID := e.newTurnID()
	logger := e.logger.With("turn_id", turnID, "user_id", userID, "platform", platform)

	sess, err := e.store.FindSession(ctx, userID, platform)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		logger.Error("session lookup failed", "err", err)
		return "config_error"
	}

	inbound := &domain.Trace{
		TurnID:    turnID,
		UserID:    userID,
		Platform:  platform,
		Direction: domain.DirectionInbound,
		Content:   text,
		CreatedAt: e.clock().UTC(),
	}
	if sess != nil {
		blockID := sess.CurrentBlockID
		inbound.BlockID = &blockID
	}
	if err := e.store.AppendTrace(ctx, inbound); err != nil {
		logger.Error("inbound trace write failed", "err", err)
	}

	if sess == nil {
		start, err := e.store.FindStartBlock(ctx)
		if err != nil {
			logger.Error("no start block; flow is not configured", "err", err)
			return "config_error"
		}
		sess = &domain.UserSession{
			UserID:         userID,
			Platform:       platform,
			CurrentBlockID: start.ID,
			UpdatedAt:      e.clock().UTC(),
		}
		if err := e.store.CreateSession(ctx, sess); err != nil {
			logger.Error("session create failed", "err", err)
			return "config_error"
		}
	}

	event := EventMessage
	hops := 0
	result := "ok"

	for {
		if hops >= e.maxHops {
			logger.Error("max hops exceeded", "max_hops", e.maxHops, "block_id", sess.CurrentBlockID)
			e.sendNotice(ctx, userID)
			result = "script_error"
			break
		}
		if err := ctx.Err(); err != nil {
			logger.Error("turn deadline exceeded", "block_id", sess.CurrentBlockID, "err", err)
			e.sendNotice(ctx, userID)
			result = "script_error"
			break
		}

		block, err := e.store.FindBlock(ctx, sess.CurrentBlockID)
		if err != nil {
			logger.Error("block lookup failed", "block_id", sess.CurrentBlockID, "err", err)
			result = "config_error"
			break
		}
		hops++

		caps := &turnContext{
			ctx:        ctx,
			store:      e.store,
			connector:  e.connector,
			modules:    e.modules,
			logger:     logger,
			clock:      e.clock,
			turnID:     turnID,
			userID:     userID,
			platform:   platform,
			session:    sess,
			chunkLimit: e.chunkLimit,
		}
		if e.hooks.ChunkSent != nil {
			caps.onChunk = func() { e.hooks.ChunkSent(platform) }
		}

		scriptStart := e.clock()
		runErr := script.Run(block.Script, chunkName(block.ID), script.Input{Text: text, Event: event}, caps)
		if e.hooks.ScriptRan != nil {
			e.hooks.ScriptRan(block.ID, e.clock().Sub(scriptStart), runErr)
		}

		// Queued sends survive a script throw: flush before deciding.
		caps.flush(ctx)

		if runErr != nil {
			logger.Error("block script failed", "block_id", block.ID, "err", runErr)
			e.sendNotice(ctx, userID)
			result = "script_error"
			break
		}

		if !caps.jumped {
			break
		}
		event = EventEnter
	}

	if e.hooks.Hops != nil {
		e.hooks.Hops(hops)
	}
	return result
}

// sendNotice delivers the fixed failure text directly through the connector,
// bypassing chunking and the outbound trace. It survives an expired turn
// deadline so the user still hears back after a timeout.
func (e *Engine) sendNotice(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.connector.Send(ctx, userID, domain.Message{Text: e.notice, Format: domain.FormatText}); err != nil {
		e.logger.Error("error notice send failed", "user_id", userID, "err", err)
	}
}

func (e *Engine) finish(platform, result string, started time.Time) {
	if e.hooks.TurnFinished != nil {
		e.hooks.TurnFinished(platform, result, e.clock().Sub(started))
	}
}
