package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store is the data-access contract consumed by the engine. Each method is a
// single logical operation; implementations should make writes atomic.
// Lookup misses are reported with the sentinel errors of pkg/domain
// (domain.ErrUserNotFound and friends), so callers can branch with errors.Is.
type Store interface {
	// FindUser retrieves a user by its (userID, platform) identity.
	FindUser(ctx context.Context, userID, platform string) (*domain.BotUser, error)
	CreateUser(ctx context.Context, user *domain.BotUser) error
	UpdateUser(ctx context.Context, user *domain.BotUser) error

	// FindSession retrieves the one session of a (userID, platform) pair.
	FindSession(ctx context.Context, userID, platform string) (*domain.UserSession, error)
	CreateSession(ctx context.Context, session *domain.UserSession) error
	UpdateSession(ctx context.Context, session *domain.UserSession) error

	// GetParam is a point lookup; it returns domain.ErrParamNotFound when the
	// key is absent (scripts observe that as nil).
	GetParam(ctx context.Context, userID, platform, key string) (string, error)
	// SetParam upserts a single param.
	SetParam(ctx context.Context, param *domain.UserParam) error

	// AppendTrace writes one audit row. Trace rows are never updated.
	AppendTrace(ctx context.Context, trace *domain.Trace) error

	FindBlock(ctx context.Context, id int64) (*domain.Block, error)
	// FindStartBlock returns the block marked IsStart, or domain.ErrNoStartBlock.
	FindStartBlock(ctx context.Context) (*domain.Block, error)

	FindModule(ctx context.Context, name string) (*domain.Module, error)
	// UpdateModuleStatus records the outcome of a load attempt.
	UpdateModuleStatus(ctx context.Context, name string, status domain.ModuleStatus) error
}

// FlowStore extends Store with the write/list operations used by flow import
// and operator tooling. The engine itself never writes blocks or modules.
type FlowStore interface {
	Store

	// SaveBlock upserts a block definition by id.
	SaveBlock(ctx context.Context, block *domain.Block) error
	ListBlocks(ctx context.Context) ([]domain.Block, error)

	// SaveModule upserts a module record by name.
	SaveModule(ctx context.Context, module *domain.Module) error

	// ListTraces returns the most recent trace rows for a user, newest first.
	ListTraces(ctx context.Context, userID, platform string, limit int) ([]domain.Trace, error)
}
