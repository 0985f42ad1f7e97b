package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.FlowStore in memory.
// Safe for concurrent use. Intended for tests and the console chat mode;
// nothing survives a restart.
type Store struct {
	mu sync.RWMutex

	users    map[string]*domain.BotUser
	sessions map[string]*domain.UserSession
	params   map[string]map[string]string
	blocks   map[int64]*domain.Block
	modules  map[string]*domain.Module

	traces      []domain.Trace
	nextTraceID int64
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*domain.BotUser),
		sessions: make(map[string]*domain.UserSession),
		params:   make(map[string]map[string]string),
		blocks:   make(map[int64]*domain.Block),
		modules:  make(map[string]*domain.Module),
	}
}

// FindUser retrieves a user by identity.
func (s *Store) FindUser(ctx context.Context, userID, platform string) (*domain.BotUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[domain.SessionKey(userID, platform)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	ret := *user
	return &ret, nil
}

// CreateUser stores a new user. Defaults CreatedAt when unset.
func (s *Store) CreateUser(ctx context.Context, user *domain.BotUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	s.users[domain.SessionKey(user.UserID, user.Platform)] = &copied
	return nil
}

// UpdateUser overwrites an existing user record.
func (s *Store) UpdateUser(ctx context.Context, user *domain.BotUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SessionKey(user.UserID, user.Platform)
	if _, ok := s.users[key]; !ok {
		return domain.ErrUserNotFound
	}
	copied := *user
	s.users[key] = &copied
	return nil
}

// FindSession retrieves the session of a (userID, platform) pair.
func (s *Store) FindSession(ctx context.Context, userID, platform string) (*domain.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[domain.SessionKey(userID, platform)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	ret := *session
	return &ret, nil
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, session *domain.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[domain.SessionKey(session.UserID, session.Platform)] = &copied
	return nil
}

// UpdateSession overwrites an existing session.
func (s *Store) UpdateSession(ctx context.Context, session *domain.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SessionKey(session.UserID, session.Platform)
	if _, ok := s.sessions[key]; !ok {
		return domain.ErrSessionNotFound
	}
	copied := *session
	s.sessions[key] = &copied
	return nil
}

// GetParam returns a single param value or domain.ErrParamNotFound.
func (s *Store) GetParam(ctx context.Context, userID, platform, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.params[domain.SessionKey(userID, platform)]
	if !ok {
		return "", domain.ErrParamNotFound
	}
	value, ok := bucket[key]
	if !ok {
		return "", domain.ErrParamNotFound
	}
	return value, nil
}

// SetParam upserts a single param.
func (s *Store) SetParam(ctx context.Context, param *domain.UserParam) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SessionKey(param.UserID, param.Platform)
	bucket, ok := s.params[key]
	if !ok {
		bucket = make(map[string]string)
		s.params[key] = bucket
	}
	bucket[param.Key] = param.Value
	return nil
}

// AppendTrace records one audit row, assigning a sequential id.
func (s *Store) AppendTrace(ctx context.Context, trace *domain.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTraceID++
	copied := *trace
	copied.ID = s.nextTraceID
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	if trace.BlockID != nil {
		id := *trace.BlockID
		copied.BlockID = &id
	}
	s.traces = append(s.traces, copied)
	return nil
}

// FindBlock retrieves a block by id.
func (s *Store) FindBlock(ctx context.Context, id int64) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.blocks[id]
	if !ok {
		return nil, domain.ErrBlockNotFound
	}
	ret := *block
	return &ret, nil
}

// FindStartBlock returns the block marked IsStart.
func (s *Store) FindStartBlock(ctx context.Context) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, block := range s.blocks {
		if block.IsStart {
			ret := *block
			return &ret, nil
		}
	}
	return nil, domain.ErrNoStartBlock
}

// FindModule retrieves a module record by name.
func (s *Store) FindModule(ctx context.Context, name string) (*domain.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	module, ok := s.modules[name]
	if !ok {
		return nil, domain.ErrModuleNotFound
	}
	ret := *module
	return &ret, nil
}

// UpdateModuleStatus records the outcome of a load attempt.
func (s *Store) UpdateModuleStatus(ctx context.Context, name string, status domain.ModuleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	module, ok := s.modules[name]
	if !ok {
		return domain.ErrModuleNotFound
	}
	module.Status = status
	return nil
}

// SaveBlock upserts a block definition.
func (s *Store) SaveBlock(ctx context.Context, block *domain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *block
	s.blocks[block.ID] = &copied
	return nil
}

// ListBlocks returns all blocks ordered by id.
func (s *Store) ListBlocks(ctx context.Context) ([]domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := make([]domain.Block, 0, len(s.blocks))
	for _, block := range s.blocks {
		blocks = append(blocks, *block)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	return blocks, nil
}

// SaveModule upserts a module record.
func (s *Store) SaveModule(ctx context.Context, module *domain.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *module
	if copied.Status == "" {
		copied.Status = domain.ModuleStatusStop
	}
	s.modules[module.Name] = &copied
	return nil
}

// ListTraces returns the most recent rows for a user, newest first.
func (s *Store) ListTraces(ctx context.Context, userID, platform string, limit int) ([]domain.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Trace
	for i := len(s.traces) - 1; i >= 0; i-- {
		t := s.traces[i]
		if t.UserID != userID || t.Platform != platform {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
