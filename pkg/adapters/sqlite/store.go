package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence implementing ports.FlowStore.
// It is the default durable store for single-instance deployments.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite store at the provided path and bootstraps the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Session and trace rows reference blocks by bare integer, without a foreign
// key. Flows are imported and re-imported while users hold live sessions;
// a dangling block id surfaces as ErrBlockNotFound at turn time instead of
// failing the import.
const schema = `
CREATE TABLE IF NOT EXISTS bot_users (
	user_id    TEXT NOT NULL,
	platform   TEXT NOT NULL,
	username   TEXT NOT NULL DEFAULT '',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, platform)
);

CREATE TABLE IF NOT EXISTS user_sessions (
	user_id          TEXT NOT NULL,
	platform         TEXT NOT NULL,
	current_block_id INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	PRIMARY KEY (user_id, platform)
);

CREATE TABLE IF NOT EXISTS user_params (
	user_id  TEXT NOT NULL,
	platform TEXT NOT NULL,
	key      TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (user_id, platform, key)
);

CREATE TABLE IF NOT EXISTS blocks (
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	script   TEXT NOT NULL,
	is_start INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS modules (
	name   TEXT PRIMARY KEY,
	file   TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'stop'
);

CREATE TABLE IF NOT EXISTS traces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	platform   TEXT NOT NULL,
	block_id   INTEGER,
	direction  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_user ON traces (user_id, platform, id);
`

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(schema)
	return err
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// FindUser retrieves a user by its (userID, platform) identity.
func (s *Store) FindUser(ctx context.Context, userID, platform string) (*domain.BotUser, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, platform, username, is_active, created_at FROM bot_users WHERE user_id = ? AND platform = ?`,
		userID, platform)

	var (
		user      domain.BotUser
		isActive  int
		createdAt int64
	)
	err := row.Scan(&user.UserID, &user.Platform, &user.Username, &isActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.IsActive = isActive != 0
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// CreateUser stores a new user record.
func (s *Store) CreateUser(ctx context.Context, user *domain.BotUser) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_users (user_id, platform, username, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.UserID, user.Platform, user.Username, boolToInt(user.IsActive), toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUser overwrites the mutable fields of an existing user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.BotUser) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bot_users SET username = ?, is_active = ? WHERE user_id = ? AND platform = ?`,
		user.Username, boolToInt(user.IsActive), user.UserID, user.Platform)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, domain.ErrUserNotFound)
}

// FindSession retrieves the session of a (userID, platform) pair.
func (s *Store) FindSession(ctx context.Context, userID, platform string) (*domain.UserSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, platform, current_block_id, updated_at FROM user_sessions WHERE user_id = ? AND platform = ?`,
		userID, platform)

	var (
		session   domain.UserSession
		updatedAt int64
	)
	err := row.Scan(&session.UserID, &session.Platform, &session.CurrentBlockID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	session.UpdatedAt = fromMillis(updatedAt)
	return &session, nil
}

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, session *domain.UserSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_sessions (user_id, platform, current_block_id, updated_at) VALUES (?, ?, ?, ?)`,
		session.UserID, session.Platform, session.CurrentBlockID, toMillis(session.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateSession moves an existing session to a new block.
func (s *Store) UpdateSession(ctx context.Context, session *domain.UserSession) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_sessions SET current_block_id = ?, updated_at = ? WHERE user_id = ? AND platform = ?`,
		session.CurrentBlockID, toMillis(session.UpdatedAt), session.UserID, session.Platform)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

// GetParam returns a single param value or domain.ErrParamNotFound.
func (s *Store) GetParam(ctx context.Context, userID, platform, key string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_params WHERE user_id = ? AND platform = ? AND key = ?`,
		userID, platform, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrParamNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get param: %w", err)
	}
	return value, nil
}

// SetParam upserts a single param.
func (s *Store) SetParam(ctx context.Context, param *domain.UserParam) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_params (user_id, platform, key, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, platform, key) DO UPDATE SET value = excluded.value`,
		param.UserID, param.Platform, param.Key, param.Value)
	if err != nil {
		return fmt.Errorf("set param: %w", err)
	}
	return nil
}

// AppendTrace writes one audit row.
func (s *Store) AppendTrace(ctx context.Context, trace *domain.Trace) error {
	createdAt := trace.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var blockID sql.NullInt64
	if trace.BlockID != nil {
		blockID = sql.NullInt64{Int64: *trace.BlockID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO traces (turn_id, user_id, platform, block_id, direction, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trace.TurnID, trace.UserID, trace.Platform, blockID, string(trace.Direction), trace.Content, toMillis(createdAt))
	if err != nil {
		return fmt.Errorf("append trace: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		trace.ID = id
	}
	return nil
}

// FindBlock retrieves a block by id.
func (s *Store) FindBlock(ctx context.Context, id int64) (*domain.Block, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, script, is_start FROM blocks WHERE id = ?`, id)
	return scanBlock(row)
}

// FindStartBlock returns the block marked is_start.
func (s *Store) FindStartBlock(ctx context.Context) (*domain.Block, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, script, is_start FROM blocks WHERE is_start = 1 LIMIT 1`)
	block, err := scanBlock(row)
	if errors.Is(err, domain.ErrBlockNotFound) {
		return nil, domain.ErrNoStartBlock
	}
	return block, err
}

func scanBlock(row *sql.Row) (*domain.Block, error) {
	var (
		block   domain.Block
		isStart int
	)
	err := row.Scan(&block.ID, &block.Name, &block.Script, &isStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan block: %w", err)
	}
	block.IsStart = isStart != 0
	return &block, nil
}

// FindModule retrieves a module record by name.
func (s *Store) FindModule(ctx context.Context, name string) (*domain.Module, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, file, status FROM modules WHERE name = ?`, name)

	var (
		module domain.Module
		status string
	)
	err := row.Scan(&module.Name, &module.File, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find module: %w", err)
	}
	module.Status = domain.ModuleStatus(status)
	return &module, nil
}

// UpdateModuleStatus records the outcome of a load attempt.
func (s *Store) UpdateModuleStatus(ctx context.Context, name string, status domain.ModuleStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE modules SET status = ? WHERE name = ?`, string(status), name)
	if err != nil {
		return fmt.Errorf("update module status: %w", err)
	}
	return requireRow(res, domain.ErrModuleNotFound)
}

// SaveBlock upserts a block definition by id.
func (s *Store) SaveBlock(ctx context.Context, block *domain.Block) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocks (id, name, script, is_start) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, script = excluded.script, is_start = excluded.is_start`,
		block.ID, block.Name, block.Script, boolToInt(block.IsStart))
	if err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

// ListBlocks returns all blocks ordered by id.
func (s *Store) ListBlocks(ctx context.Context) ([]domain.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, script, is_start FROM blocks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var (
			block   domain.Block
			isStart int
		)
		if err := rows.Scan(&block.ID, &block.Name, &block.Script, &isStart); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		block.IsStart = isStart != 0
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// SaveModule upserts a module record by name.
func (s *Store) SaveModule(ctx context.Context, module *domain.Module) error {
	status := module.Status
	if status == "" {
		status = domain.ModuleStatusStop
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO modules (name, file, status) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET file = excluded.file, status = excluded.status`,
		module.Name, module.File, string(status))
	if err != nil {
		return fmt.Errorf("save module: %w", err)
	}
	return nil
}

// ListTraces returns the most recent rows for a user, newest first.
func (s *Store) ListTraces(ctx context.Context, userID, platform string, limit int) ([]domain.Trace, error) {
	query := `SELECT id, turn_id, user_id, platform, block_id, direction, content, created_at
		 FROM traces WHERE user_id = ? AND platform = ? ORDER BY id DESC`
	args := []any{userID, platform}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var traces []domain.Trace
	for rows.Next() {
		var (
			trace     domain.Trace
			blockID   sql.NullInt64
			direction string
			createdAt int64
		)
		if err := rows.Scan(&trace.ID, &trace.TurnID, &trace.UserID, &trace.Platform,
			&blockID, &direction, &trace.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		if blockID.Valid {
			id := blockID.Int64
			trace.BlockID = &id
		}
		trace.Direction = domain.Direction(direction)
		trace.CreatedAt = fromMillis(createdAt)
		traces = append(traces, trace)
	}
	return traces, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
