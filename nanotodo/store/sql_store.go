package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/arthur-debert/nanotodo/nanotodo/storage"
	"github.com/arthur-debert/nanotodo/types"
)

//go:embed sql/schema.sql
var schemaSQL string

// SQLStore is the relational backend: a single SQLite table driven through
// modernc.org/sqlite, with statements built by squirrel.
type SQLStore struct {
	db      *sql.DB
	builder *sqlBuilder
	logger  *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// NewSQLStore opens (but does not yet touch) the SQLite database at path.
// The schema is created by Init.
func NewSQLStore(path string, opts ...Option) (*SQLStore, error) {
	o := newOptions(opts)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// per-connection pragmas (and :memory: databases) consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLStore{
		db:      db,
		builder: newSQLBuilder(),
		logger:  o.logger.With("backend", BackendSQLite, "path", path),
	}, nil
}

// Init applies pragmas and creates the schema. Repeated calls are no-ops.
func (s *SQLStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				continue
			}
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.initialized = true
	s.logger.Debug("schema ready")
	return nil
}

// FindAll implements storage.Backend.
func (s *SQLStore) FindAll(ctx context.Context, ownerKey string) ([]types.Todo, error) {
	query, args, err := s.builder.selectAll(ownerKey)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	todos := []types.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// FindByID implements storage.Backend.
func (s *SQLStore) FindByID(ctx context.Context, id, ownerKey string) (*types.Todo, error) {
	query, args, err := s.builder.selectOne(id, ownerKey)
	if err != nil {
		return nil, err
	}
	todo, err := scanTodo(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

// Insert implements storage.Backend.
func (s *SQLStore) Insert(ctx context.Context, todo types.Todo) (*types.Todo, error) {
	query, args, err := s.builder.insert(todo)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}
	// Read back what the column types actually hold.
	return s.FindByID(ctx, todo.ID, todo.OwnerKey)
}

// ReplaceOrMerge implements storage.Backend. The update and the read-back
// run in one transaction.
func (s *SQLStore) ReplaceOrMerge(ctx context.Context, id, ownerKey string, patch types.Patch) (*types.Todo, error) {
	update, args, err := s.builder.update(id, ownerKey, patch)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	query, args, err := s.builder.selectOne(id, ownerKey)
	if err != nil {
		return nil, err
	}
	todo, err := scanTodo(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return &todo, nil
}

// Remove implements storage.Backend.
func (s *SQLStore) Remove(ctx context.Context, id, ownerKey string) (bool, error) {
	query, args, err := s.builder.delete(id, ownerKey)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Close implements storage.Backend.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodo(row rowScanner) (types.Todo, error) {
	var (
		todo                 types.Todo
		dueDate              sql.NullString
		done                 int
		createdAt, updatedAt string
	)
	err := row.Scan(&todo.ID, &todo.Title, &todo.Description, &dueDate, &done, &createdAt, &updatedAt, &todo.OwnerKey)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Todo{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Todo{}, fmt.Errorf("failed to scan todo: %w", err)
	}
	todo.DueDate = dueDate.String
	todo.Done = done != 0
	if todo.CreatedAt, err = parseSQLTime(createdAt); err != nil {
		return types.Todo{}, err
	}
	if todo.UpdatedAt, err = parseSQLTime(updatedAt); err != nil {
		return types.Todo{}, err
	}
	return todo, nil
}
