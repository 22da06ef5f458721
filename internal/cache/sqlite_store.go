package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS generations (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS entries (
	generation   TEXT NOT NULL,
	key          TEXT NOT NULL,
	url          TEXT NOT NULL,
	content_type TEXT NOT NULL,
	stored_at    INTEGER NOT NULL,
	body         BLOB,
	PRIMARY KEY (generation, key)
);`

// sqliteStore 将所有代保存在同一个 sqlite 文件中，写操作通过 writeMutex 串行化，
// 单条 upsert 保证同 key 的读者只会看到完整对象。
// known 记录本进程已登记的代，再次 Open 时不进入写锁，读请求不会排在 Put 之后。
type sqliteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	known      sync.Map
}

type sqliteHandle struct {
	store      *sqliteStore
	generation string
}

// NewSQLiteStore 打开（或创建）filename 指向的 sqlite 数据库。
func NewSQLiteStore(filename string) (Store, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: sqlite file required", ErrStoreUnavailable)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage path: %v", ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", filename+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable wal: %v", ErrStoreUnavailable, err)
	}

	return &sqliteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *sqliteStore) Open(ctx context.Context, generation string) (Handle, error) {
	if err := validateGeneration(generation); err != nil {
		return nil, err
	}
	handle := &sqliteHandle{store: s, generation: generation}
	if _, ok := s.known.Load(generation); ok {
		return handle, nil
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO generations (name) VALUES (?)", generation); err != nil {
		return nil, fmt.Errorf("%w: open generation %s: %v", ErrStoreUnavailable, generation, err)
	}
	s.known.Store(generation, struct{}{})
	return handle, nil
}

func (s *sqliteStore) Generations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM generations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%w: list generations: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStore) DeleteGeneration(ctx context.Context, generation string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	s.known.Delete(generation)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE generation = ?", generation); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM generations WHERE name = ?", generation); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (h *sqliteHandle) Generation() string {
	return h.generation
}

func (h *sqliteHandle) Get(ctx context.Context, key string) (*Object, error) {
	var obj Object
	err := h.store.db.QueryRowContext(ctx,
		"SELECT url, content_type, body FROM entries WHERE generation = ? AND key = ?",
		h.generation, key,
	).Scan(&obj.URL, &obj.ContentType, &obj.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &obj, nil
}

func (h *sqliteHandle) Put(ctx context.Context, key string, obj Object) (*Entry, error) {
	if key == "" {
		return nil, errors.New("cache key required")
	}
	h.store.writeMutex.Lock()
	defer h.store.writeMutex.Unlock()

	storedAt := time.Now().UTC()
	body := obj.Body
	if body == nil {
		body = []byte{}
	}

	tx, err := h.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO generations (name) VALUES (?)", h.generation); err != nil {
		tx.Rollback()
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO entries (generation, key, url, content_type, stored_at, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (generation, key) DO UPDATE SET
			url = excluded.url,
			content_type = excluded.content_type,
			stored_at = excluded.stored_at,
			body = excluded.body`,
		h.generation, key, obj.URL, obj.ContentType, storedAt.UnixNano(), body)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Entry{
		Generation:  h.generation,
		Key:         key,
		ContentType: obj.ContentType,
		SizeBytes:   int64(len(obj.Body)),
		StoredAt:    storedAt,
	}, nil
}

func (h *sqliteHandle) Remove(ctx context.Context, key string) error {
	h.store.writeMutex.Lock()
	defer h.store.writeMutex.Unlock()
	_, err := h.store.db.ExecContext(ctx, "DELETE FROM entries WHERE generation = ? AND key = ?", h.generation, key)
	return err
}

func (h *sqliteHandle) Keys(ctx context.Context) ([]string, error) {
	rows, err := h.store.db.QueryContext(ctx, "SELECT key FROM entries WHERE generation = ? ORDER BY key", h.generation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
