package cache

import (
	"fmt"
	"path/filepath"
	"strings"
)

// 支持的存储后端。
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

const sqliteFileName = "cache.db"

// NewStore 根据 backend 选择存储实现，storagePath 为根目录。
func NewStore(backend, storagePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFS:
		return NewFileStore(storagePath)
	case BackendSQLite:
		if storagePath == "" {
			return nil, fmt.Errorf("%w: storage path required", ErrStoreUnavailable)
		}
		return NewSQLiteStore(filepath.Join(storagePath, sqliteFileName))
	default:
		return nil, fmt.Errorf("%w: unsupported backend %q", ErrStoreUnavailable, backend)
	}
}
