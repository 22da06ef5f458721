package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"
)

const entrySuffix = ".entry"

// NewFileStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewFileStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: storage path required", ErrStoreUnavailable)
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve storage path: %v", ErrStoreUnavailable, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage path: %v", ErrStoreUnavailable, err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一 key 并发写入时互相覆盖临时文件，读取无需加锁：
// rename 保证读者只会看到旧的或新的完整文件。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

type fileHandle struct {
	store      *fileStore
	generation string
	dir        string
}

func (s *fileStore) Open(ctx context.Context, generation string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateGeneration(generation); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.basePath, generation)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: open generation %s: %v", ErrStoreUnavailable, generation, err)
	}
	return &fileHandle{store: s, generation: generation, dir: dir}, nil
}

func (s *fileStore) Generations(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: list generations: %v", ErrStoreUnavailable, err)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if !item.IsDir() || strings.HasPrefix(item.Name(), ".") {
			continue
		}
		names = append(names, item.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *fileStore) DeleteGeneration(ctx context.Context, generation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateGeneration(generation); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.basePath, generation))
}

func (s *fileStore) Close() error {
	return nil
}

func (h *fileHandle) Generation() string {
	return h.generation
}

func (h *fileHandle) Get(ctx context.Context, key string) (*Object, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := h.entryPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	var entry diskEntry
	if err := entry.DecodeMsg(msgp.NewReader(f)); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if entry.Key != key {
		// sha1 冲突或被外部篡改的文件，按未命中处理
		return nil, ErrNotFound
	}

	return &Object{
		URL:         entry.URL,
		ContentType: entry.ContentType,
		Body:        entry.Body,
	}, nil
}

func (h *fileHandle) Put(ctx context.Context, key string, obj Object) (*Entry, error) {
	if key == "" {
		return nil, errors.New("cache key required")
	}
	unlock := h.store.lockEntry(h.generation, key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := h.entryPath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	storedAt := time.Now().UTC()
	entry := diskEntry{
		Key:         key,
		URL:         obj.URL,
		ContentType: obj.ContentType,
		StoredAt:    storedAt.UnixNano(),
		Body:        obj.Body,
	}
	writer := msgp.NewWriter(tempFile)
	err = entry.EncodeMsg(writer)
	if err == nil {
		err = writer.Flush()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
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

func (h *fileHandle) Remove(ctx context.Context, key string) error {
	unlock := h.store.lockEntry(h.generation, key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := h.entryPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (h *fileHandle) Keys(ctx context.Context) ([]string, error) {
	items, err := os.ReadDir(h.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if item.IsDir() || !strings.HasSuffix(item.Name(), entrySuffix) {
			continue
		}
		key, err := readEntryKey(filepath.Join(h.dir, item.Name()))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func readEntryKey(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return decodeEntryKey(msgp.NewReader(f))
}

func (s *fileStore) lockEntry(generation, key string) func() {
	lockKey := generation + "::" + key
	s.mu.Lock()
	lock := s.locks[lockKey]
	if lock == nil {
		lock = &entryLock{}
		s.locks[lockKey] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, lockKey)
		}
		s.mu.Unlock()
	}
}

// entryPath 以 key 的 sha1 作为文件名，避免 URL 中的特殊字符逃逸出代目录。
func (h *fileHandle) entryPath(key string) (string, error) {
	if key == "" {
		return "", errors.New("cache key required")
	}
	sum := sha1.Sum([]byte(key))
	return filepath.Join(h.dir, hex.EncodeToString(sum[:])+entrySuffix), nil
}

func validateGeneration(generation string) error {
	switch {
	case strings.TrimSpace(generation) == "":
		return errors.New("generation name required")
	case generation == "." || generation == "..":
		return fmt.Errorf("invalid generation name: %s", generation)
	case strings.HasPrefix(generation, "."):
		return fmt.Errorf("generation name must not start with '.': %s", generation)
	case strings.ContainsAny(generation, `/\`):
		return fmt.Errorf("generation name must not contain path separators: %s", generation)
	}
	return nil
}
