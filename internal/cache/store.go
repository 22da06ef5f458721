package cache

import (
	"context"
	"errors"
	"time"
)

// Store 管理所有缓存代（generation）。磁盘布局遵循：
//
//	<StoragePath>/<Generation>/<sha1(key)>.entry    # msgp 编码的完整条目
//
// sqlite 后端则以 generation 列区分不同代。
type Store interface {
	// Open 返回绑定到指定代的 Handle，不存在时自动创建。底层不可用时返回包装了
	// ErrStoreUnavailable 的错误。
	Open(ctx context.Context, generation string) (Handle, error)

	// Generations 列出当前存在的全部代名称，按名称排序。
	Generations(ctx context.Context) ([]string, error)

	// DeleteGeneration 永久删除一个代及其全部条目，不存在时视为成功。
	DeleteGeneration(ctx context.Context, generation string) error

	// Close 释放底层资源。
	Close() error
}

// Handle 是单个代的读写入口，所有 key 均为 Key() 归一化后的 URL。
type Handle interface {
	Generation() string

	// Get 返回完整对象；未命中返回 ErrNotFound。
	Get(ctx context.Context, key string) (*Object, error)

	// Put 以单 key 原子语义写入完整对象，并发写同一 key 时后写者胜出。
	Put(ctx context.Context, key string, obj Object) (*Entry, error)

	// Remove 删除条目，不存在时视为成功。
	Remove(ctx context.Context, key string) error

	// Keys 列出当前代的全部 key，供诊断使用。
	Keys(ctx context.Context) ([]string, error)
}

// Object 是一份完整的缓存表示：正文 + Content-Type。
type Object struct {
	URL         string
	ContentType string
	Body        []byte
}

// Size 返回正文长度。
func (o *Object) Size() int64 {
	if o == nil {
		return 0
	}
	return int64(len(o.Body))
}

// Entry 描述一次写入后的条目元信息。
type Entry struct {
	Generation  string    `json:"generation"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoredAt    time.Time `json:"stored_at"`
}

var (
	// ErrNotFound 表示缓存不存在，这是正常的未命中结果而不是故障。
	ErrNotFound = errors.New("cache entry not found")
	// ErrStoreUnavailable 表示底层存储无法打开。
	ErrStoreUnavailable = errors.New("cache store unavailable")
)
