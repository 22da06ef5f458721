package cache

import (
	"context"
	"errors"
)

// Writer 封装运行时回填：写入与客户端连接解耦，客户端断开后写入仍会完成，
// 保证后续请求可以命中。
type Writer struct {
	handle Handle
}

// NewWriter 构造绑定到某个代的写入器，handle 可为 nil（表示当前不可写）。
func NewWriter(handle Handle) Writer {
	return Writer{handle: handle}
}

// Enabled 返回当前是否具备缓存写入能力。
func (w Writer) Enabled() bool {
	return w.handle != nil
}

// Put 复制一份正文后写入，调用方可以继续使用原切片构造响应。
func (w Writer) Put(ctx context.Context, key string, obj Object) (*Entry, error) {
	if w.handle == nil {
		return nil, ErrStoreUnavailable
	}
	if key == "" {
		return nil, errors.New("cache key required")
	}
	stored := obj
	stored.Body = append([]byte(nil), obj.Body...)
	return w.handle.Put(context.WithoutCancel(ctx), key, stored)
}
