package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/logging"
)

// ActivateResult 记录一次激活的结果。
type ActivateResult struct {
	Kept    string
	Deleted []string
	Failed  []string
}

// Manager 绑定一个 Store 与当前缓存版本。
type Manager struct {
	store   cache.Store
	version string
	logger  *logrus.Logger
}

// NewManager 创建 Manager；version 即当前代的名称，由配置提供。
func NewManager(store cache.Store, version string, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{store: store, version: version, logger: logger}
}

// Version 返回当前代名称。
func (m *Manager) Version() string {
	return m.version
}

// Open 返回当前代的句柄；底层不可用时返回包装了 cache.ErrStoreUnavailable 的错误。
func (m *Manager) Open(ctx context.Context) (cache.Handle, error) {
	if m.store == nil {
		return nil, fmt.Errorf("open generation %s: %w", m.version, cache.ErrStoreUnavailable)
	}
	handle, err := m.store.Open(ctx, m.version)
	if err != nil {
		if errors.Is(err, cache.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("open generation %s: %w: %v", m.version, cache.ErrStoreUnavailable, err)
	}
	return handle, nil
}

// Generations 列出底层现存的全部代。
func (m *Manager) Generations(ctx context.Context) ([]string, error) {
	if m.store == nil {
		return nil, fmt.Errorf("list generations: %w", cache.ErrStoreUnavailable)
	}
	return m.store.Generations(ctx)
}

// Activate 删除所有非当前版本的代。单个代删除失败只记录日志并继续；
// 重复调用是幂等的，第二次不会再删除任何内容。
func (m *Manager) Activate(ctx context.Context) (ActivateResult, error) {
	result := ActivateResult{Kept: m.version}
	if m.store == nil {
		return result, fmt.Errorf("activate: %w", cache.ErrStoreUnavailable)
	}

	names, err := m.store.Generations(ctx)
	if err != nil {
		return result, fmt.Errorf("list generations: %w", err)
	}

	for _, name := range names {
		if name == m.version {
			continue
		}
		if err := m.store.DeleteGeneration(ctx, name); err != nil {
			m.logger.WithFields(logging.GenerationFields("activate", name)).
				WithError(err).
				Warn("generation_delete_failed")
			result.Failed = append(result.Failed, name)
			continue
		}
		result.Deleted = append(result.Deleted, name)
	}

	m.logger.WithFields(logging.GenerationFields("activate", m.version)).
		WithFields(logrus.Fields{
			"deleted": len(result.Deleted),
			"failed":  len(result.Failed),
		}).
		Info("generation_activated")
	return result, nil
}
