package generation

import (
	"context"
	"sync/atomic"
)

// Status 是 /-/status 诊断接口使用的快照。
type Status struct {
	Version      string   `json:"version"`
	Installed    bool     `json:"installed"`
	Activated    bool     `json:"activated"`
	Generations  []string `json:"generations"`
	Entries      int      `json:"entries"`
	ManifestSize int      `json:"manifest_size"`
}

// Lifecycle 将安装与激活两个阶段暴露为普通函数，由 main 在启动时依次调用。
type Lifecycle struct {
	manager   *Manager
	installer *Installer
	manifest  Manifest

	installed atomic.Bool
	activated atomic.Bool
}

// NewLifecycle 组装生命周期。
func NewLifecycle(manager *Manager, installer *Installer, manifest Manifest) *Lifecycle {
	return &Lifecycle{
		manager:   manager,
		installer: installer,
		manifest:  manifest,
	}
}

// OnInstall 执行预缓存，仅在完整成功后标记为已安装。
func (l *Lifecycle) OnInstall(ctx context.Context) error {
	if err := l.installer.Install(ctx, l.manifest); err != nil {
		return err
	}
	l.installed.Store(true)
	return nil
}

// OnActivate 清理旧代。调用方应当只在 OnInstall 成功之后调用。
func (l *Lifecycle) OnActivate(ctx context.Context) (ActivateResult, error) {
	result, err := l.manager.Activate(ctx)
	if err != nil {
		return result, err
	}
	l.activated.Store(true)
	return result, nil
}

// Snapshot 汇总当前代与就绪状态。
func (l *Lifecycle) Snapshot(ctx context.Context) (Status, error) {
	status := Status{
		Version:      l.manager.Version(),
		Installed:    l.installed.Load(),
		Activated:    l.activated.Load(),
		ManifestSize: l.manifest.Len(),
	}

	names, err := l.manager.Generations(ctx)
	if err != nil {
		return status, err
	}
	status.Generations = names

	handle, err := l.manager.Open(ctx)
	if err != nil {
		return status, err
	}
	keys, err := handle.Keys(ctx)
	if err != nil {
		return status, err
	}
	status.Entries = len(keys)
	return status, nil
}
