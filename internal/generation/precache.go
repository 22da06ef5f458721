package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/logging"
	"github.com/sang-cache/sang-cache/internal/upstream"
)

const defaultPrecacheConcurrency = 4

// PrecacheIncompleteError 表示清单中至少一项未能获取；已写入的条目保留，不做回滚。
type PrecacheIncompleteError struct {
	URL string
	Err error
}

func (e *PrecacheIncompleteError) Error() string {
	return fmt.Sprintf("precache incomplete: %s: %v", e.URL, e.Err)
}

func (e *PrecacheIncompleteError) Unwrap() error {
	return e.Err
}

// KeyFunc 计算清单条目对应的缓存 key，需与运行时查找使用同一规则。
type KeyFunc func(u *url.URL) string

// InstallOptions 控制预缓存行为。
type InstallOptions struct {
	Concurrency int
	KeyFunc     KeyFunc
}

// Installer 把清单中的每个路径从源站拉取并写入当前代。
type Installer struct {
	manager *Manager
	fetcher upstream.Fetcher
	origin  *url.URL
	logger  *logrus.Logger
	opts    InstallOptions
}

// NewInstaller 创建 Installer；origin 用于把清单路径解析为绝对地址。
func NewInstaller(manager *Manager, fetcher upstream.Fetcher, origin *url.URL, logger *logrus.Logger, opts InstallOptions) *Installer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultPrecacheConcurrency
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = func(u *url.URL) string { return cache.Key(u, false) }
	}
	return &Installer{
		manager: manager,
		fetcher: fetcher,
		origin:  origin,
		logger:  logger,
		opts:    opts,
	}
}

// Install 以有界并发拉取全部清单条目。任一条目返回非 200 或网络失败时，
// 整体失败并取消剩余请求，返回第一个 *PrecacheIncompleteError。
func (i *Installer) Install(ctx context.Context, manifest Manifest) error {
	handle, err := i.manager.Open(ctx)
	if err != nil {
		return err
	}
	if len(manifest) == 0 {
		return nil
	}

	started := time.Now()
	writer := cache.NewWriter(handle)
	p := pool.New().
		WithMaxGoroutines(i.opts.Concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, entry := range manifest {
		p.Go(func(ctx context.Context) error {
			return i.installOne(ctx, writer, entry)
		})
	}

	if err := p.Wait(); err != nil {
		i.logger.WithFields(logging.GenerationFields("install", i.manager.Version())).
			WithError(err).
			Warn("precache_incomplete")
		return err
	}

	i.logger.WithFields(logging.GenerationFields("install", i.manager.Version())).
		WithFields(logrus.Fields{
			"entries":    len(manifest),
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).
		Info("precache_complete")
	return nil
}

func (i *Installer) installOne(ctx context.Context, writer cache.Writer, entry string) error {
	target, err := i.resolve(entry)
	if err != nil {
		return &PrecacheIncompleteError{URL: entry, Err: err}
	}

	resp, err := i.fetcher.Fetch(ctx, upstream.NewGetRequest(target))
	if err != nil {
		return &PrecacheIncompleteError{URL: target.String(), Err: err}
	}
	if resp.Status != http.StatusOK {
		return &PrecacheIncompleteError{
			URL: target.String(),
			Err: fmt.Errorf("unexpected status %d", resp.Status),
		}
	}

	obj := cache.Object{
		URL:         target.String(),
		ContentType: resp.ContentType(),
		Body:        resp.Body,
	}
	if _, err := writer.Put(ctx, i.opts.KeyFunc(target), obj); err != nil {
		return &PrecacheIncompleteError{URL: target.String(), Err: err}
	}
	return nil
}

func (i *Installer) resolve(entry string) (*url.URL, error) {
	ref, err := url.Parse(entry)
	if err != nil {
		return nil, fmt.Errorf("parse manifest entry: %w", err)
	}
	if i.origin == nil {
		return nil, fmt.Errorf("origin not configured")
	}
	return i.origin.ResolveReference(ref), nil
}
