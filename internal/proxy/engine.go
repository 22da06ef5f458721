package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sang-cache/sang-cache/internal/byterange"
	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/upstream"
)

// ErrUnhandled 表示回退链已耗尽（网络失败且缓存未命中），不伪造响应，交由 HTTP 层处理。
var ErrUnhandled = errors.New("request unhandled: network failed and no cached copy")

// GenerationOpener 返回当前代的句柄，generation.Manager 实现该接口。
type GenerationOpener interface {
	Open(ctx context.Context) (cache.Handle, error)
}

// Options 控制引擎的可配置行为。
type Options struct {
	Rules              RouteRules
	AudioContentType   string
	OfflineBody        string
	PopulateCacheFirst bool
}

// Engine 实现四种策略。每个请求顺序执行：同一时刻最多一个网络请求和一个存储操作。
type Engine struct {
	generations GenerationOpener
	fetcher     upstream.Fetcher
	logger      *logrus.Logger
	opts        Options
}

// NewEngine 创建引擎，缺省值与配置默认值一致。
func NewEngine(generations GenerationOpener, fetcher upstream.Fetcher, logger *logrus.Logger, opts Options) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Rules == (RouteRules{}) {
		opts.Rules = DefaultRouteRules()
	}
	if opts.AudioContentType == "" {
		opts.AudioContentType = "audio/mpeg"
	}
	if opts.OfflineBody == "" {
		opts.OfflineBody = "Offline"
	}
	return &Engine{
		generations: generations,
		fetcher:     fetcher,
		logger:      logger,
		opts:        opts,
	}
}

// Handlers 返回策略到处理函数的映射，供 Forwarder 分发。
func (e *Engine) Handlers() map[Strategy]StrategyHandler {
	return map[Strategy]StrategyHandler{
		StrategyExcluded:   StrategyFunc(e.ServeExcluded),
		StrategyAudio:      StrategyFunc(e.ServeAudio),
		StrategyNavigation: StrategyFunc(e.ServeNavigation),
		StrategyCacheFirst: StrategyFunc(e.ServeCacheFirst),
	}
}

// ServeExcluded 直接访问源站，不读写缓存也不检查响应。
func (e *Engine) ServeExcluded(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnhandled, err)
	}
	return resp, nil
}

// ServeAudio 处理音频请求：
//
//	有 Range 且命中 → 206 / 416
//	其余 → 去掉 Range 回源；成功时（无 Range 且 200）写缓存并原样返回
//	回源失败 → 再查一次缓存，命中返回完整 200（不切片），否则 503
func (e *Engine) ServeAudio(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	handle, err := e.generations.Open(ctx)
	if err != nil {
		return nil, err
	}
	key := e.opts.Rules.CacheKey(req.URL)
	ranged := req.HasRange()

	if ranged {
		if obj := e.lookup(ctx, handle, key); obj != nil {
			return e.serveRange(obj, req.RangeHeader()), nil
		}
	}

	resp, err := e.fetcher.Fetch(ctx, req.WithoutRange())
	if err == nil {
		if !ranged && resp.Status == http.StatusOK {
			e.populate(ctx, handle, key, req, resp, e.opts.AudioContentType)
		}
		return resp, nil
	}
	e.logNetworkFailure(StrategyAudio, req, err)

	if obj := e.lookup(ctx, handle, key); obj != nil {
		return e.serveObject(obj, true), nil
	}
	return e.offline(), nil
}

// ServeNavigation 网络优先：200 时写入缓存后返回网络响应；网络失败时回退缓存。
func (e *Engine) ServeNavigation(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	handle, err := e.generations.Open(ctx)
	if err != nil {
		return nil, err
	}
	key := e.opts.Rules.CacheKey(req.URL)

	resp, err := e.fetcher.Fetch(ctx, req)
	if err == nil {
		if resp.Status == http.StatusOK {
			e.populate(ctx, handle, key, req, resp, "")
		}
		return resp, nil
	}
	e.logNetworkFailure(StrategyNavigation, req, err)

	if obj := e.lookup(ctx, handle, key); obj != nil {
		return e.serveObject(obj, false), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnhandled, err)
}

// ServeCacheFirst 缓存优先：未命中时返回网络结果；默认不回填，PopulateCacheFirst 打开后回填 200。
func (e *Engine) ServeCacheFirst(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	handle, err := e.generations.Open(ctx)
	if err != nil {
		return nil, err
	}
	key := e.opts.Rules.CacheKey(req.URL)

	if obj := e.lookup(ctx, handle, key); obj != nil {
		return e.serveObject(obj, false), nil
	}

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		e.logNetworkFailure(StrategyCacheFirst, req, err)
		return nil, fmt.Errorf("%w: %w", ErrUnhandled, err)
	}
	if e.opts.PopulateCacheFirst && resp.Status == http.StatusOK {
		e.populate(ctx, handle, key, req, resp, "")
	}
	return resp, nil
}

// lookup 把存储读取错误当作未命中处理，仅记录日志。
func (e *Engine) lookup(ctx context.Context, handle cache.Handle, key string) *cache.Object {
	if handle == nil {
		return nil
	}
	obj, err := handle.Get(ctx, key)
	switch {
	case err == nil:
		return obj
	case errors.Is(err, cache.ErrNotFound):
		return nil
	default:
		e.logger.WithError(err).
			WithFields(logrus.Fields{"action": "proxy", "key": key}).
			Warn("cache_get_failed")
		return nil
	}
}

// populate 写入独立副本；写入失败不影响本次响应。
func (e *Engine) populate(ctx context.Context, handle cache.Handle, key string, req *upstream.Request, resp *upstream.Envelope, fallbackType string) {
	contentType := resp.ContentType()
	if contentType == "" {
		contentType = fallbackType
	}
	obj := cache.Object{
		URL:         req.URL.String(),
		ContentType: contentType,
		Body:        resp.Body,
	}
	writer := cache.NewWriter(handle)
	if !writer.Enabled() {
		return
	}
	if _, err := writer.Put(ctx, key, obj); err != nil {
		e.logger.WithError(err).
			WithFields(logrus.Fields{"action": "proxy", "key": key}).
			Warn("cache_put_failed")
	}
}

func (e *Engine) serveRange(obj *cache.Object, header string) *upstream.Envelope {
	total := obj.Size()
	r, err := byterange.Parse(header, total)
	if err != nil {
		env := &upstream.Envelope{
			Status:   http.StatusRequestedRangeNotSatisfiable,
			Header:   http.Header{},
			CacheHit: true,
		}
		env.Header.Set("Content-Range", byterange.Unsatisfied(total))
		env.Header.Set("Content-Length", "0")
		return env
	}

	env := upstream.NewEnvelope(http.StatusPartialContent, e.opts.AudioContentType, r.Slice(obj.Body))
	env.Header.Set("Content-Range", r.ContentRange(total))
	env.Header.Set("Accept-Ranges", "bytes")
	env.Header.Set("Content-Length", strconv.FormatInt(r.Len(), 10))
	env.CacheHit = true
	return env
}

func (e *Engine) serveObject(obj *cache.Object, audio bool) *upstream.Envelope {
	contentType := obj.ContentType
	if contentType == "" && audio {
		contentType = e.opts.AudioContentType
	}
	env := upstream.NewEnvelope(http.StatusOK, contentType, obj.Body)
	if audio {
		env.Header.Set("Accept-Ranges", "bytes")
	}
	env.CacheHit = true
	return env
}

func (e *Engine) offline() *upstream.Envelope {
	return upstream.NewEnvelope(http.StatusServiceUnavailable, "text/plain; charset=utf-8", []byte(e.opts.OfflineBody))
}

func (e *Engine) logNetworkFailure(strategy Strategy, req *upstream.Request, err error) {
	e.logger.WithError(err).
		WithFields(logrus.Fields{
			"action":   "proxy",
			"strategy": string(strategy),
			"path":     req.Path(),
		}).
		Warn("network_fetch_failed")
}
