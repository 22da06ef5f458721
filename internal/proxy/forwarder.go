package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/logging"
	"github.com/sang-cache/sang-cache/internal/server"
	"github.com/sang-cache/sang-cache/internal/upstream"
)

// StrategyHandler 处理某一种策略的请求。
type StrategyHandler interface {
	Serve(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error)
}

// StrategyFunc adapts a function to the StrategyHandler interface.
type StrategyFunc func(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error)

// Serve makes StrategyFunc satisfy StrategyHandler.
func (f StrategyFunc) Serve(ctx context.Context, req *upstream.Request) (*upstream.Envelope, error) {
	return f(ctx, req)
}

// Forwarder 实现 server.ProxyHandler：构造请求、分类、分发到策略处理函数并写回响应。
// 策略处理函数中的 panic 会被转换为 500 JSON，不会越过请求边界。
type Forwarder struct {
	origin   *url.URL
	rules    RouteRules
	handlers map[Strategy]StrategyHandler
	logger   *logrus.Logger
}

// NewForwarder 创建 Forwarder，origin 为源站根地址。
func NewForwarder(origin *url.URL, rules RouteRules, handlers map[Strategy]StrategyHandler, logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Forwarder{
		origin:   origin,
		rules:    rules,
		handlers: handlers,
		logger:   logger,
	}
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Handle 实现 server.ProxyHandler。
func (f *Forwarder) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	req, err := buildRequest(c, f.origin)
	if err != nil {
		f.logFailure(StrategyExcluded, c.Path(), requestID, "invalid_request", err)
		return writeError(c, fiber.StatusBadRequest, "invalid_request", requestID)
	}

	strategy := Classify(req, f.rules)
	handler := f.handlers[strategy]
	if handler == nil {
		f.logFailure(strategy, req.Path(), requestID, "strategy_handler_missing", nil)
		return writeError(c, fiber.StatusInternalServerError, "strategy_handler_missing", requestID)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := f.invokeHandler(ctx, handler, req)
	if err != nil {
		return f.respondFailure(c, strategy, req, requestID, err)
	}

	f.logResult(strategy, req, requestID, env, started)
	return writeEnvelope(c, env, strategy, requestID)
}

func (f *Forwarder) invokeHandler(ctx context.Context, handler StrategyHandler, req *upstream.Request) (env *upstream.Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			env = nil
			err = &panicError{value: r}
		}
	}()
	env, err = handler.Serve(ctx, req)
	if err == nil && env == nil {
		err = errors.New("strategy handler returned no response")
	}
	return env, err
}

func (f *Forwarder) respondFailure(c fiber.Ctx, strategy Strategy, req *upstream.Request, requestID string, err error) error {
	var panicked *panicError
	switch {
	case errors.As(err, &panicked):
		f.logFailure(strategy, req.Path(), requestID, "strategy_handler_panic", err)
		return writeError(c, fiber.StatusInternalServerError, "strategy_handler_panic", requestID)
	case errors.Is(err, cache.ErrStoreUnavailable):
		f.logFailure(strategy, req.Path(), requestID, "store_unavailable", err)
		return writeError(c, fiber.StatusServiceUnavailable, "store_unavailable", requestID)
	case errors.Is(err, ErrUnhandled):
		f.logFailure(strategy, req.Path(), requestID, "upstream_failed", err)
		return writeError(c, fiber.StatusBadGateway, "upstream_failed", requestID)
	default:
		f.logFailure(strategy, req.Path(), requestID, "proxy_failed", err)
		return writeError(c, fiber.StatusInternalServerError, "proxy_failed", requestID)
	}
}

func (f *Forwarder) logResult(strategy Strategy, req *upstream.Request, requestID string, env *upstream.Envelope, started time.Time) {
	fields := logging.RequestFields(string(strategy), req.Path(), requestID, env.CacheHit)
	fields["action"] = "proxy"
	fields["status"] = env.Status
	fields["bytes"] = len(env.Body)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	f.logger.WithFields(fields).Info("proxy_complete")
}

func (f *Forwarder) logFailure(strategy Strategy, path, requestID, code string, err error) {
	fields := logging.RequestFields(string(strategy), path, requestID, false)
	fields["action"] = "proxy"
	fields["error"] = code
	if err != nil {
		f.logger.WithFields(fields).Error(err.Error())
		return
	}
	f.logger.WithFields(fields).Error("proxy_failed")
}
