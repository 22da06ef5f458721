package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/sang-cache/sang-cache/internal/cache"
	"github.com/sang-cache/sang-cache/internal/config"
	"github.com/sang-cache/sang-cache/internal/generation"
	"github.com/sang-cache/sang-cache/internal/logging"
	"github.com/sang-cache/sang-cache/internal/proxy"
	"github.com/sang-cache/sang-cache/internal/server"
	"github.com/sang-cache/sang-cache/internal/server/routes"
	"github.com/sang-cache/sang-cache/internal/upstream"
	"github.com/sang-cache/sang-cache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	manifest, err := generation.LoadManifest(cfg.Cache.Precache, cfg.Cache.PrecacheManifest)
	if err != nil {
		fmt.Fprintf(stdErr, "加载预缓存清单失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_version"] = cfg.Cache.Version
		fields["origin"] = cfg.Global.Origin
		fields["backend"] = cfg.Global.StorageBackend
		fields["precache"] = manifest.Len()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 日志 → 存储 → 预缓存（install）→ 激活（activate）→ Fiber server。
	store, err := cache.NewStore(cfg.Global.StorageBackend, cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存存储失败: %v\n", err)
		return 1
	}
	defer store.Close()

	client := upstream.NewClient(cfg)
	rt, err := bootstrapCache(context.Background(), cfg, manifest, store, client, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "缓存初始化失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_version"] = cfg.Cache.Version
	fields["origin"] = cfg.Global.Origin
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, rt, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// cacheRuntime 汇总启动后请求处理所需的缓存组件。
type cacheRuntime struct {
	manager   *generation.Manager
	lifecycle *generation.Lifecycle
	fetcher   upstream.Fetcher
	rules     proxy.RouteRules
}

// bootstrapCache 打开当前代并执行 install → activate。
// 预缓存失败时跳过激活，保留旧代；RequireCompletePrecache 打开时直接返回错误。
func bootstrapCache(
	ctx context.Context,
	cfg *config.Config,
	manifest generation.Manifest,
	store cache.Store,
	client *http.Client,
	logger *logrus.Logger,
) (*cacheRuntime, error) {
	manager := generation.NewManager(store, cfg.Cache.Version, logger)
	if _, err := manager.Open(ctx); err != nil {
		return nil, err
	}

	origin := cfg.OriginURL()
	if origin == nil {
		return nil, fmt.Errorf("invalid origin %q", cfg.Global.Origin)
	}

	rules := proxy.RouteRules{
		AdminPrefix:    cfg.Cache.AdminPrefix,
		AudioExtension: cfg.Cache.AudioExtension,
	}
	fetcher := upstream.NewHTTPFetcher(client)
	installer := generation.NewInstaller(manager, fetcher, origin, logger, generation.InstallOptions{
		Concurrency: cfg.Cache.PrecacheConcurrency,
		KeyFunc:     rules.CacheKey,
	})
	lifecycle := generation.NewLifecycle(manager, installer, manifest)

	rt := &cacheRuntime{
		manager:   manager,
		lifecycle: lifecycle,
		fetcher:   fetcher,
		rules:     rules,
	}

	if err := lifecycle.OnInstall(ctx); err != nil {
		if cfg.Cache.RequireCompletePrecache {
			return nil, err
		}
		logger.WithFields(logging.GenerationFields("install", cfg.Cache.Version)).
			WithError(err).
			Warn("activation_skipped")
		return rt, nil
	}

	if _, err := lifecycle.OnActivate(ctx); err != nil {
		logger.WithFields(logging.GenerationFields("activate", cfg.Cache.Version)).
			WithError(err).
			Warn("activation_failed")
	}
	return rt, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("sang-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 SANG_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("SANG_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func newApp(cfg *config.Config, rt *cacheRuntime, logger *logrus.Logger) (*fiber.App, error) {
	origin := cfg.OriginURL()
	if origin == nil {
		return nil, fmt.Errorf("invalid origin %q", cfg.Global.Origin)
	}

	engine := proxy.NewEngine(rt.manager, rt.fetcher, logger, proxy.Options{
		Rules:              rt.rules,
		AudioContentType:   cfg.Cache.AudioContentType,
		OfflineBody:        cfg.Cache.OfflineBody,
		PopulateCacheFirst: cfg.Cache.PopulateCacheFirst,
	})
	forwarder := proxy.NewForwarder(origin, rt.rules, engine.Handlers(), logger)

	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Proxy:  forwarder,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterStatusRoutes(app, rt.lifecycle, cfg.Global.StorageBackend)
	return app, nil
}

func startHTTPServer(cfg *config.Config, rt *cacheRuntime, logger *logrus.Logger) error {
	app, err := newApp(cfg, rt, logger)
	if err != nil {
		return err
	}

	port := cfg.Global.ListenPort
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
