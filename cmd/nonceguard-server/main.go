package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/internal/infra/buildinfo"
	"github.com/yndnr/nonceguard-go/internal/infra/confloader"
	"github.com/yndnr/nonceguard-go/internal/infra/shutdown"
	"github.com/yndnr/nonceguard-go/internal/infra/tlsroots"
	"github.com/yndnr/nonceguard-go/internal/server/config"
	"github.com/yndnr/nonceguard-go/internal/server/httpserver"
	"github.com/yndnr/nonceguard-go/internal/server/httpserver/handler"
	"github.com/yndnr/nonceguard-go/internal/storage"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
	"github.com/yndnr/nonceguard-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("nonceguard-server " + buildinfo.String())
		return nil
	}

	cfg, loader, err := config.Load(*configFile, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := logger.Slog(log)

	info := buildinfo.Get()
	log.Info("starting nonceguard-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Flatten(config.Sanitize(cfg)))

	var registry *metric.Registry
	if cfg.Metrics.Enabled {
		registry = metric.NewRegistry()
	}

	ctx := context.Background()
	store, err := initReplayStore(ctx, cfg, slogLogger, registry)
	if err != nil {
		return fmt.Errorf("init replay store: %w", err)
	}

	svc, err := initService(cfg, store, registry, log)
	if err != nil {
		store.Close()
		return fmt.Errorf("init service: %w", err)
	}

	h := handler.New(svc, handler.Config{
		HeaderName: cfg.Nonce.HeaderName,
		FieldName:  cfg.Nonce.FieldName,
		Required:   cfg.Nonce.Required,
		Consume:    cfg.Replay.Enabled,
		Ready: func(ctx context.Context) error {
			return storage.Ping(ctx, store)
		},
	}, slogLogger)

	authSvc, err := initAuth(cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("init auth: %w", err)
	}
	if authSvc != nil {
		log.Info("api key authentication enabled", "keys", authSvc.Len(), "metrics", cfg.Auth.MetricsRequired)
	} else {
		log.Warn("api key authentication disabled; the nonce API is open to every client that can reach it")
	}

	routerCfg := &httpserver.RouterConfig{
		Handler:             h,
		Logger:              slogLogger,
		Metrics:             registry,
		MetricsAllowList:    cfg.Metrics.AllowList,
		Auth:                authSvc,
		MetricsAuthRequired: cfg.Auth.MetricsRequired,
		TrustedProxies:      cfg.Server.HTTP.TrustedProxies,
		CORSAllowedOrigins:  cfg.Server.HTTP.CORSAllowedOrigins,
		NonceHeader:         cfg.Nonce.HeaderName,
	}
	if rl := cfg.Server.HTTP.RateLimit; rl.Enabled {
		routerCfg.RateLimit = httpserver.NewRateLimiterRegistry(rl.RPS, rl.Burst)
	}

	httpServer := httpserver.New(&cfg.Server.HTTP, httpserver.NewRouter(routerCfg), slogLogger)

	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)

	// Hooks run in reverse order: HTTP first, the store last.
	shutdownHandler.OnShutdown("replay-store", func(context.Context) error {
		return store.Close()
	})

	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		store.Close()
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}
	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	go func() {
		if err := httpServer.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, loader, svc, authSvc, slogLogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// initReplayStore opens the configured replay backend and, for Badger,
// exposes its size gauges.
func initReplayStore(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger, registry *metric.Registry) (storage.ReplayStore, error) {
	redisCfg := cfg.Replay.Redis
	var redisTLS *tls.Config
	if redisCfg.TLS.Enabled {
		var err error
		redisTLS, err = tlsroots.ClientConfig(tlsroots.ClientOptions{
			CAFile:     redisCfg.TLS.CAFile,
			CertFile:   redisCfg.TLS.CertFile,
			KeyFile:    redisCfg.TLS.KeyFile,
			ServerName: redisCfg.TLS.ServerName,
		})
		if err != nil {
			return nil, fmt.Errorf("redis tls: %w", err)
		}
	}

	store, err := storage.NewReplayStore(ctx, storage.ReplayConfig{
		Backend:    cfg.Replay.Backend,
		MemorySize: cfg.Replay.MemorySize,
		DataDir:    cfg.Replay.DataDir,
		Redis: storage.RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			Prefix:   redisCfg.Prefix,
			TLS:      redisTLS,
		},
	}, log)
	if err != nil {
		return nil, err
	}

	if bs, ok := store.(*storage.BadgerReplayStore); ok && registry != nil {
		if err := bs.RegisterMetrics(registry.Registerer()); err != nil {
			store.Close()
			return nil, err
		}
	}

	log.Info("replay store ready", "backend", cfg.Replay.Backend, "single_use", cfg.Replay.Enabled)
	return store, nil
}

// initAuth builds the API-key service, or nil when auth is disabled.
func initAuth(cfg *config.ServerConfig) (*service.AuthService, error) {
	if !cfg.Auth.Enabled {
		return nil, nil
	}
	return service.NewAuthService(config.APIKeys(cfg), &service.AuthServiceConfig{
		CacheTTL: cfg.Auth.CacheTTL,
	})
}

func initService(cfg *config.ServerConfig, store storage.ReplayStore, registry *metric.Registry, log logger.Logger) (*service.NonceService, error) {
	secret, err := config.ResolveSecret(cfg)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithReplayStore(store),
		service.WithLogger(log),
	}
	if registry != nil {
		opts = append(opts, service.WithMetrics(registry))
	}

	return service.NewNonceService(&service.NonceServiceConfig{
		Secret:         secret,
		Lifetime:       cfg.Nonce.Lifetime,
		Lifetimes:      cfg.Nonce.Lifetimes,
		MaxTokenLength: cfg.Nonce.MaxTokenLength,
		RequireConsume: cfg.Replay.Enabled,
	}, opts...)
}

// watchConfig reloads the log level, nonce lifetimes and API keys when the
// config file changes. Everything else needs a restart.
func watchConfig(path string, loader *confloader.Loader, svc *service.NonceService, authSvc *service.AuthService, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}

	watcher.OnChange(func(string) {
		cfg, err := config.Reload(loader)
		if err != nil {
			log.Error("config reload rejected", "error", err)
			return
		}

		logger.SetLevel(cfg.Log.Level)

		applied := []error{svc.SetLifetime("", cfg.Nonce.Lifetime)}
		for action, d := range cfg.Nonce.Lifetimes {
			applied = append(applied, svc.SetLifetime(action, d))
		}
		if err := errors.Join(applied...); err != nil {
			log.Error("lifetime reload failed", "error", err)
			return
		}

		if authSvc != nil && cfg.Auth.Enabled {
			if err := authSvc.ReplaceKeys(config.APIKeys(cfg)); err != nil {
				log.Error("api key reload failed", "error", err)
				return
			}
		} else if (authSvc != nil) != cfg.Auth.Enabled {
			log.Warn("auth.enabled changed; restart to apply")
		}
		log.Info("configuration reloaded",
			"log_level", cfg.Log.Level,
			"lifetime", cfg.Nonce.Lifetime,
			"api_keys", len(cfg.Auth.APIKeys))
	})
	watcher.StartAsync()

	return watcher, nil
}
