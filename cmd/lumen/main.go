package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/api"
	"github.com/lumenfeed/lumen/pkg/auth"
	"github.com/lumenfeed/lumen/pkg/authz"
	"github.com/lumenfeed/lumen/pkg/config"
	"github.com/lumenfeed/lumen/pkg/oauth"
	"github.com/lumenfeed/lumen/pkg/observability"
	"github.com/lumenfeed/lumen/pkg/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.LogLevel), os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established")

	if err := account.RunMigrations(ctx, db); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// L2 cache only; the authorizer degrades to DB reads
			logger.WithError(err).Warn("redis unreachable, permission cache runs without L2")
		}
		defer redisClient.Close()
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	key, err := cfg.Auth.SecretKey()
	if err != nil {
		return err
	}
	sameSite, err := config.ParseSameSite(cfg.Auth.CookieSameSite)
	if err != nil {
		return err
	}

	store := account.NewStore(db)
	tokens := token.NewService(key, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authSvc := auth.NewService(store, tokens)

	providers := buildProviders(ctx, cfg.OAuth, logger)
	resolver := oauth.NewResolver(store)

	permCache, err := authz.NewPermissionCache(store, cfg.Redis.L1CacheSize, redisClient,
		cfg.Redis.CacheTTL, logger, metrics)
	if err != nil {
		return err
	}
	authorizer := authz.NewAuthorizer(permCache)
	authzMiddleware := authz.NewMiddleware(tokens, authorizer, cfg.Auth.BypassPaths,
		cfg.Auth.AllowAnonymous, logger, metrics)

	cookies := api.CookiePolicy{
		Secure:   cfg.Auth.CookieSecure,
		SameSite: sameSite,
		TTL:      cfg.Auth.RefreshTokenTTL,
	}
	authHandlers := api.NewAuthHandlers(authSvc, store, providers, resolver, cookies,
		cfg.Auth.FrontendURL, cfg.OAuth.Timeout, logger, metrics)
	adminHandlers := api.NewAdminHandlers(store, permCache, logger)

	server := api.NewServer(authHandlers, adminHandlers, authzMiddleware, logger, metrics)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", health.Liveness)
	healthMux.HandleFunc("/readyz", health.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)

	if metrics != nil {
		poolCtx, cancelPool := context.WithCancel(ctx)
		defer cancelPool()
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			cancelPool()
			return nil
		})
		go reportPoolStats(poolCtx, db, metrics)
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	return g.Wait()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildProviders configures every OAuth provider that has credentials.
// Google needs network access for OIDC discovery, so it is skipped with a
// warning when discovery fails rather than blocking startup.
func buildProviders(ctx context.Context, cfg config.OAuthConfig, logger *observability.Logger) *oauth.Registry {
	var providers []oauth.Provider

	if cfg.Google.ClientID != "" {
		discoveryCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		google, err := oauth.NewGoogleProvider(discoveryCtx, cfg.Google)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("google OIDC discovery failed, google login disabled")
		} else {
			providers = append(providers, google)
		}
	}
	if cfg.Facebook.ClientID != "" {
		providers = append(providers, oauth.NewFacebookProvider(cfg.Facebook))
	}

	return oauth.NewRegistry(providers...)
}

// reportPoolStats samples connection pool gauges every 15s
func reportPoolStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
