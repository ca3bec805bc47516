package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/repricer-backend/api"
	"github.com/angelmondragon/repricer-backend/pkg/bigquery"
	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/instance"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
	"github.com/angelmondragon/repricer-backend/pkg/migrate"
	"github.com/angelmondragon/repricer-backend/pkg/pubsub"
	"github.com/angelmondragon/repricer-backend/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Runtime owns the process resources of one binary. Resources are closed in reverse order of
// opening, either by Close or before a fatal exit.
type Runtime struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	mu      sync.Mutex
	closers []closer
	exit    func(int)
}

// Start loads .env and the environment config, then builds the kind-tagged logger. It exits
// the process when the config is invalid.
func Start(kind string) *Runtime {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	rt := newRuntime(kind, nil, logg)
	cfg, err := config.Load()
	rt.Require(context.Background(), "config", err)
	cfg.Service.Kind = kind

	rt.Config = cfg
	rt.Logger = NewLogger(kind, cfg)
	return rt
}

func newRuntime(kind string, cfg *config.Config, logg *logger.Logger) *Runtime {
	return &Runtime{Kind: kind, Config: cfg, Logger: logg, exit: os.Exit}
}

// NewLogger applies the configured level and tags every entry with the process instance.
func NewLogger(kind string, cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Static:      map[string]any{"instance": instance.GetID()},
	})
}

// Require exits when a startup step failed.
func (rt *Runtime) Require(ctx context.Context, resource string, err error) {
	if err != nil {
		rt.Fail(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	}
}

// Fail closes what was opened and exits non-zero.
func (rt *Runtime) Fail(ctx context.Context, msg string, err error) {
	rt.Logger.Error(ctx, msg, err)
	rt.Close()
	rt.exit(1)
}

func (rt *Runtime) OnClose(name string, fn func() error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Close is safe to call more than once.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	closers := rt.closers
	rt.closers = nil
	rt.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			rt.Logger.Error(context.Background(), "error closing "+closers[i].name, err)
		}
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the env and service kind.
func (rt *Runtime) SignalContext(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{"serviceKind": rt.Kind}
	if rt.Config != nil {
		base["env"] = rt.Config.App.Env
	}
	for key, value := range fields {
		base[key] = value
	}
	return rt.Logger.WithFields(ctx, base), stop
}

// ServeMetrics exposes the default registry on MetricsPort until ctx ends. It is a no-op
// when no port is configured.
func (rt *Runtime) ServeMetrics(ctx context.Context) {
	port := rt.Config.App.MetricsPort
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server, err := api.NewServer(":"+port, mux, rt.Logger)
	rt.Require(ctx, "metrics server", err)
	go func() {
		if err := server.Run(ctx); err != nil {
			rt.Logger.Error(ctx, "metrics server stopped", err)
		}
	}()
}

// Database opens the pool and applies pending migrations when dev auto-migrate is on.
func (rt *Runtime) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	rt.Require(ctx, "database", err)
	rt.OnClose("database", client.Close)
	rt.Require(ctx, "dev migrations", migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client))
	return client
}

func (rt *Runtime) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	rt.Require(ctx, "redis", err)
	rt.OnClose("redis", client.Close)
	return client
}

func (rt *Runtime) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	rt.Require(ctx, "pubsub", err)
	rt.OnClose("pubsub client", client.Close)
	return client
}

func (rt *Runtime) BigQuery(ctx context.Context) *bigquery.Client {
	client, err := bigquery.NewClient(ctx, rt.Config.GCP, rt.Config.BigQuery, rt.Logger)
	rt.Require(ctx, "bigquery", err)
	rt.OnClose("bigquery client", client.Close)
	return client
}
