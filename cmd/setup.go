package cmd

import (
	"fmt"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	redisclient "github.com/flori92/FloDrama-sub001/internal/redis"
	"github.com/flori92/FloDrama-sub001/internal/search"
	"github.com/flori92/FloDrama-sub001/internal/sources"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

// app bundles the shared process dependencies built at startup.
type app struct {
	cfg      *config.Config
	logger   logger.Logger
	registry *sources.Registry
	db       *sqlx.DB
	redis    *goredis.Client
	es       *es.Client
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
}

// newApp loads configuration and connects every backing service the
// given needs mask asks for.
type needs struct {
	db     bool
	redis  bool
	search bool
}

func newApp(n needs) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	registry, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load source registry: %w", err)
	}

	promReg := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		metrics:  metrics.New(promReg),
		promReg:  promReg,
	}

	if n.db {
		if a.db, err = store.NewPostgres(cfg.Database); err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}
	if n.redis {
		if a.redis, err = redisclient.NewClient(cfg.Redis); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	if n.search {
		if a.es, err = search.NewClient(cfg.Search); err != nil {
			return nil, fmt.Errorf("connect elasticsearch: %w", err)
		}
	}
	return a, nil
}

// close releases backing connections. Safe on partially built apps.
func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.logger.Sync()
}

// serveMetrics exposes the Prometheus registry on addr. Serving errors
// are logged, not fatal; the pipeline outlives its metrics endpoint.
func (a *app) serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics endpoint listening", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics endpoint failed", logger.Error(err))
		}
	}()
}
