package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"poolCollector/internal/adapter"
	"poolCollector/internal/chain"
	"poolCollector/internal/collector"
	"poolCollector/internal/config"
	"poolCollector/internal/metrics"
	"poolCollector/internal/poollist"
	"poolCollector/internal/storage"
	"poolCollector/internal/storage/bolt"
	"poolCollector/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "collector",
		Short:        "Mining pool directory collector",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the pools of the public pool list",
		RunE:  runCollector,
	}

	runCmd.Flags().String("pool-list", "", "URL of the public pool list")
	runCmd.Flags().Duration("polling-interval", collector.DefaultPollingInterval, "status and blocks polling interval")
	runCmd.Flags().Duration("update-interval", collector.DefaultUpdateInterval, "pool list refresh interval")
	runCmd.Flags().Float64("history-days", collector.DefaultHistoryDays, "days of polling history to keep")
	runCmd.Flags().String("rpc", "", "daemon JSON-RPC URL used to backfill block hashes")
	runCmd.Flags().String("block-api", adapter.DefaultBlockAPI, "block header by hash lookup base URL")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().String("bolt-path", "", "bbolt database file")
	runCmd.Flags().String("out", "./data", "output directory for JSONL storage")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address (e.g. :9100)")
	runCmd.Flags().Bool("insecure-tls", true, "skip TLS verification for pool APIs")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCollector(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var headers chain.HeaderSource
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(cfg.RPCURL, nil)
		if err != nil {
			return fmt.Errorf("create rpc client: %w", err)
		}
		headers = chainClient
	} else {
		logger.Warn("no rpc configured, blocks without a hash will be dropped")
	}

	httpClient := adapter.NewHTTPClient(cfg.InsecureTLS)
	registryOpts := adapter.Options{
		Client:   httpClient,
		Resolver: chain.NewResolver(headers, m, logger),
		BlockAPI: cfg.BlockAPI,
		Metrics:  m,
		Logger:   logger,
	}
	pools := adapter.NewRegistry(registryOpts)
	source := poollist.NewSource(cfg.PoolListURL, nil, logger)

	c, err := collector.New(collector.Config{
		PollingInterval: cfg.PollingInterval,
		UpdateInterval:  cfg.UpdateInterval,
		HistoryDays:     cfg.HistoryDays,
	}, source, pools, store, collector.Observers{collector.NewLogObserver(logger), metrics.NewObserver(m)}, m, logger)
	if err != nil {
		return err
	}

	logger.Info("collector start",
		zap.String("pool_list", cfg.PoolListURL),
		zap.Duration("polling_interval", cfg.PollingInterval),
		zap.Duration("update_interval", cfg.UpdateInterval),
		zap.Float64("history_days", cfg.HistoryDays),
		zap.String("storage", cfg.Backend()),
		zap.Bool("rpc", cfg.RPCURL != ""),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(ctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr, registry, logger)
		})
	}

	c.Start(ctx)
	<-ctx.Done()
	c.Stop()
	logger.Info("collector stopping")

	return g.Wait()
}

// openStorage opens the configured backend and returns a func releasing it.
func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return storage.NewJsonlStorage(cfg.Out), func() {}, nil
	}
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
