package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/quatton/qtube/pkg/credstore"
	"github.com/quatton/qtube/pkg/db"
	"github.com/quatton/qtube/pkg/kv"
	"github.com/quatton/qtube/pkg/metrics"
	"github.com/quatton/qtube/pkg/qapi"
	"github.com/quatton/qtube/pkg/qapi/config"
	"github.com/quatton/qtube/pkg/qapi/routes"
	"github.com/quatton/qtube/pkg/qapi/services"
	"github.com/quatton/qtube/pkg/qart"
	"github.com/quatton/qtube/pkg/qlog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the accounts API server",
	Long: `Starts the accounts API. Configuration comes from the environment (and a
.env file in development). Postgres, Valkey and S3 are used when configured;
--memory swaps the user store for an in-process one, useful for demos.`,
	Run: run,
}

var (
	runMemory      bool
	runMigrateFlag bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runMemory, "memory", false, "Keep users in memory instead of Postgres")
	runCmd.Flags().BoolVar(&runMigrateFlag, "migrate", false, "Apply pending migrations before serving")
}

func run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}
	cfg.Print(log.Printf)

	logger := qlog.ForEnvironment(cfg.Environment)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	store, closer, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize user store", "error", err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	var kvStore kv.Store = kv.NewMemoryStore()
	if cfg.ValkeyAddr != "" {
		valkey, err := kv.NewValkeyStore(ctx, cfg.ValkeyConfig())
		if err != nil {
			logger.Fatal("failed to connect to valkey", "error", err)
		}
		kvStore = valkey
	}
	closers = append(closers, kvStore)

	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize object store", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svcs := services.NewServices(cfg, services.Backends{
		Store:   store,
		KV:      kvStore,
		Objects: objects,
		Metrics: metrics.NewCollector(reg),
	}, logger)

	limiter := qapi.NewRateLimiter(qapi.PerMinute(cfg.RateLimitPerMin))
	defer limiter.Stop()

	opts := qapi.Options{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   limiter,
		Metrics:     metrics.Handler(reg),
	}
	if cfg.S3Endpoint == "" {
		opts.MediaDir = cfg.MediaDir
	}
	api := qapi.NewApi(opts)
	routes.RegisterAPI(api.Api, svcs)

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🚀 qtube starting on %s\n", addr)
	log.Printf("📚 OpenAPI docs: %s/docs\n", cfg.BaseURL)
	log.Printf("📄 OpenAPI spec: %s/openapi.json\n", cfg.BaseURL)
	log.Printf("📈 Metrics: %s/metrics\n", cfg.BaseURL)
	log.Printf("🔐 Account endpoints: %s%s/{register,login,logout,refresh-token,me}\n", cfg.BaseURL, routes.UsersPrefix)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func openUserStore(ctx context.Context, cfg *config.EnvConfig, logger *qlog.Logger) (credstore.Store, io.Closer, error) {
	if runMemory {
		logger.Warn("using in-memory user store; accounts are lost on exit")
		return credstore.NewMemoryStore(), nil, nil
	}

	database, err := db.New(ctx, cfg.DBConfig())
	if err != nil {
		return nil, nil, err
	}
	if runMigrateFlag {
		if err := db.Migrate(ctx, database, logger); err != nil {
			database.Close()
			return nil, nil, err
		}
	}
	return credstore.NewBunStore(database), database, nil
}

func openObjectStore(ctx context.Context, cfg *config.EnvConfig) (qart.Store, error) {
	var store qart.Store
	if cfg.S3Endpoint != "" {
		s3, err := qart.NewS3Store(cfg.S3Config())
		if err != nil {
			return nil, err
		}
		store = s3
	} else {
		store = qart.NewDiskStore(cfg.MediaDir, strings.TrimRight(cfg.BaseURL, "/")+"/media")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
