package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docpreview/docs"
	"docpreview/internal/config"
	"docpreview/internal/database"
	"docpreview/internal/database/migration"
	handlers "docpreview/internal/http/handler"
	"docpreview/internal/http/middleware"
	"docpreview/internal/ledger"
	"docpreview/internal/logging"
	tracing "docpreview/internal/otel"
	"docpreview/internal/preview"
	"docpreview/internal/repository"
	"docpreview/internal/repository/memory"
	"docpreview/internal/repository/postgres"
	"docpreview/internal/service"
	"docpreview/internal/storage"
	"docpreview/internal/workspace"
)

// multipartOverhead leaves room for form boundaries and headers around the file part.
const multipartOverhead = 1 << 20

const shutdownTimeout = 15 * time.Second

// @title Document Preview API
// @version 1.0
// @description Versioned document store with PNG previews for images, PDFs, office documents and text.
// @BasePath /
func main() {
	if err := run(); err != nil {
		log.Fatalf("docpreview: %v", err)
	}
}

func run() error {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc := cfg.Location()

	logger, err := logging.New(cfg.Log, loc)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	repo, db, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	// Leave pinger nil unless a database backs the catalog.
	var pinger handlers.Pinger
	if db != nil {
		defer db.Close()
		pinger = db
	}

	store, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	previewMetrics, err := preview.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register preview metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	wsMgr, err := workspace.NewManager(cfg.Preview.TempRoot, logger)
	if err != nil {
		return err
	}
	janitor, err := workspace.NewJanitor(wsMgr, cfg.Preview.SweepSchedule, cfg.Preview.SweepAge, logger)
	if err != nil {
		return err
	}

	dispatcher := preview.NewDefault(cfg.Preview, wsMgr, logger, preview.WithMetrics(previewMetrics))
	docSvc := service.NewDocumentService(store, repo, ledger.New(repo, locker, logger, ledger.WithLockWait(cfg.Lock.Wait)), dispatcher,
		service.WithLogger(logger),
		service.WithMaxUploadBytes(cfg.MaxUploadBytes),
		service.WithPresignExpiry(cfg.MinIO.PresignExpiry),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.MaxUploadBytes) + multipartOverhead,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Recover(logger))
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, pinger, docSvc)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_start", zap.String("addr", addr), zap.String("app_host", cfg.AppHost))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutdown", zap.Duration("timeout", shutdownTimeout))
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}

func openCatalog(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (repository.DocumentRepository, *sql.DB, error) {
	switch cfg.CatalogDriver {
	case "postgres":
		// Initialize PostgreSQL connection (with pooling via database/sql)
		db, err := database.NewPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.NewDocumentPostgres(db), db, nil
	case "memory":
		logger.Warn("catalog_in_memory", zap.String("component", "database"))
		return memory.NewDocumentMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown CATALOG_DRIVER %q", cfg.CatalogDriver)
	}
}

func openBlobStore(ctx context.Context, cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.BlobDriver {
	case "minio":
		// Initialize reusable S3-compatible object storage client (MinIO-supported)
		s, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		return s, nil
	case "memory":
		return storage.NewMemory(cfg.MinIO.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown BLOB_DRIVER %q", cfg.BlobDriver)
	}
}

func openLocker(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (ledger.Locker, func(), error) {
	switch cfg.Lock.Driver {
	case "local":
		return ledger.NewLocalLocker(), func() {}, nil
	case "redis":
		client := ledger.NewRedisClient(cfg.Redis)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return ledger.NewRedisLocker(client, cfg.Lock.TTL, logger), func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.New("unknown LOCK_DRIVER " + cfg.Lock.Driver)
	}
}
