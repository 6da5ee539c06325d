package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"fileshare/internal/audit"
	"fileshare/internal/config"
	"fileshare/internal/database"
	"fileshare/internal/database/migration"
	handlers "fileshare/internal/http/handler"
	"fileshare/internal/http/middleware"
	"fileshare/internal/otel"
	"fileshare/internal/repository/postgres"
	"fileshare/internal/service"
	"fileshare/internal/storage"
	"fileshare/internal/token"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	loc := time.Local
	ctx := context.Background()

	// Tracing is a no-op unless OTEL_ENABLED is set
	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	tokens, err := token.NewService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		log.Fatalf("failed to initialize token service: %v", err)
	}

	// Authorization decisions stream to stderr as JSON lines
	sink := audit.NewJSONSink(os.Stderr)
	defer sink.Close()

	// Initialize repositories and services
	userRepo := postgres.NewUserPostgres(db)
	fileRepo := postgres.NewFilePostgres(db)
	userSvc := service.NewUserService(userRepo, tokens)
	fileSvc := service.NewFileService(objStore, fileRepo, userRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMw, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}
	app.Use(promMw.Handler())

	// Register HTTP routes with injected services and authorization chain
	authMw := middleware.NewAuth(tokens, sink)
	permMw := middleware.NewPermission(fileRepo, sink)
	handlers.RegisterRoutes(app, db, userSvc, fileSvc, authMw, permMw)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
