package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-accounts/docs"
	"github.com/sbilibin2017/gw-accounts/internal/config"
	"github.com/sbilibin2017/gw-accounts/internal/handlers"
	"github.com/sbilibin2017/gw-accounts/internal/jwt"
	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/middlewares"
	"github.com/sbilibin2017/gw-accounts/internal/migrations"
	"github.com/sbilibin2017/gw-accounts/internal/password"
	"github.com/sbilibin2017/gw-accounts/internal/repositories"
	"github.com/sbilibin2017/gw-accounts/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-accounts API
// @version 1.0.0
// @description User accounts service: login, bearer tokens and user management
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s\nCommit: %s\nBuild: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// app holds the wired components behind the HTTP router.
type app struct {
	db     *sqlx.DB
	reader *repositories.UserReadRepository
	tokens *jwt.JWT
	auth   *services.AuthService
	users  *services.UserService
}

// newApp wires repositories and services on top of db.
func newApp(cfg config.Config, db *sqlx.DB, publisher services.Publisher) *app {
	reader := repositories.NewUserReadRepository(db, middlewares.GetTxFromContext)
	writer := repositories.NewUserWriteRepository(db, middlewares.GetTxFromContext)

	hasher := password.New(password.WithCost(cfg.BcryptCost))
	tokens := jwt.New(
		jwt.WithSecretKey(cfg.SecretKey),
		jwt.WithExpiration(cfg.AccessTokenExpire),
	)

	return &app{
		db:     db,
		reader: reader,
		tokens: tokens,
		auth:   services.NewAuthService(reader, writer, hasher, tokens, tokens.Expiration(), publisher),
		users:  services.NewUserService(reader, writer, services.NewUniquenessChecker(reader), hasher, publisher),
	}
}

// newRouter builds the HTTP routes under the API prefix.
func newRouter(cfg config.Config, a *app) http.Handler {
	authed := middlewares.Authenticated(a.tokens, a.auth)
	superuser := middlewares.Superuser(a.tokens, a.auth)
	tx := middlewares.TxMiddleware(a.db)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware)

	api := func(r chi.Router) {
		r.Get("/healthz", handlers.NewHealthHandler(a.reader))
		r.Post("/login/access-token", handlers.NewLoginHandler(a.auth))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", superuser(handlers.NewListUsersHandler(a.users)))
			r.Get("/me", authed(handlers.NewReadMeHandler()))
			r.Get("/{id}", authed(handlers.NewReadUserHandler(a.users)))

			// Mutations run in one transaction per request
			r.Group(func(r chi.Router) {
				r.Use(tx)
				r.Post("/", superuser(handlers.NewCreateUserHandler(a.users)))
				r.Patch("/me", authed(handlers.NewUpdateMeHandler(a.users)))
				r.Patch("/me/password", authed(handlers.NewUpdatePasswordHandler(a.auth)))
				r.Patch("/{id}", superuser(handlers.NewUpdateUserHandler(a.users)))
				r.Delete("/{id}", superuser(handlers.NewDeleteUserHandler(a.users)))
			})
		})
	}
	if cfg.APIV1Str == "" {
		api(r)
	} else {
		r.Route(cfg.APIV1Str, api)
	}

	docs.SwaggerInfo.Host = cfg.Addr()
	docs.SwaggerInfo.BasePath = cfg.APIV1Str
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}

// newKafkaWriter returns a writer for the configured brokers, or nil when
// event publishing is disabled.
func newKafkaWriter(cfg config.Config) *kafka.Writer {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// run initializes the logger, database, schema, bootstrap superuser and
// HTTP server, and handles graceful shutdown.
func run(ctx context.Context, cfg config.Config) error {
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	if cfg.SecretKeyGenerated {
		logger.Log.Warn("SECRET_KEY is not set, using a random key: tokens will not survive a restart")
	}

	// Connect to PostgreSQL
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("PostgreSQL connection error: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PGMaxOpenConns)
	db.SetMaxIdleConns(cfg.PGMaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("PostgreSQL ping failed: %w", err)
	}

	if err := migrations.Run(ctx, db.DB); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Kafka is optional
	var kafkaWriter services.KafkaWriter
	if w := newKafkaWriter(cfg); w != nil {
		logger.Log.Infow("Publishing user events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		kafkaWriter = w
	}
	publisher := services.NewEventPublisher(kafkaWriter, services.WithDeferrer(middlewares.AfterCommit))
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Log.Errorw("Kafka writer close error", "error", err)
		}
	}()

	a := newApp(cfg, db, publisher)

	if _, _, err := a.users.EnsureSuperuser(ctx, cfg.FirstSuperuser, cfg.FirstSuperuserPassword); err != nil {
		return fmt.Errorf("failed to create first superuser: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: newRouter(cfg, a),
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}
