// Package server initializes and runs the application server: it opens the
// database, runs migrations, loads the persistent server keypair, and starts
// the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/soclocker/soclocker/internal/cryptox"
	"github.com/soclocker/soclocker/internal/logging"
	"github.com/soclocker/soclocker/internal/server/config"
	"github.com/soclocker/soclocker/internal/server/httpapi"
	"github.com/soclocker/soclocker/internal/server/keystore"
	"github.com/soclocker/soclocker/internal/server/repositories/repomanager"
	"github.com/soclocker/soclocker/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	ks, err := selectKeystore(cfg)
	if err != nil {
		return nil, err
	}

	// The keypair is created on first start and reloaded afterwards; the
	// public key must stay stable for the deployment's lifetime. Only the
	// public half may ever be logged.
	kp, err := keystore.LoadOrCreate(ctx, ks)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Server keypair loaded", "public_key", cryptox.EncodeKey(kp.Public))

	userService := services.NewUserService(db, rm)
	authService := services.NewAuthService(db, rm, kp, cfg.ChallengeValidity)
	postService := services.NewPostService(db, rm, authService)
	noaService := services.NewNOAService(db, rm, logger)

	handler := httpapi.NewHandler(userService, authService, postService, noaService, logger)
	srv := httpapi.NewServer(cfg.EndpointAddr, cfg.StaticDir, logger, handler)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func selectKeystore(cfg *config.Config) (keystore.Keystore, error) {
	switch cfg.KeystoreBackend {
	case config.KeystoreFile:
		return keystore.NewFileKeystore(cfg.KeystorePath), nil
	case config.KeystoreS3:
		return keystore.NewS3Keystore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown keystore backend: %s", cfg.KeystoreBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err.Error())
	}
}
