// Package server wires configuration, storage, the session services, the
// cleanup scheduler and the HTTP endpoint into a runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/echofyteam/echofy-auth/internal/logging"
	"github.com/echofyteam/echofy-auth/internal/server/auth"
	"github.com/echofyteam/echofy-auth/internal/server/cleanup"
	"github.com/echofyteam/echofy-auth/internal/server/config"
	"github.com/echofyteam/echofy-auth/internal/server/httpapi"
	"github.com/echofyteam/echofy-auth/internal/server/repositories/repomanager"
	"github.com/echofyteam/echofy-auth/internal/server/services"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	server    *httpapi.Server
	scheduler *cleanup.Scheduler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 4*c.StoreTimeout)
	defer cancel()
	if err := rm.RunMigrations(migrateCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	directory := services.NewDirectory(db, rm, logger)
	sessions := services.NewSessionService(db, rm, issuer, directory, logger,
		services.Options{StoreTimeout: c.StoreTimeout})

	router := httpapi.NewRouter(
		httpapi.NewHandler(sessions),
		httpapi.NewAuthenticator(issuer, directory, logger),
		httpapi.NewRateLimiter(c.RateLimitRPM),
		logger,
	)

	scheduler := cleanup.NewScheduler(rm.RefreshTokens(db), cleanup.Config{
		ExpiredInterval: c.PurgeExpiredInterval,
		RevokedInterval: c.PurgeRevokedInterval,
	}, logger)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		server:    httpapi.NewServer(c.HTTPAddr, router, logger),
		scheduler: scheduler,
	}, nil
}

// Run blocks until ctx is cancelled or the HTTP server fails, then waits for
// the cleanup loops and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.scheduler.Run(ctx)
	}()

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
	}
	cancelFunc()

	wg.Wait()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "db close failed", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
