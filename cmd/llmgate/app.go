package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/llmgate/internal/db"
	"github.com/nkiryanov/llmgate/internal/handlers"
	"github.com/nkiryanov/llmgate/internal/logger"
	"github.com/nkiryanov/llmgate/internal/metrics"
	"github.com/nkiryanov/llmgate/internal/repository/postgres"
	"github.com/nkiryanov/llmgate/internal/service/auth"
	"github.com/nkiryanov/llmgate/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/llmgate/internal/service/llm"
	"github.com/nkiryanov/llmgate/internal/service/metering"
	"github.com/nkiryanov/llmgate/internal/service/prompt"
	"github.com/nkiryanov/llmgate/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool   *pgxpool.Pool
	meter  *metering.Meter
	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	var logOpts []logger.Option
	if c.LogFile != "" {
		logOpts = append(logOpts, logger.WithFile(logger.FileConfig{Filename: c.LogFile}))
	}
	l, err := logger.New(c.Environment, c.LogLevel, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	sameSite, err := auth.ParseSameSite(c.CookieSameSite)
	if err != nil {
		return nil, err
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	app, err := newServerApp(ctx, c, l, sameSite, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

func newServerApp(ctx context.Context, c *Config, l logger.Logger, sameSite http.SameSite, pool *pgxpool.Pool) (*ServerApp, error) {
	storage := postgres.NewStorage(pool)
	m := metrics.New("llmgate")

	// Initialize services
	tokens, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
	}, nil, l.With("component", "tokens"))
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{
		CookieSecure:   c.CookieSecure,
		CookieSameSite: sameSite,
	}, tokens, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	if c.AdminEmail != "" {
		created, err := authService.EnsureAdmin(ctx, c.AdminEmail, c.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("error while creating administrator. Err: %w", err)
		}
		if created {
			l.Info("Administrator created", "email", c.AdminEmail)
		}
	}

	meter := metering.New(storage.Metric(), l.With("component", "metering"), metering.WithCounter(m))
	llmClient := llm.NewClient(llm.Config{Origin: c.LLMOrigin, APIKey: c.LLMAPIKey}, l.With("component", "llm"), m)

	router := handlers.NewRouter(handlers.Deps{
		Auth:           authService,
		Users:          user.NewService(storage),
		Prompts:        prompt.NewService(storage.Prompt(), storage.User()),
		LLM:            llmClient,
		UserLookup:     storage.User(),
		Meter:          meter,
		Metrics:        m,
		AllowedOrigins: c.AllowedOrigins,
		Logger:         l,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		pool:       pool,
		meter:      meter,
		logger:     l,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	meterCtx, meterCancel := context.WithCancel(context.Background())
	meterStopped := s.meter.Run(meterCtx)

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	// Handlers are done, so no more hits will come. Flush queued ones
	meterCancel()
	<-meterStopped

	return err
}
