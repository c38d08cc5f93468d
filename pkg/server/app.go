package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "FxPilot/internal/domain/repository"
	"FxPilot/internal/scoring"
	"FxPilot/internal/usecase"
	"FxPilot/pkg/config"
	xhttp "FxPilot/pkg/http"
	applogger "FxPilot/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
	handler    xhttp.Handler
	registry   *scoring.Registry
	pub        domrepo.TradePublisher
	archive    domrepo.TradeArchive
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	scheduler *usecase.Scheduler,
	handler xhttp.Handler,
	registry *scoring.Registry,
	pub domrepo.TradePublisher,
	archive domrepo.TradeArchive,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		pipeline:  pipeline,
		scheduler: scheduler,
		handler:   handler,
		registry:  registry,
		pub:       pub,
		archive:   archive,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.pipeline.StartStream(ctx)
	a.scheduler.Start(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("pairs", a.cfg.Data.Pairs))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.l.Warn("trade publisher close error", applogger.Error(err))
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.l.Warn("trade archive close error", applogger.Error(err))
		}
	}
	a.registry.Close()

	a.l.Info("shutdown complete")
	return nil
}
