package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ChartSignal/pkg/config"
	xhttp "ChartSignal/pkg/http"
	pkgkafka "ChartSignal/pkg/kafka"
	applogger "ChartSignal/pkg/logger"
)

// Scheduler is a background job runner with a blocking Stop.
type Scheduler interface {
	Start()
	Stop()
}

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	topic      string
	scheduler  Scheduler
	closers    []namedCloser
}

type Option func(*App)

// WithConsumer runs a Kafka consumer whose handlers are already registered.
func WithConsumer(c *pkgkafka.Consumer, topic string) Option {
	return func(a *App) {
		a.consumer = c
		a.topic = topic
	}
}

func WithScheduler(s Scheduler) Option {
	return func(a *App) { a.scheduler = s }
}

// WithCloser releases c on shutdown, after the servers have stopped.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, namedCloser{name: name, c: c}) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, log: l, httpServer: httpServer}
	for _, o := range opts {
		o(a)
	}
	return a
}

// HTTPServer exposes the echo server for tests.
func (a *App) HTTPServer() *xhttp.Server { return a.httpServer }

// Start launches every component without blocking.
func (a *App) Start() error {
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.topic))
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops intake first, then background work, then releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Flush aggregated logs while the producer is still open.
	a.log.RemoveCollector()

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("component", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
