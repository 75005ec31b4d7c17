package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"vision-assistant-be/internal/bootstrap"
	"vision-assistant-be/internal/config"
	"vision-assistant-be/internal/server"
	"vision-assistant-be/internal/tracer"
	"vision-assistant-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer(ctx, cfg.Telemetry)
	defer shutdownTracer(context.Background())

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.DefaultPoolConfig(), !cfg.IsProduction())
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Panicf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	srv := server.New(cfg, container)

	// 4. Run the server and the background workers until a signal or a failure.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})
	g.Go(func() error {
		return container.WebSocketHub.Run(gctx)
	})
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
