package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fbo-callrelay-be/internal/bootstrap"
	"fbo-callrelay-be/internal/config"
	"fbo-callrelay-be/internal/server"
	"fbo-callrelay-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer("fbo-callrelay-backend", cfg.Trace)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go container.WebSocketHub.Run()
	go container.ReaperService.Run(ctx)
	if container.EventRelayService != nil {
		if err := container.EventRelayService.Consume(ctx); err != nil {
			log.Printf("Background Relay Error: %v", err)
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
