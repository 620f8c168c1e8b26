// Command ta runs the AirAccount Trusted Application as a standalone
// process, standing in for what would otherwise be a TEE-loaded binary
// entered via TA_CreateEntryPoint. It follows the teacher's
// cmd/signer/main.go shutdown shape: load config, build the long-lived
// context, serve, and drain gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/config"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/ta"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/telemetry"
)

func main() {
	defer memguard.Purge()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := telemetry.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("airaccount ta starting",
		zap.String("env", cfg.Env),
		zap.String("uuid", cfg.TA.ActiveUUID()),
		zap.String("socket", cfg.TA.SocketPath),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	taCtx, err := ta.Create(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create ta context", zap.Error(err))
	}

	srv, err := ta.NewServer(taCtx, cfg.TA.SocketPath, log)
	if err != nil {
		log.Fatal("failed to create ta server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	log.Info("airaccount ta ready")

	select {
	case <-ctx.Done():
		log.Info("airaccount ta shutting down")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := srv.Stop(stopCtx); err != nil {
			log.Error("server stop error", zap.Error(err))
		}
		if err := taCtx.Destroy(stopCtx); err != nil {
			log.Error("ta context destroy error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			log.Error("ta server error", zap.Error(err))
			os.Exit(1)
		}
	}

	log.Info("airaccount ta stopped")
}
