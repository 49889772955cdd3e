package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/api"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring loops and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := buildEngine(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer eng.Close()

		sched := eng.scheduler()
		if err := sched.Start(ctx); err != nil {
			return err
		}

		server := api.NewServer(cfg.API, log, eng.controller, eng.simulator, eng.metrics)
		serverErr := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		log.Info("failover engine started",
			zap.String("active_provider", string(eng.controller.ActiveProvider().Current)),
			zap.String("api", cfg.API.Addr),
			zap.Strings("tasks", sched.Tasks()))

		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case err = <-serverErr:
			log.Error("server failed", zap.Error(err))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Error("shutdown error", zap.Error(serr))
		}
		sched.Stop()

		return err
	},
}
