package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puppetworks/puppetstage/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its HTTP control API",
	Long: `Run the puppetstage engine as a long-lived service. External hosts
(VR frontends, control panels, scripts) drive shows through the HTTP API:
load, play, pause, rewind, record, and event injection.

The stage update loop runs continuously, dispatching elapsed show events
once per tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Server.Port
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		eng, err := newEngine(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer eng.Close()

		go eng.stage.Run(ctx)

		srv := server.New(eng.stage, port)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case sig := <-sigChan:
			slog.Info("Shutting down", "signal", sig.String())
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port for the HTTP API (overrides config)")
}
