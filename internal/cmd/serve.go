package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alacambra/presidio-anonymization/internal/config"
	"github.com/alacambra/presidio-anonymization/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for analyzing, anonymizing and restoring text",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.APIKeys) == 0 {
		log.Warn().Msg(config.EnvPrefix + "_API_KEYS not set: the API accepts unauthenticated requests")
	}

	srv := server.NewServer(a.pool, a.opts,
		server.WithLedger(a.ledger),
		server.WithAPIKeys(a.cfg.APIKeys),
		server.WithRateLimit(a.cfg.RateLimitRPM),
	)

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ServerAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("language", a.opts.Language()).
		Float64("min_confidence", a.opts.MinConfidence()).
		Bool("auth", len(a.cfg.APIKeys) > 0).
		Int("rate_limit_rpm", a.cfg.RateLimitRPM).
		Bool("ledger", a.ledger != nil).
		Msg("anonymizer_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
