package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/careerup/api"
	"github.com/warp/careerup/auth"
	"github.com/warp/careerup/metrics"
	"github.com/warp/careerup/ocr"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the deadline monitor",
		Long: `Starts the desk's HTTP API and, unless disabled, the background deadline
monitor. Both stop gracefully on SIGINT/SIGTERM.

Set CAREERUP_AUTH_PASSWORD to require a login. Set CAREERUP_OCR_API_KEY to
enable document extraction.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			noMonitor, _ := cmd.Flags().GetBool("no-monitor")
			return runServe(cmd.Context(), noMonitor)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().String("static-dir", "", "built frontend to serve (default ./web/dist)")
	cmd.Flags().Bool("no-monitor", false, "do not run the deadline monitor")
	bindFlag("server.addr", cmd.Flags().Lookup("addr"))
	bindFlag("server.static_dir", cmd.Flags().Lookup("static-dir"))
	return cmd
}

func runServe(ctx context.Context, noMonitor bool) error {
	logger := slog.Default()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.NewManager()
	gate := auth.NewGate(cfg.Auth.Password, auth.WithTTL(cfg.Auth.SessionTTL))
	if !gate.Enabled() {
		logger.Warn("no auth.password configured, the API is open to anyone who can reach it")
	}

	opts := []api.HandlerOption{
		api.WithGate(gate),
		api.WithMetrics(m),
		api.WithLogger(logger),
		api.WithLocation(cfg.Location),
		api.WithPolicy(cfg.Eligibility),
	}
	if cfg.OCR.Enabled() {
		client, err := ocr.NewAnthropicClient(cfg.OCR.APIKey,
			ocr.WithBaseURL(cfg.OCR.BaseURL),
			ocr.WithModel(cfg.OCR.Model),
			ocr.WithTimeout(cfg.OCR.Timeout),
			ocr.WithRetry(ocr.RetryOptions{MaxAttempts: cfg.OCR.MaxAttempts}),
			ocr.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("failed to configure OCR: %w", err)
		}
		opts = append(opts, api.WithOCR(client))
	}

	var monitor *api.DeadlineMonitor
	if cfg.Monitor.Enabled && !noMonitor {
		monitor = api.NewDeadlineMonitor(store, m)
		monitor.Interval = cfg.Monitor.Interval
		monitor.Logger = logger
		monitor.Location = cfg.Location
		opts = append(opts, api.WithMonitor(monitor))
	}

	handler := api.NewHandler(store, opts...)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      v.GetString("server.static_dir"),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Server.Addr, "db", cfg.Database.Path,
			"auth", gate.Enabled(), "ocr", cfg.OCR.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if monitor != nil {
		g.Go(func() error { return monitor.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
