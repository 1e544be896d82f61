package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"taotie/internal/api"
	"taotie/internal/app"
	"taotie/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over HTTP",
		Long: `Serve starts an HTTP server in front of the same session the shell uses.
Datasets connected over HTTP are persisted to the registry and restored on
the next start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, user, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger, Persist: true, Registerer: reg})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					logger.Warn("close app", "error", cerr)
				}
			}()
			if _, errs := a.ConnectDatasets(ctx, user.datasetSpecs()); len(errs) > 0 {
				for _, e := range errs {
					logger.Warn("connect configured dataset", "error", e)
				}
			}

			router := api.NewRouter(ctx, api.RouterConfig{
				Handler:            api.NewHandler(a.Worker, logger),
				Logger:             logger,
				CORSAllowedOrigins: cfg.CORSAllowedOrigins,
				RateLimit: middleware.RateLimitConfig{
					RequestsPerSecond: cfg.RateLimitRPS,
					Burst:             cfg.RateLimitBurst,
				},
				Registry: reg,
			})

			ln, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
			}
			srv := &http.Server{
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       120 * time.Second,
			}
			logger.Info("taotie listening", "addr", ln.Addr().String())
			return serveUntilDone(ctx, srv, ln, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from TAOTIE_LISTEN_ADDR or :8080)")

	return cmd
}

// serveUntilDone serves on ln until ctx ends, then shuts srv down
// gracefully.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
