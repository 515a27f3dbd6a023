package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sheetql/internal/app"
	"sheetql/internal/config"
)

// newServeCmd runs the HTTP API in the foreground. Environment configuration
// applies as for cmd/server; the shared CLI flags override it when set.
func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cmd.Root().PersistentFlags().Changed("data-dir") {
				cfg.DataDir = opts.dataDir
			}
			if cmd.Root().PersistentFlags().Changed("format") {
				cfg.DataFormat = opts.format
			}
			if cmd.Root().PersistentFlags().Changed("exclude") {
				cfg.ExcludedColumns = opts.excluded
			}
			if cmd.Root().PersistentFlags().Changed("strict") {
				cfg.StrictMode = opts.strict
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			a, err := app.New(app.Deps{Cfg: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Schedule != nil {
				a.Schedule.Start()
			}

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           a.Router(cfg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.ListenAddr, "dataDir", cfg.DataDir, "format", cfg.DataFormat)
				errCh <- srv.ListenAndServe()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case sig := <-stop:
				logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					return err
				}
			case <-cmd.Context().Done():
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}
