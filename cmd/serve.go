package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"covinance/internal/api"
	"covinance/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	logger.Banner(version)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.remote.HealthCheck(cmd.Context()) {
		logger.Success("Remote", "Market source reachable")
	} else {
		logger.Warn("Remote", "Market source not reachable; queries will report it", zap.String("base_url", cfg.Remote.BaseURL))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sweepLoop(ctx, a, cfg.Cache.TTL)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(a.facade, cfg.Server.WriteTimeout, version).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Server(cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Server", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server", "shutdown error", zap.Error(err))
	}
	logger.Sync()
	return nil
}

// sweepLoop drops expired cache entries so idle keys don't hold memory until
// their next lookup.
func sweepLoop(ctx context.Context, a *app, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.market.SweepCache(); n > 0 {
				logger.Debug("Cache", "swept expired entries", zap.Int("removed", n))
			}
		}
	}
}
