// Package serve runs the import HTTP API
package serve

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/api"
	"fjacquet/statement-import/internal/container"
	"fjacquet/statement-import/internal/logging"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var address string

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the import API over HTTP",
	Long: `Serve the statement import API. Sessions live in memory; expired sessions are
swept in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		addr := address
		if addr == "" {
			addr = c.GetConfig().Server.Address
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return Run(ctx, c, addr)
	},
}

func init() {
	Cmd.Flags().StringVar(&address, "addr", "", "Listen address (default from server.address)")
}

// Run serves the API on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, c *container.Container, addr string) error {
	logger := c.GetLogger()
	e := api.NewServer(api.Dependencies{
		Manager:    c.GetManager(),
		Calculator: c.GetCalculator(),
		Logger:     logger,
		Version:    root.Version,
	})

	interval := time.Duration(c.GetConfig().Server.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	go c.GetManager().RunSweeper(ctx, interval)

	// Shutdown only stops e.Server, so serve on it rather than a separate http.Server.
	e.Server.IdleTimeout = 2 * time.Minute

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()
	logger.Info("Import API listening",
		logging.Field{Key: "address", Value: addr},
		logging.Field{Key: logging.FieldLedger, Value: c.GetLedger().Name()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down import API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
