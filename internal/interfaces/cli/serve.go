package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command: the long-running host process.
func NewServeCommand(container *CLIContainer) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extension host and admin API",
		Long: `Boot the extension host: discover extensions, bind every enabled plugin,
apply the active theme, and serve the bound routes plus the admin API.

The extension directories are watched for out-of-band changes; a manually
dropped plugin directory becomes visible without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listenAddr != "" {
				container.Config.ListenAddr = listenAddr
			}
			return runServe(cmd.Context(), container)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides configuration)")
	return cmd
}

func runServe(ctx context.Context, container *CLIContainer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bound := container.Extensions.BindEnabled(ctx)
	container.Logger.Printf("serve: %d plugin(s) bound", bound)

	if err := container.Themes.ApplyActive(ctx); err != nil {
		return fmt.Errorf("failed to apply active theme: %w", err)
	}

	if container.Config.AdminToken == "" {
		container.Logger.Printf("serve: WARNING: no admin token configured, admin API is unauthenticated")
	}

	go func() {
		dirs := []string{container.Config.PluginsDir, container.Config.ThemesDir}
		if err := container.Watcher.Watch(ctx, dirs...); err != nil && !errors.Is(err, context.Canceled) {
			container.Logger.Printf("serve: watcher stopped: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              container.Config.ListenAddr,
		Handler:           container.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		container.Logger.Printf("serve: listening on %s", container.Config.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	container.Logger.Printf("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return nil
}
