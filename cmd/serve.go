package cmd

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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/csvreport-cli/internal/config"
	"github.com/KaramelBytes/csvreport-cli/internal/session"
	"github.com/KaramelBytes/csvreport-cli/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser front end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := ensureConfig()
		if cmd.Flags().Changed("addr") {
			c.ListenAddr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ln, err := net.Listen("tcp", c.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", c.ListenAddr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on http://%s (Ctrl+C to stop)\n", ln.Addr())
		return serve(ctx, ln, c)
	},
}

// serve runs the HTTP server and the session janitor until ctx is cancelled,
// then shuts both down and removes every session directory.
func serve(ctx context.Context, ln net.Listener, c *cfgpkg.Global) error {
	opt := analysis.DefaultOptions()
	opt.Table = c.TableOptions()
	opt.PreviewRows = c.PreviewRows

	ttl := time.Duration(c.SessionTTLMin) * time.Minute
	store, err := session.NewStore(session.Options{
		Dir:      c.UploadDir,
		TTL:      ttl,
		Analysis: opt,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("session cleanup failed", slog.String("error", err.Error()))
		}
	}()

	handler, err := web.New(store, web.Options{
		MaxUploadBytes: int64(c.MaxUploadMB) << 20,
		UploadRPS:      c.UploadRPS,
		UploadBurst:    c.UploadBurst,
		PreviewRows:    c.PreviewRows,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("build web handler: %w", err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return store.Run(gctx, janitorInterval(ttl))
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func janitorInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Second {
		iv = time.Second
	}
	if iv > time.Minute {
		iv = time.Minute
	}
	return iv
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config: 127.0.0.1:8080)")
}
