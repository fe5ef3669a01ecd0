package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfeidau/assetpipe/internal/logger"
	"github.com/wolfeidau/assetpipe/internal/server"
)

type ServeCmd struct {
	Dir             string   `arg:"" help:"build directory to serve" default:"build" type:"existingdir"`
	Listen          string   `help:"HTTP server listen address" default:"0.0.0.0:3001" env:"ASSETPIPE_LISTEN"`
	Cert            string   `help:"path to TLS cert file" default:"" env:"ASSETPIPE_TLS_CERT"`
	Key             string   `help:"path to TLS key file" default:"" env:"ASSETPIPE_TLS_KEY"`
	Manifest        string   `help:"manifest file name inside the build directory" default:"asset-manifest.json" env:"ASSETPIPE_MANIFEST"`
	Template        string   `help:"HTML template rendered for the index page, otherwise the built index.html is served" default:"" env:"ASSETPIPE_TEMPLATE"`
	Title           string   `help:"page title passed to the HTML template" default:"" env:"ASSETPIPE_TITLE"`
	CORSOrigins     []string `help:"allowed CORS origins" default:"*" env:"ASSETPIPE_CORS_ORIGINS"`
	HistoryFallback bool     `help:"render the index page for unknown routes" default:"true" negatable:"" env:"ASSETPIPE_HISTORY_FALLBACK"`
	Tracing         bool     `help:"enable tracing" default:"false" env:"ASSETPIPE_TRACING"`
}

func (c *ServeCmd) Validate() error {
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS certificate and key must be provided together (--cert and --key)")
	}
	return nil
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	shutdownTelemetry := setupTracing(ctx, log, c.Tracing, "assetpipe-serve", globals.Version)
	defer shutdownTelemetry()

	static, err := server.NewStatic(server.Config{
		Dir:              c.Dir,
		ManifestFileName: c.Manifest,
		Template:         c.Template,
		Title:            c.Title,
		CORSOrigins:      c.CORSOrigins,
		HistoryFallback:  c.HistoryFallback,
	})
	if err != nil {
		return err
	}

	handler, err := static.Handler(log)
	if err != nil {
		return err
	}

	if c.Cert != "" {
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("dir", c.Dir).Bool("tls", c.Cert != "").Msg("Starting HTTP server")
		if c.Cert != "" {
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
