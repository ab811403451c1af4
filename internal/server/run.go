package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/r9s-ai/gemini-proxy/internal/config"
	"github.com/r9s-ai/gemini-proxy/internal/logx"
	"github.com/r9s-ai/gemini-proxy/internal/proxy"
	"github.com/r9s-ai/gemini-proxy/internal/upstream"
	"github.com/r9s-ai/gemini-proxy/internal/version"
)

// Run loads the config at cfgPath and serves until SIGINT/SIGTERM.
func Run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logx.New(cfg.Logging.Level, nil)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, cfg, logger)
}

// Serve runs the HTTP server for cfg until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	access, err := openAccessLog(cfg.Logging.AccessLog, cfg.Logging.AccessLogPath)
	if err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	defer func() { _ = access.Close() }()

	pid, err := writePIDFile(cfg.Server.PidFile)
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = pid.Remove() }()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	if gen == nil {
		logger.Warnf("%s is not set: %s will answer 500 until it is configured", config.APIKeyEnv, cfg.Handler.Path)
	}

	h := proxy.NewHandler(gen, proxy.Options{
		EchoMode:      cfg.Handler.EchoMode,
		RequireConfig: cfg.Handler.RequireConfig,
		Models: proxy.ModelSelector{
			Draft: cfg.Models.Draft,
			Final: cfg.Models.Final,
		},
	}, logger)

	var handler http.Handler = NewRouter(cfg, h, access.Logger(), access.Color())
	if cfg.Server.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"version": version.Short(),
			"path":    cfg.Handler.Path,
			"h2c":     cfg.Server.H2C,
		}).Infof("gemini-proxy listening on %s", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newGenerator returns a nil Generator (not a typed nil) when no credential is set.
func newGenerator(ctx context.Context, cfg *config.Config) (proxy.Generator, error) {
	client, err := upstream.New(ctx, upstream.Config{
		APIKey:     cfg.Upstream.APIKey,
		BaseURL:    cfg.Upstream.BaseURL,
		APIVersion: cfg.Upstream.APIVersion,
		Timeout:    time.Duration(cfg.Upstream.TimeoutMs) * time.Millisecond,
	})
	if errors.Is(err, upstream.ErrMissingAPIKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
