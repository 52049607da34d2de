package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alertbridge/alertbridge/internal/config"
	"github.com/alertbridge/alertbridge/internal/logging"
	"github.com/alertbridge/alertbridge/internal/server"
	"github.com/alertbridge/alertbridge/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional; environment variables override)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	levelVar, err := logging.Setup(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "err", err)
		os.Exit(1)
	}

	slog.Info("alert bridge starting",
		"version", version.Full(),
		"host", cfg.Host,
		"http_port", cfg.HTTPPort,
		"ws_port", cfg.WSPort,
		"auth_enabled", cfg.Auth.Enabled,
		"max_alerts", cfg.Limits.MaxAlerts,
		"max_connections", cfg.Limits.MaxConnections,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bridge := server.New(cfg, nil)

	// Hot reload: log level and auth settings follow the config file.
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, func(fresh *config.Config) {
				if lvl, err := config.ParseLevel(fresh.Log.Level); err == nil {
					levelVar.Set(lvl)
				}
				bridge.ApplyConfig(fresh)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler: bridge.Router(),
	}
	wsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.WSPort),
		Handler: bridge.WSRouter(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("webhook/API listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("push channel listening", "addr", wsSrv.Addr)
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ws server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("alert bridge shutting down")

		// Close every active session with a clean going-away code before
		// the listeners stop.
		bridge.Shutdown()

		shutCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		wsSrv.Shutdown(shutCtx)   //nolint:errcheck
		httpSrv.Shutdown(shutCtx) //nolint:errcheck
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("alert bridge stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("alert bridge stopped")
}
