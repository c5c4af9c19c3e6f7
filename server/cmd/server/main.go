package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/obsidianstack/regionstats/server/internal/api"
	"github.com/obsidianstack/regionstats/server/internal/config"
	"github.com/obsidianstack/regionstats/server/internal/metrics"
	"github.com/obsidianstack/regionstats/server/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dataPath := flag.String("data", "", "telemetry JSON file; overrides server.data_file (relative to the working directory)")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("regionstats-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Apply the configured level, and tee to a rotated file when one is set.
	if err := level.UnmarshalText([]byte(cfg.Server.Log.Level)); err != nil {
		slog.Error("invalid log level", "level", cfg.Server.Log.Level, "err", err)
		os.Exit(1)
	}
	if cfg.Server.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Server.Log.File,
			MaxSize:    cfg.Server.Log.MaxSizeMB,
			MaxBackups: cfg.Server.Log.MaxBackups,
		}
		defer rotator.Close()
		out := io.MultiWriter(os.Stdout, rotator)
		slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: &level})))
	}

	path, err := dataFile(cfg.Server, *dataPath)
	if err != nil {
		slog.Error("failed to resolve data file", "err", err)
		os.Exit(1)
	}

	// The store is loaded once; a bad data file means the service cannot start.
	st, err := store.Load(path)
	if err != nil {
		slog.Error("failed to load telemetry", "path", path, "err", err)
		os.Exit(1)
	}

	slog.Info("telemetry loaded",
		"path", path,
		"records", st.Len(),
		"regions", len(st.Regions()),
	)
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"default_threshold_ms", cfg.Server.DefaultThresholdMs,
		"log_level", cfg.Server.Log.Level,
		"watch", cfg.Server.Watch,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Config hot-reload only touches logging; the telemetry data stays as loaded.
	if cfg.Server.Watch {
		go func() {
			if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
				if err := level.UnmarshalText([]byte(updated.Server.Log.Level)); err != nil {
					slog.Error("config: ignoring log level", "level", updated.Server.Log.Level, "err", err)
				}
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	rec := metrics.New(st, metrics.DefaultWindow)
	handler := api.New(st, rec, api.Options{
		DefaultThresholdMs: &cfg.Server.DefaultThresholdMs,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		AllowedMethods:     cfg.Server.CORS.AllowedMethods,
		AllowedHeaders:     cfg.Server.CORS.AllowedHeaders,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("regionstats-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// dataFile picks the telemetry file: the -data flag as given, otherwise the
// configured data_file resolved against the executable's directory.
func dataFile(cfg config.ServerConfig, flagPath string) (string, error) {
	if flagPath != "" {
		return filepath.Abs(flagPath)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return cfg.ResolveDataPath(filepath.Dir(exe)), nil
}
