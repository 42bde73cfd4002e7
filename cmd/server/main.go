package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"taskmaster/internal/api"
	"taskmaster/internal/config"
	"taskmaster/internal/db"
	"taskmaster/internal/logging"
	"taskmaster/pkg/activity"
	"taskmaster/pkg/user"
)

func main() {
	ctx := context.Background()

	v, err := config.New(os.Getenv("TASKMASTER_CONFIG"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	stores, err := db.Open(ctx, cfg.Database, user.NewPasswordHasher(cfg.Users.BcryptCost))
	if err != nil {
		log.Error("open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if err := stores.EnsureTables(ctx); err != nil {
		log.Error("ensure tables", "error", err)
		stores.Close()
		os.Exit(1)
	}

	server := api.New(stores.Tasks, stores.Users, activity.NewBus(stores.Activity), api.Options{
		Logger:            log,
		DefaultActor:      cfg.Attribution.DefaultName,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("taskmaster listening", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			stores.Close()
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, cfg.Server.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			log.Info("shutting down")
			err := httpServer.Shutdown(ctx)
			stores.Close()
			return err
		},
	})

	exitCode := <-wait
	log.Info("exited", "code", exitCode)
	os.Exit(exitCode)
}
