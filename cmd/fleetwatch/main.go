package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fleetwatch/internal/app"
	"fleetwatch/internal/config"
	"fleetwatch/internal/logging"
)

func main() {
	configPath := flag.String("config", "fleetwatch.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("fleetwatch", app.Version)
		return
	}

	cfg, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Get().LogLevel)
	logger.Info("starting", "version", app.Version, "config", cfg.Path())

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				a.Reload()
			}
		}
	}()

	if err := a.Run(ctx); err != nil {
		logger.Error("shutdown with error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
