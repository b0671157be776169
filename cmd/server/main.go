package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/holdable/internal/config"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "holdable:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := injector.InitializeApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = app.Logger.Sync() }()

	app.Logger.Info("starting",
		log.String("role", cfg.Server.Role),
		log.String("transport", cfg.Server.Transport),
		log.String("address", cfg.Server.Address),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Runtime.Run(ctx) })
	if app.Network.Serve != nil {
		g.Go(func() error { return app.Network.Serve(ctx) })
	}
	err = g.Wait()
	app.Logger.Info("stopped")
	return err
}
