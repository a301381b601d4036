package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-formengine/internal/metric"
	"github.com/goliatone/go-formengine/internal/server"
	"github.com/goliatone/go-formengine/internal/snapshot"
	"github.com/goliatone/go-formengine/pkg/schema/loader"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	schemaDir := flag.String("schema", "", "directory of form schemas (overrides config)")
	dsn := flag.String("db", "", "sqlite snapshot database, e.g. file:forms.db (overrides config)")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *schemaDir != "" {
		cfg.SchemaDir = *schemaDir
	}
	if *dsn != "" {
		cfg.Database = *dsn
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg server.Config) error {
	logger := cfg.Logger(os.Stderr)

	forms, err := loader.LoadFS(os.DirFS(cfg.SchemaDir))
	if err != nil {
		return fmt.Errorf("loading forms from %s: %w", cfg.SchemaDir, err)
	}
	if len(forms) == 0 {
		logger.Warn("no forms found", "dir", cfg.SchemaDir)
	}

	lists, err := cfg.LoadOptionLists()
	if err != nil {
		return err
	}
	for id, form := range forms {
		if form.Pages, err = lists.Resolve(form.Pages); err != nil {
			return fmt.Errorf("form %s: %w", id, err)
		}
		forms[id] = form
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metric.New()),
		server.WithOptionLists(lists),
	}
	if cfg.Database != "" {
		store, err := snapshot.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithSnapshots(store))
		logger.Info("snapshots enabled", "database", cfg.Database)
	}

	return server.New(cfg, forms, opts...).Run(ctx)
}
