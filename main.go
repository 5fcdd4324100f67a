package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/bryan-buckman/pushfeed/internal/config"
	"github.com/bryan-buckman/pushfeed/internal/database"
	"github.com/bryan-buckman/pushfeed/internal/logger"
	"github.com/bryan-buckman/pushfeed/internal/server"
)

// CLI is the command line of pushfeed. Settings can also come from a YAML
// file given with --config or found at ./pushfeed.yaml.
type CLI struct {
	Config kong.ConfigFlag `help:"YAML configuration file"`
	config.Settings

	Serve ServeCmd `cmd:"" default:"1" help:"Run the push subscriber HTTP server"`
	Sweep SweepCmd `cmd:"" help:"Delete all but the newest updates and exit"`
}

// ServeCmd runs the HTTP server until SIGINT or SIGTERM.
type ServeCmd struct{}

func (ServeCmd) Run(cfg *config.Settings) error {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(db, server.Options{
		Prefix:        cfg.Ingest.Prefix,
		MaxBodyBytes:  cfg.Ingest.MaxBodyBytes,
		Items:         cfg.ItemsPolicy(),
		RetentionKeep: cfg.Retention.Keep,
		ReadTimeout:   cfg.ReadTimeout(),
		WriteTimeout:  cfg.WriteTimeout(),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx, cfg.ListenAddr)
}

// SweepCmd applies the retention policy once, for cron-style triggers.
type SweepCmd struct {
	Keep int `help:"Override retention.keep for this run" default:"-1"`
}

func (c SweepCmd) Run(cfg *config.Settings) error {
	keep := cfg.Retention.Keep
	if c.Keep >= 0 {
		keep = c.Keep
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	deleted, err := db.SweepUpdates(ctx, keep)
	if err != nil {
		return err
	}
	remaining, err := db.CountUpdates(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Sweep kept newest %d: deleted %d, %d remain", keep, deleted, remaining)
	return nil
}

func main() {
	var cli CLI
	parser, err := config.NewParser(&cli, []string{"pushfeed.yaml"},
		kong.Name("pushfeed"),
		kong.Description("A PubSubHubbub-style feed subscriber."),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	parser.FatalIfErrorf(cli.Settings.Validate())

	if err := logger.Init(cli.Settings.Logger()); err != nil {
		parser.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := ctx.Run(&cli.Settings); err != nil {
		logger.Errorf("%s: %v", ctx.Command(), err)
		logger.Sync()
		os.Exit(1)
	}
}
