// Package main provides the zombiemap CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/config"
)

// errBrokenLinks makes the process exit non-zero without printing anything.
var errBrokenLinks = errors.New("broken links found")

// CLI is the command line grammar.
type CLI struct {
	Config   string `short:"c" type:"path" help:"Path to a YAML config file."`
	LogLevel string `name:"log-level" help:"Override the configured log level (debug, info, warn, error)."`

	Serve ServeCmd `cmd:"" help:"Run the streaming HTTP server."`
	Check CheckCmd `cmd:"" help:"Check one site from the terminal."`
}

// app carries what every command needs.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger *log.Logger
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("zombiemap"),
		kong.Description("Find broken links on every page listed in a site's sitemap."),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kctx.Run(&app{ctx: ctx, cfg: cfg, logger: logger}); err != nil {
		if !errors.Is(err, errBrokenLinks) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func loadConfig(cli CLI) (config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return cfg, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	return cfg, nil
}
