package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/config"
	"github.com/lukemcguire/zombiemap/crawler"
	"github.com/lukemcguire/zombiemap/result"
	"github.com/lukemcguire/zombiemap/server"
	"github.com/lukemcguire/zombiemap/tui"
)

// ServeCmd runs the streaming server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)."`
}

func (s *ServeCmd) Run(a *app) error {
	if s.Addr != "" {
		a.cfg.Server.Addr = s.Addr
	}

	c := crawler.New(a.cfg.CrawlerConfig(a.logger))
	handler := server.NewHandler(c, server.Options{
		AllowedOrigin: a.cfg.Server.AllowedOrigin,
		Logger:        a.logger,
	})
	return server.Run(a.ctx, a.cfg.Server.Addr, handler, a.cfg.Server.ShutdownTimeout, a.logger)
}

// CheckCmd crawls one site and reports broken links.
type CheckCmd struct {
	URL            string `arg:"" help:"Site URL, for example https://example.com."`
	Format         string `short:"f" enum:"tui,text,json,csv" default:"tui" help:"Output format: tui, text, json or csv."`
	Concurrency    int    `help:"Link checks in flight per page (overrides crawler.concurrency)."`
	RateLimit      int    `name:"rate-limit" help:"Requests per second (overrides crawler.rate_limit)."`
	LowMemory      bool   `name:"low-memory" help:"Track visited links in a disk-backed bloom filter."`
	RobotsSitemaps bool   `name:"robots-sitemaps" help:"Look for sitemaps in robots.txt when /sitemap.xml is missing."`
	LogFile        string `name:"log-file" type:"path" help:"Write logs to this file while the TUI is running."`

	stdout io.Writer
}

// apply copies command line overrides into cfg.
func (c *CheckCmd) apply(cfg *config.Config) {
	if c.Concurrency > 0 {
		cfg.Crawler.Concurrency = c.Concurrency
	}
	if c.RateLimit > 0 {
		cfg.Crawler.RateLimit = c.RateLimit
	}
	if c.LowMemory {
		cfg.Crawler.LowMemory = true
	}
	if c.RobotsSitemaps {
		cfg.Crawler.RobotsSitemaps = true
	}
}

func (c *CheckCmd) Run(a *app) error {
	c.apply(&a.cfg)

	if c.Format == "tui" {
		return c.runTUI(a)
	}

	res, err := crawler.New(a.cfg.CrawlerConfig(a.logger)).Run(a.ctx, c.URL)
	if err != nil {
		return fmt.Errorf("check %s: %w", c.URL, err)
	}
	out := c.stdout
	if out == nil {
		out = os.Stdout
	}
	if err := writeResult(out, c.Format, res); err != nil {
		return err
	}
	if len(res.BrokenLinks) > 0 {
		return errBrokenLinks
	}
	return nil
}

func (c *CheckCmd) runTUI(a *app) error {
	logger := log.New(io.Discard)
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		if logger, err = a.cfg.NewLogger(f); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	events, err := crawler.New(a.cfg.CrawlerConfig(logger)).Stream(ctx, c.URL)
	if err != nil {
		return fmt.Errorf("check %s: %w", c.URL, err)
	}

	finalModel, err := tea.NewProgram(tui.NewModel(ctx, cancel, events)).Run()
	if err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}

	m := finalModel.(tui.Model)
	switch {
	case m.Quitting():
		return errors.New("interrupted")
	case m.Err() != nil:
		return fmt.Errorf("check %s: %w", c.URL, m.Err())
	case m.HasBrokenLinks():
		return errBrokenLinks
	}
	return nil
}

func writeResult(w io.Writer, format string, res *result.Result) error {
	switch format {
	case "json":
		return result.WriteJSON(w, res.BrokenLinks)
	case "csv":
		return result.WriteCSV(w, res.BrokenLinks)
	case "text":
		result.PrintResults(w, res)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
