package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/0xmhha/klaviyo-report/pkg/cache"
	"github.com/0xmhha/klaviyo-report/pkg/config"
	"github.com/0xmhha/klaviyo-report/pkg/display"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/logger"
	"github.com/0xmhha/klaviyo-report/pkg/report"
)

// app is the wired report stack of one command run.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	loc      *time.Location
	reports  *report.Service
	registry *prometheus.Registry
	store    cache.Store

	metricsFile string
}

// newApp loads configuration and wires the client, the optional response
// cache and the report service.
func newApp(g globals) (*app, error) {
	cfg, err := config.NewLoader(g.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := report.NewMetrics(registry)

	client, err := klaviyo.NewClient(klaviyo.Config{
		APIKey:   cfg.Klaviyo.APIKey,
		BaseURL:  cfg.Klaviyo.BaseURL,
		Revision: cfg.Klaviyo.Revision,
		Timeout:  cfg.Klaviyo.Timeout,
		PageSize: cfg.Report.PageSize,
		Logger:   log,
		Observe:  metrics.ObserveFetch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		loc:         loc,
		registry:    registry,
		metricsFile: g.metricsFile,
	}

	var api klaviyo.API = client
	if cfg.Cache.Enabled {
		a.store, err = cache.Open(cache.Config{DBPath: cfg.Cache.DBPath}, log)
		if err != nil {
			return nil, err
		}
		api = klaviyo.WithCache(api, a.store, klaviyo.CacheConfig{
			TTL:      cfg.Cache.TTL,
			Logger:   log,
			OnLookup: metrics.CacheLookup,
		})
	}

	a.reports, err = report.New(report.Config{
		Location:    loc,
		PacingDelay: cfg.Report.PacingDelay,
	}, api, log, metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases the cache and writes the metrics file, if any.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("failed to close response cache", "error", err)
		}
	}
	if a.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
			a.log.Error("failed to write metrics file", "path", a.metricsFile, "error", err)
		}
	}
}

// formatter resolves the output format: the -format flag, then the
// configured display format, then table on a terminal and csv otherwise.
func (a *app) formatter(flagValue string, w io.Writer, title string, compact bool) (display.Formatter, error) {
	name := flagValue
	if name == "" {
		name = a.cfg.Display.Format
	}

	format := display.FormatCSV
	if name != "" {
		var err error
		if format, err = display.ParseFormat(name); err != nil {
			return nil, err
		}
	} else if isTerminal(w) {
		format = display.FormatTable
	}

	return display.New(display.Config{Format: format, Title: title, Compact: compact}), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
