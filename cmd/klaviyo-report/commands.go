package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/klaviyo-report/pkg/cache"
	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/config"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/logger"
	"github.com/0xmhha/klaviyo-report/pkg/matrix"
	"github.com/0xmhha/klaviyo-report/pkg/report"
	"github.com/0xmhha/klaviyo-report/pkg/server"
	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// errMissingFlag is returned when a required flag is not set.
var errMissingFlag = errors.New("missing required flag")

// shutdownTimeout bounds the graceful shutdown of serve.
const shutdownTimeout = 5 * time.Second

// rangeFlags are the flags shared by every report command.
type rangeFlags struct {
	from     string
	to       string
	interval string
	format   string
	title    string
	compact  bool
}

func (r *rangeFlags) register(fs *flag.FlagSet, defaultInterval string) {
	fs.StringVar(&r.from, "from", "", "range start (RFC 3339 or YYYY-MM-DD)")
	fs.StringVar(&r.to, "to", "", "range end (RFC 3339 or YYYY-MM-DD, default: now)")
	fs.StringVar(&r.interval, "interval", defaultInterval, "bucket interval ("+interval.Names()+")")
	fs.StringVar(&r.format, "format", "", "output format (table, simple, csv, json, sheets)")
	fs.StringVar(&r.title, "title", "", "title written above text tables")
	fs.BoolVar(&r.compact, "compact", false, "compact output")
}

// resolve parses the range in loc.
func (r *rangeFlags) resolve(loc *time.Location) (from, to time.Time, iv interval.Interval, err error) {
	if r.from == "" {
		return from, to, iv, fmt.Errorf("%w: -from", errMissingFlag)
	}
	if from, err = interval.ParseTime(r.from, loc); err != nil {
		return from, to, iv, fmt.Errorf("invalid -from: %w", err)
	}

	to = time.Now().In(loc)
	if r.to != "" {
		if to, err = interval.ParseTime(r.to, loc); err != nil {
			return from, to, iv, fmt.Errorf("invalid -to: %w", err)
		}
	}

	iv, err = interval.Parse(r.interval)
	return from, to, iv, err
}

// withApp wires the report stack, runs fn and releases the stack.
func withApp(g globals, fn func(a *app) error) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

// metricsCommand lists the metric catalog.
type metricsCommand struct {
	integration string
	format      string
}

func parseMetricsCommand(args []string) (*metricsCommand, error) {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	cmd := &metricsCommand{}
	fs.StringVar(&cmd.integration, "integration", "", "only list metrics of this integration")
	fs.StringVar(&cmd.format, "format", "", "output format (table, simple, csv, json)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runMetricsCommand(ctx context.Context, g globals, args []string) error {
	cmd, err := parseMetricsCommand(args)
	if err != nil {
		return err
	}
	return withApp(g, func(a *app) error { return cmd.Execute(ctx, a, g.stdout) })
}

// Execute runs the metrics command.
func (c *metricsCommand) Execute(ctx context.Context, a *app, w io.Writer) error {
	entries, err := a.reports.Catalog(ctx)
	if err != nil {
		return err
	}

	if c.integration != "" {
		entries = lo.Filter(entries, func(e catalog.Entry, _ int) bool {
			return strings.EqualFold(e.Integration, c.integration)
		})
	}

	f, err := a.formatter(c.format, w, "", false)
	if err != nil {
		return err
	}

	rows := lo.Map(entries, func(e catalog.Entry, _ int) []string {
		return []string{e.ID, e.Name, e.Integration}
	})
	return f.FormatRecords(w, []string{"ID", "Name", "Integration"}, rows)
}

// valuesCommand reports the values of one metric.
type valuesCommand struct {
	rangeFlags
	metric      string
	by          []string
	integration string
	collapse    bool
}

func parseValuesCommand(args []string) (*valuesCommand, error) {
	fs := flag.NewFlagSet("values", flag.ContinueOnError)
	cmd := &valuesCommand{}
	cmd.register(fs, string(interval.Month))
	fs.StringVar(&cmd.metric, "metric", "", "metric name")
	by := fs.String("by", "", "dimensions to partition by (comma-separated)")
	fs.StringVar(&cmd.integration, "integration", "", "restrict the metric lookup to one integration")
	fs.BoolVar(&cmd.collapse, "collapse", false, "sum every partitioned row into one row")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.metric == "" {
		return nil, fmt.Errorf("%w: -metric", errMissingFlag)
	}
	cmd.by = splitList(*by)
	return cmd, nil
}

func runValuesCommand(ctx context.Context, g globals, args []string) error {
	cmd, err := parseValuesCommand(args)
	if err != nil {
		return err
	}
	return withApp(g, func(a *app) error { return cmd.Execute(ctx, a, g.stdout) })
}

// Execute runs the values command.
func (c *valuesCommand) Execute(ctx context.Context, a *app, w io.Writer) error {
	metric, err := catalog.Parse(c.metric)
	if err != nil {
		return err
	}

	from, to, iv, err := c.resolve(a.loc)
	if err != nil {
		return err
	}

	values, err := a.reports.BiggerIntervalValues(ctx, report.Query{
		Metric:      metric,
		From:        from,
		To:          to,
		Interval:    iv,
		Integration: c.integration,
		By:          c.by,
	})
	if err != nil {
		return err
	}
	if c.collapse && len(c.by) > 0 {
		values = report.CollapseGroups(values)
	}

	grid, err := report.BuildTables(values, from, a.loc, iv)
	if err != nil {
		return err
	}

	f, err := a.formatter(c.format, w, c.title, c.compact)
	if err != nil {
		return err
	}
	return f.FormatGrid(w, grid)
}

// flowsCommand reports flow e-mails sent per bucket.
type flowsCommand struct {
	rangeFlags
}

func parseFlowsCommand(args []string) (*flowsCommand, error) {
	fs := flag.NewFlagSet("flows", flag.ContinueOnError)
	cmd := &flowsCommand{}
	cmd.register(fs, string(interval.Month))

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runFlowsCommand(ctx context.Context, g globals, args []string) error {
	cmd, err := parseFlowsCommand(args)
	if err != nil {
		return err
	}
	return withApp(g, func(a *app) error { return cmd.Execute(ctx, a, g.stdout) })
}

// Execute runs the flows command.
func (c *flowsCommand) Execute(ctx context.Context, a *app, w io.Writer) error {
	from, to, iv, err := c.resolve(a.loc)
	if err != nil {
		return err
	}

	flows, err := a.reports.SendEmailFlowActions(ctx)
	if err != nil {
		return err
	}
	messages, err := a.reports.FlowMessages(ctx, flows)
	if err != nil {
		return err
	}

	r := report.Range{From: from, To: to, Interval: iv, Location: a.loc}
	result, err := report.ProcessFlowMessages(flows, messages, r)
	if err != nil {
		return err
	}

	return writeResult(a, w, c.rangeFlags, result, r, "All flows")
}

// campaignsCommand reports campaign recipients per bucket.
type campaignsCommand struct {
	rangeFlags
	sentOnly bool
}

func parseCampaignsCommand(args []string) (*campaignsCommand, error) {
	fs := flag.NewFlagSet("campaigns", flag.ContinueOnError)
	cmd := &campaignsCommand{}
	cmd.register(fs, string(interval.Month))
	fs.BoolVar(&cmd.sentOnly, "sent-only", true, "skip campaigns that were not sent")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runCampaignsCommand(ctx context.Context, g globals, args []string) error {
	cmd, err := parseCampaignsCommand(args)
	if err != nil {
		return err
	}
	return withApp(g, func(a *app) error { return cmd.Execute(ctx, a, g.stdout) })
}

// Execute runs the campaigns command.
func (c *campaignsCommand) Execute(ctx context.Context, a *app, w io.Writer) error {
	from, to, iv, err := c.resolve(a.loc)
	if err != nil {
		return err
	}

	campaigns, err := a.reports.Campaigns(ctx, klaviyo.CampaignQuery{From: from, To: to, SentOnly: c.sentOnly})
	if err != nil {
		return err
	}

	r := report.Range{From: from, To: to, Interval: iv, Location: a.loc}
	result, err := report.CampaignMessages(campaigns, r)
	if err != nil {
		return err
	}

	return writeResult(a, w, c.rangeFlags, result, r, "All campaigns")
}

// writeResult renders the total and the partitioned series side by side.
func writeResult(a *app, w io.Writer, flags rangeFlags, result matrix.Result, r report.Range, totalHeader string) error {
	total, err := report.BuildTables(result.Total, r.From, a.loc, r.Interval)
	if err != nil {
		return err
	}
	partitioned, err := report.BuildTables(result.Partitioned, r.From, a.loc, r.Interval)
	if err != nil {
		return err
	}

	grid := report.JoinTables([]table.Labeled{
		table.WithHeader(total, totalHeader),
		{Grid: partitioned},
	})

	f, err := a.formatter(flags.format, w, flags.title, flags.compact)
	if err != nil {
		return err
	}
	return f.FormatGrid(w, grid)
}

// eventsCommand lists the events of one metric.
type eventsCommand struct {
	rangeFlags
	metric      string
	integration string
}

func parseEventsCommand(args []string) (*eventsCommand, error) {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	cmd := &eventsCommand{}
	cmd.register(fs, string(interval.Day))
	fs.StringVar(&cmd.metric, "metric", "", "metric name")
	fs.StringVar(&cmd.integration, "integration", "", "restrict the metric lookup to one integration")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cmd.metric == "" {
		return nil, fmt.Errorf("%w: -metric", errMissingFlag)
	}
	return cmd, nil
}

func runEventsCommand(ctx context.Context, g globals, args []string) error {
	cmd, err := parseEventsCommand(args)
	if err != nil {
		return err
	}
	return withApp(g, func(a *app) error { return cmd.Execute(ctx, a, g.stdout) })
}

// Execute runs the events command.
func (c *eventsCommand) Execute(ctx context.Context, a *app, w io.Writer) error {
	metric, err := catalog.Parse(c.metric)
	if err != nil {
		return err
	}

	from, to, _, err := c.resolve(a.loc)
	if err != nil {
		return err
	}

	events, err := a.reports.Events(ctx, metric, from, to, c.integration)
	if err != nil {
		return err
	}

	f, err := a.formatter(c.format, w, c.title, c.compact)
	if err != nil {
		return err
	}

	rows := lo.Map(events, func(e klaviyo.Event, _ int) []string {
		return []string{
			e.ID,
			e.Attributes.Datetime.In(a.loc).Format(time.RFC3339),
			e.Attributes.ProfileID,
		}
	})
	return f.FormatRecords(w, []string{"ID", "Datetime", "Profile"}, rows)
}

// runServeCommand serves reports over HTTP until ctx is done.
func runServeCommand(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "address to serve on (default: server.listen)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(g, func(a *app) error {
		addr := *listen
		if addr == "" {
			addr = a.cfg.Server.Listen
		}

		srv := server.New(a.reports, server.Config{Listen: addr, Logger: a.log})

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen()
		}()
		a.log.Info("serving reports", "listen", addr)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
}

// runCacheCommand handles response cache subcommands.
func runCacheCommand(g globals, args []string) error {
	if len(args) == 0 || args[0] != "purge" {
		_, err := fmt.Fprint(g.stdout, "Usage:\n  klaviyo-report cache purge\n")
		return err
	}

	cfg, err := config.NewLoader(g.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	store, err := cache.Open(cache.Config{DBPath: cfg.Cache.DBPath}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close response cache", "error", err)
		}
	}()

	n, err := store.Purge()
	if err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}

	_, err = fmt.Fprintf(g.stdout, "Purged %d expired entries from %s\n", n, cache.ExpandHome(cfg.Cache.DBPath))
	return err
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
