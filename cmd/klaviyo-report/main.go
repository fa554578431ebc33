// Package main provides the klaviyo-report CLI application.
//
// klaviyo-report pulls metric aggregates, flow and campaign send counts and
// event listings from a Klaviyo account and renders them as report tables,
// or serves the same reports over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set during build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the flags shared by every command.
type globals struct {
	configPath  string
	metricsFile string
	stdout      io.Writer
}

// run executes the main application logic.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("klaviyo-report", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	showVersion := fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "klaviyo-report %s\n", version)
		return nil
	}

	args = fs.Args()
	if len(args) == 0 {
		return showUsage(stdout)
	}

	g := globals{
		configPath:  *configPath,
		metricsFile: *metricsFile,
		stdout:      stdout,
	}

	command, rest := args[0], args[1:]
	switch command {
	case "metrics":
		return runMetricsCommand(ctx, g, rest)
	case "values":
		return runValuesCommand(ctx, g, rest)
	case "flows":
		return runFlowsCommand(ctx, g, rest)
	case "campaigns":
		return runCampaignsCommand(ctx, g, rest)
	case "events":
		return runEventsCommand(ctx, g, rest)
	case "serve":
		return runServeCommand(ctx, g, rest)
	case "cache":
		return runCacheCommand(g, rest)
	case "config":
		cmd := &configCommand{configPath: g.configPath, stdout: stdout}
		return cmd.Execute(rest)
	case "help":
		return showUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// showUsage displays usage information.
func showUsage(w io.Writer) error {
	usage := `klaviyo-report - Klaviyo metric reports

Usage:
  klaviyo-report [flags] <command> [command flags]

Commands:
  metrics     List the metrics of the account
  values      Metric values per interval as a report table
  flows       Flow e-mails sent per interval
  campaigns   Campaign recipients per interval
  events      List the events of an e-mail metric
  serve       Serve reports over HTTP
  cache       Response cache management (purge)
  config      Configuration management (show, path, reset)
  help        Show this help message

Global Flags:
  -config         Path to configuration file
  -metrics-file   Write Prometheus metrics to this file on exit
  -version        Show version information

Report Flags:
  -metric         Metric name, e.g. "Placed Order" or placed_order
  -from           Range start, RFC 3339 or YYYY-MM-DD in the report timezone
  -to             Range end, same format
  -interval       hour, day, week, month, year or lifetime (default: month)
  -by             Dimensions to partition by (comma-separated)
  -integration    Restrict the metric lookup to one integration
  -format         Output format (table, simple, csv, json, sheets)
  -collapse       Sum every partitioned row into one row

Examples:
  # Monthly orders for 2023
  klaviyo-report values -metric "Placed Order" -from 2023-01-01 -to 2024-01-01

  # Yearly revenue split by campaign, as CSV
  klaviyo-report values -metric placed_order -interval year -by '$attributed_message' -format csv \
      -from 2020-01-01 -to 2024-01-01

  # Weekly flow e-mails
  klaviyo-report flows -interval week -from 2024-01-01 -to 2024-03-31

  # Serve reports on :8080
  klaviyo-report serve

Version: %s
`

	_, err := fmt.Fprintf(w, usage, version)
	return err
}
