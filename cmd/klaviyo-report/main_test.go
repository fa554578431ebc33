package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/config"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
)

// isolate points HOME and the working directory at a temp dir and clears
// the environment overrides.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{config.EnvAPIKey, config.EnvTimezone, config.EnvCacheDB, config.EnvLogLevel} {
		t.Setenv(key, "")
	}
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// TestParseValuesCommand tests values command flag parsing.
func TestParseValuesCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    valuesCommand
		wantErr error
	}{
		{
			name: "defaults",
			args: []string{"-metric", "Placed Order", "-from", "2024-01-01"},
			want: valuesCommand{
				rangeFlags: rangeFlags{from: "2024-01-01", interval: "month"},
				metric:     "Placed Order",
			},
		},
		{
			name: "all flags",
			args: []string{
				"-metric", "placed_order",
				"-from", "2020-01-01",
				"-to", "2024-01-01",
				"-interval", "year",
				"-by", "$attributed_message, $flow",
				"-integration", "Shopify",
				"-format", "csv",
				"-collapse",
			},
			want: valuesCommand{
				rangeFlags:  rangeFlags{from: "2020-01-01", to: "2024-01-01", interval: "year", format: "csv"},
				metric:      "placed_order",
				by:          []string{"$attributed_message", "$flow"},
				integration: "Shopify",
				collapse:    true,
			},
		},
		{
			name:    "missing metric",
			args:    []string{"-from", "2024-01-01"},
			wantErr: errMissingFlag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValuesCommand(tt.args)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseCampaignsCommand(t *testing.T) {
	cmd, err := parseCampaignsCommand([]string{"-from", "2024-01-01"})
	require.NoError(t, err)
	assert.True(t, cmd.sentOnly)

	cmd, err = parseCampaignsCommand([]string{"-from", "2024-01-01", "-sent-only=false", "-interval", "week"})
	require.NoError(t, err)
	assert.False(t, cmd.sentOnly)
	assert.Equal(t, "week", cmd.interval)
}

func TestParseEventsCommand_MissingMetric(t *testing.T) {
	_, err := parseEventsCommand([]string{"-from", "2024-01-01"})
	assert.True(t, errors.Is(err, errMissingFlag))
}

func TestRangeFlags_Resolve(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	r := rangeFlags{from: "2024-01-01", to: "2024-02-01T12:00:00Z", interval: "Week"}
	from, to, iv, err := r.resolve(warsaw)
	require.NoError(t, err)
	assert.True(t, from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, warsaw)))
	assert.Equal(t, "Europe/Warsaw", from.Location().String())
	assert.True(t, to.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, interval.Week, iv)

	_, _, _, err = (&rangeFlags{interval: "month"}).resolve(time.UTC)
	assert.True(t, errors.Is(err, errMissingFlag))

	_, _, _, err = (&rangeFlags{from: "2024-01-01", interval: "minute"}).resolve(time.UTC)
	assert.True(t, errors.Is(err, interval.ErrUnknownInterval))

	_, _, _, err = (&rangeFlags{from: "January", interval: "month"}).resolve(time.UTC)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}

// TestCommandRouting tests unknown commands and help.
func TestCommandRouting(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	var out bytes.Buffer
	err := run(ctx, []string{"frobnicate"}, &out)
	assert.EqualError(t, err, "unknown command: frobnicate")

	out.Reset()
	require.NoError(t, run(ctx, nil, &out))
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	require.NoError(t, run(ctx, []string{"help"}, &out))
	assert.Contains(t, out.String(), "values")
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &out))
	assert.Equal(t, "klaviyo-report dev\n", out.String())
}

func TestValues_MissingAPIKey(t *testing.T) {
	isolate(t)

	err := run(context.Background(), []string{"values", "-metric", "Placed Order", "-from", "2024-01-01"}, io.Discard)
	assert.True(t, errors.Is(err, klaviyo.ErrMissingAPIKey), "error = %v", err)
}

// fakeKlaviyo serves a one-metric catalog and a two-month aggregate.
func fakeKlaviyo(t *testing.T, aggregates *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/metrics":
			_, _ = io.WriteString(w, `{"data":[{"id":"M1","attributes":{"name":"Placed Order","integration":{"name":"Shopify"}}}],"links":{"next":null}}`)
		case "/api/metric-aggregates":
			aggregates.Add(1)
			_, _ = io.WriteString(w, `{"data":{"type":"metric-aggregate","attributes":{
				"dates":["2024-01-01T00:00:00+00:00","2024-02-01T00:00:00+00:00"],
				"data":[{"dimensions":[],"measurements":{"count":[3,4],"sum_value":[10.5,2]}}]}}}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValues_EndToEnd(t *testing.T) {
	dir := isolate(t)

	var aggregates atomic.Int32
	srv := fakeKlaviyo(t, &aggregates)

	path := writeConfig(t, dir, fmt.Sprintf(`
klaviyo:
  api_key: pk_test_1234567890
  base_url: %s/api/
cache:
  enabled: true
  db_path: %s
logging:
  level: error
`, srv.URL, filepath.Join(dir, "cache.db")))
	metricsFile := filepath.Join(dir, "metrics.prom")

	args := []string{
		"-config", path,
		"-metrics-file", metricsFile,
		"values",
		"-metric", "placed_order",
		"-from", "2024-01-01",
		"-to", "2024-03-01",
		"-format", "csv",
	}

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		require.NoError(t, run(context.Background(), args, &out))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "Dates,Count events,Sum Value", lines[1])
		assert.Equal(t, "2024-01-01T00:00:00+00:00,3,10.5", lines[2])
		assert.Equal(t, "2024-02-01T00:00:00+00:00,4,2", lines[3])
	}

	// The second run is served from the response cache.
	assert.Equal(t, int32(1), aggregates.Load())

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `klaviyo_report_reports_total{operation="bigger_interval_values",status="ok"} 1`)
	assert.Contains(t, string(data), `klaviyo_report_cache_lookups_total{result="hit"} 2`)
}

func TestMetrics_EndToEnd(t *testing.T) {
	dir := isolate(t)

	var aggregates atomic.Int32
	srv := fakeKlaviyo(t, &aggregates)
	path := writeConfig(t, dir, fmt.Sprintf("klaviyo:\n  api_key: pk_test\n  base_url: %s/api/\nlogging:\n  level: error\n", srv.URL))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", path, "metrics", "-format", "csv", "-integration", "shopify"}, &out))
	assert.Equal(t, "ID,Name,Integration\nM1,Placed Order,Shopify\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-config", path, "metrics", "-format", "csv", "-integration", "Magento"}, &out))
	assert.Equal(t, "ID,Name,Integration\n", out.String())
}

func TestEvents_UnsupportedMetric(t *testing.T) {
	dir := isolate(t)

	path := writeConfig(t, dir, "klaviyo:\n  api_key: pk_test\nlogging:\n  level: error\n")
	err := run(context.Background(), []string{"-config", path, "events", "-metric", "Placed Order", "-from", "2024-01-01"}, io.Discard)
	assert.Error(t, err)

	err = run(context.Background(), []string{"-config", path, "events", "-metric", "Viewed Page", "-from", "2024-01-01"}, io.Discard)
	assert.True(t, errors.Is(err, catalog.ErrUnknownMetric), "error = %v", err)
}

func TestConfigShow_RedactsAPIKey(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "klaviyo:\n  api_key: pk_live_abcdefgh\n")

	var out bytes.Buffer
	cmd := &configCommand{configPath: path, stdout: &out}
	require.NoError(t, cmd.Execute([]string{"show"}))
	assert.Contains(t, out.String(), "# Source: "+path)
	assert.Contains(t, out.String(), "pk_l************")
	assert.NotContains(t, out.String(), "pk_live_abcdefgh")

	out.Reset()
	require.NoError(t, cmd.Execute([]string{"show", "-format", "json"}))
	assert.Contains(t, out.String(), `"APIKey": "pk_l************"`)
}

func TestConfigPath(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "report:\n  timezone: UTC\n")

	var out bytes.Buffer
	cmd := &configCommand{configPath: path, stdout: &out}
	require.NoError(t, cmd.Execute([]string{"path"}))
	assert.Contains(t, out.String(), "1. "+path+" [found]")
	assert.Contains(t, out.String(), "2. "+config.LocalConfigFile+" [not found]")
	assert.Contains(t, out.String(), "Active configuration: "+path)
}

func TestConfigReset(t *testing.T) {
	dir := isolate(t)
	output := filepath.Join(dir, "nested", "config.yaml")

	var out bytes.Buffer
	cmd := &configCommand{stdout: &out, stdin: strings.NewReader("n\n")}
	require.NoError(t, cmd.Execute([]string{"reset", "-output", output}))
	assert.Contains(t, out.String(), "Configuration reset to defaults")

	require.NoError(t, os.WriteFile(output, []byte("report:\n  timezone: Asia/Tokyo\n"), 0600))

	out.Reset()
	require.NoError(t, cmd.Execute([]string{"reset", "-output", output}))
	assert.Contains(t, out.String(), "Reset cancelled.")

	cfg, err := config.LoadFromFile(output)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", cfg.Report.Timezone)

	out.Reset()
	require.NoError(t, cmd.Execute([]string{"reset", "-output", output, "-force"}))
	cfg, err = config.LoadFromFile(output)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Report.Timezone)
}

func TestConfig_UnknownSubcommand(t *testing.T) {
	cmd := &configCommand{stdout: io.Discard}
	assert.EqualError(t, cmd.Execute([]string{"edit"}), "unknown config subcommand: edit")
}

func TestCachePurge(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "cache.db")
	path := writeConfig(t, dir, fmt.Sprintf("cache:\n  db_path: %s\nlogging:\n  level: error\n", dbPath))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", path, "cache", "purge"}, &out))
	assert.Equal(t, "Purged 0 expired entries from "+dbPath+"\n", out.String())
}
