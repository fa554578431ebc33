// Package server exposes metric reports over HTTP.
//
// Routes:
//
//	GET /v1/health
//	GET /v1/metrics/:metric/values?from=&to=&interval=&by=&integration=
//	GET /v1/metrics/:metric/table?from=&to=&interval=&by=&integration=&format=
//
// :metric is a metric name in snake_case ("placed_order") or URL-escaped
// ("Placed%20Order"). from and to are RFC 3339 timestamps or dates, read
// in the report timezone.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/display"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/logger"
	"github.com/0xmhha/klaviyo-report/pkg/report"
	"github.com/0xmhha/klaviyo-report/pkg/series"
	"github.com/0xmhha/klaviyo-report/pkg/window"
)

// Reporter runs the reports served over HTTP. *report.Service implements it.
type Reporter interface {
	BiggerIntervalValues(ctx context.Context, q report.Query) (series.Series, error)
	Location() *time.Location
}

// Config contains server configuration.
type Config struct {
	// Listen is the address to serve on.
	//
	// Default: ":8080"
	Listen string

	// Logger receives one line per failed request. Default: Noop.
	Logger logger.Logger
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`

	Message string `json:"message,omitempty"`
}

// Server serves reports from a Reporter.
type Server struct {
	app      *fiber.App
	reporter Reporter
	config   Config
}

// New creates a server with its routes registered.
func New(reporter Reporter, cfg Config) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "klaviyo-report",
			DisableStartupMessage: true,
			JSONEncoder:           sonic.Marshal,
			JSONDecoder:           sonic.Unmarshal,
		}),
		reporter: reporter,
		config:   cfg,
	}

	v1 := s.app.Group("/v1")
	v1.Get("/health", s.health)
	v1.Get("/metrics/:metric/values", s.values)
	v1.Get("/metrics/:metric/table", s.table)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	return s.app.Listen(s.config.Listen)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) values(c *fiber.Ctx) error {
	q, err := s.query(c)
	if err != nil {
		return s.fail(c, err)
	}

	values, err := s.reporter.BiggerIntervalValues(c.UserContext(), q)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(values)
}

func (s *Server) table(c *fiber.Ctx) error {
	format := display.FormatJSON
	if raw := c.Query("format"); raw != "" {
		f, err := display.ParseFormat(raw)
		if err != nil {
			return s.fail(c, err)
		}
		format = f
	}

	q, err := s.query(c)
	if err != nil {
		return s.fail(c, err)
	}

	values, err := s.reporter.BiggerIntervalValues(c.UserContext(), q)
	if err != nil {
		return s.fail(c, err)
	}

	grid, err := report.BuildTables(values, q.From, s.reporter.Location(), q.Interval)
	if err != nil {
		return s.fail(c, err)
	}

	switch format {
	case display.FormatSheets:
		return c.Status(http.StatusOK).JSON(display.Sheets(grid))
	case display.FormatJSON:
		return c.Status(http.StatusOK).JSON(display.Values(grid))
	case display.FormatCSV:
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	default:
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	}
	c.Status(http.StatusOK)
	return display.New(display.Config{Format: format}).FormatGrid(c, grid)
}

// query reads a report query from the path and query string.
func (s *Server) query(c *fiber.Ctx) (report.Query, error) {
	name, err := url.PathUnescape(c.Params("metric"))
	if err != nil {
		return report.Query{}, badRequest("invalid metric name")
	}
	metric, err := catalog.Parse(name)
	if err != nil {
		return report.Query{}, err
	}

	iv, err := interval.Parse(c.Query("interval", string(interval.Month)))
	if err != nil {
		return report.Query{}, err
	}

	loc := s.reporter.Location()
	from, err := interval.ParseTime(c.Query("from"), loc)
	if err != nil {
		return report.Query{}, badRequest("invalid 'from' parameter")
	}
	to, err := interval.ParseTime(c.Query("to"), loc)
	if err != nil {
		return report.Query{}, badRequest("invalid 'to' parameter")
	}

	q := report.Query{
		Metric:      metric,
		From:        from,
		To:          to,
		Interval:    iv,
		Integration: c.Query("integration"),
	}
	if by := c.Query("by"); by != "" {
		q.By = strings.Split(by, ",")
	}
	return q, nil
}

// fail maps err to a status code and writes an ErrorResponse.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.config.Logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
	}

	resp := ErrorResponse{Error: code}
	if status < http.StatusInternalServerError || status == http.StatusBadGateway {
		resp.Message = err.Error()
	}
	return c.Status(status).JSON(resp)
}

func classify(err error) (int, string) {
	var br *requestError
	var apiErr *klaviyo.APIError

	switch {
	case errors.As(err, &br),
		errors.Is(err, interval.ErrUnknownInterval),
		errors.Is(err, window.ErrInvalidRange),
		errors.Is(err, display.ErrUnknownFormat),
		errors.Is(err, report.ErrUnsupportedMetric):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, catalog.ErrUnknownMetric),
		errors.Is(err, catalog.ErrMetricNotFound):
		return http.StatusNotFound, "metric_not_found"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}
