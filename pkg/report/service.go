package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/0xmhha/klaviyo-report/pkg/aggregator"
	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/logger"
	"github.com/0xmhha/klaviyo-report/pkg/series"
	"github.com/0xmhha/klaviyo-report/pkg/window"
)

// Service runs reports against one Klaviyo account.
type Service struct {
	api     klaviyo.API
	config  Config
	logger  logger.Logger
	metrics *Metrics

	// sleep pauses between paced requests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a report service.
//
// Parameters:
//   - cfg: Service configuration
//   - api: Klaviyo client, usually a *klaviyo.Client, optionally wrapped
//     by klaviyo.WithCache
//   - log: Logger, nil means Noop
//   - metrics: Optional metrics, may be nil
//
// Returns ErrMissingAPIKey if api is nil.
func New(cfg Config, api klaviyo.API, log logger.Logger, metrics *Metrics) (*Service, error) {
	if api == nil {
		return nil, ErrMissingAPIKey
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PacingDelay == 0 {
		cfg.PacingDelay = DefaultPacingDelay
	}
	if log == nil {
		log = logger.Noop()
	}

	return &Service{
		api:     api,
		config:  cfg,
		logger:  log,
		metrics: metrics,
		sleep:   sleepContext,
	}, nil
}

// Location returns the report timezone.
func (s *Service) Location() *time.Location {
	return s.config.Location
}

// Values fetches q in a single aggregate request.
//
// q.Interval must be hour, day, week or month. An empty range returns an
// empty series.
func (s *Service) Values(ctx context.Context, q Query) (out series.Series, err error) {
	log, done := s.begin("values")
	defer func() { done(err) }()

	if !q.Interval.Fetchable() {
		return series.Series{}, fmt.Errorf("%w: %s", ErrUnfetchableInterval, q.Interval)
	}
	return s.fetchWindows(ctx, log, q)
}

// BiggerIntervalValues fetches q for any interval.
//
// Year and lifetime are fetched as months one year at a time, merged into
// one dense series and downsampled. Finer intervals behave like Values
// with the ungrouped row normalized to [""].
func (s *Service) BiggerIntervalValues(ctx context.Context, q Query) (out series.Series, err error) {
	log, done := s.begin("bigger_interval_values")
	defer func() { done(err) }()

	merged, err := s.fetchWindows(ctx, log, q)
	if err != nil {
		return series.Series{}, err
	}
	return series.Downsample(merged, q.Interval, s.config.Location)
}

// fetchWindows fetches every window of q in order and merges them.
func (s *Service) fetchWindows(ctx context.Context, log logger.Logger, q Query) (series.Series, error) {
	windows, err := window.Split(q.From, q.To, q.Interval)
	if err != nil {
		return series.Series{}, err
	}
	if len(windows) == 0 {
		return series.Series{}, nil
	}

	id, err := s.MetricID(ctx, q.Metric, q.Integration, q.Catalog)
	if err != nil {
		return series.Series{}, err
	}

	var acc series.Series
	for i, w := range windows {
		log.Debug("fetching window", "metric", q.Metric, "window", w.String(), "index", i, "windows", len(windows))

		resp, err := s.api.FetchMetricAggregate(ctx, s.aggregateRequest(id, q, w))
		if err != nil {
			return series.Series{}, fmt.Errorf("fetch %s: %w", w, err)
		}

		acc, err = series.Merge(acc, resp.Series())
		if err != nil {
			return series.Series{}, fmt.Errorf("merge %s: %w", w, err)
		}
	}
	return acc, nil
}

func (s *Service) aggregateRequest(id string, q Query, w window.Window) klaviyo.AggregateRequest {
	filters := make([]klaviyo.Filter, 0, len(q.Filters)+2)
	filters = append(filters, q.Filters...)
	filters = append(filters, klaviyo.DatetimeRange(w.From, w.To)...)

	return klaviyo.AggregateRequest{
		MetricID:     id,
		Measurements: q.Metric.Measurements(),
		Interval:     w.Interval,
		By:           q.By,
		Filters:      filters,
		Timezone:     s.config.Location.String(),
	}
}

// MetricID returns the id of metric in entries, or in the account catalog
// when entries is nil.
//
// Returns catalog.ErrMetricNotFound if no entry matches.
func (s *Service) MetricID(ctx context.Context, metric catalog.Metric, integration string, entries []catalog.Entry) (string, error) {
	if entries == nil {
		var err error
		if entries, err = s.catalog(ctx); err != nil {
			return "", err
		}
	}
	return catalog.Resolve(entries, metric.String(), integration)
}

// Catalog lists every metric of the account.
func (s *Service) Catalog(ctx context.Context) (out []catalog.Entry, err error) {
	_, done := s.begin("catalog")
	defer func() { done(err) }()

	return s.catalog(ctx)
}

func (s *Service) catalog(ctx context.Context) ([]catalog.Entry, error) {
	metrics, err := s.api.FetchMetricCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch metric catalog: %w", err)
	}
	return lo.Map(metrics, func(m klaviyo.Metric, _ int) catalog.Entry {
		return m.Entry()
	}), nil
}

// SendEmailFlowActions lists every flow with its SEND_EMAIL actions.
// Flows without one are left out.
func (s *Service) SendEmailFlowActions(ctx context.Context) (out []aggregator.Flow, err error) {
	log, done := s.begin("send_email_flow_actions")
	defer func() { done(err) }()

	resp, err := s.api.FetchFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch flows: %w", err)
	}

	sendEmail := make(map[string]struct{})
	for _, action := range resp.Included {
		if action.Attributes.ActionType == klaviyo.ActionTypeSendEmail {
			sendEmail[action.ID] = struct{}{}
		}
	}

	for _, flow := range resp.Data {
		ids := lo.Filter(flow.ActionIDs(), func(id string, _ int) bool {
			_, ok := sendEmail[id]
			return ok
		})
		if len(ids) == 0 {
			continue
		}
		out = append(out, aggregator.Flow{ID: flow.ID, ActionIDs: ids})
	}

	log.Debug("flow actions resolved", "flows", len(resp.Data), "send_email_flows", len(out))
	return out, nil
}

// FlowMessages fetches the messages of every action of flows, keyed by
// action id. Each action is fetched once, and consecutive fetches are
// separated by the configured pacing delay.
func (s *Service) FlowMessages(ctx context.Context, flows []aggregator.Flow) (out map[string][]klaviyo.FlowMessage, err error) {
	log, done := s.begin("flow_messages")
	defer func() { done(err) }()

	out = make(map[string][]klaviyo.FlowMessage)
	for _, flow := range flows {
		for _, id := range flow.ActionIDs {
			if _, ok := out[id]; ok {
				continue
			}
			if len(out) > 0 {
				log.Debug("pacing", "delay", s.config.PacingDelay)
				if err := s.sleep(ctx, s.config.PacingDelay); err != nil {
					return nil, err
				}
			}

			messages, err := s.api.FetchFlowActionMessages(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("fetch messages of action %s: %w", id, err)
			}
			if messages == nil {
				messages = []klaviyo.FlowMessage{}
			}
			out[id] = messages
		}
	}
	return out, nil
}

// Campaigns lists the legacy campaigns selected by q.
func (s *Service) Campaigns(ctx context.Context, q klaviyo.CampaignQuery) (out []klaviyo.Campaign, err error) {
	_, done := s.begin("campaigns")
	defer func() { done(err) }()

	out, err = s.api.FetchCampaigns(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch campaigns: %w", err)
	}
	return out, nil
}

// Events lists the events of metric in [from, to).
//
// Only e-mail engagement metrics can be listed; the others return
// ErrUnsupportedMetric.
func (s *Service) Events(ctx context.Context, metric catalog.Metric, from, to time.Time, integration string) (out []klaviyo.Event, err error) {
	_, done := s.begin("events")
	defer func() { done(err) }()

	if !metric.HasEvents() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}

	id, err := s.MetricID(ctx, metric, integration, nil)
	if err != nil {
		return nil, err
	}

	filters := []klaviyo.Filter{klaviyo.Equals("metric_id", klaviyo.Quote(id))}
	filters = append(filters, klaviyo.DatetimeRange(from, to)...)

	out, err = s.api.FetchEvents(ctx, klaviyo.EventQuery{
		Filters:         filters,
		EventFields:     []string{"datetime", "id", "profile_id", "event_properties"},
		ProfileFields:   []string{"id", "email", "location"},
		IncludeProfiles: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return out, nil
}

// begin tags a logger with a fresh request id and returns the callback
// that records the outcome of operation.
func (s *Service) begin(operation string) (logger.Logger, func(error)) {
	log := s.logger.With("request_id", uuid.NewString(), "operation", operation)
	start := time.Now()

	return log, func(err error) {
		s.metrics.observeReport(operation, err)
		if err != nil {
			log.Error("report failed", "error", err, "duration", time.Since(start))
			return
		}
		log.Info("report finished", "duration", time.Since(start))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
