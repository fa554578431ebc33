package klaviyo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"

	"github.com/0xmhha/klaviyo-report/pkg/logger"
	"github.com/0xmhha/klaviyo-report/pkg/series"
)

// Client implements API over HTTP.
type Client struct {
	config Config
	http   *http.Client
	base   *url.URL
	logger logger.Logger
}

var _ API = (*Client)(nil)

// NewClient creates a client.
//
// Parameters:
//   - cfg: Client configuration; APIKey is required
//
// Returns:
//   - Configured Client
//   - ErrMissingAPIKey if cfg.APIKey is empty
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Revision == "" {
		cfg.Revision = DefaultRevision
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = MaxPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config: cfg,
		http:   httpClient,
		base:   base,
		logger: cfg.Logger,
	}, nil
}

// request describes one API call.
type request struct {
	method   string
	endpoint string
	query    url.Values
	body     any

	// name labels the call in Observe; defaults to endpoint.
	name string

	// legacy endpoints authenticate with the api_key query parameter and
	// take no revision header.
	legacy bool
}

// do performs r and decodes the response body into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	query := url.Values{}
	for k, v := range r.query {
		query[k] = v
	}
	if r.legacy {
		query.Set("api_key", c.config.APIKey)
	}

	target := c.base.JoinPath(r.endpoint)
	target.RawQuery = query.Encode()

	var body io.Reader
	if r.body != nil {
		payload, err := sonic.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", r.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", r.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.legacy {
		req.Header.Set("Authorization", "Klaviyo-API-Key "+c.config.APIKey)
		req.Header.Set("revision", c.config.Revision)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if c.config.Observe != nil {
		name := r.name
		if name == "" {
			name = r.endpoint
		}
		c.config.Observe(name, elapsed)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", r.endpoint, err)
	}

	c.logger.Debug("klaviyo request",
		"method", r.method,
		"endpoint", r.endpoint,
		"status", resp.StatusCode,
		"duration", elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", r.endpoint, err)
	}
	return nil
}

// aggregateBody is the metric-aggregates request document.
type aggregateBody struct {
	Data struct {
		Type       string              `json:"type"`
		Attributes aggregateAttributes `json:"attributes"`
	} `json:"data"`
}

type aggregateAttributes struct {
	MetricID     string   `json:"metric_id"`
	Measurements []string `json:"measurements,omitempty"`
	Interval     string   `json:"interval,omitempty"`
	By           []string `json:"by,omitempty"`
	Filter       string   `json:"filter,omitempty"`
	Timezone     string   `json:"timezone,omitempty"`
	Sort         string   `json:"sort,omitempty"`
	ReturnFields []string `json:"return_fields,omitempty"`
	PageCursor   string   `json:"page_cursor,omitempty"`
	PageSize     int      `json:"page_size,omitempty"`
}

// FetchMetricAggregate implements API.FetchMetricAggregate.
func (c *Client) FetchMetricAggregate(ctx context.Context, req AggregateRequest) (*AggregateResponse, error) {
	var body aggregateBody
	body.Data.Type = "metric-aggregate"
	body.Data.Attributes = aggregateAttributes{
		MetricID:     req.MetricID,
		Measurements: lo.Map(req.Measurements, func(m series.Measurement, _ int) string { return string(m) }),
		Interval:     string(req.Interval),
		By:           req.By,
		Filter:       TranslateFilters(req.Filters),
		Timezone:     req.Timezone,
		Sort:         req.SortField,
		ReturnFields: req.ReturnFields,
		PageCursor:   req.PageCursor,
		PageSize:     c.config.PageSize,
	}

	var resp AggregateResponse
	if err := c.do(ctx, request{method: http.MethodPost, endpoint: "metric-aggregates", body: body}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMetricCatalog implements API.FetchMetricCatalog.
func (c *Client) FetchMetricCatalog(ctx context.Context) ([]Metric, error) {
	var metrics []Metric
	err := paginate(ctx, c, request{endpoint: "metrics"}, func(p *page[Metric]) {
		metrics = append(metrics, p.Data...)
	})
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

// FetchFlows implements API.FetchFlows.
func (c *Client) FetchFlows(ctx context.Context) (*FlowsResponse, error) {
	query := url.Values{}
	query.Set("fields[flow-action]", "id,action_type")
	query.Set("fields[flow]", "id")
	query.Set("include", "flow-actions")

	out := &FlowsResponse{}
	err := paginate(ctx, c, request{endpoint: "flows", query: query}, func(p *page[Flow]) {
		out.Data = append(out.Data, p.Data...)
		out.Included = append(out.Included, p.Included...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFlowActionMessages implements API.FetchFlowActionMessages.
func (c *Client) FetchFlowActionMessages(ctx context.Context, actionID string) ([]FlowMessage, error) {
	query := url.Values{}
	query.Set("fields[flow-message]", "id,updated")

	var messages []FlowMessage
	endpoint := "flow-actions/" + actionID + "/flow-messages"
	err := paginate(ctx, c, request{endpoint: endpoint, name: "flow-messages", query: query}, func(p *page[FlowMessage]) {
		messages = append(messages, p.Data...)
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// FetchCampaigns implements API.FetchCampaigns.
//
// The legacy endpoint has no server-side filtering, so every page is read
// and campaigns are filtered on sent_at locally.
func (c *Client) FetchCampaigns(ctx context.Context, q CampaignQuery) ([]Campaign, error) {
	var campaigns []Campaign

	keep := func(list []Campaign) {
		for _, campaign := range list {
			sent := campaign.SentAt.Time
			if sent.IsZero() || sent.Before(q.From) || sent.After(q.To) {
				continue
			}
			if q.SentOnly && campaign.Status != CampaignStatusSent {
				continue
			}
			campaigns = append(campaigns, campaign)
		}
	}

	first, err := c.legacyCampaignPage(ctx, 0)
	if err != nil {
		return nil, err
	}
	keep(first.Data)

	pages := (first.Total + legacyPageSize - 1) / legacyPageSize
	for p := 1; p < pages; p++ {
		current, err := c.legacyCampaignPage(ctx, p)
		if err != nil {
			return nil, err
		}
		keep(current.Data)
	}

	return campaigns, nil
}

func (c *Client) legacyCampaignPage(ctx context.Context, n int) (*legacyPage[Campaign], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(n))
	query.Set("count", strconv.Itoa(legacyPageSize))

	var p legacyPage[Campaign]
	if err := c.do(ctx, request{method: http.MethodGet, endpoint: "v1/campaigns", query: query, legacy: true}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchEvents implements API.FetchEvents.
func (c *Client) FetchEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	query := url.Values{}
	if len(q.EventFields) > 0 {
		query.Set("fields[event]", strings.Join(q.EventFields, ","))
	}
	if len(q.ProfileFields) > 0 {
		query.Set("fields[profile]", strings.Join(q.ProfileFields, ","))
	}
	if q.IncludeProfiles {
		query.Set("include", "profiles")
	}
	if len(q.Filters) > 0 {
		query.Set("filter", TranslateFilters(q.Filters))
	}

	var events []Event
	err := paginate(ctx, c, request{endpoint: "events", query: query}, func(p *page[Event]) {
		events = append(events, p.Data...)
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// paginate GETs base and follows links.next until it runs out.
func paginate[T any](ctx context.Context, c *Client, base request, fn func(*page[T])) error {
	cursor := ""
	for {
		q := url.Values{}
		for k, v := range base.query {
			q[k] = v
		}
		if cursor != "" {
			q.Set("page[cursor]", cursor)
		}

		r := base
		r.method = http.MethodGet
		r.query = q

		var p page[T]
		if err := c.do(ctx, r, &p); err != nil {
			return err
		}
		fn(&p)

		next := CursorFromURL(p.Links.Next)
		if next == "" || next == cursor {
			return nil
		}
		cursor = next
	}
}
