package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/klaviyo-report/pkg/aggregator"
	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/series"
	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// fakeAPI serves canned responses and records what was asked.
type fakeAPI struct {
	metrics    []klaviyo.Metric
	aggregates []series.Series
	flows      *klaviyo.FlowsResponse
	messages   map[string][]klaviyo.FlowMessage
	campaigns  []klaviyo.Campaign
	events     []klaviyo.Event

	catalogCalls int
	requests     []klaviyo.AggregateRequest
	messageCalls []string
	eventQueries []klaviyo.EventQuery
}

func (f *fakeAPI) FetchMetricAggregate(_ context.Context, req klaviyo.AggregateRequest) (*klaviyo.AggregateResponse, error) {
	f.requests = append(f.requests, req)
	resp := &klaviyo.AggregateResponse{}
	if n := len(f.requests) - 1; n < len(f.aggregates) {
		resp.Data.Attributes = f.aggregates[n]
	}
	return resp, nil
}

func (f *fakeAPI) FetchMetricCatalog(context.Context) ([]klaviyo.Metric, error) {
	f.catalogCalls++
	return f.metrics, nil
}

func (f *fakeAPI) FetchFlows(context.Context) (*klaviyo.FlowsResponse, error) {
	return f.flows, nil
}

func (f *fakeAPI) FetchFlowActionMessages(_ context.Context, id string) ([]klaviyo.FlowMessage, error) {
	f.messageCalls = append(f.messageCalls, id)
	return f.messages[id], nil
}

func (f *fakeAPI) FetchCampaigns(context.Context, klaviyo.CampaignQuery) ([]klaviyo.Campaign, error) {
	return f.campaigns, nil
}

func (f *fakeAPI) FetchEvents(_ context.Context, q klaviyo.EventQuery) ([]klaviyo.Event, error) {
	f.eventQueries = append(f.eventQueries, q)
	return f.events, nil
}

func metric(id, name, integration string) klaviyo.Metric {
	var m klaviyo.Metric
	m.ID = id
	m.Attributes.Name = name
	m.Attributes.Integration.Name = integration
	return m
}

func newTestService(t *testing.T, api klaviyo.API) *Service {
	t.Helper()
	svc, err := New(Config{}, api, nil, nil)
	require.NoError(t, err)
	return svc
}

func counts(values ...float64) map[series.Measurement][]float64 {
	return map[series.Measurement][]float64{series.Count: values}
}

func TestNew_MissingAPI(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.True(t, errors.Is(err, klaviyo.ErrMissingAPIKey))
}

func TestNew_Defaults(t *testing.T) {
	svc := newTestService(t, &fakeAPI{})
	assert.Equal(t, time.UTC, svc.Location())
	assert.Equal(t, DefaultPacingDelay, svc.config.PacingDelay)
}

func TestValues(t *testing.T) {
	api := &fakeAPI{
		metrics: []klaviyo.Metric{metric("M1", "Placed Order", "Shopify")},
		aggregates: []series.Series{{
			Dates: []string{"2024-01-01T00:00:00+00:00", "2024-01-02T00:00:00+00:00"},
			Rows:  []series.Row{{Dimensions: []string{}, Measurements: counts(3, 4)}},
		}},
	}
	svc := newTestService(t, api)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	got, err := svc.Values(context.Background(), Query{
		Metric:   catalog.PlacedOrder,
		From:     from,
		To:       to,
		Interval: interval.Day,
		By:       []string{"$message"},
		Filters:  []klaviyo.Filter{klaviyo.Equals("$flow", klaviyo.Quote("F1"))},
	})
	require.NoError(t, err)

	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{""}, got.Rows[0].Dimensions)
	assert.Equal(t, []float64{3, 4}, got.Rows[0].Measurements[series.Count])

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "M1", req.MetricID)
	assert.Equal(t, catalog.PlacedOrder.Measurements(), req.Measurements)
	assert.Equal(t, interval.Day, req.Interval)
	assert.Equal(t, []string{"$message"}, req.By)
	assert.Equal(t, "UTC", req.Timezone)
	assert.Equal(t,
		`equals($flow,"F1"),greater-or-equal(datetime,2024-01-01T00:00:00Z),less-than(datetime,2024-01-03T00:00:00Z)`,
		klaviyo.TranslateFilters(req.Filters))
}

func TestValues_Unfetchable(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	_, err := svc.Values(context.Background(), Query{
		Metric:   catalog.PlacedOrder,
		From:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval: interval.Year,
	})
	assert.True(t, errors.Is(err, ErrUnfetchableInterval))
	assert.Empty(t, api.requests)
}

func TestValues_EmptyRange(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := svc.Values(context.Background(), Query{Metric: catalog.PlacedOrder, From: ts, To: ts, Interval: interval.Day})
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Zero(t, api.catalogCalls)
	assert.Empty(t, api.requests)
}

func TestValues_MetricNotFound(t *testing.T) {
	api := &fakeAPI{metrics: []klaviyo.Metric{metric("M1", "Placed Order", "Shopify")}}
	svc := newTestService(t, api)

	_, err := svc.Values(context.Background(), Query{
		Metric:   catalog.OpenedEmail,
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Interval: interval.Day,
	})
	assert.True(t, errors.Is(err, catalog.ErrMetricNotFound))
	assert.Empty(t, api.requests)
}

func TestBiggerIntervalValues_Yearly(t *testing.T) {
	api := &fakeAPI{
		metrics: []klaviyo.Metric{metric("M1", "Placed Order", "Shopify")},
		aggregates: []series.Series{
			{
				Dates: []string{"2022-11-01T00:00:00+00:00", "2022-12-01T00:00:00+00:00", "2023-01-01T00:00:00+00:00"},
				Rows:  []series.Row{{Dimensions: []string{}, Measurements: counts(1, 2, 3)}},
			},
			{
				Dates: []string{"2023-11-01T00:00:00+00:00", "2023-12-01T00:00:00+00:00"},
				Rows: []series.Row{
					{Dimensions: []string{}, Measurements: counts(4, 5)},
					{Dimensions: []string{"email"}, Measurements: counts(1, 1)},
				},
			},
		},
	}
	svc := newTestService(t, api)

	from := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := svc.BiggerIntervalValues(context.Background(), Query{
		Metric:   catalog.PlacedOrder,
		From:     from,
		To:       to,
		Interval: interval.Year,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2022-01-01T00:00:00+00:00", "2023-01-01T00:00:00+00:00"}, got.Dates)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []string{""}, got.Rows[0].Dimensions)
	assert.Equal(t, []float64{3, 12}, got.Rows[0].Measurements[series.Count])
	assert.Equal(t, []string{"email"}, got.Rows[1].Dimensions)
	assert.Equal(t, []float64{0, 2}, got.Rows[1].Measurements[series.Count])

	require.Len(t, api.requests, 2)
	assert.Equal(t, 1, api.catalogCalls)
	for _, req := range api.requests {
		assert.Equal(t, interval.Month, req.Interval)
	}
	assert.Equal(t,
		`greater-or-equal(datetime,2022-03-01T00:00:00Z),less-than(datetime,2023-02-28T23:59:59Z)`,
		klaviyo.TranslateFilters(api.requests[0].Filters))
	assert.Equal(t,
		`greater-or-equal(datetime,2023-03-01T00:00:00Z),less-than(datetime,2024-01-01T00:00:00Z)`,
		klaviyo.TranslateFilters(api.requests[1].Filters))
}

func TestBiggerIntervalValues_Lifetime(t *testing.T) {
	api := &fakeAPI{
		aggregates: []series.Series{{
			Dates: []string{"2024-01-01T00:00:00+00:00", "2024-02-01T00:00:00+00:00"},
			Rows: []series.Row{{
				Dimensions: []string{},
				Measurements: map[series.Measurement][]float64{
					series.Count:    {1, 2},
					series.SumValue: {0.1, 0.2},
				},
			}},
		}},
	}
	svc := newTestService(t, api)

	got, err := svc.BiggerIntervalValues(context.Background(), Query{
		Metric:   catalog.PlacedOrder,
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Interval: interval.Lifetime,
		Catalog:  []catalog.Entry{{ID: "M9", Name: "Placed Order"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{interval.LifetimeBucket}, got.Dates)
	assert.Equal(t, []float64{3}, got.Rows[0].Measurements[series.Count])
	assert.Equal(t, []float64{0.3}, got.Rows[0].Measurements[series.SumValue])
	assert.Zero(t, api.catalogCalls)
	assert.Equal(t, "M9", api.requests[0].MetricID)
}

func TestBiggerIntervalValues_DataShape(t *testing.T) {
	api := &fakeAPI{
		aggregates: []series.Series{{
			Dates: []string{"2024-01-01T00:00:00+00:00"},
			Rows:  []series.Row{{Dimensions: []string{}, Measurements: counts(1, 2)}},
		}},
	}
	svc := newTestService(t, api)

	_, err := svc.BiggerIntervalValues(context.Background(), Query{
		Metric:   catalog.PlacedOrder,
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Interval: interval.Year,
		Catalog:  []catalog.Entry{{ID: "M1", Name: "Placed Order"}},
	})
	assert.True(t, errors.Is(err, series.ErrDataShape))
}

func TestMetricID(t *testing.T) {
	api := &fakeAPI{metrics: []klaviyo.Metric{
		metric("K1", "Placed Order", "Klaviyo"),
		metric("S1", "Placed Order", "Shopify"),
	}}
	svc := newTestService(t, api)
	ctx := context.Background()

	id, err := svc.MetricID(ctx, catalog.PlacedOrder, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "K1", id)

	id, err = svc.MetricID(ctx, catalog.PlacedOrder, "Shopify", nil)
	require.NoError(t, err)
	assert.Equal(t, "S1", id)
	assert.Equal(t, 2, api.catalogCalls)

	id, err = svc.MetricID(ctx, catalog.PlacedOrder, "", []catalog.Entry{{ID: "X", Name: "Placed Order"}})
	require.NoError(t, err)
	assert.Equal(t, "X", id)
	assert.Equal(t, 2, api.catalogCalls)

	_, err = svc.MetricID(ctx, catalog.PlacedOrder, "Magento", nil)
	assert.True(t, errors.Is(err, catalog.ErrMetricNotFound))
}

func TestCatalog(t *testing.T) {
	api := &fakeAPI{metrics: []klaviyo.Metric{metric("K1", "Placed Order", "Klaviyo")}}
	svc := newTestService(t, api)

	entries, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []catalog.Entry{{ID: "K1", Name: "Placed Order", Integration: "Klaviyo"}}, entries)
}

func flowAction(id, actionType string) klaviyo.FlowAction {
	var a klaviyo.FlowAction
	a.Type = "flow-action"
	a.ID = id
	a.Attributes.ActionType = actionType
	return a
}

func flow(id string, actionIDs ...string) klaviyo.Flow {
	var f klaviyo.Flow
	f.ID = id
	for _, a := range actionIDs {
		f.Relationships.FlowActions.Data = append(f.Relationships.FlowActions.Data, klaviyo.ResourceRef{Type: "flow-action", ID: a})
	}
	return f
}

func TestSendEmailFlowActions(t *testing.T) {
	api := &fakeAPI{flows: &klaviyo.FlowsResponse{
		Data: []klaviyo.Flow{
			flow("f1", "a1", "a2"),
			flow("f2", "a3"),
			flow("f3", "a3", "a2"),
		},
		Included: []klaviyo.FlowAction{
			flowAction("a1", klaviyo.ActionTypeSendEmail),
			flowAction("a2", klaviyo.ActionTypeSendEmail),
			flowAction("a3", "TIME_DELAY"),
		},
	}}
	svc := newTestService(t, api)

	got, err := svc.SendEmailFlowActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []aggregator.Flow{
		{ID: "f1", ActionIDs: []string{"a1", "a2"}},
		{ID: "f3", ActionIDs: []string{"a2"}},
	}, got)
}

func message(id string, updated time.Time) klaviyo.FlowMessage {
	var m klaviyo.FlowMessage
	m.ID = id
	m.Attributes.Updated = klaviyo.Timestamp{Time: updated}
	return m
}

func TestFlowMessages_PacesDistinctActions(t *testing.T) {
	api := &fakeAPI{messages: map[string][]klaviyo.FlowMessage{
		"a1": {message("m1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
	}}
	svc := newTestService(t, api)

	var pauses []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	got, err := svc.FlowMessages(context.Background(), []aggregator.Flow{
		{ID: "f1", ActionIDs: []string{"a1", "a2"}},
		{ID: "f2", ActionIDs: []string{"a3", "a1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2", "a3"}, api.messageCalls)
	assert.Equal(t, []time.Duration{DefaultPacingDelay, DefaultPacingDelay}, pauses)
	assert.Len(t, got, 3)
	assert.Len(t, got["a1"], 1)
	assert.NotNil(t, got["a2"])
}

func TestFlowMessages_Canceled(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FlowMessages(ctx, []aggregator.Flow{{ID: "f1", ActionIDs: []string{"a1", "a2"}}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"a1"}, api.messageCalls)
}

// TestProcessFlowMessages_RoundTrip runs ten messages through aggregation,
// formatting and pivoting. Events exactly at From and To are counted, the
// rest outside the range are not.
func TestProcessFlowMessages_RoundTrip(t *testing.T) {
	at := func(day, hour, minute, second int) time.Time {
		return time.Date(2024, 1, day, hour, minute, second, 0, time.UTC)
	}

	flows := []aggregator.Flow{
		{ID: "f1", ActionIDs: []string{"a1", "a2"}},
		{ID: "f2", ActionIDs: []string{"a2"}},
	}
	messages := map[string][]klaviyo.FlowMessage{
		"a1": {
			message("m1", at(1, 0, 0, 0)),
			message("m2", at(1, 12, 0, 0)),
			message("m3", at(2, 9, 0, 0)),
			message("m4", at(3, 23, 59, 59)),
			message("m5", at(4, 0, 0, 0)),
			message("m6", time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)),
		},
		"a2": {
			message("m7", at(1, 5, 0, 0)),
			message("m8", at(3, 1, 0, 0)),
			message("m9", at(3, 2, 0, 0)),
			message("m10", at(5, 0, 0, 0)),
		},
	}

	r := Range{
		From:     at(1, 0, 0, 0),
		To:       at(3, 23, 59, 59),
		Interval: interval.Day,
		Location: time.UTC,
	}

	result, err := ProcessFlowMessages(flows, messages, r)
	require.NoError(t, err)

	dates := []string{"2024-01-01T00:00:00+00:00", "2024-01-02T00:00:00+00:00", "2024-01-03T00:00:00+00:00"}
	assert.Equal(t, dates, result.Total.Dates)
	assert.Equal(t, []float64{3, 1, 3}, result.Total.Rows[0].Measurements[series.Count])

	grid, err := BuildTables(result.Partitioned, r.From, time.UTC, interval.Day)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Dimensions", "f1", "f2"},
		{"Dates", "Count events", "Count events"},
		{dates[0], "3", "1"},
		{dates[1], "1", "0"},
		{dates[2], "3", "2"},
	}, grid.Strings())

	joined := JoinTables([]table.Labeled{
		table.WithHeader(mustGrid(t, result.Total, r), "Total"),
		table.WithHeader(grid, "Flows"),
	})
	assert.Equal(t, []string{"Dimensions", "Total", "Flows", ""}, joined.Strings()[0])
	assert.Equal(t, []string{dates[2], "3", "3", "2"}, joined.Strings()[4])
	assert.Equal(t, table.Number, joined[4][3].Kind)
}

func mustGrid(t *testing.T, s series.Series, r Range) table.Grid {
	t.Helper()
	g, err := BuildTables(s, r.From, r.Location, r.Interval)
	require.NoError(t, err)
	return g
}

func TestCampaignMessages(t *testing.T) {
	sent := func(id string, at time.Time, recipients float64) klaviyo.Campaign {
		return klaviyo.Campaign{ID: id, SentAt: klaviyo.Timestamp{Time: at}, NumRecipients: recipients}
	}

	result, err := CampaignMessages([]klaviyo.Campaign{
		sent("c1", time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), 100),
		sent("c2", time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC), 250),
		sent("c3", time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC), 50),
	}, Range{
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Interval: interval.Month,
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 300, 0}, result.Total.Rows[0].Measurements[series.Count])
	require.Len(t, result.Partitioned.Rows, 3)
	assert.Equal(t, []string{"c2"}, result.Partitioned.Rows[1].Dimensions)
	assert.Equal(t, []float64{0, 250, 0}, result.Partitioned.Rows[1].Measurements[series.Count])
}

func TestProcessFlowMessages_Lifetime(t *testing.T) {
	_, err := ProcessFlowMessages(nil, nil, Range{Interval: interval.Lifetime})
	assert.True(t, errors.Is(err, aggregator.ErrUnsupportedInterval))
}

func TestEvents(t *testing.T) {
	api := &fakeAPI{metrics: []klaviyo.Metric{metric("M2", "Clicked Email", "Klaviyo")}}
	svc := newTestService(t, api)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Events(context.Background(), catalog.ClickedEmail, from, to, "")
	require.NoError(t, err)

	require.Len(t, api.eventQueries, 1)
	q := api.eventQueries[0]
	assert.Equal(t,
		`equals(metric_id,"M2"),greater-or-equal(datetime,2024-01-01T00:00:00Z),less-than(datetime,2024-02-01T00:00:00Z)`,
		klaviyo.TranslateFilters(q.Filters))
	assert.Equal(t, []string{"datetime", "id", "profile_id", "event_properties"}, q.EventFields)
	assert.Equal(t, []string{"id", "email", "location"}, q.ProfileFields)
}

func TestEvents_UnsupportedMetric(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	_, err := svc.Events(context.Background(), catalog.PlacedOrder, time.Now(), time.Now(), "")
	assert.True(t, errors.Is(err, ErrUnsupportedMetric))
	assert.Zero(t, api.catalogCalls)
}

func TestCollapseGroups(t *testing.T) {
	got := CollapseGroups(series.Series{
		Dates: []string{"2024-01-01T00:00:00+00:00"},
		Rows: []series.Row{
			{Dimensions: []string{"a"}, Measurements: counts(2)},
			{Dimensions: []string{"b"}, Measurements: counts(5)},
		},
	})
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{""}, got.Rows[0].Dimensions)
	assert.Equal(t, []float64{7}, got.Rows[0].Measurements[series.Count])
}
