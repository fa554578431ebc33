package klaviyo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/series"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "pk_test", BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	return client
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Config{APIKey: "  "})
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestFetchMetricAggregate(t *testing.T) {
	var observed []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/metric-aggregates", r.URL.Path)
		assert.Equal(t, "Klaviyo-API-Key pk_test", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultRevision, r.Header.Get("revision"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.URL.Query().Get("api_key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var body aggregateBody
		require.NoError(t, sonic.Unmarshal(raw, &body))
		assert.Equal(t, "metric-aggregate", body.Data.Type)
		assert.Equal(t, "M1", body.Data.Attributes.MetricID)
		assert.Equal(t, []string{"count", "unique"}, body.Data.Attributes.Measurements)
		assert.Equal(t, "day", body.Data.Attributes.Interval)
		assert.Equal(t, MaxPageSize, body.Data.Attributes.PageSize)
		assert.Equal(t,
			"greater-or-equal(datetime,2024-01-01T00:00:00Z),less-than(datetime,2024-01-03T00:00:00Z)",
			body.Data.Attributes.Filter)

		_, _ = io.WriteString(w, `{"data":{"type":"metric-aggregate","attributes":{
			"dates":["2024-01-01T00:00:00+00:00","2024-01-02T00:00:00+00:00"],
			"data":[{"dimensions":[],"measurements":{"count":[3,4],"unique":[1,2]}}]}}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:  "pk_test",
		BaseURL: srv.URL + "/api/",
		Observe: func(endpoint string, _ time.Duration) { observed = append(observed, endpoint) },
	})
	require.NoError(t, err)

	resp, err := client.FetchMetricAggregate(context.Background(), AggregateRequest{
		MetricID:     "M1",
		Measurements: []series.Measurement{series.Count, series.Unique},
		Interval:     interval.Day,
		Filters: DatetimeRange(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	s := resp.Series()
	assert.Len(t, s.Dates, 2)
	require.Len(t, s.Rows, 1)
	assert.Empty(t, s.Rows[0].Dimensions)
	assert.Equal(t, []float64{3, 4}, s.Rows[0].Measurements[series.Count])
	assert.Equal(t, []string{"metric-aggregates"}, observed)
}

func TestFetchMetricCatalog_Paginates(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/metrics", r.URL.Path)

		switch r.URL.Query().Get("page[cursor]") {
		case "":
			_, _ = io.WriteString(w, `{"data":[{"id":"a","attributes":{"name":"Placed Order","integration":{"name":"Shopify"}}}],
				"links":{"next":"https://a.klaviyo.com/api/metrics/?page%5Bcursor%5D=c2"}}`)
		case "c2":
			_, _ = io.WriteString(w, `{"data":[{"id":"b","attributes":{"name":"Opened Email","integration":{"name":"Klaviyo"}}}],
				"links":{"next":null}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("page[cursor]"))
		}
	})

	metrics, err := client.FetchMetricCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, metrics, 2)
	assert.Equal(t, "Shopify", metrics[0].Entry().Integration)
	assert.Equal(t, "b", metrics[1].Entry().ID)
}

func TestFetchFlows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "flow-actions", r.URL.Query().Get("include"))
		_, _ = io.WriteString(w, `{
			"data":[{"id":"F1","relationships":{"flow-actions":{"data":[{"type":"flow-action","id":"A1"},{"type":"flow-action","id":"A2"}]}}}],
			"included":[{"type":"flow-action","id":"A1","attributes":{"action_type":"SEND_EMAIL"}},
			            {"type":"flow-action","id":"A2","attributes":{"action_type":"TIME_DELAY"}}],
			"links":{"next":null}}`)
	})

	resp, err := client.FetchFlows(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, []string{"A1", "A2"}, resp.Data[0].ActionIDs())
	require.Len(t, resp.Included, 2)
	assert.Equal(t, ActionTypeSendEmail, resp.Included[0].Attributes.ActionType)
}

func TestFetchFlowActionMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/flow-actions/A1/flow-messages", r.URL.Path)
		assert.Equal(t, "id,updated", r.URL.Query().Get("fields[flow-message]"))
		_, _ = io.WriteString(w, `{"data":[{"id":"m1","attributes":{"updated":"2024-01-02T10:00:00+00:00"}}],"links":{}}`)
	})

	messages, err := client.FetchFlowActionMessages(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Attributes.Updated.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
}

func TestFetchCampaigns_Legacy(t *testing.T) {
	pages := map[string]string{
		"0": `{"page":0,"total":150,"data":[
			{"id":"c1","status":"sent","sent_at":"2024-01-02 09:00:00","num_recipients":100},
			{"id":"c2","status":"draft","sent_at":null,"num_recipients":0},
			{"id":"c3","status":"cancelled","sent_at":"2024-01-03T09:00:00+00:00","num_recipients":7}]}`,
		"1": `{"page":1,"total":150,"data":[
			{"id":"c4","status":"sent","sent_at":"2023-12-31 23:59:59","num_recipients":5},
			{"id":"c5","status":"sent","sent_at":"2024-01-31 00:00:00","num_recipients":9}]}`,
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/campaigns", r.URL.Path)
		assert.Equal(t, "pk_test", r.URL.Query().Get("api_key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("revision"))
		assert.Equal(t, "100", r.URL.Query().Get("count"))
		_, _ = io.WriteString(w, pages[r.URL.Query().Get("page")])
	})

	q := CampaignQuery{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	all, err := client.FetchCampaigns(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c5"}, campaignIDs(all))

	q.SentOnly = true
	sent, err := client.FetchCampaigns(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c5"}, campaignIDs(sent))
	assert.Equal(t, 100.0, sent[0].NumRecipients)
}

func campaignIDs(campaigns []Campaign) []string {
	ids := make([]string, len(campaigns))
	for i, c := range campaigns {
		ids[i] = c.ID
	}
	return ids
}

func TestFetchEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, `equals(metric_id,"M1")`, q.Get("filter"))
		assert.Equal(t, "datetime,id", q.Get("fields[event]"))
		assert.Equal(t, "profiles", q.Get("include"))
		_, _ = io.WriteString(w, `{"data":[{"id":"e1","attributes":{"datetime":"2024-01-02T10:00:00+00:00","event_properties":{"$value":12.5}}}]}`)
	})

	events, err := client.FetchEvents(context.Background(), EventQuery{
		Filters:         []Filter{Equals("metric_id", Quote("M1"))},
		EventFields:     []string{"datetime", "id"},
		IncludeProfiles: true,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 12.5, events[0].Attributes.EventProperties["$value"])
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"detail":"bad filter"},{"detail":"bad interval"}]}`)
	})

	_, err := client.FetchMetricAggregate(context.Background(), AggregateRequest{MetricID: "M1"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad filter; bad interval", apiErr.Detail)
	assert.Contains(t, err.Error(), "status 400")
}

func TestNewAPIError_Fallbacks(t *testing.T) {
	assert.Equal(t, "Invalid key", newAPIError(403, []byte(`{"status":403,"message":"Invalid key"}`)).Detail)
	assert.Equal(t, "gateway timeout", newAPIError(504, []byte("gateway timeout\n")).Detail)
}

func TestTranslateFilters(t *testing.T) {
	filters := []Filter{
		{Operators: []string{"any", "equals"}, Field: "campaign_id", Value: `["a","b"]`},
		Equals("metric_id", Quote("M1")),
		{Field: "status", Value: Quote("sent")},
	}
	assert.Equal(t,
		`any(equals(campaign_id,["a","b"])),equals(metric_id,"M1"),equals(status,"sent")`,
		TranslateFilters(filters))
	assert.Equal(t, "", TranslateFilters(nil))
}

func TestCursorFromURL(t *testing.T) {
	assert.Equal(t, "abc", CursorFromURL("https://a.klaviyo.com/api/events/?page%5Bcursor%5D=abc&fields=x"))
	assert.Equal(t, "", CursorFromURL("https://a.klaviyo.com/api/events/"))
	assert.Equal(t, "", CursorFromURL("null"))
	assert.Equal(t, "", CursorFromURL(""))
}

func TestTimestamp(t *testing.T) {
	var v struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
		C Timestamp `json:"c"`
	}
	require.NoError(t, sonic.Unmarshal([]byte(`{"a":"2024-01-02 03:04:05","b":"2024-01-02T03:04:05-05:00","c":null}`), &v))

	assert.True(t, v.A.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, v.B.Equal(time.Date(2024, 1, 2, 8, 4, 5, 0, time.UTC)))
	assert.True(t, v.C.IsZero())

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}
