// Package klaviyo is a client for the parts of the Klaviyo API used by
// reports: metric aggregates, the metric catalog, flows and their messages,
// legacy campaigns and events.
//
// Example usage:
//
//	client, err := klaviyo.NewClient(klaviyo.Config{APIKey: key})
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.FetchMetricAggregate(ctx, klaviyo.AggregateRequest{
//	    MetricID:     id,
//	    Measurements: []series.Measurement{series.Count},
//	    Interval:     interval.Day,
//	    Filters:      klaviyo.DatetimeRange(from, to),
//	    Timezone:     "UTC",
//	})
package klaviyo

import (
	"context"
	"net/http"
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/catalog"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/logger"
	"github.com/0xmhha/klaviyo-report/pkg/series"
)

// API is the set of Klaviyo calls reports are built from.
type API interface {
	// FetchMetricAggregate runs one metric-aggregates query.
	FetchMetricAggregate(ctx context.Context, req AggregateRequest) (*AggregateResponse, error)

	// FetchMetricCatalog lists every metric of the account.
	FetchMetricCatalog(ctx context.Context) ([]Metric, error)

	// FetchFlows lists every flow with its actions included.
	FetchFlows(ctx context.Context) (*FlowsResponse, error)

	// FetchFlowActionMessages lists the messages of one flow action.
	FetchFlowActionMessages(ctx context.Context, actionID string) ([]FlowMessage, error)

	// FetchCampaigns lists legacy campaigns sent inside the query range.
	FetchCampaigns(ctx context.Context, q CampaignQuery) ([]Campaign, error)

	// FetchEvents lists every event matching q.
	FetchEvents(ctx context.Context, q EventQuery) ([]Event, error)
}

// Config contains client configuration.
type Config struct {
	// APIKey is the private API key. Required.
	APIKey string

	// BaseURL is the API root.
	//
	// Default: https://a.klaviyo.com/api/
	BaseURL string

	// Revision is sent as the revision header on revisioned endpoints.
	//
	// Default: 2023-01-24
	Revision string

	// Timeout bounds each HTTP request. Ignored when HTTPClient is set.
	//
	// Default: 60s
	Timeout time.Duration

	// PageSize is the metric-aggregates page size (max 10000).
	//
	// Default: 10000
	PageSize int

	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client

	// Logger receives one debug line per request. Default: Noop.
	Logger logger.Logger

	// Observe, if set, is called after every request with the endpoint
	// name and its duration.
	Observe func(endpoint string, d time.Duration)
}

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://a.klaviyo.com/api/"

	// DefaultRevision is the API revision the client speaks.
	DefaultRevision = "2023-01-24"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 60 * time.Second

	// MaxPageSize is the largest metric-aggregates page.
	MaxPageSize = 10000

	legacyPageSize = 100
)

// AggregateRequest is one metric-aggregates query.
type AggregateRequest struct {
	MetricID string `json:"metric_id"`

	Measurements []series.Measurement `json:"measurements,omitempty"`

	// Interval must be fetchable: hour, day, week or month.
	Interval interval.Interval `json:"interval,omitempty"`

	// By lists the dimensions to group by.
	By []string `json:"by,omitempty"`

	Filters []Filter `json:"filters,omitempty"`

	// Timezone is an IANA zone name.
	Timezone string `json:"timezone,omitempty"`

	// SortField sorts ascending, or descending when prefixed with "-".
	SortField string `json:"sort,omitempty"`

	// ReturnFields restricts the returned attributes.
	ReturnFields []string `json:"return_fields,omitempty"`

	// PageCursor continues a previous query.
	PageCursor string `json:"page_cursor,omitempty"`
}

// AggregateResponse is the body of a metric-aggregates response.
type AggregateResponse struct {
	Data struct {
		Type string `json:"type"`

		ID string `json:"id,omitempty"`

		Attributes series.Series `json:"attributes"`
	} `json:"data"`
}

// Series returns the aggregate as a series.
func (r *AggregateResponse) Series() series.Series {
	if r == nil {
		return series.Series{}
	}
	return r.Data.Attributes
}

// Metric is one entry of the metric catalog.
type Metric struct {
	ID string `json:"id"`

	Attributes struct {
		Name string `json:"name"`

		Integration struct {
			Name string `json:"name"`
		} `json:"integration"`
	} `json:"attributes"`
}

// Entry converts m to a catalog entry.
func (m Metric) Entry() catalog.Entry {
	return catalog.Entry{
		ID:          m.ID,
		Name:        m.Attributes.Name,
		Integration: m.Attributes.Integration.Name,
	}
}

// FlowsResponse is the merged body of every flows page.
type FlowsResponse struct {
	Data []Flow `json:"data"`

	Included []FlowAction `json:"included"`
}

// Flow is a flow resource.
type Flow struct {
	ID string `json:"id"`

	Relationships struct {
		FlowActions struct {
			Data []ResourceRef `json:"data"`
		} `json:"flow-actions"`
	} `json:"relationships"`
}

// ActionIDs returns the ids of f's related actions.
func (f Flow) ActionIDs() []string {
	ids := make([]string, 0, len(f.Relationships.FlowActions.Data))
	for _, ref := range f.Relationships.FlowActions.Data {
		ids = append(ids, ref.ID)
	}
	return ids
}

// ResourceRef is a relationship pointer.
type ResourceRef struct {
	Type string `json:"type"`

	ID string `json:"id"`
}

// FlowAction is an included flow-action resource.
type FlowAction struct {
	Type string `json:"type"`

	ID string `json:"id"`

	Attributes struct {
		ActionType string `json:"action_type"`
	} `json:"attributes"`
}

// ActionTypeSendEmail is the action type of e-mail sending steps.
const ActionTypeSendEmail = "SEND_EMAIL"

// FlowMessage is a message of a flow action.
type FlowMessage struct {
	ID string `json:"id"`

	Attributes struct {
		Updated Timestamp `json:"updated"`
	} `json:"attributes"`
}

// CampaignQuery selects legacy campaigns.
type CampaignQuery struct {
	// From and To bound sent_at, both inclusive.
	From time.Time

	To time.Time

	// SentOnly drops campaigns whose status is not "sent".
	SentOnly bool
}

// Campaign is a legacy (v1) campaign.
type Campaign struct {
	ID string `json:"id"`

	Name string `json:"name"`

	Status string `json:"status"`

	SentAt Timestamp `json:"sent_at"`

	NumRecipients float64 `json:"num_recipients"`
}

// CampaignStatusSent is the status of a sent campaign.
const CampaignStatusSent = "sent"

// EventQuery selects events.
type EventQuery struct {
	Filters []Filter

	// EventFields and ProfileFields restrict the returned attributes.
	EventFields []string

	ProfileFields []string

	// IncludeProfiles adds the related profiles to each page.
	IncludeProfiles bool
}

// Event is an event resource.
type Event struct {
	ID string `json:"id"`

	Attributes struct {
		Datetime Timestamp `json:"datetime"`

		ProfileID string `json:"profile_id,omitempty"`

		EventProperties map[string]any `json:"event_properties,omitempty"`
	} `json:"attributes"`
}

// links is the pagination block of JSON:API responses.
type links struct {
	Next string `json:"next"`
}

// page is one page of a JSON:API list.
type page[T any] struct {
	Data []T `json:"data"`

	Included []FlowAction `json:"included,omitempty"`

	Links links `json:"links"`
}

// legacyPage is one page of a v1 list.
type legacyPage[T any] struct {
	Page int `json:"page"`

	Total int `json:"total"`

	Data []T `json:"data"`
}
