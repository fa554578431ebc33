// Package catalog holds the metric vocabulary and resolves metric names to
// account-specific ids.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/0xmhha/klaviyo-report/pkg/series"
)

// ErrMetricNotFound is returned when no catalog entry matches a metric name.
var ErrMetricNotFound = errors.New("metric not found")

// ErrUnknownMetric is returned when a name is not part of the vocabulary.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric is a reportable metric name.
type Metric string

const (
	ClickedEmail         Metric = "Clicked Email"
	OpenedEmail          Metric = "Opened Email"
	CheckoutCompleted    Metric = "Checkout Completed"
	PlacedOrder          Metric = "Placed Order"
	OrderedProduct       Metric = "Ordered Product"
	BouncedEmail         Metric = "Bounced Email"
	RefundedOrder        Metric = "Refunded Order"
	SubscribedToList     Metric = "Subscribed to List"
	UnsubscribedFromList Metric = "Unsubscribed from List"
	MarkedEmailAsSpam    Metric = "Marked Email as Spam"
	ReceivedEmail        Metric = "Received Email"
)

// All lists every metric in the vocabulary.
var All = []Metric{
	ClickedEmail,
	OpenedEmail,
	CheckoutCompleted,
	PlacedOrder,
	OrderedProduct,
	BouncedEmail,
	RefundedOrder,
	SubscribedToList,
	UnsubscribedFromList,
	MarkedEmailAsSpam,
	ReceivedEmail,
}

// Parse matches name against the vocabulary, ignoring case and the
// snake_case form ("placed_order").
func Parse(name string) (Metric, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
	m, ok := lo.Find(All, func(m Metric) bool {
		return strings.ToLower(string(m)) == normalized
	})
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return m, nil
}

// Measurements returns the measurements requested for m.
func (m Metric) Measurements() []series.Measurement {
	switch m {
	case ClickedEmail, OpenedEmail, BouncedEmail, SubscribedToList,
		UnsubscribedFromList, MarkedEmailAsSpam, ReceivedEmail:
		return []series.Measurement{series.Count, series.Unique}
	case CheckoutCompleted, PlacedOrder, RefundedOrder:
		return []series.Measurement{series.Count, series.SumValue}
	case OrderedProduct:
		return []series.Measurement{series.Count, series.SumValue, series.Unique}
	default:
		return nil
	}
}

// HasEvents reports whether raw events can be listed for m.
func (m Metric) HasEvents() bool {
	switch m {
	case ClickedEmail, UnsubscribedFromList, OpenedEmail, BouncedEmail:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (m Metric) String() string {
	return string(m)
}

// Entry is one metric of an account's catalog.
type Entry struct {
	ID string

	Name string

	// Integration is the name of the integration that emits the metric,
	// e.g. "Klaviyo" or "Shopify".
	Integration string
}

// Resolve returns the id of the first entry named name. A non-empty
// integration also has to match the entry's integration.
func Resolve(entries []Entry, name, integration string) (string, error) {
	entry, ok := lo.Find(entries, func(e Entry) bool {
		return e.Name == name && (integration == "" || e.Integration == integration)
	})
	if !ok {
		if integration != "" {
			return "", fmt.Errorf("%w: %q (integration %q)", ErrMetricNotFound, name, integration)
		}
		return "", fmt.Errorf("%w: %q", ErrMetricNotFound, name)
	}
	return entry.ID, nil
}
