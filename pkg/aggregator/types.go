// Package aggregator buckets timestamped events into interval-keyed counters.
//
// Events are supplied as sources: a group (a flow, a campaign) referencing an
// underlying entity (a flow action, a send) and that entity's events. Every
// occurrence counts towards its group, while the ungrouped total counts each
// entity only once, however many groups reference it.
//
// Example usage:
//
//	agg := aggregator.New(aggregator.Config{
//	    From:     from,
//	    To:       to,
//	    Interval: interval.Day,
//	    Location: loc,
//	})
//
//	counter, err := agg.Aggregate(aggregator.FlowSources(flows, messages))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(counter.Total.Get("2024-01-01T00:00:00+00:00"))
package aggregator

import (
	"time"

	"github.com/0xmhha/klaviyo-report/pkg/interval"
)

// Aggregator computes grouped counters from event sources.
type Aggregator interface {
	// Aggregate buckets every in-range event of sources.
	//
	// Parameters:
	//   - sources: Sources in the order their groups should appear
	//
	// Returns a fresh Counter. The entity seen-set is scoped to this call.
	Aggregate(sources []Source) (*Counter, error)
}

// Config contains aggregator configuration.
type Config struct {
	// From is the first instant counted (inclusive).
	From time.Time

	// To is the last instant counted (inclusive).
	To time.Time

	// Interval is the bucket granularity, hour through year.
	Interval interval.Interval

	// Location is the timezone buckets are normalized in.
	//
	// Default: UTC.
	Location *time.Location
}

// Source is one group's reference to an underlying entity and its events.
type Source struct {
	// GroupID is the partition the events are counted under.
	GroupID string

	// EntityID identifies the underlying entity. Sources sharing an
	// EntityID contribute to the total only once.
	EntityID string

	// Events are the entity's timestamped occurrences.
	Events []Event
}

// Event is one weighted occurrence.
type Event struct {
	Time time.Time

	// Weight is added to the bucket; 1 for message counts, the recipient
	// count for campaign sends.
	Weight float64
}

// Occurrence returns an event of weight 1 at t.
func Occurrence(t time.Time) Event {
	return Event{Time: t, Weight: 1}
}

// Flow is a flow and the ids of its SEND_EMAIL actions.
type Flow struct {
	ID string `json:"id"`

	ActionIDs []string `json:"action_ids"`
}

// Campaign is a sent campaign weighted by its recipient count.
type Campaign struct {
	ID string `json:"id"`

	SentAt time.Time `json:"sent_at"`

	Recipients float64 `json:"num_recipients"`
}
