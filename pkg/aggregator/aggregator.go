package aggregator

import (
	"fmt"
	"time"
)

// aggregator implements the Aggregator interface.
type aggregator struct {
	config Config
}

// New creates a new aggregator.
//
// Parameters:
//   - cfg: Aggregator configuration
//
// Returns a configured Aggregator.
func New(cfg Config) Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &aggregator{config: cfg}
}

// Aggregate implements Aggregator.Aggregate.
func (a *aggregator) Aggregate(sources []Source) (*Counter, error) {
	if !a.config.Interval.Bucketed() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInterval, a.config.Interval)
	}

	counter := NewCounter()
	seen := make(map[string]struct{}, len(sources))

	for _, src := range sources {
		_, counted := seen[src.EntityID]
		seen[src.EntityID] = struct{}{}

		for _, ev := range src.Events {
			if !a.inRange(ev.Time) {
				continue
			}
			key := a.config.Interval.BucketKey(ev.Time, a.config.Location)

			if counted {
				counter.Total.Add(key, 0)
			} else {
				counter.Total.Add(key, ev.Weight)
			}
			counter.Group(src.GroupID).Add(key, ev.Weight)
		}
	}

	return counter, nil
}

// inRange reports whether t lies in [From, To].
func (a *aggregator) inRange(t time.Time) bool {
	return !t.Before(a.config.From) && !t.After(a.config.To)
}

// FlowSources expands flows into one source per (flow, action) pair, in
// flow order. Actions without fetched messages produce no events.
func FlowSources(flows []Flow, messages map[string][]time.Time) []Source {
	var sources []Source
	for _, flow := range flows {
		for _, actionID := range flow.ActionIDs {
			updated := messages[actionID]
			events := make([]Event, len(updated))
			for i, t := range updated {
				events[i] = Occurrence(t)
			}
			sources = append(sources, Source{
				GroupID:  flow.ID,
				EntityID: actionID,
				Events:   events,
			})
		}
	}
	return sources
}

// CampaignSources turns each campaign into a source holding a single send
// weighted by its recipient count.
func CampaignSources(campaigns []Campaign) []Source {
	sources := make([]Source, 0, len(campaigns))
	for _, c := range campaigns {
		sources = append(sources, Source{
			GroupID:  c.ID,
			EntityID: c.ID,
			Events:   []Event{{Time: c.SentAt, Weight: c.Recipients}},
		})
	}
	return sources
}
