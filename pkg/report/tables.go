package report

import (
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/klaviyo-report/pkg/aggregator"
	"github.com/0xmhha/klaviyo-report/pkg/interval"
	"github.com/0xmhha/klaviyo-report/pkg/klaviyo"
	"github.com/0xmhha/klaviyo-report/pkg/matrix"
	"github.com/0xmhha/klaviyo-report/pkg/series"
	"github.com/0xmhha/klaviyo-report/pkg/table"
)

// ProcessFlowMessages counts the messages sent by flows per bucket of r.
//
// Partitioned has one row per flow. Total counts each action once even
// when several flows share it.
func ProcessFlowMessages(flows []aggregator.Flow, messages map[string][]klaviyo.FlowMessage, r Range) (matrix.Result, error) {
	updated := make(map[string][]time.Time, len(messages))
	for id, msgs := range messages {
		updated[id] = lo.Map(msgs, func(m klaviyo.FlowMessage, _ int) time.Time {
			return m.Attributes.Updated.Time
		})
	}

	counter, err := aggregator.New(r.aggregatorConfig()).Aggregate(aggregator.FlowSources(flows, updated))
	if err != nil {
		return matrix.Result{}, err
	}
	return matrix.Format(counter, r.matrixConfig())
}

// CampaignMessages sums campaign recipients per bucket of r, one
// partitioned row per campaign.
func CampaignMessages(campaigns []klaviyo.Campaign, r Range) (matrix.Result, error) {
	sends := lo.Map(campaigns, func(c klaviyo.Campaign, _ int) aggregator.Campaign {
		return aggregator.Campaign{ID: c.ID, SentAt: c.SentAt.Time, Recipients: c.NumRecipients}
	})

	counter, err := aggregator.New(r.aggregatorConfig()).Aggregate(aggregator.CampaignSources(sends))
	if err != nil {
		return matrix.Result{}, err
	}
	return matrix.Format(counter, r.matrixConfig())
}

// BuildTables pivots s into a grid. An empty iv is inferred from the
// dates of s.
func BuildTables(s series.Series, from time.Time, loc *time.Location, iv interval.Interval) (table.Grid, error) {
	return table.ToGrid(s, table.Config{From: from, Location: loc, Interval: iv})
}

// JoinTables joins grids side by side and types their cells.
func JoinTables(grids []table.Labeled) table.Grid {
	return table.Join(grids)
}

// CollapseGroups sums every grouped row of s into one ungrouped row.
func CollapseGroups(s series.Series) series.Series {
	return series.Collapse(s)
}
