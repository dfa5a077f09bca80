// Package aggregator summarizes stored slow-request samples per view.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kcz17/dumpslow/interval"
	"github.com/kcz17/dumpslow/logging"
	"github.com/kcz17/dumpslow/metrics"
	"github.com/kcz17/dumpslow/samples"
	"github.com/kcz17/dumpslow/store"
)

// ErrInvalidArgument is returned before any store access when a query is
// malformed.
var ErrInvalidArgument = interval.ErrInvalidArgument

type OrderBy string

const (
	ByCount   OrderBy = "count"
	ByTotal   OrderBy = "total"
	ByAverage OrderBy = "average"
)

// ParseOrderBy accepts count, total or average. "at" (accumulated time) is
// accepted as an alias of total.
func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.ToLower(s) {
	case string(ByCount):
		return ByCount, nil
	case string(ByTotal), "at":
		return ByTotal, nil
	case string(ByAverage):
		return ByAverage, nil
	default:
		return "", fmt.Errorf("%w: sort order %q expected one of {count|total|average}", ErrInvalidArgument, s)
	}
}

// Query selects and orders the rows returned by Summarize. Use NewQuery for
// the defaults.
type Query struct {
	After       *time.Time // After restricts samples to those started at or after it.
	MaxDuration *float64   // MaxDuration excludes samples of at least this many seconds.
	OrderBy     OrderBy
	Descending  bool
	Limit       *int // Limit truncates the sorted rows; zero yields no rows.
}

// NewQuery returns a query ordering by total time, largest first.
func NewQuery() Query {
	return Query{OrderBy: ByTotal, Descending: true}
}

func (q Query) Validate() error {
	if q.MaxDuration != nil && *q.MaxDuration < 0 {
		return fmt.Errorf("%w: expected max duration >= 0; got %v", ErrInvalidArgument, *q.MaxDuration)
	}
	if q.Limit != nil && *q.Limit < 0 {
		return fmt.Errorf("%w: expected limit >= 0; got %d", ErrInvalidArgument, *q.Limit)
	}
	switch q.OrderBy {
	case ByCount, ByTotal, ByAverage:
	default:
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidArgument, q.OrderBy)
	}
	return nil
}

// Row summarizes the samples of one view.
type Row struct {
	View           string  `json:"view"`
	Count          int     `json:"count"`
	TotalSeconds   float64 `json:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds"`
}

func (r *Row) add(seconds float64) {
	r.Count++
	r.TotalSeconds += seconds
	r.AverageSeconds = r.TotalSeconds / float64(r.Count)
}

func (r *Row) key(orderBy OrderBy) float64 {
	switch orderBy {
	case ByCount:
		return float64(r.Count)
	case ByAverage:
		return r.AverageSeconds
	default:
		return r.TotalSeconds
	}
}

type Aggregator struct {
	store   store.Store
	logger  logging.Logger
	metrics *metrics.Metrics
}

func New(s store.Store, logger logging.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		store:   s,
		logger:  logger,
		metrics: m,
	}
}

// Summarize groups the samples selected by q per view. Store failures are
// returned wrapping store.ErrStoreUnavailable; malformed samples are logged
// and skipped.
func (a *Aggregator) Summarize(ctx context.Context, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	lower := store.NegativeInfinity
	if q.After != nil {
		lower = samples.Score(*q.After)
	}
	members, err := a.store.RangeByScore(ctx, lower, store.PositiveInfinity)
	if err != nil {
		return nil, fmt.Errorf("expected store.RangeByScore() returns nil err; got err = %w", err)
	}

	// Rows are kept in first-seen order, which follows the store's score
	// order, so the stable sort below is deterministic.
	var rows []*Row
	byView := map[string]*Row{}
	for _, m := range members {
		sample, err := samples.Decode(m.Payload, m.Score)
		if err != nil {
			a.metrics.MalformedRecord()
			a.logger.LogMalformedRecord(m.Payload, err)
			continue
		}
		if q.MaxDuration != nil && sample.DurationSeconds >= *q.MaxDuration {
			continue
		}

		row, ok := byView[sample.View]
		if !ok {
			row = &Row{View: sample.View}
			byView[sample.View] = row
			rows = append(rows, row)
		}
		row.add(sample.DurationSeconds)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if q.Descending {
			return rows[i].key(q.OrderBy) > rows[j].key(q.OrderBy)
		}
		return rows[i].key(q.OrderBy) < rows[j].key(q.OrderBy)
	})

	if q.Limit != nil && *q.Limit < len(rows) {
		rows = rows[:*q.Limit]
	}

	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = *row
	}
	return out, nil
}
