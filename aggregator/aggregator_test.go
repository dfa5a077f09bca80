package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kcz17/dumpslow/internal/logtest"
	"github.com/kcz17/dumpslow/samples"
	"github.com/kcz17/dumpslow/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(f float64) *float64 { return &f }
func integer(i int) *int       { return &i }

func addSample(t *testing.T, s store.Store, view string, seconds float64, at int64) {
	member, err := samples.Sample{View: view, DurationSeconds: seconds, RecordedAt: time.Unix(at, 0)}.Encode()
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), member, float64(at)))
}

// scenarioStore holds viewA (2.0s at t=100, 4.0s at t=200) and viewB (1.0s at
// t=150).
func scenarioStore(t *testing.T) store.Store {
	s := store.NewMemoryStore()
	addSample(t, s, "viewA", 2.0, 100)
	addSample(t, s, "viewA", 4.0, 200)
	addSample(t, s, "viewB", 1.0, 150)
	return s
}

func TestAggregator_SummarizeByAverage(t *testing.T) {
	a := New(scenarioStore(t), logtest.New(), nil)
	q := NewQuery()
	q.OrderBy = ByAverage

	rows, err := a.Summarize(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{View: "viewA", Count: 2, TotalSeconds: 6.0, AverageSeconds: 3.0},
		{View: "viewB", Count: 1, TotalSeconds: 1.0, AverageSeconds: 1.0},
	}, rows)
}

func TestAggregator_SummarizeWithMaxDuration(t *testing.T) {
	a := New(scenarioStore(t), logtest.New(), nil)
	q := NewQuery()
	q.OrderBy = ByAverage
	q.MaxDuration = float(3.0)

	rows, err := a.Summarize(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{View: "viewA", Count: 1, TotalSeconds: 2.0, AverageSeconds: 2.0},
		{View: "viewB", Count: 1, TotalSeconds: 1.0, AverageSeconds: 1.0},
	}, rows)
}

func TestAggregator_SummarizeMaxDurationBoundary(t *testing.T) {
	s := store.NewMemoryStore()
	addSample(t, s, "atCutoff", 3.0, 100)
	addSample(t, s, "underCutoff", 2.999, 101)
	a := New(s, logtest.New(), nil)

	q := NewQuery()
	q.MaxDuration = float(3.0)
	rows, err := a.Summarize(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "underCutoff", rows[0].View)
}

func TestAggregator_SummarizeAfterIsInclusive(t *testing.T) {
	a := New(scenarioStore(t), logtest.New(), nil)
	after := time.Unix(150, 0)
	q := NewQuery()
	q.OrderBy = ByCount
	q.After = &after

	rows, err := a.Summarize(context.Background(), q)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Row{
		{View: "viewA", Count: 1, TotalSeconds: 4.0, AverageSeconds: 4.0},
		{View: "viewB", Count: 1, TotalSeconds: 1.0, AverageSeconds: 1.0},
	}, rows)
}

func TestAggregator_SummarizeOrdering(t *testing.T) {
	s := store.NewMemoryStore()
	// frequent: 3 x 1s (total 3, average 1)
	// heavy:    1 x 5s (total 5, average 5)
	// medium:   2 x 2s (total 4, average 2)
	addSample(t, s, "frequent", 1.0, 1)
	addSample(t, s, "heavy", 5.0, 2)
	addSample(t, s, "medium", 2.0, 3)
	addSample(t, s, "frequent", 1.001, 4)
	addSample(t, s, "medium", 2.001, 5)
	addSample(t, s, "frequent", 1.002, 6)
	a := New(s, logtest.New(), nil)

	tests := []struct {
		orderBy    OrderBy
		descending bool
		want       []string
	}{
		{orderBy: ByCount, descending: true, want: []string{"frequent", "medium", "heavy"}},
		{orderBy: ByCount, descending: false, want: []string{"heavy", "medium", "frequent"}},
		{orderBy: ByTotal, descending: true, want: []string{"heavy", "medium", "frequent"}},
		{orderBy: ByTotal, descending: false, want: []string{"frequent", "medium", "heavy"}},
		{orderBy: ByAverage, descending: true, want: []string{"heavy", "medium", "frequent"}},
		{orderBy: ByAverage, descending: false, want: []string{"frequent", "medium", "heavy"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s descending=%v", tt.orderBy, tt.descending), func(t *testing.T) {
			rows, err := a.Summarize(context.Background(), Query{OrderBy: tt.orderBy, Descending: tt.descending})
			require.NoError(t, err)
			var got []string
			for _, row := range rows {
				got = append(got, row.View)
				assert.InDelta(t, row.TotalSeconds/float64(row.Count), row.AverageSeconds, 1e-12)
				assert.GreaterOrEqual(t, row.Count, 1)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregator_SummarizeTiesAreStable(t *testing.T) {
	s := store.NewMemoryStore()
	for i := 0; i < 10; i++ {
		addSample(t, s, fmt.Sprintf("view%d", i), 2.0, int64(i))
	}
	a := New(s, logtest.New(), nil)

	first, err := a.Summarize(context.Background(), NewQuery())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.Summarize(context.Background(), NewQuery())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "view0", first[0].View)
	assert.Equal(t, "view9", first[9].View)
}

func TestAggregator_SummarizeLimit(t *testing.T) {
	s := store.NewMemoryStore()
	for i := 1; i <= 5; i++ {
		addSample(t, s, fmt.Sprintf("view%d", i), float64(i), int64(i))
	}
	a := New(s, logtest.New(), nil)

	q := NewQuery()
	q.Limit = integer(0)
	rows, err := a.Summarize(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, rows)

	q.Limit = integer(2)
	rows, err = a.Summarize(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "view5", rows[0].View)
	assert.Equal(t, "view4", rows[1].View)

	q.Limit = integer(10)
	rows, err = a.Summarize(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestAggregator_SummarizeEmptyStore(t *testing.T) {
	a := New(store.NewMemoryStore(), logtest.New(), nil)
	rows, err := a.Summarize(context.Background(), NewQuery())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAggregator_SummarizeSkipsMalformedRecords(t *testing.T) {
	s := scenarioStore(t)
	require.NoError(t, s.Add(context.Background(), "corrupt", 120))
	require.NoError(t, s.Add(context.Background(), "viewC\nslow", 130))
	logger := logtest.New()
	a := New(s, logger, nil)

	rows, err := a.Summarize(context.Background(), NewQuery())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{"corrupt", "viewC\nslow"}, logger.Malformed())
}

func TestAggregator_SummarizeInvalidArguments(t *testing.T) {
	s := &failingStore{}
	a := New(s, logtest.New(), nil)

	queries := map[string]Query{
		"Negative max duration": {OrderBy: ByTotal, MaxDuration: float(-1)},
		"Negative limit":        {OrderBy: ByTotal, Limit: integer(-1)},
		"Unknown order":         {OrderBy: "at"},
		"Empty order":           {},
	}
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			_, err := a.Summarize(context.Background(), q)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
	assert.Zero(t, s.calls, "validation happens before querying the store")
}

type failingStore struct {
	store.Store
	calls int
}

func (s *failingStore) RangeByScore(context.Context, float64, float64) ([]store.Member, error) {
	s.calls++
	return nil, fmt.Errorf("%w: connection refused", store.ErrStoreUnavailable)
}

func TestAggregator_SummarizeStoreUnavailable(t *testing.T) {
	a := New(&failingStore{}, logtest.New(), nil)
	_, err := a.Summarize(context.Background(), NewQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStoreUnavailable))
}

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		input   string
		want    OrderBy
		wantErr bool
	}{
		{input: "count", want: ByCount},
		{input: "total", want: ByTotal},
		{input: "at", want: ByTotal},
		{input: "average", want: ByAverage},
		{input: "AVERAGE", want: ByAverage},
		{input: "max", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOrderBy(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
