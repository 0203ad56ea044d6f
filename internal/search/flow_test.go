package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpro/models"
	"stockpro/observability"
)

const testDebounce = 10 * time.Millisecond

// recorder collects emitted events
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

func newTestFlow(t *testing.T, searcher Searcher) (*Flow, *recorder) {
	t.Helper()
	observability.SetMetrics(observability.NewMetrics(prometheus.NewRegistry()))

	rec := &recorder{}
	flow := NewFlow(t.Context(), searcher, rec.emit, WithDebounce(testDebounce), WithSessionID("test"))
	t.Cleanup(flow.Close)
	return flow, rec
}

func searches(outcome string) float64 {
	return testutil.ToFloat64(observability.GetMetrics().SearchRequestsTotal.WithLabelValues(outcome))
}

func staticSearcher(results []models.SearchResult, calls *atomic.Int32) SearcherFunc {
	return func(ctx context.Context, keyword string) []models.SearchResult {
		calls.Add(1)
		return results
	}
}

var tcsResults = []models.SearchResult{{Symbol: "TCS", Name: "Tata Consultancy Services Limited"}}

func TestFlow_ShortQueryClosesPanelWithoutSearching(t *testing.T) {
	var calls atomic.Int32
	flow, rec := newTestFlow(t, staticSearcher(tcsResults, &calls))

	flow.Input("T")

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	state := rec.last().State
	require.NotNil(t, state)
	assert.Equal(t, "T", state.Query)
	assert.False(t, state.Open)
	assert.Empty(t, state.Results)
	assert.Empty(t, state.Empty)
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1.0, searches(OutcomeSkipped))
}

func TestFlow_DebouncedSearch(t *testing.T) {
	var calls atomic.Int32
	var lastKeyword atomic.Value
	flow, rec := newTestFlow(t, SearcherFunc(func(ctx context.Context, keyword string) []models.SearchResult {
		calls.Add(1)
		lastKeyword.Store(keyword)
		return tcsResults
	}))

	for _, q := range []string{"t", "tc", "tcs"} {
		flow.Input(q)
	}

	require.Eventually(t, func() bool { return searches(OutcomeCompleted) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "one lookup per burst of keystrokes")
	assert.Equal(t, "tcs", lastKeyword.Load())

	events := rec.all()
	require.Len(t, events, 2)
	assert.True(t, events[0].State.Loading)
	assert.False(t, events[1].State.Loading)
	assert.True(t, events[1].State.Open)
	assert.Equal(t, tcsResults, events[1].State.Results)
	assert.Equal(t, "tcs", flow.State().Query)
}

func TestFlow_EmptyResultsMessage(t *testing.T) {
	var calls atomic.Int32
	flow, rec := newTestFlow(t, staticSearcher(nil, &calls))

	flow.Input("zzz")

	require.Eventually(t, func() bool { return searches(OutcomeCompleted) == 1 }, time.Second, 5*time.Millisecond)
	state := rec.last().State
	require.NotNil(t, state)
	assert.True(t, state.Open)
	assert.NotNil(t, state.Results)
	assert.Equal(t, `No stocks found for "zzz"`, state.Empty)
}

func TestFlow_LastIssuedSearchWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 4)

	flow, _ := newTestFlow(t, SearcherFunc(func(ctx context.Context, keyword string) []models.SearchResult {
		started <- keyword
		if keyword == "inf" {
			<-release
			return []models.SearchResult{{Symbol: "INFY", Name: "Infosys Limited"}}
		}
		return tcsResults
	}))

	flow.Input("inf")
	require.Equal(t, "inf", <-started)

	flow.Input("tcs")
	require.Equal(t, "tcs", <-started)
	require.Eventually(t, func() bool { return searches(OutcomeCompleted) == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return searches(OutcomeStale) == 1 }, time.Second, 5*time.Millisecond)

	state := flow.State()
	assert.Equal(t, tcsResults, state.Results, "the older response must not overwrite the newer one")
	assert.Equal(t, "tcs", state.Query)
}

func TestFlow_SelectNavigates(t *testing.T) {
	var calls atomic.Int32
	flow, rec := newTestFlow(t, staticSearcher(tcsResults, &calls))

	flow.Input("tcs")
	require.Eventually(t, func() bool { return searches(OutcomeCompleted) == 1 }, time.Second, 5*time.Millisecond)

	flow.Select("TCS")

	events := rec.all()
	require.GreaterOrEqual(t, len(events), 2)
	cleared := events[len(events)-2]
	nav := events[len(events)-1]

	assert.Equal(t, EventState, cleared.Type)
	assert.Empty(t, cleared.State.Query)
	assert.False(t, cleared.State.Open)
	assert.Empty(t, cleared.State.Results)

	assert.Equal(t, EventNavigate, nav.Type)
	assert.Equal(t, "/stock/TCS", nav.Location)
	assert.Nil(t, nav.State)
}

func TestFlow_SelectEscapesSymbol(t *testing.T) {
	flow, rec := newTestFlow(t, SearcherFunc(func(ctx context.Context, keyword string) []models.SearchResult { return nil }))

	flow.Select("M&M")
	assert.Equal(t, "/stock/M&M", rec.last().Location)

	flow.Select("A B")
	assert.Equal(t, "/stock/A%20B", rec.last().Location)
}

func TestFlow_SelectCancelsPendingSearch(t *testing.T) {
	var calls atomic.Int32
	flow, _ := newTestFlow(t, staticSearcher(tcsResults, &calls))

	flow.Input("tcs")
	flow.Select("TCS")

	time.Sleep(4 * testDebounce)
	assert.Zero(t, calls.Load())
	assert.False(t, flow.State().Open)
}

func TestFlow_BlurAndFocus(t *testing.T) {
	var calls atomic.Int32
	flow, rec := newTestFlow(t, staticSearcher(tcsResults, &calls))

	flow.Input("tcs")
	require.Eventually(t, func() bool { return flow.State().Open }, time.Second, 5*time.Millisecond)

	flow.Blur()
	state := flow.State()
	assert.False(t, state.Open)
	assert.Equal(t, "tcs", state.Query, "blur keeps the query")
	assert.Equal(t, tcsResults, state.Results)

	n := len(rec.all())
	flow.Blur()
	assert.Len(t, rec.all(), n, "blurring a closed panel emits nothing")

	flow.Focus()
	assert.True(t, flow.State().Open)
	assert.Equal(t, 1, int(calls.Load()), "focus reopens without searching again")
}

func TestFlow_FocusWithShortQueryStaysClosed(t *testing.T) {
	var calls atomic.Int32
	flow, rec := newTestFlow(t, staticSearcher(tcsResults, &calls))

	flow.Focus()
	assert.False(t, flow.State().Open)
	assert.Empty(t, rec.all())
}

func TestFlow_CloseStopsPendingSearch(t *testing.T) {
	var calls atomic.Int32
	flow, rec := newTestFlow(t, staticSearcher(tcsResults, &calls))

	flow.Input("tcs")
	flow.Close()
	flow.Input("infy")
	flow.Select("TCS")

	time.Sleep(4 * testDebounce)
	assert.Zero(t, calls.Load())
	assert.Empty(t, rec.all())
}

func TestFlow_CloseCancelsInFlightSearch(t *testing.T) {
	started := make(chan struct{})
	flow, rec := newTestFlow(t, SearcherFunc(func(ctx context.Context, keyword string) []models.SearchResult {
		close(started)
		<-ctx.Done()
		return nil
	}))

	flow.Input("tcs")
	<-started
	flow.Close()

	require.Eventually(t, func() bool { return searches(OutcomeStale) == 1 }, time.Second, 5*time.Millisecond)
	events := rec.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].State.Loading)
}
