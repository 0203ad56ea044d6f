package ticker

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stockpro/models"
	"stockpro/observability"
)

var (
	clock = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	liveEntries = []models.TickerEntry{
		{Symbol: "TCS", Price: 3897.5, Change: -23.75, ChangePercent: -0.61},
		{Symbol: "ITC", Price: 435.75, Change: 5.25, ChangePercent: 1.22},
	}
)

func newTestPoller(t *testing.T, source Source, opts ...Option) *Poller {
	t.Helper()
	observability.SetMetrics(observability.NewMetrics(prometheus.NewRegistry()))

	base := []Option{WithClock(func() time.Time { return clock })}
	return NewPoller(source, append(base, opts...)...)
}

func refreshes(outcome string) float64 {
	return testutil.ToFloat64(observability.GetMetrics().TickerRefreshesTotal.WithLabelValues(outcome))
}

func TestNewPoller_StartsLoading(t *testing.T) {
	p := newTestPoller(t, NewMockSource(gomock.NewController(t)))

	snap := p.Snapshot()
	assert.Equal(t, models.TickerStateLoading, snap.State)
	assert.True(t, snap.Loading)
	assert.True(t, snap.ShowPlaceholder())
	assert.True(t, snap.Visible())
	assert.Equal(t, "NIFTY", p.Index())
}

func TestRefresh_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().GetTickerData(gomock.Any(), "BANKNIFTY").Return(liveEntries)

	p := newTestPoller(t, source, WithIndex("BANKNIFTY"))
	p.Refresh(t.Context())

	snap := p.Snapshot()
	assert.Equal(t, models.TickerStateReady, snap.State)
	assert.Equal(t, liveEntries, snap.Entries)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Loading)
	assert.Equal(t, clock, snap.LastUpdated)
	assert.Equal(t, 1.0, refreshes(OutcomeReady))
	assert.Equal(t, 2.0, testutil.ToFloat64(observability.GetMetrics().TickerEntries))
}

func TestRefresh_EmptyBeforeAnyData(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).Return(nil)

	p := newTestPoller(t, source)
	p.Refresh(t.Context())

	snap := p.Snapshot()
	assert.Equal(t, models.TickerStateEmpty, snap.State)
	assert.Equal(t, MsgNoData, snap.Error)
	assert.Empty(t, snap.Entries)
	assert.False(t, snap.Visible(), "nothing to scroll hides the bar")
	assert.True(t, snap.LastUpdated.IsZero())
	assert.Equal(t, 1.0, refreshes(OutcomeEmpty))
}

func TestRefresh_KeepsLastGoodList(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	gomock.InOrder(
		source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).Return(liveEntries),
		source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).Return([]models.TickerEntry{}),
		source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, index string) []models.TickerEntry {
				panic("upstream exploded")
			}),
	)

	p := newTestPoller(t, source)

	p.Refresh(t.Context())
	first := p.Snapshot()

	p.Refresh(t.Context())
	snap := p.Snapshot()
	assert.Equal(t, models.TickerStateError, snap.State)
	assert.Equal(t, MsgNoData, snap.Error)
	assert.Equal(t, liveEntries, snap.Entries)
	assert.Equal(t, first.LastUpdated, snap.LastUpdated)

	p.Refresh(t.Context())
	snap = p.Snapshot()
	assert.Equal(t, models.TickerStateError, snap.State)
	assert.Equal(t, MsgLoadFailed, snap.Error)
	assert.Equal(t, liveEntries, snap.Entries)
	assert.True(t, snap.Visible())

	assert.Equal(t, 1.0, refreshes(OutcomeReady))
	assert.Equal(t, 1.0, refreshes(OutcomeEmpty))
	assert.Equal(t, 1.0, refreshes(OutcomeError))
}

func TestRefresh_RecoversAfterError(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	gomock.InOrder(
		source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, index string) []models.TickerEntry {
				panic("boom")
			}),
		source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).Return(liveEntries),
	)

	p := newTestPoller(t, source)

	p.Refresh(t.Context())
	assert.Equal(t, MsgLoadFailed, p.Snapshot().Error)
	assert.False(t, p.Snapshot().Visible())

	p.Refresh(t.Context())
	snap := p.Snapshot()
	assert.Equal(t, models.TickerStateReady, snap.State)
	assert.Empty(t, snap.Error)
}

func TestSnapshot_IsACopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).Return(append([]models.TickerEntry(nil), liveEntries...))

	p := newTestPoller(t, source)
	p.Refresh(t.Context())

	snap := p.Snapshot()
	snap.Entries[0].Symbol = "MUTATED"

	assert.Equal(t, "TCS", p.Snapshot().Entries[0].Symbol)
}

func TestSubscribe_ReceivesLatestSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).Return(liveEntries).Times(2)

	p := newTestPoller(t, source)
	updates, cancel := p.Subscribe()

	// two refreshes without reading: only the newest is buffered
	p.Refresh(t.Context())
	p.Refresh(t.Context())

	select {
	case snap := <-updates:
		assert.Equal(t, models.TickerStateReady, snap.State)
		assert.Len(t, snap.Entries, 2)
	default:
		t.Fatal("expected a buffered snapshot")
	}

	select {
	case <-updates:
		t.Fatal("expected only one buffered snapshot")
	default:
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open, "cancel closes the channel")
}

func TestRun_PollsUntilCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)

	calls := make(chan struct{}, 10)
	source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, index string) []models.TickerEntry {
			select {
			case calls <- struct{}{}:
			default:
			}
			return liveEntries
		}).MinTimes(3)

	p := newTestPoller(t, source, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("poll %d never happened", i+1)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)

	first := make(chan struct{})
	source.EXPECT().GetTickerData(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, index string) []models.TickerEntry {
			select {
			case <-first:
			default:
				close(first)
			}
			return liveEntries
		}).MinTimes(1)

	p := newTestPoller(t, source, WithInterval(time.Hour))
	p.Start(t.Context())

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("initial fetch never happened")
	}

	p.Stop()
	p.Stop()

	assert.Equal(t, models.TickerStateReady, p.Snapshot().State)
}

func TestOptions_IgnoreZeroValues(t *testing.T) {
	p := NewPoller(nil, WithIndex(""), WithInterval(0))
	assert.Equal(t, "NIFTY", p.Index())
	assert.Equal(t, DefaultInterval, p.interval)
}
