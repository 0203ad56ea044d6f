// Package ticker keeps the scrolling ticker bar's data fresh by polling the
// index movers in the background.
package ticker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockpro/models"
	"stockpro/observability"
)

//go:generate mockgen -package=ticker -destination=mock_source_test.go -source=poller.go Source

// Source returns the current movers of an index. Implementations are
// expected to degrade to demo data rather than fail; a panic is reported as
// a failed refresh.
type Source interface {
	GetTickerData(ctx context.Context, index string) []models.TickerEntry
}

const (
	DefaultInterval = 30 * time.Second

	MsgNoData     = "No data available"
	MsgLoadFailed = "Failed to load live data. Showing demo data."
)

// Refresh outcomes, used as metric labels
const (
	OutcomeReady = "ready"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Poller refreshes the ticker list on a fixed interval. The last non-empty
// list is retained across empty or failed refreshes.
type Poller struct {
	source   Source
	index    string
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	snapshot models.TickerSnapshot

	subMu   sync.Mutex
	subs    map[int]chan models.TickerSnapshot
	nextSub int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Poller
type Option func(*Poller)

// WithIndex sets the index whose movers are polled
func WithIndex(index string) Option {
	return func(p *Poller) {
		if index != "" {
			p.index = index
		}
	}
}

// WithInterval sets the refresh interval
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock sets the time source for lastUpdated stamps
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// NewPoller creates a poller in the loading state
func NewPoller(source Source, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		index:    "NIFTY",
		interval: DefaultInterval,
		now:      time.Now,
		snapshot: models.TickerSnapshot{State: models.TickerStateLoading, Loading: true},
		subs:     make(map[int]chan models.TickerSnapshot),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Index returns the polled index
func (p *Poller) Index() string {
	return p.index
}

// Run refreshes immediately and then on every tick until ctx is done or
// Stop is called
func (p *Poller) Run(ctx context.Context) error {
	observability.Info("ticker poller started", "index", p.index, "interval", p.interval.String())
	defer observability.Info("ticker poller stopped", "index", p.index)

	p.Refresh(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case <-t.C:
			p.Refresh(ctx)
		}
	}
}

// Start runs the poller in its own goroutine
func (p *Poller) Start(ctx context.Context) {
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		_ = p.Run(ctx)
	}()
}

// Stop ends polling and waits for a poller launched by Start to exit. It is
// safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	if p.done != nil {
		<-p.done
	}
}

// Refresh fetches the movers once and updates the snapshot
func (p *Poller) Refresh(ctx context.Context) {
	p.mu.Lock()
	p.snapshot.Loading = true
	p.mu.Unlock()

	entries, err := p.fetch(ctx)

	p.mu.Lock()
	p.snapshot.Loading = false

	var outcome string
	switch {
	case err != nil:
		outcome = OutcomeError
		p.snapshot.State = models.TickerStateError
		p.snapshot.Error = MsgLoadFailed
	case len(entries) == 0:
		outcome = OutcomeEmpty
		p.snapshot.Error = MsgNoData
		if len(p.snapshot.Entries) > 0 {
			p.snapshot.State = models.TickerStateError
		} else {
			p.snapshot.State = models.TickerStateEmpty
		}
	default:
		outcome = OutcomeReady
		p.snapshot.State = models.TickerStateReady
		p.snapshot.Entries = append([]models.TickerEntry(nil), entries...)
		p.snapshot.Error = ""
		p.snapshot.LastUpdated = p.now()
	}

	snap := p.copyLocked()
	p.mu.Unlock()

	observability.GetMetrics().RecordTickerRefresh(outcome, len(snap.Entries))
	if err != nil {
		observability.WithError(err).Error("ticker refresh failed", "index", p.index)
	} else {
		observability.Debug("ticker refreshed", "index", p.index, "outcome", outcome, "entries", len(entries))
	}

	p.publish(snap)
}

func (p *Poller) fetch(ctx context.Context) (entries []models.TickerEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ticker source panicked: %v", r)
		}
	}()
	return p.source.GetTickerData(ctx, p.index), nil
}

// Snapshot returns a copy of the current state
func (p *Poller) Snapshot() models.TickerSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyLocked()
}

func (p *Poller) copyLocked() models.TickerSnapshot {
	snap := p.snapshot
	if p.snapshot.Entries != nil {
		snap.Entries = append([]models.TickerEntry(nil), p.snapshot.Entries...)
	}
	return snap
}

// Subscribe returns a channel receiving every snapshot published after a
// refresh. Slow subscribers only see the latest one. Call cancel to
// unsubscribe; it closes the channel.
func (p *Poller) Subscribe() (<-chan models.TickerSnapshot, func()) {
	ch := make(chan models.TickerSnapshot, 1)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (p *Poller) publish(snap models.TickerSnapshot) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot the subscriber has not read yet
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
