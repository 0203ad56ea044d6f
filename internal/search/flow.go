// Package search implements the search-as-you-type session behind the
// search box: debounced lookups, the results panel and navigation.
package search

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"stockpro/models"
	"stockpro/observability"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMinQueryLength = 2
)

// Search outcomes, used as metric labels
const (
	OutcomeCompleted = "completed"
	OutcomeStale     = "stale"
	OutcomeSkipped   = "skipped"
)

// Searcher looks up stocks by keyword
type Searcher interface {
	SearchStocks(ctx context.Context, keyword string) []models.SearchResult
}

// SearcherFunc adapts a function to Searcher
type SearcherFunc func(ctx context.Context, keyword string) []models.SearchResult

func (f SearcherFunc) SearchStocks(ctx context.Context, keyword string) []models.SearchResult {
	return f(ctx, keyword)
}

// EventType distinguishes state updates from navigation requests
type EventType string

const (
	EventState    EventType = "state"
	EventNavigate EventType = "navigate"
)

// State is what the search box and its results panel display
type State struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
	Open    bool                  `json:"open"`
	Loading bool                  `json:"loading"`
	Empty   string                `json:"empty,omitempty"`
}

// Event is emitted to the client whenever the flow changes
type Event struct {
	Type     EventType `json:"type"`
	State    *State    `json:"state,omitempty"`
	Location string    `json:"location,omitempty"`
}

// Flow is one client's search session. Every search issued carries a
// generation number; a response older than the latest issued generation is
// discarded, so the last search started always wins.
type Flow struct {
	searcher Searcher
	emit     func(Event)
	debounce *Debouncer
	minLen   int
	session  string

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	generation uint64
	closed     bool
}

// FlowOption configures a Flow
type FlowOption func(*flowOptions)

type flowOptions struct {
	debounce time.Duration
	minLen   int
	session  string
}

// WithDebounce sets the quiet period after the last keystroke
func WithDebounce(d time.Duration) FlowOption {
	return func(o *flowOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithMinQueryLength sets the shortest query that triggers a lookup
func WithMinQueryLength(n int) FlowOption {
	return func(o *flowOptions) {
		if n > 0 {
			o.minLen = n
		}
	}
}

// WithSessionID tags the flow's log lines
func WithSessionID(id string) FlowOption {
	return func(o *flowOptions) {
		o.session = id
	}
}

// NewFlow starts a session. emit is called with the flow's lock held and
// must not call back into the flow.
func NewFlow(ctx context.Context, searcher Searcher, emit func(Event), opts ...FlowOption) *Flow {
	o := flowOptions{debounce: DefaultDebounce, minLen: DefaultMinQueryLength}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Flow{
		searcher: searcher,
		emit:     emit,
		debounce: NewDebouncer(o.debounce),
		minLen:   o.minLen,
		session:  o.session,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Results: []models.SearchResult{}},
	}
}

// Input records the current query and restarts the debounce
func (f *Flow) Input(query string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.state.Query = query
	f.mu.Unlock()

	f.debounce.Schedule(func() { f.run(query) })
}

func (f *Flow) run(query string) {
	metrics := observability.GetMetrics()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.generation++
	gen := f.generation

	if utf8.RuneCountInString(query) < f.minLen {
		f.state.Results = []models.SearchResult{}
		f.state.Open = false
		f.state.Loading = false
		f.emitStateLocked()
		f.mu.Unlock()
		metrics.RecordSearch(OutcomeSkipped)
		return
	}

	f.state.Loading = true
	f.emitStateLocked()
	f.mu.Unlock()

	results := f.searcher.SearchStocks(f.ctx, query)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || gen != f.generation {
		metrics.RecordSearch(OutcomeStale)
		observability.WithSession(f.session).Debug("discarding stale search response", "query", query)
		return
	}

	if results == nil {
		results = []models.SearchResult{}
	}
	f.state.Results = results
	f.state.Open = true
	f.state.Loading = false
	f.emitStateLocked()
	metrics.RecordSearch(OutcomeCompleted)
}

// Select clears the search and navigates to the symbol's detail page
func (f *Flow) Select(symbol string) {
	f.debounce.Cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.generation++
	f.state = State{Results: []models.SearchResult{}}
	f.emitStateLocked()
	f.emit(Event{Type: EventNavigate, Location: "/stock/" + url.PathEscape(symbol)})
}

// Blur closes the panel and keeps the query
func (f *Flow) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || !f.state.Open {
		return
	}
	f.state.Open = false
	f.emitStateLocked()
}

// Focus reopens the panel when the query is long enough
func (f *Flow) Focus() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.state.Open || utf8.RuneCountInString(f.state.Query) < f.minLen {
		return
	}
	f.state.Open = true
	f.emitStateLocked()
}

// State returns a copy of the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Close stops the pending debounce and abandons in-flight searches
func (f *Flow) Close() {
	f.debounce.Stop()
	f.cancel()

	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *Flow) snapshotLocked() State {
	s := f.state
	s.Results = append([]models.SearchResult{}, f.state.Results...)
	s.Empty = ""
	if s.Open && !s.Loading && len(s.Results) == 0 {
		s.Empty = fmt.Sprintf("No stocks found for \"%s\"", s.Query)
	}
	return s
}

func (f *Flow) emitStateLocked() {
	s := f.snapshotLocked()
	f.emit(Event{Type: EventState, State: &s})
}
