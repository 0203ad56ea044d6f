package models

import "time"

// TickerEntry is one instrument scrolled by the ticker bar
type TickerEntry struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        float64 `json:"volume,omitempty"`
}

// IsPositive reports whether the entry moved up or stayed flat
func (e TickerEntry) IsPositive() bool {
	return e.Change >= 0
}

// TickerState is the display state of the ticker bar
type TickerState string

const (
	TickerStateLoading TickerState = "loading"
	TickerStateReady   TickerState = "ready"
	TickerStateError   TickerState = "error"
	TickerStateEmpty   TickerState = "empty"
)

// TickerSnapshot is a point-in-time copy of the ticker poller state
type TickerSnapshot struct {
	Entries     []TickerEntry `json:"entries"`
	State       TickerState   `json:"state"`
	Error       string        `json:"error,omitempty"`
	Loading     bool          `json:"loading"`
	LastUpdated time.Time     `json:"lastUpdated,omitzero"`
}

// Visible reports whether the bar has anything to show. A first load in
// flight shows the placeholder; otherwise the bar needs at least one entry.
func (s TickerSnapshot) Visible() bool {
	return len(s.Entries) > 0 || s.ShowPlaceholder()
}

// ShowPlaceholder is true only while loading with nothing to display yet
func (s TickerSnapshot) ShowPlaceholder() bool {
	return s.Loading && len(s.Entries) == 0
}
