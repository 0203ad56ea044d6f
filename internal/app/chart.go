package app

import (
	"strconv"
	"strings"
	"time"

	"stockpro/models"
)

// Chart dimensions in SVG user units
const (
	ChartWidth   = 600
	ChartHeight  = 240
	chartPadding = 8
)

// Chart is the server-rendered line chart of a price series
type Chart struct {
	Empty      bool    `json:"empty"`
	Points     string  `json:"points,omitempty"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	StartLabel string  `json:"startLabel,omitempty"`
	EndLabel   string  `json:"endLabel,omitempty"`
}

// NewChart scales prices into a polyline spanning the chart area, oldest on
// the left. A flat series is drawn across the vertical middle.
func NewChart(prices []models.PricePoint) Chart {
	if len(prices) == 0 {
		return Chart{Empty: true}
	}

	lo, hi := prices[0].Price, prices[0].Price
	for _, p := range prices[1:] {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}

	const (
		plotW = ChartWidth - 2*chartPadding
		plotH = ChartHeight - 2*chartPadding
	)

	var b strings.Builder
	for i, p := range prices {
		x := float64(ChartWidth) / 2
		if len(prices) > 1 {
			x = chartPadding + float64(i)*plotW/float64(len(prices)-1)
		}
		y := float64(ChartHeight) / 2
		if hi > lo {
			y = chartPadding + (hi-p.Price)/(hi-lo)*plotH
		}

		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
	}

	return Chart{
		Points:     b.String(),
		Min:        lo,
		Max:        hi,
		StartLabel: dateLabel(prices[0].Time),
		EndLabel:   dateLabel(prices[len(prices)-1].Time),
	}
}

// dateLabel shortens RFC 3339 or plain dates for axis labels and passes
// anything else through
func dateLabel(s string) string {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2 Jan 2006")
		}
	}
	return s
}
