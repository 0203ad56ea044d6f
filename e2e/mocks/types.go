package mocks

// SearchItem is one row of the upstream /search response.
type SearchItem struct {
	Symbol      string `json:"symbol,omitempty"`
	Name        string `json:"name,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// PriceRow is one row of the upstream /stock/{symbol}/prices response.
type PriceRow struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// Mover is one row of the upstream /index/{index}/movers/ response.
type Mover struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"lastPrice"`
	NetChange float64 `json:"netChange"`
	PChange   float64 `json:"changePercent,omitempty"`
}

// Quote is the upstream /stock/{symbol}/ response.
type Quote struct {
	CompanyName string  `json:"companyName"`
	LastPrice   float64 `json:"lastPrice"`
	NetChange   float64 `json:"netChange"`
	Industry    string  `json:"industry,omitempty"`
	Sector      string  `json:"sector,omitempty"`
}

// Failure makes an endpoint answer with Status and Body instead of data.
type Failure struct {
	Status      int
	ContentType string
	Body        string
}
