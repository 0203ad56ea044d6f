// Package catalog indexes the fixed list of popular stocks shown on the
// search page.
package catalog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"stockpro/models"
	"stockpro/observability"
)

// MaxResults caps Search
const MaxResults = 5

// PopularStocks are the display quotes of the search page, in display order
var PopularStocks = []models.PopularStock{
	{Symbol: "RELIANCE", Name: "Reliance Industries Ltd.", Price: 2856.15, Change: 42.35, ChangePercent: 1.51},
	{Symbol: "TCS", Name: "Tata Consultancy Services Ltd.", Price: 3897.5, Change: -23.75, ChangePercent: -0.61},
	{Symbol: "INFY", Name: "Infosys Ltd.", Price: 1672.8, Change: 15.2, ChangePercent: 0.92},
	{Symbol: "HDFCBANK", Name: "HDFC Bank Ltd.", Price: 1645.25, Change: -8.35, ChangePercent: -0.51},
	{Symbol: "ICICIBANK", Name: "ICICI Bank Ltd.", Price: 1098.6, Change: 22.4, ChangePercent: 2.08},
	{Symbol: "ITC", Name: "ITC Ltd.", Price: 435.75, Change: 5.25, ChangePercent: 1.22},
	{Symbol: "SBIN", Name: "State Bank of India", Price: 782.4, Change: 12.6, ChangePercent: 1.64},
	{Symbol: "BHARTIARTL", Name: "Bharti Airtel Ltd.", Price: 1125.3, Change: -7.2, ChangePercent: -0.64},
}

// document is what gets indexed: lowercased, untokenized symbol and name so a
// wildcard query behaves as a case-insensitive substring match
type document struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Catalog is an in-memory index over a stock list
type Catalog struct {
	index  bleve.Index
	stocks []models.PopularStock
}

// New indexes stocks, keeping their order for results
func New(stocks []models.PopularStock) (*Catalog, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for i, stock := range stocks {
		doc := document{
			Symbol: strings.ToLower(stock.Symbol),
			Name:   strings.ToLower(stock.Name),
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to add %s to batch: %w", stock.Symbol, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	observability.Debug("catalog indexed", "stocks", len(stocks))

	return &Catalog{
		index:  index,
		stocks: slices.Clone(stocks),
	}, nil
}

// NewPopular indexes PopularStocks
func NewPopular() (*Catalog, error) {
	return New(PopularStocks)
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = keyword.Name
	fieldMapping.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("symbol", fieldMapping)
	docMapping.AddFieldMappingsAt("name", fieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// All returns the full list in display order
func (c *Catalog) All() []models.PopularStock {
	return slices.Clone(c.stocks)
}

// Search matches query case-insensitively as a substring of symbol or name.
// Results keep display order and are capped at MaxResults; an empty query
// matches nothing.
func (c *Catalog) Search(query string) ([]models.PopularStock, error) {
	needle := strings.ToLower(strings.NewReplacer("*", "", "?", "").Replace(query))
	if needle == "" {
		return []models.PopularStock{}, nil
	}

	pattern := "*" + needle + "*"
	symbolQuery := bleve.NewWildcardQuery(pattern)
	symbolQuery.SetField("symbol")
	nameQuery := bleve.NewWildcardQuery(pattern)
	nameQuery.SetField("name")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(symbolQuery, nameQuery))
	req.Size = len(c.stocks)

	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	positions := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(c.stocks) {
			continue
		}
		positions = append(positions, pos)
	}
	slices.Sort(positions)

	results := make([]models.PopularStock, 0, min(len(positions), MaxResults))
	for _, pos := range positions {
		if len(results) == MaxResults {
			break
		}
		results = append(results, c.stocks[pos])
	}
	return results, nil
}

// Close releases the index
func (c *Catalog) Close() error {
	return c.index.Close()
}
