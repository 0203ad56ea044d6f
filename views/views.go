// Package views renders the site's pages and fragments as templ components.
// Page bodies are html/template files embedded in the binary.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"stockpro/internal/app"
	"stockpro/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var numberPrinter = message.NewPrinter(language.English)

var funcs = template.FuncMap{
	"money": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 2, 64)
	},
	"abs": math.Abs,
	// signed prefixes non-negative figures; the sign is markup so it is not
	// escaped to &#43;
	"signed": func(v float64) template.HTML {
		if v >= 0 {
			return "+"
		}
		return ""
	},
	"count": func(v float64) string {
		return numberPrinter.Sprintf("%d", int64(v))
	},
	"monogram": func(symbol string) string {
		r := []rune(symbol)
		return string(r[:min(2, len(r))])
	},
	"clock": func(t time.Time) string {
		return t.Format("3:04:05 PM")
	},
	"chartWidth":  func() int { return app.ChartWidth },
	"chartHeight": func() int { return app.ChartHeight },
}

var pages = template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

// Feature is a landing page selling point
type Feature struct {
	Icon        string
	Title       string
	Description string
}

// Features are shown on the landing page
var Features = []Feature{
	{Icon: "📊", Title: "Advanced Analytics", Description: "Deep insights with technical indicators and performance metrics"},
	{Icon: "⚡", Title: "Real-time Data", Description: "Live market data with minimal latency for informed decisions"},
	{Icon: "🔒", Title: "Secure & Reliable", Description: "Bank-level security ensuring your data remains protected"},
	{Icon: "👥", Title: "User-friendly", Description: "Intuitive interface designed for both beginners and experts"},
	{Icon: "🌍", Title: "Global Coverage", Description: "Access to stocks from multiple exchanges worldwide"},
	{Icon: "🔍", Title: "Smart Search", Description: "Find stocks instantly with intelligent search algorithms"},
}

// LandingStocks are the quick links of the landing page
var LandingStocks = []models.SearchResult{
	{Symbol: "RELIANCE", Name: "Reliance Industries"},
	{Symbol: "TCS", Name: "Tata Consultancy Services"},
	{Symbol: "INFY", Name: "Infosys"},
	{Symbol: "HDFC", Name: "HDFC Bank"},
	{Symbol: "ICICI", Name: "ICICI Bank"},
	{Symbol: "ITC", Name: "ITC Limited"},
}

// LandingData feeds the landing page
type LandingData struct {
	Ticker   models.TickerSnapshot
	Features []Feature
	Stocks   []models.SearchResult
}

// SearchData feeds the search page
type SearchData struct {
	Ticker         models.TickerSnapshot
	Popular        []models.PopularStock
	MinQueryLength int
}

// StockData feeds the detail page
type StockData struct {
	Ticker models.TickerSnapshot
	View   *app.DetailView
}

// ErrorData feeds the error page
type ErrorData struct {
	Status  int
	Message string
}

type page struct {
	Title string
	Body  string
	Data  any
}

// render executes a page body inside the shared layout
func render(title, body string, data any) templ.Component {
	return templ.FromGoHTML(pages.Lookup("layout"), page{Title: title, Body: body, Data: data})
}

// Landing renders the marketing landing page
func Landing(data LandingData) templ.Component {
	if data.Features == nil {
		data.Features = Features
	}
	if data.Stocks == nil {
		data.Stocks = LandingStocks
	}
	return render("StockPro - Intelligent Stock Analysis", "landing", data)
}

// Search renders the search page
func Search(data SearchData) templ.Component {
	return render("Stock Search | StockPro", "search", data)
}

// Stock renders a detail page
func Stock(data StockData) templ.Component {
	d := data.View.Details
	return render(d.Name+" ("+d.Symbol+") - Stock Analysis & Price | StockPro", "stock", data)
}

// ErrorPage renders a full error page
func ErrorPage(data ErrorData) templ.Component {
	return render("Error | StockPro", "error", data)
}

// TickerBar renders the ticker fragment polled by the page
func TickerBar(snap models.TickerSnapshot) templ.Component {
	return templ.FromGoHTML(pages.Lookup("ticker"), snap)
}

// ErrorState renders an inline error fragment
func ErrorState(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="error-state" role="alert">`+template.HTMLEscapeString(message)+`</div>`)
		return err
	})
}
