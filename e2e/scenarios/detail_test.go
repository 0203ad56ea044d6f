package scenarios

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"stockpro/e2e"
	"stockpro/e2e/mocks"
	"stockpro/models"
)

func TestStockDetailWorkflow_Page(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodGet, "/stock/tcs")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	body := resp.Body.String()
	for _, want := range []string{
		"Tata Consultancy Services Limited (TCS) - Stock Analysis &amp; Price | StockPro",
		"<polyline",
		"13 Mar 2024",
		"15 Mar 2024",
		"As of 9:30:00 AM",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}

	requests := harness.MockServer().Requests(mocks.EndpointPrices)
	if len(requests) != 1 {
		t.Fatalf("expected 1 prices request, got %d", len(requests))
	}
	if requests[0].Path != "/stock/TCS/prices" || requests[0].Query != "days=30&limit=50&type=DAILY" {
		t.Errorf("unexpected prices request: %s?%s", requests[0].Path, requests[0].Query)
	}
	if n := len(harness.MockServer().Requests(mocks.EndpointDetails)); n != 0 {
		t.Errorf("expected the details endpoint to stay unused, got %d requests", n)
	}
}

func TestStockDetailWorkflow_PageShowsQuotedPrice(t *testing.T) {
	harness := setup(t, e2e.WithDetailsEndpoint())
	harness.MockServer().SetQuote("TCS", mocks.Quote{
		CompanyName: "Tata Consultancy Services Ltd.",
		LastPrice:   3850,
		NetChange:   -23.75,
		Sector:      "Technology",
	})

	resp := harness.DoRequest(http.MethodGet, "/stock/TCS")

	body := resp.Body.String()
	if !strings.Contains(body, "₹3850.00") {
		t.Error("expected the quoted price as headline")
	}
	if strings.Contains(body, "₹3897.50") {
		t.Error("expected the last chart point not to replace the quoted price")
	}
}

func TestStockDetailWorkflow_InvalidSymbol(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodGet, "/api/stock/no$such/prices")

	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.Code)
	}
	if n := len(harness.MockServer().Requests("")); n != 0 {
		t.Errorf("expected no upstream requests, got %d", n)
	}
}

func TestStockDetailWorkflow_Prices(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodGet, "/api/stock/tcs/prices?days=3")

	var prices []models.PricePoint
	decode(t, resp, &prices)

	if len(prices) != 3 {
		t.Fatalf("expected 3 points, got %d", len(prices))
	}
	if prices[0].Time != "2024-03-13" || prices[2].Price != 3897.5 {
		t.Errorf("expected upstream series passed through, got %+v", prices)
	}
	if prices[0].Volume == nil || *prices[0].Volume != 1200000 {
		t.Errorf("expected volume from upstream, got %v", prices[0].Volume)
	}
}

func TestStockDetailWorkflow_GeneratedPrices(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodGet, "/api/stock/unlisted/prices?days=5")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var prices []models.PricePoint
	decode(t, resp, &prices)

	if len(prices) == 0 {
		t.Fatal("expected a generated series")
	}
	for _, p := range prices {
		if p.Price <= 0 {
			t.Errorf("expected positive generated price, got %v", p.Price)
		}
	}
	if got := testutil.ToFloat64(harness.Metrics().FallbacksTotal.WithLabelValues("prices")); got != 1 {
		t.Errorf("expected 1 prices fallback, got %v", got)
	}
}

func TestStockDetailWorkflow_DetailsEndpoint(t *testing.T) {
	t.Run("quote from upstream", func(t *testing.T) {
		harness := setup(t, e2e.WithDetailsEndpoint())
		harness.MockServer().SetQuote("TCS", mocks.Quote{
			CompanyName: "Tata Consultancy Services Ltd.",
			LastPrice:   3897.5,
			NetChange:   -23.75,
			Industry:    "IT Services",
			Sector:      "Technology",
		})

		resp := harness.DoRequest(http.MethodGet, "/api/stock/tcs")

		var details models.StockDetails
		decode(t, resp, &details)
		if details.Name != "Tata Consultancy Services Ltd." || details.CurrentPrice != 3897.5 {
			t.Errorf("expected upstream quote, got %+v", details)
		}
		if details.Sector != "Technology" || details.Industry != "IT Services" {
			t.Errorf("expected sector and industry, got %+v", details)
		}
	})

	t.Run("missing quote is synthesized", func(t *testing.T) {
		harness := setup(t, e2e.WithDetailsEndpoint())

		resp := harness.DoRequest(http.MethodGet, "/api/stock/infy")

		var details models.StockDetails
		decode(t, resp, &details)
		if details.Name != "Infosys Limited" || details.CurrentPrice <= 0 {
			t.Errorf("expected synthesized details, got %+v", details)
		}
		if got := testutil.ToFloat64(harness.Metrics().FallbacksTotal.WithLabelValues("details")); got != 1 {
			t.Errorf("expected 1 details fallback, got %v", got)
		}
	})
}

func TestStockDetailWorkflow_ResponseCache(t *testing.T) {
	harness := setup(t, e2e.WithResponseCache(time.Minute))

	for i := 0; i < 3; i++ {
		resp := harness.DoRequest(http.MethodGet, "/api/stock/tcs/prices?days=3")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.Code)
		}
	}

	if n := len(harness.MockServer().Requests(mocks.EndpointPrices)); n != 1 {
		t.Errorf("expected 1 upstream request with caching, got %d", n)
	}
	if got := testutil.ToFloat64(harness.Metrics().CacheRequestsTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("expected 2 cache hits, got %v", got)
	}
}
