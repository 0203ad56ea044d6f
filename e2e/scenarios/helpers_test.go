package scenarios

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stockpro/e2e"
	"stockpro/internal/search"
	"stockpro/models"
)

func setup(t *testing.T, opts ...e2e.Option) *e2e.TestHarness {
	t.Helper()
	harness := e2e.NewTestHarness(t)
	if err := harness.Setup(opts...); err != nil {
		t.Fatalf("failed to setup test harness: %v", err)
	}
	t.Cleanup(harness.Teardown)
	return harness
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

type socketMessage struct {
	Type     string                 `json:"type"`
	State    *search.State          `json:"state"`
	Location string                 `json:"location"`
	Ticker   *models.TickerSnapshot `json:"ticker"`
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(socketMessage) bool) socketMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	for {
		var msg socketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read socket: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}
