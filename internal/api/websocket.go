package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stockpro/internal/search"
	"stockpro/models"
	"stockpro/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	outboxSize     = 32
)

// clientMessage is sent by the search box
type clientMessage struct {
	Type   string `json:"type"`
	Query  string `json:"query,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// tickerEvent tells the page to refresh its ticker bar
type tickerEvent struct {
	Type   string                 `json:"type"`
	Ticker *models.TickerSnapshot `json:"ticker,omitempty"`
}

// HandleSearchSocket runs one search session over a websocket. The client
// sends input, focus, blur and select messages and receives state, navigate
// and ticker events.
func (h *Handler) HandleSearchSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		observability.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sessionID := uuid.NewString()
	logger := observability.WithSession(sessionID)
	metrics := observability.GetMetrics()
	metrics.SearchSessionOpened()
	defer metrics.SearchSessionClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbox := make(chan any, outboxSize)
	emit := func(ev search.Event) {
		select {
		case outbox <- ev:
		default:
			logger.Warn("search event dropped, client too slow", "type", ev.Type)
		}
	}

	flow := search.NewFlow(ctx, h.app.Market(), emit,
		search.WithDebounce(h.cfg.Search.Debounce()),
		search.WithMinQueryLength(h.cfg.Search.MinQueryLength),
		search.WithSessionID(sessionID),
	)
	defer flow.Close()

	var updates <-chan models.TickerSnapshot
	if h.feed != nil {
		ch, unsubscribe := h.feed.Subscribe()
		defer unsubscribe()
		updates = ch
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, outbox, updates)
		cancel()
		conn.Close()
	}()

	logger.Debug("search session opened")
	h.readLoop(conn, flow, logger)

	cancel()
	<-done
	conn.Close()
	logger.Debug("search session closed")
}

func (h *Handler) readLoop(conn *websocket.Conn, flow *search.Flow, logger *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("search socket read failed", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("ignoring malformed search message", "error", err)
			continue
		}

		switch msg.Type {
		case "input":
			flow.Input(msg.Query)
		case "focus":
			flow.Focus()
		case "blur":
			flow.Blur()
		case "select":
			flow.Select(msg.Symbol)
		default:
			logger.Debug("ignoring unknown search message", "type", msg.Type)
		}
	}
}

// writeLoop owns every write to conn until ctx ends or a write fails
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan any, updates <-chan models.TickerSnapshot) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	write := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-outbox:
			if err := write(msg); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := write(tickerEvent{Type: "ticker", Ticker: &snap}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
