package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/duelo/pkg/logger"
)

const (
	// maxControlMessageSize bounds inbound frames; clients only send
	// small filter updates.
	maxControlMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// filterRequest is the only inbound message clients may send: a
// replacement for their player filter.
type filterRequest struct {
	Players []string `json:"players"`
}

// client ties one websocket connection to a hub subscription.
type client struct {
	hub  *Hub
	sub  *Subscription
	conn *websocket.Conn

	pingInterval time.Duration
	writeTimeout time.Duration

	logger logger.Logger
}

// ServeWS upgrades an HTTP request to a websocket connection and streams
// rating-change events to it until either side disconnects.
//
// The initial filter comes from the "players" query parameter (repeatable,
// "all" or absent means every player); clients may replace it at any time
// by sending {"players": [...]}.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpgrade, err)
	}

	sub := h.Subscribe(NewFilter(r.URL.Query()["players"]))

	c := &client{
		hub:          h,
		sub:          sub,
		conn:         conn,
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		logger:       h.logger.Named("conn"),
	}

	go c.writePump(r.Context())
	go c.readPump(r.Context())

	h.logger.Info(r.Context(), "subscriber connected",
		logger.String("subscriptionID", sub.ID),
		logger.String("remoteAddr", r.RemoteAddr),
	)
	return nil
}

// writePump moves events from the subscription to the connection and
// keeps the connection alive with pings. It owns all writes.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.sub.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug(ctx, "write failed, dropping subscriber",
					logger.String("subscriptionID", c.sub.ID),
					logger.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames: filter updates, pongs, and the
// eventual close. Any read error tears the subscription down.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unsubscribe(c.sub.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxControlMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(ctx, "subscriber read error",
					logger.String("subscriptionID", c.sub.ID),
					logger.Error(err),
				)
			}
			return
		}

		var req filterRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.logger.Debug(ctx, "ignoring malformed filter update",
				logger.String("subscriptionID", c.sub.ID),
			)
			continue
		}
		c.sub.SetFilter(NewFilter(req.Players))
	}
}
