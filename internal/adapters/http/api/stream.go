// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// StreamHandler handles websocket subscription requests.
type StreamHandler struct {
	subscriber Subscriber
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(subscriber Subscriber) *StreamHandler {
	return &StreamHandler{subscriber: subscriber}
}

// HandleSubscribe handles GET /ws requests. The upgrade writes its own
// error response on failure, so nothing more to do here.
func (h *StreamHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	_ = h.subscriber.ServeWS(w, r)
}
