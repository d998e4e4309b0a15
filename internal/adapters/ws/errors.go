package ws

import "errors"

// Sentinel kinds for hub errors.
var (
	ErrSlowConsumer = errors.New("subscriber unresponsive")
	ErrUpgrade      = errors.New("websocket upgrade failed")
)
