package rpcsrv

import (
	"github.com/dankorotin/countergo/pkg/counterrpc"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

type (
	// intEvent is an internal event that has both a proper structure and
	// a websocket-ready message.
	intEvent struct {
		msg *websocket.PreparedMessage
		ntf *counterrpc.Notification
	}
	// subscriber is an event subscriber.
	subscriber struct {
		writer    chan<- intEvent
		overflown atomic.Bool
		// feeds are subscription slots, there is not a lot of them per
		// client so a plain array is cheaper than a map.
		feeds [maxFeeds]counterrpc.EventID
	}
)

const (
	// Maximum number of subscriptions per one client.
	maxFeeds = 16

	// This sets notification messages buffer depth: it's the reading speed
	// of the client that ultimately matters, events are dropped (with the
	// connection then being closed) when this buffer overflows.
	notificationBufSize = 1024
)
