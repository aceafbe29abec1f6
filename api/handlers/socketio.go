package handlers

import (
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"go.uber.org/zap"
)

const broadcastRoom = "courtwatch"

var server *socketio.Server

// InitializeSocketIO starts the Socket.IO server clients use to receive
// COURT_DELTA broadcasts. Every connection is auto-joined to the single
// shared room - there is no per-community partitioning in this domain, so
// there is nothing to opt into.
func InitializeSocketIO() *socketio.Server {
	server = socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			polling.Default,
			websocket.Default,
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.Join(broadcastRoom)
		zap.S().Debugw("socket.io client connected", "id", s.ID())
		return nil
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		zap.S().Warnw("socket.io error", "error", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		zap.S().Debugw("socket.io client disconnected", "id", s.ID(), "reason", reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			zap.S().Fatalw("socket.io server error", "error", err)
		}
	}()

	return server
}

// GetSocketIOServer returns the running Socket.IO server, or nil before
// InitializeSocketIO has been called.
func GetSocketIOServer() *socketio.Server {
	return server
}
