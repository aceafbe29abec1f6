package ingest

import (
	"time"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/models"
)

// BroadcastPayload is the single message shape sent to connected clients
// whenever a tick produces a non-empty changed set.
type BroadcastPayload struct {
	Type      string         `json:"type"`
	Courts    []models.Court `json:"courts"`
	ScrapedAt time.Time      `json:"scrapedAt"`
}

// Broadcaster is the ingest core's narrow view of a real-time transport.
type Broadcaster interface {
	Broadcast(payload BroadcastPayload)
}

// SocketIOBroadcaster fans a tick's delta out to every connected client over
// a shared Socket.IO room, the same server object the read API's connection
// handlers attach to.
type SocketIOBroadcaster struct {
	server *socketio.Server
	room   string
}

// NewSocketIOBroadcaster wraps an already-running Socket.IO server.
func NewSocketIOBroadcaster(server *socketio.Server) *SocketIOBroadcaster {
	return &SocketIOBroadcaster{server: server, room: "courtwatch"}
}

// Broadcast emits a COURT_DELTA event to every client in the shared room.
func (b *SocketIOBroadcaster) Broadcast(payload BroadcastPayload) {
	if b.server == nil {
		return
	}
	b.server.BroadcastToRoom("/", b.room, "COURT_DELTA", payload)
	zap.S().Debugw("broadcast court delta", "changedCourts", len(payload.Courts))
}
