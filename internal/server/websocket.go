package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/loganszeto/respcache/internal/protocol"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

// WSHandler serves the wire protocol over WebSocket. Inbound messages are
// treated as stream chunks, so a frame may span messages and one message
// may hold several frames. Every reply goes out as its own binary message.
type WSHandler struct {
	st       store.Store
	stats    *stats.Stats
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(st store.Store, counters *stats.Stats, logger *log.Logger) *WSHandler {
	if logger == nil {
		logger = log.Default()
	}
	if counters == nil {
		counters = stats.New()
	}
	return &WSHandler{
		st:     st,
		stats:  counters,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(protocol.MaxBulkLen)

	h.stats.RecordConnOpened()
	defer h.stats.RecordConnClosed()

	sess := NewSession(h.st, h.stats)
	out := wsWriter{conn: conn}
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("ws %s: read: %v", r.RemoteAddr, err)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := sess.Feed(payload, out); err != nil {
			h.logger.Printf("ws %s: write: %v", r.RemoteAddr, err)
			return
		}
	}
}

type wsWriter struct {
	conn *websocket.Conn
}

func (w wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
