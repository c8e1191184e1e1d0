package broker

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSink is an EventSink that delivers broker events to sessions
// over individual websocket connections. Each session registers its
// connection with Register when it attaches, and deregisters with
// Unregister on disconnect; the broker itself never opens or accepts
// connections, matching the scope note that transport is a collaborator
// wired in by the host, not re-specified by the sync protocol.
type WebSocketSink struct {
	mu    sync.RWMutex
	conns map[SessionID]*websocket.Conn
}

// NewWebSocketSink constructs an empty session registry.
func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{conns: make(map[SessionID]*websocket.Conn)}
}

// Register associates a session with its websocket connection.
func (w *WebSocketSink) Register(session SessionID, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conns[session] = conn
}

// Unregister removes a session's connection, e.g. on disconnect.
func (w *WebSocketSink) Unregister(session SessionID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.conns, session)
}

// Send implements EventSink by framing event as JSON (via marshalDeltaFrame
// / marshalOwnerChangedFrame) and writing it as a single websocket text
// message.
func (w *WebSocketSink) Send(session SessionID, event Event) error {
	w.mu.RLock()
	conn, ok := w.conns[session]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("broker: no connection registered for session %s", session)
	}

	var (
		frame string
		err   error
	)
	switch event.Kind {
	case EventDelta:
		frame, err = marshalDeltaFrame(event.URI, event.Epoch, event.Seq, event.Tx)
	case EventOwnerChanged:
		frame, err = marshalOwnerChangedFrame(event.URI, event.Epoch, event.Owner)
	default:
		return fmt.Errorf("broker: unknown event kind %d", event.Kind)
	}
	if err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}
