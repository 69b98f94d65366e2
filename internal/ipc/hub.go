package ipc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/arcweave/phantom/internal/analysis/runner"
	"github.com/arcweave/phantom/internal/logger"
	"github.com/arcweave/phantom/internal/terminal"
)

const (
	hubWriteTimeout = 10 * time.Second
	hubReadLimit    = 1 << 20 // 1MB — a full-frame payload for a large terminal can run tens of KB
)

// Hub is the event-stream side of the command surface (spec §6): every
// connected UI client receives terminal frame/title/exit events for every
// session plus analysis status transitions, each wrapped in a typed
// Envelope the way the teacher's internal/ws protocol tags every message
// with Type. Grounded on the teacher's relay.PTYRoutes broadcast-to-many
// shape (internal/relay/pty_relay.go) and ws.Client's envelope dispatch
// loop (internal/ws/client.go), collapsed from wing/browser routing into
// a single fan-out broadcaster since phantom has exactly one local UI
// process per daemon rather than many browsers per wing.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]string // conn -> correlation id, for log lines
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]string)}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until
// the client disconnects. The daemon serves it on the TCP event-stream
// listener, and Server also routes GET /events on the unix socket to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("ipc: websocket accept failed", "err", err)
		return
	}
	conn.SetReadLimit(hubReadLimit)

	clientID := uuid.NewString()
	h.mu.Lock()
	h.clients[conn] = clientID
	h.mu.Unlock()
	logger.Info("ipc: event client connected", "client_id", clientID)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.CloseNow()
		logger.Info("ipc: event client disconnected", "client_id", clientID)
	}()

	// The event stream is write-only from the server's perspective; the
	// only reads here are to detect client-initiated close.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("ipc: marshal event", "err", err)
		return
	}

	h.mu.RLock()
	conns := make(map[*websocket.Conn]string, len(h.clients))
	for c, id := range h.clients {
		conns[c] = id
	}
	h.mu.RUnlock()

	for c, id := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), hubWriteTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			logger.Warn("ipc: dropping slow/closed client", "client_id", id, "err", err)
			go c.CloseNow()
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
		}
	}
}

// BroadcastTerminal fans a terminal.Event out to every connected client as
// the appropriately-typed envelope (spec §4.5, §6).
func (h *Hub) BroadcastTerminal(sessionID int, ev terminal.Event) {
	switch ev.Kind {
	case terminal.EventFullFrame:
		h.broadcast(FrameEvent{
			Type: TypeFullFrame, SessionID: sessionID, Cols: ev.Cols, Rows: ev.Rows,
			Cells: terminal.EncodeFrame(ev), CursorRow: ev.CursorRow, CursorCol: ev.CursorCol,
			CursorShape: int(ev.CursorShape), CursorVisible: ev.CursorVisible,
		})
	case terminal.EventDirtyRows:
		for _, row := range ev.DirtyRowList {
			y := row.Y
			h.broadcast(FrameEvent{
				Type: TypeDirtyRows, SessionID: sessionID, Cols: ev.Cols, Y: &y,
				Cells: encodeRow(row), CursorRow: ev.CursorRow, CursorCol: ev.CursorCol,
				CursorShape: int(ev.CursorShape), CursorVisible: ev.CursorVisible,
			})
		}
	case terminal.EventTitleChanged:
		h.broadcast(TitleEvent{Type: TypeTitleChanged, SessionID: sessionID, Title: ev.Title})
	case terminal.EventBell:
		h.broadcast(TitleEvent{Type: TypeBell, SessionID: sessionID})
	case terminal.EventExited:
		h.broadcast(ExitedEvent{Type: TypeExited, SessionID: sessionID, Code: ev.ExitCode})
	}
}

func encodeRow(row terminal.DirtyRow) []byte {
	return terminal.EncodeFrame(terminal.Event{
		Kind: terminal.EventDirtyRows,
		Cols: len(row.Cells),
		DirtyRowList: []terminal.DirtyRow{row},
	})
}

// BroadcastAnalysisStatus fans out a runner status transition (spec §6
// analysis:status_changed).
func (h *Hub) BroadcastAnalysisStatus(ev runner.StatusEvent) {
	h.broadcast(AnalysisStatusEvent{Type: TypeAnalysisStatus, AnalysisID: ev.AnalysisID, Status: string(ev.Status)})
}

// PumpRunnerEvents forwards the runner's status channel to the hub until
// ctx is canceled or the channel closes.
func (h *Hub) PumpRunnerEvents(ctx context.Context, events <-chan runner.StatusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.BroadcastAnalysisStatus(ev)
		}
	}
}
