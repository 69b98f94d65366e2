// Package ipc exposes the command surface and event stream described in
// spec.md §6 to the (out-of-scope) UI shell. The command surface is
// plain net/http over a unix domain socket, grounded on the teacher's
// internal/transport/server.go; the event stream is a typed
// envelope/type JSON protocol over github.com/coder/websocket, grounded
// on the teacher's internal/ws/protocol.go and client.go. grpc+protobuf
// (the teacher's internal/egg/pb) was not available to ground against —
// the pack's retrieved copy has no generated stub package — so this
// transport pair stands in for it entirely.
package ipc

// Event type tags (spec §4.5, §6), mirroring the teacher's Type-tagged
// Envelope convention in internal/ws/protocol.go.
const (
	TypeFullFrame        = "terminal.full_frame"
	TypeDirtyRows        = "terminal.dirty_rows"
	TypeTitleChanged     = "terminal.title_changed"
	TypeBell             = "terminal.bell"
	TypeExited           = "terminal.exited"
	TypeAnalysisStatus   = "analysis.status_changed"
)

// Envelope wraps every event-stream message with a type field for
// routing, exactly as the teacher's ws.Envelope does.
type Envelope struct {
	Type string `json:"type"`
}

// FrameEvent carries a FullFrame or DirtyRows payload (spec §4.5). Cells
// is the flat 16-byte-per-cell wire blob from internal/terminal.EncodeFrame.
type FrameEvent struct {
	Type          string `json:"type"`
	SessionID     int    `json:"session_id"`
	Cols          int    `json:"cols,omitempty"`
	Rows          int    `json:"rows,omitempty"`
	Y             *int   `json:"y,omitempty"` // set only for a single dirty row entry
	Cells         []byte `json:"cells"`
	CursorRow     int    `json:"cursor_row"`
	CursorCol     int    `json:"cursor_col"`
	CursorShape   int    `json:"cursor_shape"`
	CursorVisible bool   `json:"cursor_visible"`
}

type TitleEvent struct {
	Type      string `json:"type"`
	SessionID int    `json:"session_id"`
	Title     string `json:"title"`
}

type ExitedEvent struct {
	Type      string `json:"type"`
	SessionID int    `json:"session_id"`
	Code      *int   `json:"code,omitempty"`
}

type AnalysisStatusEvent struct {
	Type       string `json:"type"`
	AnalysisID int64  `json:"analysis_id"`
	Status     string `json:"status"`
}
