// Package terminal implements the Session (C3), Multiplexer (C4), and
// render pump (C5): pairing PTY hosts with VT engines and streaming
// encoded frame events to the UI at 60 Hz. Grounded on the teacher's
// internal/egg/server.go (PTY lifecycle, per-session goroutine,
// replay/backpressure idioms), generalized from its single wrapped
// process to a multiplexed session map with structured frame events in
// place of raw ANSI replay.
package terminal

import "github.com/arcweave/phantom/internal/vt"

// EventKind tags the variant carried by Event.
type EventKind int

const (
	EventFullFrame EventKind = iota
	EventDirtyRows
	EventTitleChanged
	EventBell
	EventExited
)

// DirtyRow is one changed row, paired with its current contents.
type DirtyRow struct {
	Y     int
	Cells []vt.Cell
}

// Event is the tagged union of frame-shaped events delivered to the UI
// event stream (spec §4.5, §6). Only the fields relevant to Kind are set.
type Event struct {
	SessionID int
	Kind      EventKind

	// FullFrame / DirtyRows
	Cols, Rows    int
	Cells         [][]vt.Cell // full grid rows, FullFrame only
	DirtyRowList  []DirtyRow  // DirtyRows only
	CursorRow     int
	CursorCol     int
	CursorShape   vt.CursorShape
	CursorVisible bool

	// TitleChanged
	Title string

	// Exited
	ExitCode *int
}

// EncodeFrame renders a FullFrame or DirtyRows event into the wire
// payload described in spec §6: a flat, little-endian, 16-byte-per-cell
// byte stream plus the header scalars. Callers serialize the header in
// whatever envelope the transport uses (see internal/ipc) and append this
// payload as the cells blob.
func EncodeFrame(e Event) []byte {
	switch e.Kind {
	case EventFullFrame:
		buf := make([]byte, 0, e.Cols*e.Rows*16)
		for _, row := range e.Cells {
			buf = vt.EncodeRow(buf, row)
		}
		return buf
	case EventDirtyRows:
		buf := make([]byte, 0, len(e.DirtyRowList)*e.Cols*16)
		for _, r := range e.DirtyRowList {
			buf = vt.EncodeRow(buf, r.Cells)
		}
		return buf
	default:
		return nil
	}
}
