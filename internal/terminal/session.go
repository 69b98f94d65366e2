package terminal

import (
	"sync"

	"github.com/arcweave/phantom/internal/pty"
	"github.com/arcweave/phantom/internal/vt"
)

// Session pairs one PTY host with one VT engine (spec §4.3, §3). It is the
// sole mutator of its own VT engine and dirty set; the render pump is its
// only reader/driver.
type Session struct {
	ID int

	mu          sync.Mutex
	host        *pty.Host
	engine      *vt.Engine
	cols, rows  int
	frameVer    uint64
	dirty       map[int]struct{}
	forceFull   bool
	title       string
	alive       bool
}

// NewSession spawns a PTY and VT engine pair of the given dimensions.
func NewSession(id int, shell string, cols, rows uint16, cwd string, env []string) (*Session, error) {
	host, err := pty.Spawn(shell, cols, rows, cwd, env)
	if err != nil {
		return nil, err
	}
	engine := vt.NewEngine(int(cols), int(rows))
	return &Session{
		ID:        id,
		host:      host,
		engine:    engine,
		cols:      int(cols),
		rows:      int(rows),
		dirty:     make(map[int]struct{}),
		forceFull: true, // first drain after creation is always a FullFrame
		alive:     true,
	}, nil
}

// WriteInput forwards bytes to the PTY (spec §4.3 write_input).
func (s *Session) WriteInput(b []byte) (int, error) {
	return s.host.Write(b)
}

// Resize resizes both the PTY and VT engine and forces the next drain to
// be a FullFrame (spec §4.3 resize).
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	s.cols, s.rows = int(cols), int(rows)
	s.forceFull = true
	s.mu.Unlock()

	s.engine.Resize(int(cols), int(rows))
	return s.host.Resize(cols, rows)
}

// ReadAndAdvance performs one non-blocking PTY read and, if any bytes were
// received, feeds them into the VT engine and records which rows changed.
// Returns (exited, err): exited is true once the child has terminated and
// err carries the exit code via *pty.ChildExitedError.
func (s *Session) ReadAndAdvance() (exited bool, err error) {
	b, err := s.host.ReadNonblocking()
	if err != nil {
		s.mu.Lock()
		s.alive = false
		s.mu.Unlock()
		return true, err
	}
	if len(b) == 0 {
		return false, nil
	}

	before := s.engine.Screen()
	s.engine.ProcessBytes(b)
	after := s.engine.Screen()

	s.mu.Lock()
	for y := 0; y < len(after.Cells) && y < len(before.Cells); y++ {
		if !rowEqual(before.Cells[y], after.Cells[y]) {
			s.dirty[y] = struct{}{}
		}
	}
	if title := s.engine.Title(); title != s.title {
		s.title = title
	}
	s.mu.Unlock()

	return false, nil
}

func rowEqual(a, b []vt.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DrainFrame atomically clears the dirty set, increments frame_version,
// and returns the event to deliver (spec §4.3 drain_frame): a FullFrame
// when no prior frame was emitted, after a resize, or after a dimension
// change; otherwise a DirtyRows carrying only the changed rows.
// ok is false when there is nothing to report (idle suppression, spec §4.5).
func (s *Session) DrainFrame() (ev Event, ok bool) {
	s.mu.Lock()
	full := s.forceFull
	dirtyRows := make([]int, 0, len(s.dirty))
	for y := range s.dirty {
		dirtyRows = append(dirtyRows, y)
	}
	s.forceFull = false
	s.dirty = make(map[int]struct{})
	s.frameVer++
	cols, rows := s.cols, s.rows
	s.mu.Unlock()

	if !full && len(dirtyRows) == 0 {
		return Event{}, false
	}

	cursor := s.engine.Cursor()
	base := Event{
		SessionID:     s.ID,
		Cols:          cols,
		Rows:          rows,
		CursorRow:     cursor.Row,
		CursorCol:     cursor.Col,
		CursorShape:   cursor.Shape,
		CursorVisible: cursor.Visible,
	}

	if full {
		grid := s.engine.Screen()
		base.Kind = EventFullFrame
		base.Cells = grid.Cells
		return base, true
	}

	grid := s.engine.Screen()
	base.Kind = EventDirtyRows
	rowsOut := make([]DirtyRow, 0, len(dirtyRows))
	for _, y := range dirtyRows {
		if y < 0 || y >= len(grid.Cells) {
			continue
		}
		rowsOut = append(rowsOut, DirtyRow{Y: y, Cells: grid.Cells[y]})
	}
	base.DirtyRowList = rowsOut
	return base, true
}

// Title returns the last-known window title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Alive reports whether the session's child process is still running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Close releases the PTY and VT resources. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
	hostErr := s.host.Close()
	vtErr := s.engine.Close()
	if hostErr != nil {
		return hostErr
	}
	return vtErr
}
