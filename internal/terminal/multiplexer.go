package terminal

import "sync"

// Multiplexer maps numeric session IDs to Sessions (spec §4.4). IDs are
// dense, monotonically assigned, and never reissued within the process
// lifetime, even after removal.
type Multiplexer struct {
	mu       sync.RWMutex
	sessions map[int]*Session
	nextID   int
}

// NewMultiplexer creates an empty session map.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{sessions: make(map[int]*Session)}
}

// Create spawns a new session and assigns it the next monotonic ID. The
// counter advances only when the spawn succeeds, so IDs stay dense.
func (m *Multiplexer) Create(shell string, cols, rows uint16, cwd string, env []string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	sess, err := NewSession(id, shell, cols, rows, cwd, env)
	if err != nil {
		return nil, err
	}
	m.nextID++
	m.sessions[id] = sess
	return sess, nil
}

// Lookup returns the session for id, if any.
func (m *Multiplexer) Lookup(id int) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove deletes id from the map. The ID is never reissued.
func (m *Multiplexer) Remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// All returns a snapshot of every live session, for iteration at daemon
// shutdown.
func (m *Multiplexer) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Count reports the number of currently tracked sessions.
func (m *Multiplexer) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
