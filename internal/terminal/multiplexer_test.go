package terminal

import "testing"

func TestMultiplexerCreateAssignsMonotonicIDs(t *testing.T) {
	m := NewMultiplexer()

	s1, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s1.Close()
	s2, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s2.Close()

	if s1.ID != 0 || s2.ID != 1 {
		t.Errorf("IDs = %d, %d, want 0, 1", s1.ID, s2.ID)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestMultiplexerLookup(t *testing.T) {
	m := NewMultiplexer()
	s, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	got, ok := m.Lookup(s.ID)
	if !ok || got != s {
		t.Errorf("Lookup(%d) = (%v, %v), want (%v, true)", s.ID, got, ok, s)
	}

	if _, ok := m.Lookup(999); ok {
		t.Error("Lookup(999) found a session that was never created")
	}
}

func TestMultiplexerRemoveNeverReissuesID(t *testing.T) {
	m := NewMultiplexer()
	s1, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s1.Close()
	m.Remove(s1.ID)

	if _, ok := m.Lookup(s1.ID); ok {
		t.Error("Lookup found a removed session")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after Remove", m.Count())
	}

	s2, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s2.Close()
	if s2.ID == s1.ID {
		t.Errorf("removed id %d was reissued", s1.ID)
	}
	if s2.ID != s1.ID+1 {
		t.Errorf("new session id = %d, want %d (monotonic, never reused)", s2.ID, s1.ID+1)
	}
}

func TestMultiplexerAllReturnsSnapshot(t *testing.T) {
	m := NewMultiplexer()
	s1, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s1.Close()
	s2, err := m.Create("/bin/sh", 80, 24, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s2.Close()

	all := m.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d sessions, want 2", len(all))
	}
}
