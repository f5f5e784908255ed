package logger

import "sync"

// Entry is one captured log line.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// MemoryLogger keeps entries in memory. Used by tests and the CLI's
// transition trace.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Debug(msg string, fields map[string]any) { m.add("debug", msg, fields) }
func (m *MemoryLogger) Info(msg string, fields map[string]any)  { m.add("info", msg, fields) }
func (m *MemoryLogger) Warn(msg string, fields map[string]any)  { m.add("warn", msg, fields) }
func (m *MemoryLogger) Error(msg string, fields map[string]any) { m.add("error", msg, fields) }

func (m *MemoryLogger) add(level, msg string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

// Entries returns a copy of everything logged so far.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Has reports whether a line with msg was logged at level.
func (m *MemoryLogger) Has(level, msg string) bool {
	for _, e := range m.Entries() {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}
