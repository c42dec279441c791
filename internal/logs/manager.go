package logs

import (
	"bytes"
	"container/list"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxLogEntries = 100

// Entry is one log event kept for the status server
type Entry struct {
	Time    time.Time       `json:"time"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Fields  json.RawMessage `json:"fields"`
}

// Manager keeps the most recent log events in memory. It is an io.Writer
// fed with zerolog JSON events.
type Manager struct {
	logs *list.List
	mu   sync.RWMutex
}

// NewManager creates a new log manager
func NewManager() *Manager {
	return &Manager{logs: list.New()}
}

// Write records one JSON event. Lines that do not decode are kept as messages.
func (m *Manager) Write(p []byte) (int, error) {
	line := bytes.TrimSpace(p)
	if len(line) == 0 {
		return len(p), nil
	}

	entry := &Entry{Time: time.Now()}
	var event map[string]any
	if err := json.Unmarshal(line, &event); err != nil {
		entry.Message = string(line)
	} else {
		entry.Fields = append(json.RawMessage(nil), line...)
		if v, ok := event[zerolog.LevelFieldName].(string); ok {
			entry.Level = v
		}
		if v, ok := event[zerolog.MessageFieldName].(string); ok {
			entry.Message = v
		}
		if v, ok := event[zerolog.TimestampFieldName].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				entry.Time = ts
			}
		}
	}

	m.addLogEntry(entry)
	return len(p), nil
}

// GetLogs returns current log entries, oldest first
func (m *Manager) GetLogs() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, m.logs.Len())
	for e := m.logs.Front(); e != nil; e = e.Next() {
		entries = append(entries, *(e.Value.(*Entry)))
	}
	return entries
}

// addLogEntry adds a new log entry to the collection
func (m *Manager) addLogEntry(entry *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.logs.Len() >= maxLogEntries {
		m.logs.Remove(m.logs.Front())
	}
	m.logs.PushBack(entry)
}

// ParseLevel maps a level name to a zerolog level. An empty name is info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "off", "none":
		return zerolog.Disabled, nil
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logs: unknown level %q", name)
	}
	return level, nil
}

// New builds the process logger. format is "console" or "json". When sink
// is set it receives every event as well.
func New(level, format string, out io.Writer, sink *Manager) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var w io.Writer
	switch strings.ToLower(format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
		w = out
	default:
		return zerolog.Nop(), fmt.Errorf("logs: unknown format %q", format)
	}
	if sink != nil {
		w = zerolog.MultiLevelWriter(w, sink)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
