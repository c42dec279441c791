package logs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "DEBUG", want: zerolog.DebugLevel},
		{in: " warn ", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "trace", want: zerolog.TraceLevel},
		{in: "disabled", want: zerolog.Disabled},
		{in: "off", want: zerolog.Disabled},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf, nil)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("host", "r2").Msg("shown")

	var event map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event))
	assert.Equal(t, "shown", event["message"])
	assert.Equal(t, "r2", event["host"])
	assert.Equal(t, "warn", event["level"])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("info", "xml", &bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestManagerKeepsRecentEntries(t *testing.T) {
	m := NewManager()
	var console bytes.Buffer
	logger, err := New("debug", "console", &console, m)
	require.NoError(t, err)

	for i := 0; i < maxLogEntries+5; i++ {
		logger.Info().Int("n", i).Msg(fmt.Sprintf("event %d", i))
	}

	entries := m.GetLogs()
	require.Len(t, entries, maxLogEntries)
	assert.Equal(t, "event 5", entries[0].Message)
	assert.Equal(t, fmt.Sprintf("event %d", maxLogEntries+4), entries[len(entries)-1].Message)
	assert.Equal(t, "info", entries[0].Level)
	assert.Contains(t, string(entries[0].Fields), `"n":5`)
	assert.Contains(t, console.String(), "event 0")
}

func TestManagerWriteNonJSON(t *testing.T) {
	m := NewManager()
	n, err := m.Write([]byte("plain text\n"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	entries := m.GetLogs()
	require.Len(t, entries, 1)
	assert.Equal(t, "plain text", entries[0].Message)
}
