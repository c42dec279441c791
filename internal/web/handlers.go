package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// LogEntryJSON represents a log entry in JSON format
type LogEntryJSON struct {
	Timestamp string          `json:"when"`
	UnixTime  int64           `json:"utime"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Fields    json.RawMessage `json:"fields,omitempty"`
}

// Response is the body of action endpoints
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// handleIndex renders the HTML status page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !s.templates.HasTemplate("status") {
		http.Error(w, "status page unavailable", http.StatusServiceUnavailable)
		return
	}

	data := PageData{Logs: s.monitor.GetLogs()}
	if report, ok := s.monitor.LastReport(); ok {
		data.Report = &report
	}

	content, err := s.templates.Render("status", data)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render status page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleStatusAPI returns the report of the last run, null before the first
func (s *Server) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var data any
	if report, ok := s.monitor.LastReport(); ok {
		data = report
	}
	s.writeJSON(w, map[string]any{"data": data})
}

// handleLogsAPI returns recent log entries
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := s.monitor.GetLogs()
	jsonLogs := make([]LogEntryJSON, len(entries))
	for i, entry := range entries {
		jsonLogs[i] = LogEntryJSON{
			Timestamp: entry.Time.Format(time.RFC3339),
			UnixTime:  entry.Time.Unix(),
			Level:     entry.Level,
			Message:   entry.Message,
			Fields:    entry.Fields,
		}
	}
	s.writeJSON(w, map[string]any{"data": jsonLogs})
}

// handleSyncAPI requests an immediate run
func (s *Server) handleSyncAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("Sync requested over HTTP")
	s.monitor.Trigger("http request")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Message: "sync scheduled"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}
