package api

import (
	"time"

	"listens/pkg/storage"
)

// LogResponse is the body of every POST /log reply.
type LogResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Pagination struct {
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Limit       int `json:"limit"`
}

type EntriesResponse struct {
	Entries    []storage.Entry `json:"entries"`
	Pagination Pagination      `json:"pagination"`
}

// LogEntry is one access-log record shipped to Kafka; the logkeeper binary
// consumes the same shape on the other side.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}
