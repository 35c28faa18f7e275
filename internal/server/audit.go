package server

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// AuditEntry records one handled upload.
type AuditEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	UploadID   string    `json:"upload_id"`
	RemoteIP   string    `json:"remote_ip,omitempty"`
	Name       string    `json:"name,omitempty"`
	Result     string    `json:"result"`
	Bytes      int64     `json:"bytes"`
	Lines      int       `json:"lines,omitempty"`
	Entries    int       `json:"entries,omitempty"`
	Rejects    int       `json:"rejects,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// AuditLogger appends JSONL audit records to a file.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewAuditLogger opens path for appending, creating it if needed.
func NewAuditLogger(path string) (*AuditLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &AuditLogger{file: f, enc: json.NewEncoder(f)}, nil
}

// Log writes an entry. Safe for concurrent use; a nil logger is a no-op.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(entry)
}

func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	return a.file.Close()
}
