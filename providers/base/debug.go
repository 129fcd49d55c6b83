package base

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// DebugLogger appends raw exchange records as JSONL. A nil logger is valid
// and discards everything. It is safe for concurrent use.
type DebugLogger struct {
	mu       sync.Mutex
	f        *os.File
	enc      *json.Encoder
	provider string
	model    string
}

// NewDebugLogger opens path for appending. An empty path disables logging
// and returns a nil logger.
func NewDebugLogger(path, provider, model string) (*DebugLogger, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &DebugLogger{f: f, enc: json.NewEncoder(f), provider: provider, model: model}, nil
}

func (l *DebugLogger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.f.Close()
	l.f, l.enc = nil, nil
	return err
}

// Record writes one typed entry. Byte slices holding JSON are embedded
// verbatim.
func (l *DebugLogger) Record(recordType string, data any) {
	if l == nil {
		return
	}
	if b, ok := data.([]byte); ok && json.Valid(b) {
		data = json.RawMessage(b)
	} else if ok {
		data = string(b)
	}
	rec := DebugRecord{
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Provider: l.provider,
		Model:    l.model,
		Type:     recordType,
		Data:     data,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enc == nil {
		return
	}
	_ = l.enc.Encode(rec)
}

// DebugRecord is a normalized JSONL entry.
type DebugRecord struct {
	Time     string `json:"time"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Type     string `json:"type"`
	Data     any    `json:"data,omitempty"`
}
