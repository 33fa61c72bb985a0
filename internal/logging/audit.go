package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// MutationRecord is one admin mutation attempt as seen by an entity store.
type MutationRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	MutationID string    `json:"mutation_id"`
	Store      string    `json:"store"`
	Kind       string    `json:"kind"`
	TargetID   string    `json:"target_id,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Committed  bool      `json:"committed"`
	Error      string    `json:"error,omitempty"`
}

// AuditLog writes mutation records as JSON lines and, optionally, a short
// human-readable line per record.
type AuditLog struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console io.Writer
	now     func() time.Time
}

var defaultAudit = &AuditLog{now: time.Now}

// Audit returns the process audit log. It is disabled until SetOutput or
// SetConsole is called.
func Audit() *AuditLog {
	return defaultAudit
}

// NewAuditLog returns an enabled audit log that writes human-readable
// lines to console. Pass nil to keep it silent until SetOutput.
func NewAuditLog(console io.Writer) *AuditLog {
	return &AuditLog{enabled: console != nil, console: console, now: time.Now}
}

// SetOutput appends JSON lines to the file at path.
func (a *AuditLog) SetOutput(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		a.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	a.file = f
	a.enabled = true
	return nil
}

// SetConsole sets the human-readable destination. nil disables it.
func (a *AuditLog) SetConsole(w io.Writer) {
	a.mu.Lock()
	a.console = w
	if w != nil {
		a.enabled = true
	}
	a.mu.Unlock()
}

// Record writes one entry. It is a no-op while the log is disabled.
func (a *AuditLog) Record(entry MutationRecord) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now()
	}

	if a.console != nil {
		status := "✓"
		if !entry.Committed {
			status = "✗ rolled back"
		}
		target := ""
		if entry.TargetID != "" {
			target = " " + entry.TargetID
		}
		fmt.Fprintf(a.console, "[mutation] %s %s.%s%s %dms\n",
			status, entry.Store, entry.Kind, target, entry.DurationMs)
		if entry.Error != "" {
			fmt.Fprintf(a.console, "[mutation]   error: %s\n", entry.Error)
		}
	}

	if a.file != nil {
		data, _ := json.Marshal(entry)
		a.file.Write(append(data, '\n'))
	}
}

// Close closes the JSON lines file.
func (a *AuditLog) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		a.file.Close()
		a.file = nil
	}
}
