// Package audit provides the per-run execution log: timestamped entries
// mirrored to the process log and, when a sink is attached, persisted.
package audit

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"evoplan/internal/models"
)

// Sink receives every recorded entry. Implementations must be safe for
// concurrent use; errors are logged and otherwise ignored so a persistence
// hiccup never fails a run.
type Sink interface {
	AppendLog(entry models.LogEntry) error
}

// Recorder accumulates the execution log for one run.
type Recorder struct {
	mu      sync.Mutex
	runID   string
	sink    Sink
	entries []models.LogEntry
}

// NewRecorder creates a recorder for the given run. sink may be nil.
func NewRecorder(runID string, sink Sink) *Recorder {
	return &Recorder{runID: runID, sink: sink}
}

// Log appends one timestamped entry and mirrors it to the process log.
func (r *Recorder) Log(message string) models.LogEntry {
	entry := models.LogEntry{
		ID:        uuid.New().String(),
		RunID:     r.runID,
		Message:   message,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	log.Printf("[run %s] %s", shortID(r.runID), message)

	if r.sink != nil {
		if err := r.sink.AppendLog(entry); err != nil {
			log.Printf("audit: failed to persist log entry: %v", err)
		}
	}
	return entry
}

// Entries returns a copy of everything recorded so far, in order.
func (r *Recorder) Entries() []models.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
