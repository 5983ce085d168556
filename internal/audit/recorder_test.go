package audit

import (
	"errors"
	"sync"
	"testing"

	"evoplan/internal/models"
)

type captureSink struct {
	mu      sync.Mutex
	entries []models.LogEntry
	fail    bool
}

func (s *captureSink) AppendLog(entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecorderAppendsInOrder(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder("run-1", sink)

	rec.Log("first")
	rec.Log("second")

	entries := rec.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "first" || entries[1].Message != "second" {
		t.Errorf("entries out of order: %+v", entries)
	}
	if entries[0].RunID != "run-1" || entries[0].ID == "" {
		t.Errorf("entry missing identity fields: %+v", entries[0])
	}
	if len(sink.entries) != 2 {
		t.Errorf("sink received %d entries, want 2", len(sink.entries))
	}
}

func TestRecorderSurvivesSinkFailure(t *testing.T) {
	rec := NewRecorder("run-1", &captureSink{fail: true})
	rec.Log("still recorded")
	if len(rec.Entries()) != 1 {
		t.Error("entry should be kept even when the sink fails")
	}
}

func TestRecorderNilSink(t *testing.T) {
	rec := NewRecorder("run-1", nil)
	rec.Log("no sink")
	if len(rec.Entries()) != 1 {
		t.Error("expected 1 entry")
	}
}

func TestRecorderEntriesIsACopy(t *testing.T) {
	rec := NewRecorder("run-1", nil)
	rec.Log("original")
	entries := rec.Entries()
	entries[0].Message = "mutated"
	if rec.Entries()[0].Message != "original" {
		t.Error("Entries must return a copy")
	}
}
