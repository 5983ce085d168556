package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"evoplan/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "evoplan.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() *models.PipelineRun {
	now := time.Now().UTC().Truncate(time.Second)
	started := now.Add(-time.Minute)
	return &models.PipelineRun{
		ID:         uuid.New().String(),
		Mode:       models.ModeSequential,
		State:      models.RunStateFinished,
		Outcome:    models.OutcomeComplete,
		StageOrder: []string{"analyze_feedback", "generate_features"},
		Tasks: map[string]*models.Task{
			"analyze_feedback": {
				ID:        uuid.New().String(),
				StageID:   "analyze_feedback",
				Prompt:    "analyze this",
				RawText:   "Category: Bug (3)",
				Record:    &models.FeedbackRecord{Categories: []models.CategoryCount{{Category: "Bug", Count: 3}}},
				Status:    models.StageStatusDone,
				Iteration: 1,
				StartedAt: &started,
				EndedAt:   &now,
			},
			"generate_features": {
				ID:      uuid.New().String(),
				StageID: "generate_features",
				Status:  models.StageStatusFailed,
				Error:   "provider error (server): boom",
			},
		},
		Iterations: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()

	if err := s.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Mode != run.Mode || got.State != run.State || got.Outcome != run.Outcome {
		t.Errorf("run header mismatch: %+v", got)
	}
	if len(got.StageOrder) != 2 || got.StageOrder[0] != "analyze_feedback" {
		t.Errorf("stage order mismatch: %v", got.StageOrder)
	}

	task := got.Tasks["analyze_feedback"]
	if task == nil {
		t.Fatal("analyze_feedback task missing")
	}
	if task.Status != models.StageStatusDone || task.RawText != "Category: Bug (3)" {
		t.Errorf("task mismatch: %+v", task)
	}
	if task.Record == nil {
		t.Error("record should round-trip")
	}
	if task.StartedAt == nil || task.EndedAt == nil {
		t.Error("timestamps should round-trip")
	}
	if got.Tasks["generate_features"].Error == "" {
		t.Error("task error should round-trip")
	}
}

func TestSaveRunUpserts(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()
	run.State = models.RunStateRunning
	run.Outcome = ""

	if err := s.SaveRun(run); err != nil {
		t.Fatalf("first SaveRun failed: %v", err)
	}

	run.State = models.RunStateFinished
	run.Outcome = models.OutcomePartial
	run.Resume = &models.ResumeInput{Notes: "focus on bugs", SelectedCategories: []string{"bug"}}
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("second SaveRun failed: %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.State != models.RunStateFinished || got.Outcome != models.OutcomePartial {
		t.Errorf("upsert did not apply: %+v", got)
	}
	if got.Resume == nil || got.Resume.Notes != "focus on bugs" {
		t.Errorf("resume input did not round-trip: %+v", got.Resume)
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run after upsert, got %d", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetRun("missing")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a missing run")
	}
}

func TestLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	runID := uuid.New().String()

	base := time.Now().UTC().Truncate(time.Second)
	for i, msg := range []string{"Starting sequential workflow", "Executing task: analyze_feedback"} {
		err := s.AppendLog(models.LogEntry{
			ID:        uuid.New().String(),
			RunID:     runID,
			Message:   msg,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	entries, err := s.GetLog(runID)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "Starting sequential workflow" {
		t.Errorf("entries out of order: %+v", entries)
	}
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun()
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.AppendLog(models.LogEntry{ID: uuid.New().String(), RunID: run.ID, Message: "x", Timestamp: time.Now()}); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Error("runs should be gone after reset")
	}
	entries, err := s.GetLog(run.ID)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if len(entries) != 0 {
		t.Error("log entries should be gone after reset")
	}
}
