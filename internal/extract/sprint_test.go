package extract

import (
	"errors"
	"testing"
)

const sprintResponse = `SPRINT 1:
Duration: 2 weeks
Features: Dark Mode, *Crash Reporting, Search Fixes
Goals: Stabilize the app
Dependencies: None

SPRINT 2:
Duration: 3 weeks
Features: Offline Sync
Goals: Ship sync
Dependencies: Sprint 1 crash fixes
Priority Features: Offline Sync
`

func TestSprintPlan(t *testing.T) {
	rec, err := SprintPlan(sprintResponse, true)
	if err != nil {
		t.Fatalf("SprintPlan failed: %v", err)
	}
	if len(rec.Sprints) != 2 {
		t.Fatalf("expected 2 sprints, got %d", len(rec.Sprints))
	}

	s1 := rec.Sprints[0]
	if s1.Number != 1 || s1.DurationWeeks != 2 {
		t.Errorf("unexpected sprint 1 header: %+v", s1)
	}
	if len(s1.Features) != 3 {
		t.Errorf("expected 3 features, got %v", s1.Features)
	}
	if len(s1.PriorityFeatures) != 1 || s1.PriorityFeatures[0] != "Crash Reporting" {
		t.Errorf("expected starred feature as priority, got %v", s1.PriorityFeatures)
	}
	if s1.Goals != "Stabilize the app" {
		t.Errorf("unexpected goals: %q", s1.Goals)
	}

	s2 := rec.Sprints[1]
	if s2.DurationWeeks != 3 {
		t.Errorf("expected 3 weeks, got %d", s2.DurationWeeks)
	}
	if len(s2.PriorityFeatures) != 1 || s2.PriorityFeatures[0] != "Offline Sync" {
		t.Errorf("expected explicit priority features line to win, got %v", s2.PriorityFeatures)
	}
}

func TestSprintPlanNoPriorityFocus(t *testing.T) {
	rec, err := SprintPlan(sprintResponse, false)
	if err != nil {
		t.Fatalf("SprintPlan failed: %v", err)
	}
	if rec.Sprints[0].PriorityFeatures != nil {
		t.Errorf("priority features should be empty without focus, got %v", rec.Sprints[0].PriorityFeatures)
	}
	// Star prefix is still stripped from the feature name.
	found := false
	for _, f := range rec.Sprints[0].Features {
		if f == "Crash Reporting" {
			found = true
		}
	}
	if !found {
		t.Errorf("starred feature not cleaned: %v", rec.Sprints[0].Features)
	}
}

func TestSprintPlanDefaultDuration(t *testing.T) {
	rec, err := SprintPlan("SPRINT 1:\nFeatures: Something", false)
	if err != nil {
		t.Fatalf("SprintPlan failed: %v", err)
	}
	if rec.Sprints[0].DurationWeeks != defaultSprintWeeks {
		t.Errorf("expected default duration, got %d", rec.Sprints[0].DurationWeeks)
	}
}

func TestSprintPlanErrors(t *testing.T) {
	for _, raw := range []string{"", "a plan without sprint markers"} {
		_, err := SprintPlan(raw, false)
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			t.Errorf("input %q: expected ExtractionError, got %v", raw, err)
		}
	}
}
