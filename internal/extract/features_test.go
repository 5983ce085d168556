package extract

import (
	"errors"
	"testing"
)

const featureResponse = `Here are the extracted features:

FEATURE 1:
Name: Dark Mode
Description: Add a dark color scheme toggle
Priority: High
Complexity: Low

FEATURE 2:
Name: Crash Reporting
Description: Capture and upload crash traces
Priority: high
Complexity: Medium
`

func TestFeaturesBasic(t *testing.T) {
	rec, err := Features(featureResponse, "")
	if err != nil {
		t.Fatalf("Features failed: %v", err)
	}
	if len(rec.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(rec.Features))
	}
	f := rec.Features[0]
	if f.Name != "Dark Mode" || f.Priority != "High" || f.Complexity != "Low" {
		t.Errorf("unexpected first feature: %+v", f)
	}
	// Casing is normalized.
	if rec.Features[1].Priority != "High" {
		t.Errorf("expected normalized priority High, got %s", rec.Features[1].Priority)
	}
	if rec.Features[0].AlignsWithPriority != nil {
		t.Error("alignment should not be set without a priority focus")
	}
}

func TestFeaturesDefaults(t *testing.T) {
	raw := "FEATURE 1:\nName: Search Improvements"
	rec, err := Features(raw, "")
	if err != nil {
		t.Fatalf("Features failed: %v", err)
	}
	f := rec.Features[0]
	if f.Priority != "Medium" || f.Complexity != "Medium" {
		t.Errorf("expected Medium defaults, got priority=%s complexity=%s", f.Priority, f.Complexity)
	}
	if f.Description != "No description available" {
		t.Errorf("unexpected default description: %q", f.Description)
	}
}

func TestFeaturesPriorityAlignment(t *testing.T) {
	raw := `FEATURE 1:
Name: Fix Crashes
Priority: High
Aligns with User Priority: Yes

FEATURE 2:
Name: New Themes
Priority: Low
Aligns with User Priority: No
`
	rec, err := Features(raw, "Prioritize Bug Fixes")
	if err != nil {
		t.Fatalf("Features failed: %v", err)
	}
	if rec.PriorityFocus != "Prioritize Bug Fixes" {
		t.Errorf("priority focus not carried: %q", rec.PriorityFocus)
	}
	if rec.Features[0].AlignsWithPriority == nil || !*rec.Features[0].AlignsWithPriority {
		t.Error("expected first feature to align")
	}
	if rec.Features[1].AlignsWithPriority == nil || *rec.Features[1].AlignsWithPriority {
		t.Error("expected second feature not to align")
	}
}

func TestFeaturesNamelessSectionDropped(t *testing.T) {
	raw := `FEATURE 1:
Priority: High

FEATURE 2:
Name: Real Feature
`
	rec, err := Features(raw, "")
	if err != nil {
		t.Fatalf("Features failed: %v", err)
	}
	if len(rec.Features) != 1 || rec.Features[0].Name != "Real Feature" {
		t.Errorf("expected only the named feature, got %+v", rec.Features)
	}
}

func TestFeaturesErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "no markers here at all"} {
		_, err := Features(raw, "")
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			t.Errorf("input %q: expected ExtractionError, got %v", raw, err)
		}
	}
}
