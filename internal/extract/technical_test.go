package extract

import (
	"errors"
	"testing"
)

func TestTechnicalSections(t *testing.T) {
	raw := `FEATURE 1:
Name: Dark Mode
Complexity: 2
Challenges: theme plumbing, legacy views
Effort: 4.5
Difficulty: Low
Feasibility: 80

FEATURE 2:
Name: Offline Sync
Complexity: 5
Challenges: conflict resolution
Effort: 20
Difficulty: High
Feasibility: 30
`
	rec, err := Technical(raw)
	if err != nil {
		t.Fatalf("Technical failed: %v", err)
	}
	if len(rec.Assessments) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(rec.Assessments))
	}
	a := rec.Assessments[0]
	if a.Complexity != 2 || a.EffortDays != 4.5 || a.FeasibilityScore != 80 {
		t.Errorf("unexpected first assessment: %+v", a)
	}
	if len(a.Challenges) != 2 {
		t.Errorf("expected 2 challenges, got %v", a.Challenges)
	}
	if rec.AvgFeasibility != 55 {
		t.Errorf("expected average 55, got %.1f", rec.AvgFeasibility)
	}
}

func TestTechnicalDefaults(t *testing.T) {
	rec, err := Technical("FEATURE 1:\nName: Mystery Feature")
	if err != nil {
		t.Fatalf("Technical failed: %v", err)
	}
	a := rec.Assessments[0]
	if a.Complexity != 3 {
		t.Errorf("expected default complexity 3, got %d", a.Complexity)
	}
	if a.EffortDays != 1.0 {
		t.Errorf("expected default effort 1.0, got %.1f", a.EffortDays)
	}
	if a.FeasibilityScore != scoreFromComplexity(3) {
		t.Errorf("expected derived score %d, got %d", scoreFromComplexity(3), a.FeasibilityScore)
	}
}

func TestTechnicalComplexityOutOfRange(t *testing.T) {
	rec, err := Technical("FEATURE 1:\nName: Big One\nComplexity: 9")
	if err != nil {
		t.Fatalf("Technical failed: %v", err)
	}
	if rec.Assessments[0].Complexity != 3 {
		t.Errorf("out-of-range complexity should fall back to 3, got %d", rec.Assessments[0].Complexity)
	}
}

func TestTechnicalJSONFallback(t *testing.T) {
	raw := `[{"name":"Dark Mode","complexity":2,"feasibility_score":80},{"name":"Sync","complexity":4,"feasibility_score":40}]`
	rec, err := Technical(raw)
	if err != nil {
		t.Fatalf("Technical failed: %v", err)
	}
	if len(rec.Assessments) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(rec.Assessments))
	}
	if rec.AvgFeasibility != 60 {
		t.Errorf("expected average 60, got %.1f", rec.AvgFeasibility)
	}
}

func TestTechnicalErrors(t *testing.T) {
	for _, raw := range []string{"", "nothing structured"} {
		_, err := Technical(raw)
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			t.Errorf("input %q: expected ExtractionError, got %v", raw, err)
		}
	}
}
