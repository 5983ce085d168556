package extract

import (
	"errors"
	"testing"
)

func TestFeedbackInlineCounts(t *testing.T) {
	raw := "Category: Bug (3)\nCategory: UX (2)"
	rec, err := Feedback(raw)
	if err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if len(rec.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(rec.Categories))
	}
	if rec.Categories[0].Category != "Bug" || rec.Categories[0].Count != 3 {
		t.Errorf("expected Bug=3 first, got %s=%d", rec.Categories[0].Category, rec.Categories[0].Count)
	}
	if rec.Categories[1].Category != "UX" || rec.Categories[1].Count != 2 {
		t.Errorf("expected UX=2 second, got %s=%d", rec.Categories[1].Category, rec.Categories[1].Count)
	}
}

func TestFeedbackMentionCounts(t *testing.T) {
	raw := `Theme 1: Performance Problems - mentioned by 6 users
Theme 2: Dark Mode, 4 mentions across feedback`
	rec, err := Feedback(raw)
	if err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if len(rec.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(rec.Categories))
	}
	// Sorted by count descending.
	if rec.Categories[0].Count != 6 {
		t.Errorf("expected top count 6, got %d", rec.Categories[0].Count)
	}
}

func TestFeedbackDefaultCount(t *testing.T) {
	rec, err := Feedback("Area: Documentation")
	if err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if rec.Categories[0].Count != 1 {
		t.Errorf("expected default count 1, got %d", rec.Categories[0].Count)
	}
}

func TestFeedbackSentiment(t *testing.T) {
	raw := `Category: Crashes (5)

Sentiment breakdown: positive 40%, neutral 35%, negative 25%`
	rec, err := Feedback(raw)
	if err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if rec.Sentiment == nil {
		t.Fatal("expected sentiment")
	}
	if rec.Sentiment.Positive != 40 || rec.Sentiment.Neutral != 35 || rec.Sentiment.Negative != 25 {
		t.Errorf("unexpected sentiment: %+v", rec.Sentiment)
	}
}

func TestFeedbackCategoryLimit(t *testing.T) {
	raw := `Category: A (9)
Category: B (8)
Category: C (7)
Category: D (6)
Category: E (5)
Category: F (4)
Category: G (3)`
	rec, err := Feedback(raw)
	if err != nil {
		t.Fatalf("Feedback failed: %v", err)
	}
	if len(rec.Categories) != maxCategories {
		t.Errorf("expected %d categories, got %d", maxCategories, len(rec.Categories))
	}
}

func TestFeedbackEmpty(t *testing.T) {
	_, err := Feedback("")
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestFeedbackNoStructure(t *testing.T) {
	_, err := Feedback("The model rambled about nothing in particular.")
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}
