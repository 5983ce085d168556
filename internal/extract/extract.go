// Package extract parses free-text model output into structured records.
//
// Each stage has its own parser. The parsers are deliberately tolerant:
// the model phrases its answers loosely, so missing or malformed sections
// yield partial records with defaults. Only raw text with no recognizable
// structure at all is rejected.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// ExtractionError is returned when raw text is empty or has no recognizable
// structure for the stage's parser.
type ExtractionError struct {
	Stage  string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.Stage, e.Reason)
}

func errEmpty(stage string) error {
	return &ExtractionError{Stage: stage, Reason: "empty input"}
}

func errNoStructure(stage string) error {
	return &ExtractionError{Stage: stage, Reason: "no recognizable structure"}
}

// fieldLine matches "Key: value" within a section and returns the trimmed
// value, or "" when absent.
func fieldLine(section, key string) string {
	re := regexp.MustCompile(`(?im)^\s*` + key + `\s*:\s*(.*?)\s*$`)
	m := re.FindStringSubmatch(section)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// splitSections splits text on a numbered header like "FEATURE 1:" or
// "SPRINT 2:", dropping anything before the first header.
func splitSections(text, header string) []string {
	re := regexp.MustCompile(`(?i)` + header + `\s+\d+\s*:`)
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var sections []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := strings.TrimSpace(text[loc[1]:end])
		if section != "" {
			sections = append(sections, section)
		}
	}
	return sections
}

// normalizeLevel maps a High/Medium/Low value to its canonical casing,
// falling back to def when the value is unrecognized.
func normalizeLevel(s, def string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	}
	return def
}

// splitList splits a comma- or bullet-separated value into trimmed items.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	sep := ","
	if strings.Contains(s, "•") {
		sep = "•"
	}
	var items []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}
