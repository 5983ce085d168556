package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"evoplan/internal/models"
)

const maxCategories = 6

var (
	categoryRe = regexp.MustCompile(`(?i)(?:Category|Theme|Topic|Area|Issue)\s*(?:\d+)?\s*[:\-]\s*([^\n]+)`)
	// inline count suffix, e.g. "Bug (3)"
	inlineCountRe = regexp.MustCompile(`^(.*?)\s*\((\d+)\)\s*$`)
	mentionsRe    = regexp.MustCompile(`(?i)(?:(\d+)\s*(?:mentions|users|occurrences|times)|mentioned\s*(?:by)?\s*(\d+))`)
	sentimentRe   = regexp.MustCompile(`(?i)(positive|neutral|negative)\D{0,40}?(\d+)\s*%`)
)

// Feedback parses a feedback-analysis response into categories with mention
// counts and an optional sentiment split.
//
// Accepted category shapes include "Category: Bug (3)" and "Theme 2 - Search",
// with counts taken from an inline "(N)" suffix or a nearby "N mentions"
// phrase. Categories without a discoverable count default to 1.
func Feedback(raw string) (*models.FeedbackRecord, error) {
	const stage = "analyze_feedback"
	if strings.TrimSpace(raw) == "" {
		return nil, errEmpty(stage)
	}

	matches := categoryRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil, errNoStructure(stage)
	}

	seen := make(map[string]int) // name -> index into categories
	var categories []models.CategoryCount
	for _, m := range matches {
		if len(categories) >= maxCategories {
			break
		}
		name := strings.TrimSpace(m[1])
		count := 0

		if im := inlineCountRe.FindStringSubmatch(name); im != nil {
			name = strings.TrimSpace(im[1])
			count, _ = strconv.Atoi(im[2])
		}
		if name == "" {
			continue
		}
		if count == 0 {
			count = countNearName(raw, name)
		}
		if count == 0 {
			count = 1
		}

		if idx, ok := seen[strings.ToLower(name)]; ok {
			if count > categories[idx].Count {
				categories[idx].Count = count
			}
			continue
		}
		seen[strings.ToLower(name)] = len(categories)
		categories = append(categories, models.CategoryCount{Category: name, Count: count})
	}

	if len(categories) == 0 {
		return nil, errNoStructure(stage)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Count > categories[j].Count
	})

	return &models.FeedbackRecord{
		Categories: categories,
		Sentiment:  parseSentiment(raw),
	}, nil
}

// countNearName looks for a mention count on the same line as the category.
func countNearName(raw, name string) int {
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), strings.ToLower(name)) {
			continue
		}
		if m := mentionsRe.FindStringSubmatch(line); m != nil {
			s := m[1]
			if s == "" {
				s = m[2]
			}
			n, _ := strconv.Atoi(s)
			return n
		}
	}
	return 0
}

func parseSentiment(raw string) *models.Sentiment {
	matches := sentimentRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	s := &models.Sentiment{}
	found := false
	for _, m := range matches {
		n, _ := strconv.Atoi(m[2])
		switch strings.ToLower(m[1]) {
		case "positive":
			s.Positive = n
			found = true
		case "neutral":
			s.Neutral = n
			found = true
		case "negative":
			s.Negative = n
			found = true
		}
	}
	if !found {
		return nil
	}
	return s
}
