package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"evoplan/internal/models"
)

var (
	complexityNumRe  = regexp.MustCompile(`(?i)Complexity\s*:\s*(\d+)`)
	effortRe         = regexp.MustCompile(`(?i)Effort\s*:\s*(\d+(?:\.\d+)?)`)
	feasibilityRe    = regexp.MustCompile(`(?i)Feasibility(?:\s*Score)?\s*:\s*(\d+)`)
	difficultyRe     = regexp.MustCompile(`(?i)Difficulty\s*:\s*(High|Medium|Low)`)
	defaultComplexity = 3
)

// Technical parses a feasibility-evaluation response into per-feature
// assessments. The expected layout is "FEATURE N:" sections carrying
// Complexity (1-5, default 3), Challenges, Effort in person-days (default 1)
// and an optional explicit Feasibility score; when the model omits the score
// it is derived from complexity. A JSON array response is accepted too, since
// the model occasionally answers in JSON despite the format instructions.
func Technical(raw string) (*models.TechnicalRecord, error) {
	const stage = "evaluate_feasibility"
	if strings.TrimSpace(raw) == "" {
		return nil, errEmpty(stage)
	}

	if rec := technicalFromJSON(raw); rec != nil {
		return rec, nil
	}

	sections := splitSections(raw, "FEATURE")
	if sections == nil {
		return nil, errNoStructure(stage)
	}

	var assessments []models.Assessment
	for _, section := range sections {
		name := fieldLine(section, "Name")
		if name == "" {
			continue
		}

		a := models.Assessment{Name: name, Complexity: defaultComplexity, EffortDays: 1.0}
		if m := complexityNumRe.FindStringSubmatch(section); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 5 {
				a.Complexity = n
			}
		}
		if m := effortRe.FindStringSubmatch(section); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				a.EffortDays = f
			}
		}
		if m := difficultyRe.FindStringSubmatch(section); m != nil {
			a.Difficulty = normalizeLevel(m[1], "")
		}
		a.Challenges = splitList(fieldLine(section, "Challenges"))

		if m := feasibilityRe.FindStringSubmatch(section); m != nil {
			n, _ := strconv.Atoi(m[1])
			a.FeasibilityScore = clampScore(n)
		} else {
			a.FeasibilityScore = scoreFromComplexity(a.Complexity)
		}

		assessments = append(assessments, a)
	}

	if len(assessments) == 0 {
		return nil, errNoStructure(stage)
	}

	return &models.TechnicalRecord{
		Assessments:    assessments,
		AvgFeasibility: averageFeasibility(assessments),
	}, nil
}

// technicalFromJSON attempts to read the response as a JSON assessment list.
func technicalFromJSON(raw string) *models.TechnicalRecord {
	trimmed := strings.TrimSpace(raw)
	var assessments []models.Assessment
	if err := json.Unmarshal([]byte(trimmed), &assessments); err != nil {
		var wrapper struct {
			Features []models.Assessment `json:"features"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil || len(wrapper.Features) == 0 {
			return nil
		}
		assessments = wrapper.Features
	}
	if len(assessments) == 0 {
		return nil
	}
	for i := range assessments {
		if assessments[i].Complexity == 0 {
			assessments[i].Complexity = defaultComplexity
		}
		if assessments[i].FeasibilityScore == 0 {
			assessments[i].FeasibilityScore = scoreFromComplexity(assessments[i].Complexity)
		}
	}
	return &models.TechnicalRecord{
		Assessments:    assessments,
		AvgFeasibility: averageFeasibility(assessments),
	}
}

// scoreFromComplexity derives a feasibility score when the model did not
// state one: complexity 1 maps to 85, complexity 5 to 25.
func scoreFromComplexity(complexity int) int {
	return clampScore(100 - complexity*15)
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func averageFeasibility(assessments []models.Assessment) float64 {
	if len(assessments) == 0 {
		return 0
	}
	sum := 0
	for _, a := range assessments {
		sum += a.FeasibilityScore
	}
	return float64(sum) / float64(len(assessments))
}
