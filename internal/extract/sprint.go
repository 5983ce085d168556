package extract

import (
	"regexp"
	"strconv"
	"strings"

	"evoplan/internal/models"
)

const defaultSprintWeeks = 2

var sprintHeaderRe = regexp.MustCompile(`(?i)^SPRINT\s+(\d+)\s*:`)

// SprintPlan parses a sprint-plan response laid out as "SPRINT N:" blocks
// with Duration/Features/Goals/Dependencies lines. Duration defaults to two
// weeks. Features prefixed with "*" are priority features when the run has a
// priority focus.
func SprintPlan(raw string, hasPriorityFocus bool) (*models.SprintRecord, error) {
	const stage = "create_sprint_plan"
	if strings.TrimSpace(raw) == "" {
		return nil, errEmpty(stage)
	}

	var sprints []models.Sprint
	var current *models.Sprint

	flush := func() {
		if current != nil {
			sprints = append(sprints, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)

		if m := sprintHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			number, err := strconv.Atoi(m[1])
			if err != nil {
				number = len(sprints) + 1
			}
			current = &models.Sprint{Number: number, DurationWeeks: defaultSprintWeeks}
			continue
		}
		if current == nil || !strings.Contains(line, ":") {
			continue
		}

		key, value, _ := strings.Cut(line, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "duration":
			// "2 weeks" - just the leading number
			if fields := strings.Fields(value); len(fields) > 0 {
				if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
					current.DurationWeeks = n
				}
			}
		case "features":
			features, priority := parseSprintFeatures(value, hasPriorityFocus)
			current.Features = features
			if hasPriorityFocus {
				current.PriorityFeatures = priority
			}
		case "goals":
			current.Goals = value
		case "dependencies":
			current.Dependencies = value
		case "priority features":
			if hasPriorityFocus {
				current.PriorityFeatures = splitList(value)
			}
		}
	}
	flush()

	if len(sprints) == 0 {
		return nil, errNoStructure(stage)
	}
	return &models.SprintRecord{Sprints: sprints}, nil
}

func parseSprintFeatures(value string, hasPriorityFocus bool) (features, priority []string) {
	for _, item := range splitList(value) {
		if strings.HasPrefix(item, "*") && hasPriorityFocus {
			clean := strings.TrimSpace(strings.TrimPrefix(item, "*"))
			features = append(features, clean)
			priority = append(priority, clean)
			continue
		}
		features = append(features, strings.TrimPrefix(item, "*"))
	}
	return features, priority
}
