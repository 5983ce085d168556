package extract

import (
	"strings"

	"evoplan/internal/models"
)

// Stakeholder parses a stakeholder-update response organized as section
// headers (Highlights:, Metrics:, Risks:, Next Steps:, Resources:) followed
// by "-" list items. Items prefixed with "*" are priority items when the run
// has a priority focus; a "Priority Focus Summary:" section is collected as
// free text.
func Stakeholder(raw string, hasPriorityFocus bool) (*models.StakeholderRecord, error) {
	const stage = "generate_update"
	if strings.TrimSpace(raw) == "" {
		return nil, errEmpty(stage)
	}

	rec := &models.StakeholderRecord{}
	section := ""

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			section = canonicalSection(strings.TrimSuffix(line, ":"))
			continue
		}

		if section == "priority_focus_summary" && hasPriorityFocus {
			if rec.PriorityFocusSummary != "" {
				rec.PriorityFocusSummary += "\n"
			}
			rec.PriorityFocusSummary += line
			continue
		}

		if !strings.HasPrefix(line, "-") {
			continue
		}
		item := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if item == "" {
			continue
		}

		isPriority := false
		if hasPriorityFocus && strings.HasPrefix(item, "*") {
			isPriority = true
			item = strings.TrimSpace(strings.TrimPrefix(item, "*"))
		}

		switch section {
		case "highlights":
			rec.Highlights = append(rec.Highlights, item)
			if isPriority {
				rec.PriorityHighlights = append(rec.PriorityHighlights, item)
			}
		case "metrics":
			rec.Metrics = append(rec.Metrics, item)
		case "risks":
			rec.Risks = append(rec.Risks, item)
		case "next_steps":
			rec.NextSteps = append(rec.NextSteps, item)
			if isPriority {
				rec.PriorityNextSteps = append(rec.PriorityNextSteps, item)
			}
		case "resources":
			rec.Resources = append(rec.Resources, item)
		}
	}

	if len(rec.Highlights) == 0 && len(rec.Metrics) == 0 && len(rec.Risks) == 0 &&
		len(rec.NextSteps) == 0 && len(rec.Resources) == 0 {
		return nil, errNoStructure(stage)
	}
	return rec, nil
}

func canonicalSection(header string) string {
	switch strings.ToLower(strings.TrimSpace(header)) {
	case "highlights", "achievements", "accomplishments":
		return "highlights"
	case "metrics":
		return "metrics"
	case "risks":
		return "risks"
	case "next steps", "next_steps":
		return "next_steps"
	case "resources":
		return "resources"
	case "priority focus summary", "priority_focus_summary":
		return "priority_focus_summary"
	}
	return ""
}
