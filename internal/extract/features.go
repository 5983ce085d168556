package extract

import (
	"regexp"
	"strings"

	"evoplan/internal/models"
)

var alignsRe = regexp.MustCompile(`(?i)Aligns with User Priority\s*:\s*(Yes|No)`)

// Features parses a feature-proposal response laid out as numbered
// "FEATURE N:" sections with Name/Description/Priority/Complexity lines.
// Priority and Complexity default to Medium when missing; a section without
// at least a Name is dropped. When priorityFocus is non-empty the optional
// "Aligns with User Priority" line is read as well.
func Features(raw, priorityFocus string) (*models.FeatureRecord, error) {
	const stage = "generate_features"
	if strings.TrimSpace(raw) == "" {
		return nil, errEmpty(stage)
	}

	sections := splitSections(raw, "FEATURE")
	if sections == nil {
		return nil, errNoStructure(stage)
	}

	var features []models.Feature
	for _, section := range sections {
		name := fieldLine(section, "Name")
		if name == "" {
			continue
		}
		f := models.Feature{
			Name:        name,
			Description: fieldLine(section, "Description"),
			Priority:    normalizeLevel(fieldLine(section, "Priority"), "Medium"),
			Complexity:  normalizeLevel(fieldLine(section, "Complexity"), "Medium"),
		}
		if f.Description == "" {
			f.Description = "No description available"
		}
		if priorityFocus != "" {
			aligns := false
			if m := alignsRe.FindStringSubmatch(section); m != nil {
				aligns = strings.EqualFold(m[1], "yes")
			}
			f.AlignsWithPriority = &aligns
		}
		features = append(features, f)
	}

	if len(features) == 0 {
		return nil, errNoStructure(stage)
	}

	return &models.FeatureRecord{Features: features, PriorityFocus: priorityFocus}, nil
}
