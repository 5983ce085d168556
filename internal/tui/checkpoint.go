package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"evoplan/internal/models"
	"evoplan/internal/pipeline"
)

// enterCheckpoint switches to the review form, seeding the category list from
// the analysis stage's structured record.
func (a *App) enterCheckpoint() {
	a.mode = "checkpoint"
	a.notesFocus = true
	a.notes.Focus()
	a.categories = nil
	a.catIdx = 0

	task := a.run.Tasks[pipeline.StageAnalyzeFeedback]
	if task == nil {
		return
	}
	if rec, ok := task.Record.(*models.FeedbackRecord); ok {
		for _, c := range rec.Categories {
			a.categories = append(a.categories, categoryOption{name: c.Category, count: c.Count})
		}
	}
}

func (a *App) handleCheckpointKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		a.notesFocus = !a.notesFocus
		if a.notesFocus {
			a.notes.Focus()
		} else {
			a.notes.Blur()
		}
		return a, nil

	case "up", "k":
		if !a.notesFocus && a.catIdx > 0 {
			a.catIdx--
			return a, nil
		}

	case "down", "j":
		if !a.notesFocus && a.catIdx < len(a.categories)-1 {
			a.catIdx++
			return a, nil
		}

	case " ":
		if !a.notesFocus && len(a.categories) > 0 {
			a.categories[a.catIdx].selected = !a.categories[a.catIdx].selected
			return a, nil
		}

	case "enter":
		if !a.notesFocus {
			return a, a.submitCheckpoint()
		}
	}

	if a.notesFocus {
		var cmd tea.Cmd
		a.notes, cmd = a.notes.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) submitCheckpoint() tea.Cmd {
	var selected []string
	for _, c := range a.categories {
		if c.selected {
			selected = append(selected, c.name)
		}
	}
	input := models.ResumeInput{
		Notes:              strings.TrimSpace(a.notes.Value()),
		SelectedCategories: selected,
	}
	a.mode = "pipeline"
	a.message = "Resuming with your input"
	return a.resume(input)
}

func (a *App) renderCheckpoint() string {
	var b strings.Builder

	b.WriteString("\n  Review the feedback analysis before planning continues.\n\n")

	task := a.run.Tasks[pipeline.StageAnalyzeFeedback]
	if task != nil && task.RawText != "" {
		preview := task.RawText
		if len(preview) > 600 {
			preview = preview[:600] + "..."
		}
		b.WriteString(panelStyle.Width(max(a.width-4, 40)).Render(preview) + "\n\n")
	}

	notesLabel := "  Notes"
	catsLabel := "  Priority categories"
	if a.notesFocus {
		notesLabel = lipgloss.NewStyle().Foreground(cyanColor).Bold(true).Render(notesLabel)
	} else {
		catsLabel = lipgloss.NewStyle().Foreground(cyanColor).Bold(true).Render(catsLabel)
	}

	b.WriteString(notesLabel + "\n")
	b.WriteString("  " + a.notes.View() + "\n\n")

	b.WriteString(catsLabel + "\n")
	if len(a.categories) == 0 {
		b.WriteString(helpStyle.Render("  No categories extracted from the analysis.") + "\n")
	}
	for i, c := range a.categories {
		mark := "[ ]"
		if c.selected {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s (%d)", mark, c.name, c.count)
		if !a.notesFocus && i == a.catIdx {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = stageItemStyle.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("  Selected categories become the priority focus for the remaining stages.") + "\n")
	return b.String()
}
