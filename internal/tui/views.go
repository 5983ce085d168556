package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"evoplan/internal/models"
)

const logTail = 6

func (a *App) renderPipeline() string {
	var b strings.Builder

	b.WriteString("\n")
	for i, stageID := range a.run.StageOrder {
		status := models.StageStatusPending
		iteration := 0
		if task := a.run.Tasks[stageID]; task != nil {
			status = task.Status
			iteration = task.Iteration
		}

		label := stageID
		if iteration > 1 {
			label = fmt.Sprintf("%s (iteration %d)", stageID, iteration)
		}

		if i == a.selected {
			b.WriteString(selectedStyle.Render(fmt.Sprintf("▶ %s  %s", statusIcon(status), label)) + "\n")
		} else {
			b.WriteString(stageItemStyle.Render(fmt.Sprintf("  %s  %s", a.formatStatus(status), label)) + "\n")
		}
	}

	if len(a.logLines) > 0 {
		b.WriteString("\n  " + lipgloss.NewStyle().Bold(true).Foreground(cyanColor).Render("Execution log") + "\n")
		lines := a.logLines
		if len(lines) > logTail {
			lines = lines[len(lines)-logTail:]
		}
		for _, line := range lines {
			b.WriteString(helpStyle.Render("  "+line) + "\n")
		}
	}

	if a.done {
		b.WriteString("\n  " + helpStyle.Render("Run finished. Select a stage and press Enter to view its output.") + "\n")
	}
	return b.String()
}

func (a *App) renderDetail() string {
	if len(a.run.StageOrder) == 0 {
		return ""
	}
	stageID := a.run.StageOrder[a.selected]
	var b strings.Builder
	b.WriteString("\n  " + lipgloss.NewStyle().Bold(true).Render(stageID) + "\n\n")
	b.WriteString(panelStyle.Render(a.viewport.View()))
	b.WriteString("\n")
	return b.String()
}

func (a *App) formatStatus(status models.StageStatus) string {
	switch status {
	case models.StageStatusPending:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("○ PENDING")
	case models.StageStatusRunning:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ RUNNING")
	case models.StageStatusDone:
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE   ")
	case models.StageStatusFailed:
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗ FAILED ")
	case models.StageStatusSkipped:
		return lipgloss.NewStyle().Foreground(warningColor).Render("− SKIPPED")
	default:
		return string(status)
	}
}

func statusIcon(status models.StageStatus) string {
	switch status {
	case models.StageStatusPending:
		return "○"
	case models.StageStatusRunning:
		return "◑"
	case models.StageStatusDone:
		return "●"
	case models.StageStatusFailed:
		return "✗"
	case models.StageStatusSkipped:
		return "−"
	default:
		return "?"
	}
}
