// Package models defines the core domain types for evoplan.
package models

import "time"

// StageStatus represents the current state of a pipeline stage.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusDone    StageStatus = "done"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// RunMode selects how the pipeline executes its stages.
type RunMode string

const (
	ModeSequential RunMode = "sequential"
	ModeParallel   RunMode = "parallel"
	ModeAutonomous RunMode = "autonomous"
)

// Valid reports whether m is a known execution mode.
func (m RunMode) Valid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeAutonomous:
		return true
	}
	return false
}

// RunState represents the lifecycle of a pipeline run.
type RunState string

const (
	RunStateCreated       RunState = "created"
	RunStateRunning       RunState = "running"
	RunStateAwaitingInput RunState = "awaiting_input"
	RunStateFinished      RunState = "finished"
)

// RunOutcome is the overall result of a finished run.
type RunOutcome string

const (
	OutcomeComplete RunOutcome = "complete"
	OutcomePartial  RunOutcome = "partial"
	OutcomeFailed   RunOutcome = "failed"
)

// Task is one execution of a stage: the rendered prompt sent to the model and
// what came back. A Task is written once when the call returns; autonomous
// iterations replace the whole Task rather than mutating it.
type Task struct {
	ID        string      `json:"id"`
	StageID   string      `json:"stage_id"`
	Prompt    string      `json:"prompt"`
	RawText   string      `json:"raw_text,omitempty"`
	Record    any         `json:"record,omitempty"`
	Status    StageStatus `json:"status"`
	Iteration int         `json:"iteration"`
	Error     string      `json:"error,omitempty"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
}

// ResumeInput carries the user's checkpoint review back into the pipeline.
type ResumeInput struct {
	Notes              string   `json:"notes"`
	SelectedCategories []string `json:"selected_categories"`
	PriorityFocus      string   `json:"priority_focus,omitempty"`
}

// PipelineRun is one UI session's pipeline execution.
type PipelineRun struct {
	ID         string           `json:"id"`
	Mode       RunMode          `json:"mode"`
	State      RunState         `json:"state"`
	Outcome    RunOutcome       `json:"outcome,omitempty"`
	StageOrder []string         `json:"stage_order"`
	Tasks      map[string]*Task `json:"tasks"`
	Resume     *ResumeInput     `json:"resume,omitempty"`
	Iterations int              `json:"iterations"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CategoryCount is one feedback category with its mention count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Sentiment holds the positive/neutral/negative split in percent.
type Sentiment struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// FeedbackRecord is the structured output of the feedback analysis stage.
type FeedbackRecord struct {
	Categories []CategoryCount `json:"categories"`
	Sentiment  *Sentiment      `json:"sentiment,omitempty"`
}

// Feature is one proposed feature from the feature planning stage.
type Feature struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	Priority           string `json:"priority"`
	Complexity         string `json:"complexity"`
	AlignsWithPriority *bool  `json:"aligns_with_priority,omitempty"`
}

// FeatureRecord is the structured output of the feature proposal stage.
type FeatureRecord struct {
	Features      []Feature `json:"features"`
	PriorityFocus string    `json:"priority_focus,omitempty"`
}

// Assessment is the technical evaluation of one feature.
type Assessment struct {
	Name             string   `json:"name"`
	Complexity       int      `json:"complexity"`
	Challenges       []string `json:"challenges,omitempty"`
	EffortDays       float64  `json:"effort_days"`
	Difficulty       string   `json:"difficulty,omitempty"`
	FeasibilityScore int      `json:"feasibility_score"`
}

// TechnicalRecord is the structured output of the feasibility stage.
type TechnicalRecord struct {
	Assessments    []Assessment `json:"assessments"`
	AvgFeasibility float64      `json:"avg_feasibility"`
}

// Sprint is one sprint from the sprint planning stage.
type Sprint struct {
	Number           int      `json:"number"`
	DurationWeeks    int      `json:"duration_weeks"`
	Features         []string `json:"features"`
	PriorityFeatures []string `json:"priority_features,omitempty"`
	Goals            string   `json:"goals,omitempty"`
	Dependencies     string   `json:"dependencies,omitempty"`
}

// SprintRecord is the structured output of the sprint planning stage.
type SprintRecord struct {
	Sprints []Sprint `json:"sprints"`
}

// StakeholderRecord is the structured output of the stakeholder update stage.
type StakeholderRecord struct {
	Highlights           []string `json:"highlights"`
	Metrics              []string `json:"metrics"`
	Risks                []string `json:"risks"`
	NextSteps            []string `json:"next_steps"`
	Resources            []string `json:"resources"`
	PriorityHighlights   []string `json:"priority_highlights,omitempty"`
	PriorityNextSteps    []string `json:"priority_next_steps,omitempty"`
	PriorityFocusSummary string   `json:"priority_focus_summary,omitempty"`
}

// LogEntry is one timestamped line of a run's execution log.
type LogEntry struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
