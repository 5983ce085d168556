// Package events provides an in-process pub/sub bus for run and stage
// lifecycle notifications. Subscribers receive events on buffered channels;
// a slow subscriber drops events rather than blocking publishers.
package events

import (
	"time"

	"evoplan/internal/models"
)

// Event is anything published on the bus.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// BaseEvent carries the fields common to all events.
type BaseEvent struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.At }

func newBase(t string) BaseEvent {
	return BaseEvent{Type: t, At: time.Now()}
}

const (
	TypeStageStarted  = "stage.started"
	TypeStageFinished = "stage.finished"
	TypeRunState      = "run.state"
	TypeLogLine       = "run.log"
)

// StageEvent marks a stage starting or finishing.
type StageEvent struct {
	BaseEvent
	RunID     string             `json:"run_id"`
	StageID   string             `json:"stage_id"`
	Status    models.StageStatus `json:"status"`
	Iteration int                `json:"iteration,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// NewStageStarted reports a stage entering the running state.
func NewStageStarted(runID, stageID string, iteration int) StageEvent {
	return StageEvent{
		BaseEvent: newBase(TypeStageStarted),
		RunID:     runID,
		StageID:   stageID,
		Status:    models.StageStatusRunning,
		Iteration: iteration,
	}
}

// NewStageFinished reports a stage reaching a terminal status.
func NewStageFinished(runID, stageID string, status models.StageStatus, errText string) StageEvent {
	return StageEvent{
		BaseEvent: newBase(TypeStageFinished),
		RunID:     runID,
		StageID:   stageID,
		Status:    status,
		Error:     errText,
	}
}

// RunEvent marks a run state transition.
type RunEvent struct {
	BaseEvent
	RunID   string            `json:"run_id"`
	State   models.RunState   `json:"state"`
	Outcome models.RunOutcome `json:"outcome,omitempty"`
}

// NewRunState reports the run entering a new lifecycle state.
func NewRunState(runID string, state models.RunState, outcome models.RunOutcome) RunEvent {
	return RunEvent{
		BaseEvent: newBase(TypeRunState),
		RunID:     runID,
		State:     state,
		Outcome:   outcome,
	}
}

// LogEvent mirrors one execution-log line onto the bus.
type LogEvent struct {
	BaseEvent
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// NewLogLine wraps an execution-log message as an event.
func NewLogLine(runID, message string) LogEvent {
	return LogEvent{
		BaseEvent: newBase(TypeLogLine),
		RunID:     runID,
		Message:   message,
	}
}
