// Package pipeline orchestrates the five-stage product evolution workflow:
// feedback analysis, feature proposals, feasibility evaluation, sprint
// planning, and the stakeholder update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"evoplan/internal/agent"
	"evoplan/internal/audit"
	"evoplan/internal/events"
	"evoplan/internal/extract"
	"evoplan/internal/models"
)

var (
	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("pipeline: run already started")
	// ErrNotAwaiting is returned when Resume is called outside the checkpoint.
	ErrNotAwaiting = errors.New("pipeline: run is not awaiting input")
)

// DefaultMaxIterations caps autonomous re-runs of the designated stage.
const DefaultMaxIterations = 3

// Condition decides whether an autonomous stage's extracted record is good
// enough to stop iterating.
type Condition func(record any) bool

// FeasibilityAtLeast returns a Condition satisfied when the average
// feasibility score reaches the threshold. Records of any other type
// satisfy it trivially.
func FeasibilityAtLeast(threshold float64) Condition {
	return func(record any) bool {
		rec, ok := record.(*models.TechnicalRecord)
		if !ok {
			return true
		}
		return rec.AvgFeasibility >= threshold
	}
}

// Options configures one pipeline run.
type Options struct {
	ID              string
	Mode            models.RunMode
	Checkpoint      bool
	MaxIterations   int
	AutonomousStage string
	Condition       Condition
	Stages          []Stage
	Bus             *events.Bus
	Recorder        *audit.Recorder
}

// Pipeline executes one PipelineRun. It is created per run and is safe for
// concurrent observation via Snapshot while a run is in flight.
type Pipeline struct {
	mu      sync.Mutex
	opts    Options
	stages  []Stage
	agents  map[string]*agent.Agent
	run     *models.PipelineRun
	context map[string]string
}

// New builds a pipeline over the given agents. Every stage's agent must be
// present in the map.
func New(agents map[string]*agent.Agent, opts Options) (*Pipeline, error) {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.Mode == "" {
		opts.Mode = models.ModeSequential
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("pipeline: unknown mode %q", opts.Mode)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.AutonomousStage == "" {
		opts.AutonomousStage = StageEvaluateFeasibility
	}
	if opts.Condition == nil {
		opts.Condition = FeasibilityAtLeast(50)
	}
	stages := opts.Stages
	if stages == nil {
		stages = DefaultStages()
	}

	order := make([]string, 0, len(stages))
	for _, st := range stages {
		if _, ok := agents[st.AgentID]; !ok {
			return nil, fmt.Errorf("pipeline: stage %s references unknown agent %s", st.ID, st.AgentID)
		}
		order = append(order, st.ID)
	}

	now := time.Now()
	return &Pipeline{
		opts:   opts,
		stages: stages,
		agents: agents,
		run: &models.PipelineRun{
			ID:         opts.ID,
			Mode:       opts.Mode,
			State:      models.RunStateCreated,
			StageOrder: order,
			Tasks:      make(map[string]*models.Task, len(stages)),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		context: make(map[string]string),
	}, nil
}

// ID returns the run identifier.
func (p *Pipeline) ID() string { return p.opts.ID }

// State returns the run's current lifecycle state.
func (p *Pipeline) State() models.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run.State
}

// Snapshot returns a copy of the run safe to hand to the UI boundary.
func (p *Pipeline) Snapshot() *models.PipelineRun {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := *p.run
	out.StageOrder = append([]string(nil), p.run.StageOrder...)
	out.Tasks = make(map[string]*models.Task, len(p.run.Tasks))
	for id, t := range p.run.Tasks {
		tc := *t
		out.Tasks[id] = &tc
	}
	if p.run.Resume != nil {
		rc := *p.run.Resume
		rc.SelectedCategories = append([]string(nil), p.run.Resume.SelectedCategories...)
		out.Resume = &rc
	}
	return &out
}

// Run executes the pipeline over the seed feedback text. With the checkpoint
// enabled it returns after the first stage with state awaiting_input; the
// caller continues via Resume. Otherwise it runs to completion. The returned
// error reports misuse only; stage failures are recorded in the run itself.
func (p *Pipeline) Run(ctx context.Context, seed string) (*models.PipelineRun, error) {
	p.mu.Lock()
	if p.run.State != models.RunStateCreated {
		p.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	p.run.State = models.RunStateRunning
	p.context[ContextFeedbackData] = seed
	p.mu.Unlock()

	p.logf("Starting %s workflow", p.opts.Mode)
	p.publish(events.NewRunState(p.opts.ID, models.RunStateRunning, ""))

	if p.opts.Checkpoint {
		first, rest := p.stages[0], p.stages[1:]
		if status := p.execTask(ctx, first, 1); status != models.StageStatusDone {
			p.skipAll(rest)
			p.finalize()
			return p.Snapshot(), nil
		}
		p.mu.Lock()
		p.run.State = models.RunStateAwaitingInput
		p.run.UpdatedAt = time.Now()
		p.mu.Unlock()
		p.logf("Pausing after %s for user review", first.ID)
		p.publish(events.NewRunState(p.opts.ID, models.RunStateAwaitingInput, ""))
		return p.Snapshot(), nil
	}

	p.runStages(ctx, p.stages)
	p.finalize()
	return p.Snapshot(), nil
}

// Resume continues a run suspended at the checkpoint. The user's notes,
// selected categories, and priority focus are merged verbatim into the
// context for the remaining stages; the stored analysis is additionally
// annotated with the collaboration markers downstream prompts expect.
func (p *Pipeline) Resume(ctx context.Context, input models.ResumeInput) (*models.PipelineRun, error) {
	p.mu.Lock()
	if p.run.State != models.RunStateAwaitingInput {
		p.mu.Unlock()
		return nil, ErrNotAwaiting
	}
	if input.PriorityFocus == "" && len(input.SelectedCategories) > 0 {
		input.PriorityFocus = "Prioritize " + strings.Join(input.SelectedCategories, ", ")
	}
	in := input
	p.run.Resume = &in
	p.run.State = models.RunStateRunning
	p.run.UpdatedAt = time.Now()

	p.context[ContextUserNotes] = input.Notes
	p.context[ContextSelectedCategories] = strings.Join(input.SelectedCategories, ", ")
	p.context[ContextPriorityFocus] = input.PriorityFocus
	p.context[StageAnalyzeFeedback] = annotateAnalysis(p.context[StageAnalyzeFeedback], input)
	p.mu.Unlock()

	p.logf("Resuming workflow with user input")
	p.publish(events.NewRunState(p.opts.ID, models.RunStateRunning, ""))

	p.runStages(ctx, p.stages[1:])
	p.finalize()
	return p.Snapshot(), nil
}

// annotateAnalysis appends the checkpoint input to the stored analysis using
// the marker sections downstream consumers look for.
func annotateAnalysis(analysis string, input models.ResumeInput) string {
	var b strings.Builder
	b.WriteString(analysis)
	if strings.TrimSpace(input.Notes) != "" {
		b.WriteString("\n\n" + markerNotes + "\n" + input.Notes)
	}
	if input.PriorityFocus != "" {
		b.WriteString("\n\n" + markerPriority + " " + input.PriorityFocus)
	}
	cats := "None"
	if len(input.SelectedCategories) > 0 {
		cats = strings.Join(input.SelectedCategories, ", ")
	}
	b.WriteString("\n\n" + markerCategories + "\n" + cats)
	return b.String()
}

func (p *Pipeline) runStages(ctx context.Context, stages []Stage) {
	if p.opts.Mode == models.ModeParallel {
		p.runParallel(ctx, stages)
		return
	}
	p.runOrdered(ctx, stages)
}

// runOrdered executes stages in declared order. A failed stage halts the run
// and every later stage is skipped.
func (p *Pipeline) runOrdered(ctx context.Context, stages []Stage) {
	for i, st := range stages {
		var status models.StageStatus
		if p.opts.Mode == models.ModeAutonomous && st.ID == p.opts.AutonomousStage {
			status = p.execIterative(ctx, st)
		} else {
			status = p.execTask(ctx, st, 1)
		}
		if status == models.StageStatusFailed {
			p.skipAll(stages[i+1:])
			return
		}
	}
}

// runParallel dispatches every stage whose dependencies are done, joins the
// wave, and repeats. A failed stage only blocks its dependents.
func (p *Pipeline) runParallel(ctx context.Context, stages []Stage) {
	remaining := make(map[string]Stage, len(stages))
	for _, st := range stages {
		remaining[st.ID] = st
	}

	for len(remaining) > 0 {
		var ready []Stage
		for _, st := range stages {
			if _, ok := remaining[st.ID]; ok && p.depsDone(st) {
				ready = append(ready, st)
			}
		}
		if len(ready) == 0 {
			if !p.skipBlocked(stages, remaining) {
				return
			}
			continue
		}

		var g errgroup.Group
		for _, st := range ready {
			st := st
			delete(remaining, st.ID)
			g.Go(func() error {
				p.execTask(ctx, st, 1)
				return nil
			})
		}
		g.Wait()
	}
}

func (p *Pipeline) depsDone(st Stage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, dep := range st.DependsOn {
		t := p.run.Tasks[dep]
		if t == nil || t.Status != models.StageStatusDone {
			return false
		}
	}
	return true
}

// skipBlocked marks remaining stages whose dependencies ended in failed or
// skipped as skipped themselves. Returns whether anything changed.
func (p *Pipeline) skipBlocked(stages []Stage, remaining map[string]Stage) bool {
	changed := false
	for _, st := range stages {
		if _, ok := remaining[st.ID]; !ok {
			continue
		}
		for _, dep := range st.DependsOn {
			p.mu.Lock()
			t := p.run.Tasks[dep]
			blocked := t != nil && (t.Status == models.StageStatusFailed || t.Status == models.StageStatusSkipped)
			p.mu.Unlock()
			if blocked {
				p.markSkipped(st, dep)
				delete(remaining, st.ID)
				changed = true
				break
			}
		}
	}
	return changed
}

func (p *Pipeline) skipAll(stages []Stage) {
	for _, st := range stages {
		p.markSkipped(st, "")
	}
}

func (p *Pipeline) markSkipped(st Stage, dep string) {
	now := time.Now()
	p.mu.Lock()
	p.run.Tasks[st.ID] = &models.Task{
		ID:      uuid.New().String(),
		StageID: st.ID,
		Status:  models.StageStatusSkipped,
	}
	p.run.UpdatedAt = now
	p.mu.Unlock()

	if dep != "" {
		p.logf("Skipping task %s: dependency %s did not complete", st.ID, dep)
	} else {
		p.logf("Skipping task %s due to earlier failure", st.ID)
	}
	p.publish(events.NewStageFinished(p.opts.ID, st.ID, models.StageStatusSkipped, ""))
}

// execIterative runs the designated autonomous stage, re-running it with the
// prior output folded into the prompt while the condition is unmet, up to
// the iteration cap. The stage finalizes Done with the last output either way.
func (p *Pipeline) execIterative(ctx context.Context, st Stage) models.StageStatus {
	for iteration := 1; ; iteration++ {
		status := p.execTask(ctx, st, iteration)
		if status != models.StageStatusDone {
			return status
		}

		p.mu.Lock()
		record := p.run.Tasks[st.ID].Record
		p.run.Iterations = iteration
		p.mu.Unlock()

		if p.opts.Condition(record) {
			if iteration > 1 {
				p.logf("Autonomous: condition met after %d iterations of %s", iteration, st.ID)
			}
			return models.StageStatusDone
		}
		if iteration >= p.opts.MaxIterations {
			p.logf("Autonomous: iteration cap %d reached for %s, keeping the last output", p.opts.MaxIterations, st.ID)
			return models.StageStatusDone
		}
		p.logf("Autonomous: condition unmet after iteration %d, rerunning %s", iteration, st.ID)
	}
}

// execTask renders, executes, and extracts one stage. Each call replaces the
// stage's Task; the previous iteration's raw output, if any, is appended to
// the prompt as feedback.
func (p *Pipeline) execTask(ctx context.Context, st Stage, iteration int) models.StageStatus {
	p.mu.Lock()
	for _, dep := range st.DependsOn {
		t := p.run.Tasks[dep]
		if t == nil || t.Status != models.StageStatusDone {
			p.mu.Unlock()
			p.markSkipped(st, dep)
			return models.StageStatusSkipped
		}
	}

	prompt, err := p.renderLocked(st, iteration)
	if err != nil {
		now := time.Now()
		task := &models.Task{
			ID:        uuid.New().String(),
			StageID:   st.ID,
			Status:    models.StageStatusFailed,
			Iteration: iteration,
			Error:     err.Error(),
			StartedAt: &now,
			EndedAt:   &now,
		}
		p.run.Tasks[st.ID] = task
		p.run.UpdatedAt = now
		p.mu.Unlock()
		p.logf("Error executing task %s: %v", st.ID, err)
		p.publish(events.NewStageFinished(p.opts.ID, st.ID, models.StageStatusFailed, err.Error()))
		return models.StageStatusFailed
	}

	now := time.Now()
	task := &models.Task{
		ID:        uuid.New().String(),
		StageID:   st.ID,
		Prompt:    prompt,
		Status:    models.StageStatusRunning,
		Iteration: iteration,
		StartedAt: &now,
	}
	p.run.Tasks[st.ID] = task
	p.run.UpdatedAt = now
	focus := p.context[ContextPriorityFocus]
	p.mu.Unlock()

	if iteration > 1 {
		p.logf("Executing task: %s (iteration %d)", st.ID, iteration)
	} else {
		p.logf("Executing task: %s", st.ID)
	}
	p.publish(events.NewStageStarted(p.opts.ID, st.ID, iteration))

	ag := p.agents[st.AgentID]
	raw, err := ag.Execute(ctx, prompt)
	if err != nil {
		return p.failTask(st, task, raw, err)
	}

	record, err := extractRecord(st.ID, raw, focus)
	if err != nil {
		return p.failTask(st, task, raw, err)
	}

	end := time.Now()
	p.mu.Lock()
	task.RawText = raw
	task.Record = record
	task.Status = models.StageStatusDone
	task.EndedAt = &end
	p.context[st.ID] = raw
	p.run.UpdatedAt = end
	p.mu.Unlock()

	p.logf("Task %s completed in %.2f seconds", st.ID, end.Sub(now).Seconds())
	p.publish(events.NewStageFinished(p.opts.ID, st.ID, models.StageStatusDone, ""))
	return models.StageStatusDone
}

func (p *Pipeline) failTask(st Stage, task *models.Task, raw string, err error) models.StageStatus {
	end := time.Now()
	p.mu.Lock()
	task.RawText = raw
	task.Status = models.StageStatusFailed
	task.Error = err.Error()
	task.EndedAt = &end
	p.run.UpdatedAt = end
	p.mu.Unlock()

	p.logf("Error executing task %s: %v", st.ID, err)
	p.publish(events.NewStageFinished(p.opts.ID, st.ID, models.StageStatusFailed, err.Error()))
	return models.StageStatusFailed
}

// renderLocked picks the template variant for the current context and
// renders it. Caller holds p.mu.
func (p *Pipeline) renderLocked(st Stage, iteration int) (string, error) {
	tmpl := st.Template
	if p.context[ContextPriorityFocus] != "" && st.FocusTemplate != "" {
		tmpl = st.FocusTemplate
	} else if st.NotesTemplate != "" && strings.Contains(p.context[ContextFeedbackData], markerNotes) {
		tmpl = st.NotesTemplate
	}

	prompt, err := tmpl.Render(p.context)
	if err != nil {
		var mce *MissingContextError
		if errors.As(err, &mce) {
			mce.Stage = st.ID
		}
		return "", err
	}

	if iteration > 1 {
		if prev := p.run.Tasks[st.ID]; prev != nil && prev.RawText != "" {
			prompt += "\n\nPrevious evaluation:\n" + prev.RawText +
				"\n\nThe previous evaluation fell short of the target. Rework it to favor lower-complexity approaches and call out how each feature could be simplified to improve feasibility."
		}
	}
	return prompt, nil
}

func (p *Pipeline) finalize() {
	p.mu.Lock()
	allDone := true
	anyDone := false
	for _, id := range p.run.StageOrder {
		t := p.run.Tasks[id]
		if t == nil || t.Status != models.StageStatusDone {
			allDone = false
			continue
		}
		anyDone = true
	}

	var outcome models.RunOutcome
	switch {
	case allDone:
		outcome = models.OutcomeComplete
	case p.run.Mode == models.ModeParallel && anyDone:
		outcome = models.OutcomePartial
	default:
		outcome = models.OutcomeFailed
	}
	p.run.State = models.RunStateFinished
	p.run.Outcome = outcome
	p.run.UpdatedAt = time.Now()
	p.mu.Unlock()

	p.logf("Workflow finished with outcome %s", outcome)
	p.publish(events.NewRunState(p.opts.ID, models.RunStateFinished, outcome))
}

func (p *Pipeline) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.opts.Recorder != nil {
		p.opts.Recorder.Log(msg)
	}
	p.publish(events.NewLogLine(p.opts.ID, msg))
}

func (p *Pipeline) publish(e events.Event) {
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(e)
	}
}

// extractRecord parses a stage's raw output into its structured record.
func extractRecord(stageID, raw, priorityFocus string) (any, error) {
	switch stageID {
	case StageAnalyzeFeedback:
		rec, err := extract.Feedback(raw)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case StageGenerateFeatures:
		rec, err := extract.Features(raw, priorityFocus)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case StageEvaluateFeasibility:
		rec, err := extract.Technical(raw)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case StageCreateSprintPlan:
		rec, err := extract.SprintPlan(raw, priorityFocus != "")
		if err != nil {
			return nil, err
		}
		return rec, nil
	case StageGenerateUpdate:
		rec, err := extract.Stakeholder(raw, priorityFocus != "")
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("pipeline: no extractor for stage %s", stageID)
}
