// Package agent wraps one LLM persona: a role description plus model settings.
package agent

import (
	"context"
	"fmt"
	"log"

	"evoplan/internal/provider"
)

// Agent holds a role description and model configuration. Agents are static:
// created at startup and never mutated during a run, so one Agent is safe to
// use from concurrent stages.
type Agent struct {
	Name        string
	Role        string
	Goal        string
	Backstory   string
	Model       string
	Temperature float64

	provider provider.Provider
	verbose  bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithVerbose enables per-call logging.
func WithVerbose(v bool) Option {
	return func(a *Agent) { a.verbose = v }
}

// New creates an Agent backed by the given provider.
func New(name, role, goal, backstory, model string, temperature float64, p provider.Provider, opts ...Option) *Agent {
	a := &Agent{
		Name:        name,
		Role:        role,
		Goal:        goal,
		Backstory:   backstory,
		Model:       model,
		Temperature: temperature,
		provider:    p,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// systemText composes the persona preamble sent as the system prompt.
func (a *Agent) systemText() string {
	return fmt.Sprintf("Role: %s\nGoal: %s\nBackstory: %s", a.Role, a.Goal, a.Backstory)
}

// Execute sends one rendered task prompt to the provider and returns the raw
// response text. Exactly one outbound call per invocation; provider failures
// surface unchanged and are the caller's to handle.
func (a *Agent) Execute(ctx context.Context, prompt string) (string, error) {
	if a.verbose {
		log.Printf("Agent %s executing task (%d chars)", a.Name, len(prompt))
	}

	text, err := a.provider.Complete(ctx, provider.Request{
		Model:       a.Model,
		System:      a.systemText(),
		Prompt:      prompt + "\n\nPlease complete this task to the best of your abilities.",
		Temperature: a.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Name, err)
	}

	if a.verbose {
		log.Printf("Agent %s completed task", a.Name)
	}
	return text, nil
}
