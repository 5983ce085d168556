package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentDef describes one agent persona. Zero-valued fields fall back to the
// built-in definition for the same agent id.
type AgentDef struct {
	Role        string  `yaml:"role"`
	Goal        string  `yaml:"goal"`
	Backstory   string  `yaml:"backstory"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultTemperature is used when an agent definition leaves it unset.
const DefaultTemperature = 0.7

// DefaultAgents returns the built-in personas for the five pipeline agents,
// keyed by agent id.
func DefaultAgents() map[string]AgentDef {
	return map[string]AgentDef{
		"feedback_analyst": {
			Role:      "Feedback Analyst",
			Goal:      "Analyze user feedback to identify patterns, priorities, and insights",
			Backstory: "You are an expert in data analysis with a focus on user feedback. You excel at identifying patterns and extracting actionable insights from user comments.",
		},
		"feature_planner": {
			Role:      "Feature Planner",
			Goal:      "Generate feature proposals based on user feedback analysis",
			Backstory: "You are a product manager who specializes in translating user feedback into actionable feature proposals. You have a keen sense for prioritizing features that will have the greatest impact.",
		},
		"technical_evaluator": {
			Role:      "Technical Evaluator",
			Goal:      "Evaluate the technical feasibility of proposed features",
			Backstory: "You are a senior software engineer with extensive experience in evaluating the technical complexity and feasibility of new features. You can identify potential challenges and estimate implementation effort.",
		},
		"sprint_planner": {
			Role:      "Sprint Planner",
			Goal:      "Create a sprint plan based on feature proposals and technical evaluation",
			Backstory: "You are a project manager with expertise in agile methodologies. You excel at organizing features into sprints and creating realistic timelines for implementation.",
		},
		"stakeholder_communicator": {
			Role:      "Stakeholder Communicator",
			Goal:      "Generate clear and compelling updates for stakeholders",
			Backstory: "You are a communication specialist who excels at translating technical information into clear, compelling updates for stakeholders. You know how to highlight the value and impact of planned work.",
		},
	}
}

type agentsFile struct {
	Agents map[string]AgentDef `yaml:"agents"`
}

// LoadAgents returns the built-in personas overlaid with definitions from
// the YAML file at path. An empty path returns the defaults unchanged.
func LoadAgents(path string) (map[string]AgentDef, error) {
	agents := DefaultAgents()
	if path == "" {
		return agents, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read agents file: %w", err)
	}
	var file agentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse agents file: %w", err)
	}

	for id, def := range file.Agents {
		base, ok := agents[id]
		if !ok {
			agents[id] = def
			continue
		}
		if def.Role != "" {
			base.Role = def.Role
		}
		if def.Goal != "" {
			base.Goal = def.Goal
		}
		if def.Backstory != "" {
			base.Backstory = def.Backstory
		}
		if def.Model != "" {
			base.Model = def.Model
		}
		if def.Temperature != 0 {
			base.Temperature = def.Temperature
		}
		agents[id] = base
	}
	return agents, nil
}
