package main

import (
	"fmt"

	"evoplan/internal/agent"
	"evoplan/internal/config"
	"evoplan/internal/ingest"
	"evoplan/internal/provider"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// seedText resolves the feedback input: inline text wins over a file path.
func seedText(feedback, inputPath string) (string, error) {
	if feedback != "" {
		return feedback, nil
	}
	if inputPath != "" {
		return ingest.FromFile(inputPath)
	}
	return "", fmt.Errorf("no feedback given: use --feedback or --input")
}

func buildAgents(cfg *config.Config) (map[string]*agent.Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key: set ANTHROPIC_API_KEY or api_key in the config file")
	}

	defs, err := config.LoadAgents(cfg.AgentsFile)
	if err != nil {
		return nil, err
	}
	p := provider.NewAnthropic(cfg.APIKey, cfg.Timeout)

	agents := make(map[string]*agent.Agent, len(defs))
	for id, def := range defs {
		model := def.Model
		if model == "" {
			model = cfg.Model
		}
		temp := def.Temperature
		if temp == 0 {
			temp = config.DefaultTemperature
		}
		agents[id] = agent.New(id, def.Role, def.Goal, def.Backstory, model, temp, p, agent.WithVerbose(cfg.Verbose))
	}
	return agents, nil
}
