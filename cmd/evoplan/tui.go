package main

import (
	"github.com/spf13/cobra"

	"evoplan/internal/models"
	"evoplan/internal/store"
	"evoplan/internal/tui"
)

var (
	tuiMode       string
	tuiInput      string
	tuiFeedback   string
	tuiCheckpoint bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the pipeline in the interactive terminal UI",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiMode, "mode", "", "Execution mode: sequential, parallel, or autonomous")
	tuiCmd.Flags().StringVarP(&tuiInput, "input", "i", "", "Feedback file (.csv or plain text)")
	tuiCmd.Flags().StringVar(&tuiFeedback, "feedback", "", "Feedback text given inline")
	tuiCmd.Flags().BoolVar(&tuiCheckpoint, "checkpoint", false, "Pause after feedback analysis for review")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tuiMode != "" {
		cfg.Mode = models.RunMode(tuiMode)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	seed, err := seedText(tuiFeedback, tuiInput)
	if err != nil {
		return err
	}

	agents, err := buildAgents(cfg)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	app, err := tui.New(tui.Options{
		Agents:        agents,
		Mode:          cfg.Mode,
		Checkpoint:    tuiCheckpoint,
		MaxIterations: cfg.MaxIterations,
		Seed:          seed,
		Store:         st,
	})
	if err != nil {
		return err
	}
	return app.Run()
}
