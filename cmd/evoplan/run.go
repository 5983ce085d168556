package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"evoplan/internal/audit"
	"evoplan/internal/models"
	"evoplan/internal/pipeline"
)

var (
	runMode       string
	runInput      string
	runFeedback   string
	runCheckpoint bool
	runIterations int
	runModel      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the planning pipeline once",
	Long: `Runs the full pipeline over the given feedback and prints a per-stage
summary. With --checkpoint the run pauses after the feedback analysis so you
can add notes and pick priority categories before planning continues.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "Execution mode: sequential, parallel, or autonomous")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Feedback file (.csv or plain text)")
	runCmd.Flags().StringVar(&runFeedback, "feedback", "", "Feedback text given inline")
	runCmd.Flags().BoolVar(&runCheckpoint, "checkpoint", false, "Pause after feedback analysis for review")
	runCmd.Flags().IntVar(&runIterations, "max-iterations", 0, "Iteration cap for autonomous mode")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model to use for all agents")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runMode != "" {
		cfg.Mode = models.RunMode(runMode)
	}
	if runModel != "" {
		cfg.Model = runModel
	}
	if runIterations > 0 {
		cfg.MaxIterations = runIterations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	seed, err := seedText(runFeedback, runInput)
	if err != nil {
		return err
	}

	agents, err := buildAgents(cfg)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	rec := audit.NewRecorder(runID, nil)
	pipe, err := pipeline.New(agents, pipeline.Options{
		ID:            runID,
		Mode:          cfg.Mode,
		Checkpoint:    runCheckpoint,
		MaxIterations: cfg.MaxIterations,
		Recorder:      rec,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	run, err := pipe.Run(ctx, seed)
	if err != nil {
		return err
	}

	if run.State == models.RunStateAwaitingInput {
		input := promptCheckpoint(run)
		run, err = pipe.Resume(ctx, input)
		if err != nil {
			return err
		}
	}

	printSummary(run)
	if run.Outcome == models.OutcomeFailed {
		return fmt.Errorf("run %s finished with outcome %s", run.ID, run.Outcome)
	}
	return nil
}

// promptCheckpoint collects the user's review on stdin: free-text notes and a
// selection from the categories the analysis extracted.
func promptCheckpoint(run *models.PipelineRun) models.ResumeInput {
	reader := bufio.NewReader(os.Stdin)
	task := run.Tasks[pipeline.StageAnalyzeFeedback]

	fmt.Println()
	fmt.Println("=== Feedback analysis ===")
	if task != nil {
		fmt.Println(task.RawText)
	}
	fmt.Println()

	var categories []models.CategoryCount
	if task != nil {
		if rec, ok := task.Record.(*models.FeedbackRecord); ok {
			categories = rec.Categories
		}
	}
	if len(categories) > 0 {
		fmt.Println("Categories found:")
		for i, c := range categories {
			fmt.Printf("  %d. %s (%d)\n", i+1, c.Category, c.Count)
		}
		fmt.Println()
	}

	fmt.Print("Notes for the planning stages (enter to skip): ")
	notes, _ := reader.ReadString('\n')

	var selected []string
	if len(categories) > 0 {
		fmt.Print("Priority categories (numbers, comma separated, enter to skip): ")
		line, _ := reader.ReadString('\n')
		for _, part := range strings.Split(line, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 || n > len(categories) {
				continue
			}
			selected = append(selected, categories[n-1].Category)
		}
	}

	return models.ResumeInput{
		Notes:              strings.TrimSpace(notes),
		SelectedCategories: selected,
	}
}

func printSummary(run *models.PipelineRun) {
	fmt.Println()
	fmt.Printf("Run %s finished: %s\n", run.ID, run.Outcome)
	fmt.Println()

	for _, stageID := range run.StageOrder {
		task := run.Tasks[stageID]
		if task == nil {
			fmt.Printf("  %-22s pending\n", stageID)
			continue
		}
		fmt.Printf("  %-22s %-8s %s\n", stageID, task.Status, recordSummary(task))
	}

	if task := run.Tasks[pipeline.StageGenerateUpdate]; task != nil && task.RawText != "" {
		fmt.Println()
		fmt.Println("=== Stakeholder update ===")
		fmt.Println(task.RawText)
	}
}

func recordSummary(task *models.Task) string {
	if task.Error != "" {
		return task.Error
	}
	switch rec := task.Record.(type) {
	case *models.FeedbackRecord:
		return fmt.Sprintf("%d categories", len(rec.Categories))
	case *models.FeatureRecord:
		return fmt.Sprintf("%d features", len(rec.Features))
	case *models.TechnicalRecord:
		return fmt.Sprintf("avg feasibility %.0f", rec.AvgFeasibility)
	case *models.SprintRecord:
		return fmt.Sprintf("%d sprints", len(rec.Sprints))
	case *models.StakeholderRecord:
		return fmt.Sprintf("%d highlights, %d next steps", len(rec.Highlights), len(rec.NextSteps))
	default:
		return ""
	}
}
