package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evoplan/internal/agent"
	"evoplan/internal/audit"
	"evoplan/internal/config"
	"evoplan/internal/events"
	"evoplan/internal/ingest"
	"evoplan/internal/models"
	"evoplan/internal/pipeline"
	"evoplan/internal/provider"
	"evoplan/internal/store"
)

// ProviderFactory builds the LLM provider for a run. Overridable in tests.
type ProviderFactory func(apiKey string, timeout time.Duration) provider.Provider

func defaultProviderFactory(apiKey string, timeout time.Duration) provider.Provider {
	return provider.NewAnthropic(apiKey, timeout)
}

// StartRunRequest is the payload for starting a run.
type StartRunRequest struct {
	Mode       string `json:"mode,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
	CSV        string `json:"csv,omitempty"`
	Checkpoint bool   `json:"checkpoint"`
	APIKey     string `json:"api_key,omitempty"`
}

// runHandle pairs a live pipeline with its execution-log recorder.
type runHandle struct {
	pipe *pipeline.Pipeline
	rec  *audit.Recorder
}

// Service sits between the HTTP handlers and the pipeline engine: it starts
// runs in the background, tracks live pipelines, and falls back to the
// session store for finished ones.
type Service struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    *store.Store
	bus      *events.Bus
	logger   *slog.Logger
	provider ProviderFactory
	runs     map[string]*runHandle
}

// NewService creates the service. factory may be nil to use the Anthropic
// provider.
func NewService(cfg *config.Config, st *store.Store, bus *events.Bus, logger *slog.Logger, factory ProviderFactory) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = defaultProviderFactory
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		bus:      bus,
		logger:   logger,
		provider: factory,
		runs:     make(map[string]*runHandle),
	}
}

// StartRun validates the request, builds the pipeline, and executes it in a
// background goroutine. It returns the new run's snapshot immediately.
func (s *Service) StartRun(req StartRunRequest) (*models.PipelineRun, error) {
	mode := models.RunMode(req.Mode)
	if req.Mode == "" {
		mode = s.cfg.Mode
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, req.Mode)
	}

	seed, err := s.seedText(req)
	if err != nil {
		return nil, err
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.cfg.APIKey
	}

	agents, err := s.buildAgents(apiKey)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	rec := audit.NewRecorder(runID, s.store)

	pipe, err := pipeline.New(agents, pipeline.Options{
		ID:            runID,
		Mode:          mode,
		Checkpoint:    req.Checkpoint,
		MaxIterations: s.cfg.MaxIterations,
		Bus:           s.bus,
		Recorder:      rec,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	handle := &runHandle{pipe: pipe, rec: rec}

	s.mu.Lock()
	s.runs[pipe.ID()] = handle
	s.mu.Unlock()

	snapshot := pipe.Snapshot()
	if err := s.store.SaveRun(snapshot); err != nil {
		s.logger.Error("failed to persist new run", "run_id", pipe.ID(), "error", err)
	}

	go s.execute(handle, seed)
	return snapshot, nil
}

func (s *Service) execute(handle *runHandle, seed string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	run, err := handle.pipe.Run(ctx, seed)
	if err != nil {
		s.logger.Error("run failed to start", "run_id", handle.pipe.ID(), "error", err)
		return
	}
	s.persist(run)
}

// Resume feeds checkpoint input into a suspended run and continues it in the
// background.
func (s *Service) Resume(runID string, input models.ResumeInput) (*models.PipelineRun, error) {
	s.mu.Lock()
	handle, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		if existing, err := s.store.GetRun(runID); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, ErrNotAwaiting
		}
		return nil, ErrRunNotFound
	}
	if handle.pipe.State() != models.RunStateAwaitingInput {
		return nil, ErrNotAwaiting
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		run, err := handle.pipe.Resume(ctx, input)
		if err != nil {
			s.logger.Error("resume failed", "run_id", runID, "error", err)
			return
		}
		s.persist(run)
	}()

	return handle.pipe.Snapshot(), nil
}

func (s *Service) persist(run *models.PipelineRun) {
	if err := s.store.SaveRun(run); err != nil {
		s.logger.Error("failed to persist run", "run_id", run.ID, "error", err)
	}
}

// GetRun returns a run's current snapshot: from the live pipeline when one
// exists, otherwise from the session store.
func (s *Service) GetRun(runID string) (*models.PipelineRun, error) {
	s.mu.Lock()
	handle, ok := s.runs[runID]
	s.mu.Unlock()
	if ok {
		return handle.pipe.Snapshot(), nil
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// GetStage returns one stage's task from a run.
func (s *Service) GetStage(runID, stageID string) (*models.Task, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	valid := false
	for _, id := range run.StageOrder {
		if id == stageID {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
	}
	task := run.Tasks[stageID]
	if task == nil {
		task = &models.Task{StageID: stageID, Status: models.StageStatusPending}
	}
	return task, nil
}

// GetLog returns a run's execution log.
func (s *Service) GetLog(runID string) ([]models.LogEntry, error) {
	s.mu.Lock()
	handle, ok := s.runs[runID]
	s.mu.Unlock()
	if ok {
		return handle.rec.Entries(), nil
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return s.store.GetLog(runID)
}

// Reset clears the session: live handles are dropped and the store is wiped.
func (s *Service) Reset() error {
	s.mu.Lock()
	s.runs = make(map[string]*runHandle)
	s.mu.Unlock()
	return s.store.Reset()
}

func (s *Service) seedText(req StartRunRequest) (string, error) {
	switch {
	case strings.TrimSpace(req.Feedback) != "":
		return strings.TrimSpace(req.Feedback), nil
	case req.CSV != "":
		seed, err := ingest.FromCSV(strings.NewReader(req.CSV))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return seed, nil
	default:
		return "", fmt.Errorf("%w: feedback or csv is required", ErrInvalidInput)
	}
}

func (s *Service) buildAgents(apiKey string) (map[string]*agent.Agent, error) {
	defs, err := config.LoadAgents(s.cfg.AgentsFile)
	if err != nil {
		return nil, err
	}
	p := s.provider(apiKey, s.cfg.Timeout)

	agents := make(map[string]*agent.Agent, len(defs))
	for id, def := range defs {
		model := def.Model
		if model == "" {
			model = s.cfg.Model
		}
		temp := def.Temperature
		if temp == 0 {
			temp = config.DefaultTemperature
		}
		agents[id] = agent.New(id, def.Role, def.Goal, def.Backstory, model, temp, p, agent.WithVerbose(s.cfg.Verbose))
	}
	return agents, nil
}
