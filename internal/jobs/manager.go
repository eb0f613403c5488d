package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/export"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/timeline"
)

// DefaultProgressInterval bounds how often running progress is written to
// the database. Subscribers still see every update.
const DefaultProgressInterval = 500 * time.Millisecond

type Config struct {
	OutputDir string

	// WorkDir is the parent of every job's scratch directory.
	WorkDir string

	MaxParallel      int
	StepTimeout      time.Duration
	ProgressInterval time.Duration
	Logger           *slog.Logger
}

// Manager submits, runs and cancels export jobs.
type Manager struct {
	repo     Repository
	hub      *progress.Hub
	runner   *export.Runner
	resolver *export.OutputResolver
	cfg      Config
	logger   *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(engine ffmpeg.Engine, repo Repository, hub *progress.Hub, cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo: repo,
		hub:  hub,
		runner: export.NewRunner(engine, export.RunnerConfig{
			MaxParallel: cfg.MaxParallel,
			StepTimeout: cfg.StepTimeout,
			Logger:      cfg.Logger,
		}),
		resolver:   export.NewOutputResolver(),
		cfg:        cfg,
		logger:     cfg.Logger,
		baseCtx:    ctx,
		baseCancel: cancel,
		active:     make(map[string]context.CancelFunc),
	}
}

// Submit compiles snap and starts the export in the background. Compile
// errors are returned directly and no job is created.
func (m *Manager) Submit(ctx context.Context, projectID string, snap timeline.Snapshot, settings export.Settings) (*Job, error) {
	if m.baseCtx.Err() != nil {
		return nil, apperr.Validation("export", "agent is shutting down")
	}
	settings = settings.WithDefaults()
	profile, err := settings.Profile()
	if err != nil {
		return nil, err
	}
	if err := export.EnsureOutputDir(m.cfg.OutputDir); err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	output := m.resolver.Claim(m.cfg.OutputDir, settings.BaseName(), profile.Extension())

	plan, err := export.Compile(snap, settings, export.Options{
		WorkDir:   filepath.Join(m.cfg.WorkDir, id),
		OutputDir: m.cfg.OutputDir,
		Output:    output,
		Logger:    m.logger.With("job_id", id),
	})
	if err != nil {
		m.resolver.Release(output)
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:         id,
		ProjectID:  projectID,
		Status:     StatusPending,
		OutputPath: plan.Output,
		Filename:   plan.Filename,
		Format:     settings.Format,
		Quality:    settings.Quality,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.repo.Create(ctx, job); err != nil {
		m.resolver.Release(output)
		return nil, fmt.Errorf("create export job: %w", err)
	}
	m.hub.Publish(progress.Update{JobID: id, Status: string(StatusPending)})

	jobCtx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	m.active[id] = cancel
	m.mu.Unlock()

	m.logger.Info("export job submitted",
		"job_id", id,
		"project_id", projectID,
		"steps", len(plan.Steps),
		"format", settings.Format,
		"quality", settings.Quality)

	out := *job
	m.wg.Add(1)
	go m.run(jobCtx, cancel, job, plan)
	return &out, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, job *Job, plan *export.Plan) {
	defer m.wg.Done()
	defer cancel()

	// finish runs before the terminal update so observers of it never see
	// the job as active.
	finish := func() {
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
		m.resolver.Release(plan.Output)
	}

	logger := m.logger.With("job_id", job.ID)
	// Status writes must land even after the job's context is cancelled.
	dbCtx := context.WithoutCancel(ctx)

	if err := m.repo.UpdateStatus(dbCtx, job.ID, StatusRunning, "", nil); err != nil {
		logger.Warn("failed to mark export running", "error", err)
	}
	m.hub.Publish(progress.Update{JobID: job.ID, Status: string(StatusRunning)})

	var current atomic.Int32
	var lastWrite time.Time
	tracker := progress.NewTracker(plan.Weights(), func(pct float64) {
		m.hub.Publish(progress.Update{
			JobID:   job.ID,
			Percent: pct,
			Status:  string(StatusRunning),
			Step:    int(current.Load()),
		})
		if time.Since(lastWrite) >= m.cfg.ProgressInterval {
			lastWrite = time.Now()
			if err := m.repo.UpdateProgress(dbCtx, job.ID, pct); err != nil {
				logger.Debug("failed to store export progress", "error", err)
			}
		}
	})
	onStep := func(ev export.StepEvent) {
		if !ev.Done {
			current.Store(int32(ev.Step))
		}
	}

	res, err := m.runner.Execute(ctx, plan, tracker, onStep)
	if err == nil {
		if err := m.repo.Complete(dbCtx, job.ID, res.Path, res.Filename, res.Size); err != nil {
			logger.Warn("failed to store export result", "error", err)
		}
		finish()
		m.hub.Publish(progress.Update{
			JobID:    job.ID,
			Percent:  100,
			Status:   string(StatusCompleted),
			Step:     len(plan.Steps) - 1,
			Path:     res.Path,
			Filename: res.Filename,
			Done:     true,
		})
		logger.Info("export job completed",
			"filename", res.Filename,
			"size", humanize.Bytes(uint64(res.Size)),
			"duration_ms", res.Elapsed.Milliseconds())
		return
	}

	status := StatusFailed
	if errors.Is(err, context.Canceled) {
		status = StatusCancelled
	}
	failedStep := stepOf(err)
	if err := m.repo.UpdateStatus(dbCtx, job.ID, status, err.Error(), failedStep); err != nil {
		logger.Warn("failed to store export failure", "error", err)
	}
	update := progress.Update{
		JobID:   job.ID,
		Percent: tracker.Percent(),
		Status:  string(status),
		Step:    int(current.Load()),
		Error:   err.Error(),
		Done:    true,
	}
	if failedStep != nil {
		update.Step = *failedStep
	}
	finish()
	m.hub.Publish(update)

	if status == StatusCancelled {
		logger.Info("export job cancelled")
	} else {
		logger.Error("export job failed", "error", err)
	}
}

// stepOf extracts the failing plan step from an engine error.
func stepOf(err error) *int {
	var pe *apperr.ProcessingError
	if errors.As(err, &pe) && pe.Step >= 0 {
		step := pe.Step
		return &step
	}
	var te *apperr.TimeoutError
	if errors.As(err, &te) {
		step := te.Step
		return &step
	}
	return nil
}

// Cancel stops a running export. Its intermediates and partial output are
// removed before the job reaches the cancelled state.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		cancel()
		m.logger.Info("export job cancel requested", "job_id", id)
		return nil
	}

	job, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Validation("cancel export", "job %s is already %s", id, job.Status)
}

func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	job, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get export job: %w", err)
	}
	if job == nil {
		return nil, apperr.NotFound("export job", id)
	}
	return job, nil
}

func (m *Manager) List(ctx context.Context, projectID string, limit int) ([]*Job, error) {
	return m.repo.List(ctx, projectID, limit)
}

// ActiveCount returns how many exports are pending or running.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown cancels every running export and waits for their cleanup.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.baseCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
