package export

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/progress"
)

const (
	DefaultMaxParallel = 2
	DefaultStepTimeout = 30 * time.Minute
)

// RunnerConfig holds the plan runner's configuration.
type RunnerConfig struct {
	MaxParallel int
	StepTimeout time.Duration
	Logger      *slog.Logger
}

// Runner executes compiled plans against an engine.
type Runner struct {
	engine ffmpeg.Engine
	cfg    RunnerConfig
}

func NewRunner(engine ffmpeg.Engine, cfg RunnerConfig) *Runner {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{engine: engine, cfg: cfg}
}

// Result describes the delivered artifact.
type Result struct {
	Path     string        `json:"path"`
	Filename string        `json:"filename"`
	Size     int64         `json:"size"`
	Elapsed  time.Duration `json:"elapsed"`
}

// StepEvent reports a step boundary to an optional listener.
type StepEvent struct {
	Step int
	Kind StepKind
	Done bool
	Err  error
}

// Execute runs every step of plan, level by level. Steps within a level run
// concurrently up to MaxParallel; the first failure cancels the rest and no
// later level starts. Intermediates are always removed. The final artifact
// is removed unless the whole plan succeeded.
func (r *Runner) Execute(ctx context.Context, plan *Plan, tracker *progress.Tracker, onStep func(StepEvent)) (res *Result, err error) {
	start := time.Now()
	logger := r.cfg.Logger.With("output", filepath.Base(plan.Output))

	if plan.WorkDir != "" {
		if mkErr := os.MkdirAll(plan.WorkDir, 0755); mkErr != nil {
			return nil, &apperr.IOError{Op: "create work dir", Path: plan.WorkDir, Err: mkErr}
		}
	}
	if mkErr := os.MkdirAll(filepath.Dir(plan.Output), 0755); mkErr != nil {
		return nil, &apperr.IOError{Op: "create output dir", Path: filepath.Dir(plan.Output), Err: mkErr}
	}
	defer func() { r.cleanup(plan, err != nil, logger) }()

	for _, level := range plan.Levels() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.MaxParallel)
		for _, idx := range level {
			step := plan.Steps[idx]
			g.Go(func() error {
				return r.runStep(ctx, gctx, step, tracker, onStep, logger)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	info, statErr := os.Stat(plan.Output)
	if statErr != nil {
		return nil, &apperr.IOError{Op: "stat output", Path: plan.Output, Err: statErr}
	}

	res = &Result{
		Path:     plan.Output,
		Filename: plan.Filename,
		Size:     info.Size(),
		Elapsed:  time.Since(start),
	}
	logger.Info("export plan complete", "steps", len(plan.Steps), "duration_ms", res.Elapsed.Milliseconds())
	return res, nil
}

// runStep runs one step under its own timeout. parent is the caller's
// context; gctx is cancelled when a sibling fails.
func (r *Runner) runStep(parent, gctx context.Context, step Step, tracker *progress.Tracker, onStep func(StepEvent), logger *slog.Logger) error {
	if err := gctx.Err(); err != nil {
		return err
	}

	stepCtx, cancel := context.WithTimeout(gctx, r.cfg.StepTimeout)
	defer cancel()

	notify := func(ev StepEvent) {
		if onStep != nil {
			onStep(ev)
		}
	}
	obs := func(ev ffmpeg.Event) {
		if ev.Kind == ffmpeg.EventProgress && tracker != nil {
			tracker.Step(step.Index, ev.Percent)
		}
	}

	logger.Info("export step started", "step", step.Index, "kind", step.Kind, "clip_id", step.ClipID)
	notify(StepEvent{Step: step.Index, Kind: step.Kind})

	var err error
	switch step.Kind {
	case StepTranscode:
		err = r.engine.Transcode(stepCtx, *step.Transcode, obs)
	case StepConcat:
		err = r.engine.Concat(stepCtx, *step.Concat, obs)
	case StepMix:
		err = r.engine.Mix(stepCtx, *step.Mix, obs)
	default:
		err = apperr.Validation("export", "unknown step kind %q", step.Kind)
	}

	if err != nil {
		err = r.classify(parent, gctx, stepCtx, step, err)
		if !errors.Is(err, context.Canceled) {
			logger.Warn("export step failed", "step", step.Index, "kind", step.Kind, "error", err)
		}
		notify(StepEvent{Step: step.Index, Kind: step.Kind, Done: true, Err: err})
		return err
	}

	if tracker != nil {
		tracker.Complete(step.Index)
	}
	notify(StepEvent{Step: step.Index, Kind: step.Kind, Done: true})
	return nil
}

// classify tags an engine error with the step that produced it. A step that
// ran out its own deadline becomes a TimeoutError; a step stopped because
// the caller or a sibling cancelled reports the cancellation.
func (r *Runner) classify(parent, gctx, stepCtx context.Context, step Step, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case gctx.Err() != nil:
		return context.Canceled
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		return &apperr.TimeoutError{Op: string(step.Kind), Step: step.Index, Timeout: r.cfg.StepTimeout}
	}

	var pe *apperr.ProcessingError
	if errors.As(err, &pe) {
		tagged := *pe
		tagged.Step = step.Index
		return &tagged
	}
	// Anything else, IOErrors from list or artifact writes included, is
	// wrapped so the failing step survives; errors.As still reaches the cause.
	return &apperr.ProcessingError{Op: string(step.Kind), Step: step.Index, Err: err}
}

// cleanup removes intermediates and, when failed, the final artifact.
// Removal errors are logged and never change the export's outcome.
func (r *Runner) cleanup(plan *Plan, failed bool, logger *slog.Logger) {
	paths := plan.Intermediates()
	if plan.WorkDir != "" {
		paths = append(paths, filepath.Join(plan.WorkDir, "concat.txt"))
	}
	if failed {
		paths = append(paths, plan.Output)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("export cleanup failed", "error", &apperr.IOError{Op: "remove", Path: p, Err: err})
		}
	}
	if plan.WorkDir != "" {
		if err := os.Remove(plan.WorkDir); err != nil && !os.IsNotExist(err) {
			logger.Debug("work dir not removed", "path", plan.WorkDir, "error", err)
		}
	}
}
