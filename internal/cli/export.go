package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/export"
	"github.com/clipforge/clipforge/internal/logging"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/project"
)

type exportOptions struct {
	projectPath string
	outputDir   string
	settings    export.Settings
	edl         bool
}

func NewExportCmd(deps *Dependencies) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a project file to a video",
		Long:  "Render a saved project JSON file without the agent, printing progress as it goes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.outputDir == "" {
				opts.outputDir = deps.Config.ExportDir()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, err := runExport(ctx, deps, opts, newFormatter(cmd.OutOrStdout()))
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.projectPath, "project", "p", "", "project JSON file")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for the exported file (default: export dir)")
	cmd.Flags().StringVar(&opts.settings.Format, "format", export.DefaultFormat, "container: mp4, webm or avi")
	cmd.Flags().StringVar(&opts.settings.Quality, "quality", export.DefaultQuality, "high, medium or low")
	cmd.Flags().StringVar(&opts.settings.Filename, "filename", "", "output name without extension (default: project name)")
	cmd.Flags().BoolVar(&opts.edl, "edl", false, "also write a CMX3600 EDL next to the video")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runExport(ctx context.Context, deps *Dependencies, opts exportOptions, f *formatter) (*export.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, err := project.LoadFile(opts.projectPath)
	if err != nil {
		return nil, err
	}
	prober := media.NewImporter(deps.engine(), media.Config{Logger: deps.Logger})
	project.BackfillAudio(ctx, doc, prober, deps.Logger)
	sess, err := doc.Session()
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()

	settings := opts.settings
	if settings.Filename == "" {
		settings.Filename = doc.Name
	}
	settings = settings.WithDefaults()
	profile, err := settings.Profile()
	if err != nil {
		return nil, err
	}

	outDir, err := filepath.Abs(opts.outputDir)
	if err != nil {
		return nil, err
	}
	if err := export.EnsureOutputDir(outDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(deps.Config.WorkDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	workDir, err := os.MkdirTemp(deps.Config.WorkDir(), "cli-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	resolver := export.NewOutputResolver()
	output := resolver.Claim(outDir, settings.BaseName(), profile.Extension())
	defer resolver.Release(output)

	logger := logging.WithProjectID(deps.Logger, doc.ID)
	plan, err := export.Compile(snap, settings, export.Options{
		WorkDir:   workDir,
		OutputDir: outDir,
		Output:    output,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	f.Info("exporting %q to %s (%d steps)", doc.Name, plan.Filename, len(plan.Steps))
	printer := newProgressPrinter(f)
	tracker := progress.NewTracker(plan.Weights(), printer.Report)
	onStep := func(ev export.StepEvent) {
		switch {
		case !ev.Done:
			f.Info("step %d/%d: %s", ev.Step+1, len(plan.Steps), ev.Kind)
		case ev.Err != nil:
			f.Warning("step %d (%s) failed: %v", ev.Step+1, ev.Kind, ev.Err)
		}
	}

	runner := export.NewRunner(deps.engine(), export.RunnerConfig{
		MaxParallel: deps.Config.MaxParallel(),
		StepTimeout: deps.Config.StepTimeout(),
		Logger:      logger,
	})
	res, err := runner.Execute(ctx, plan, tracker, onStep)
	if err != nil {
		return nil, err
	}

	f.Success("%s (%s) in %s", res.Path, humanize.Bytes(uint64(res.Size)), res.Elapsed.Round(time.Millisecond))

	if opts.edl {
		edlPath := filepath.Join(outDir, settings.BaseName()+".edl")
		edl := export.GenerateEDL(plan, settings.BaseName(), export.FrameRate(snap))
		if err := os.WriteFile(edlPath, []byte(edl), 0644); err != nil {
			return res, fmt.Errorf("failed to write EDL: %w", err)
		}
		f.Success("EDL written to %s", edlPath)
	}
	return res, nil
}
