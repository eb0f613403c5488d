package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/ffmpeg"
)

type Dependencies struct {
	Config config.Config
	Logger *slog.Logger

	// Engine replaces the ffmpeg executor when set.
	Engine ffmpeg.Engine
}

func (d *Dependencies) executor() *ffmpeg.Executor {
	return ffmpeg.NewExecutor(ffmpeg.Config{
		FFmpegPath:  d.Config.FFmpegPath(),
		FFprobePath: d.Config.FFprobePath(),
		Logger:      d.Logger,
	})
}

func (d *Dependencies) engine() ffmpeg.Engine {
	if d.Engine != nil {
		return d.Engine
	}
	return d.executor()
}

func (d *Dependencies) prober() ffmpeg.VersionProber {
	if p, ok := d.Engine.(ffmpeg.VersionProber); ok {
		return p
	}
	return d.executor()
}

func versionString() string {
	return fmt.Sprintf("clipforge %s (commit %s, built %s)", config.Version, config.GitCommit, config.BuildTime)
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	serve := NewServeCmd(deps)

	rootCmd := &cobra.Command{
		Use:           "clipforge",
		Short:         "Local video timeline editor agent",
		Long:          "clipforge keeps timeline projects, imports media and renders exports with ffmpeg behind a local HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	rootCmd.Version = config.Version
	rootCmd.SetVersionTemplate(versionString() + "\n")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(NewExportCmd(deps))
	rootCmd.AddCommand(NewProbeCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
