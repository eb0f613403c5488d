package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/logging"
)

var errNotReady = errors.New("some prerequisites are missing")

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd.OutOrStdout())
			doctor := ffmpeg.NewCachedDoctor(deps.prober(), deps.Logger)
			caps, err := doctor.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			for _, tool := range []ffmpeg.ToolInfo{caps.FFmpeg, caps.FFprobe} {
				if tool.Available {
					f.Check(tool.Name, true, tool.Version+" ("+logging.SanitizePath(tool.Path)+")")
				} else {
					f.Check(tool.Name, false, tool.Error)
				}
			}
			f.Check("data dir", true, logging.SanitizePath(deps.Config.DataDir()))
			f.Check("exports", true, logging.SanitizePath(deps.Config.ExportDir()))

			if !caps.Ready() {
				f.Warning("install ffmpeg and ffprobe or point CLIPFORGE_FFMPEG / CLIPFORGE_FFPROBE at them")
				return errNotReady
			}
			f.Success("all prerequisites met")
			return nil
		},
	}
}
