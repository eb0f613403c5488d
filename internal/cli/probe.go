package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/timeline"
)

func NewProbeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show what an import would record for a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd.OutOrStdout())
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			kind, err := media.Classify(path)
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			f.Info("%s", path)
			f.Field("kind", kind)
			f.Field("size", humanize.Bytes(uint64(info.Size())))

			if kind == timeline.MediaImage {
				f.Field("duration", "still image")
				return nil
			}
			res, err := deps.engine().Probe(cmd.Context(), path)
			if err != nil {
				return err
			}
			f.Field("format", res.FormatName)
			f.Field("duration", fmt.Sprintf("%.3fs", res.Duration))
			if res.HasVideo {
				f.Field("video", res.VideoCodec)
				f.Field("resolution", ffmpeg.Resolution{Width: res.Width, Height: res.Height})
				f.Field("frame rate", fmt.Sprintf("%s (%.3f fps)", res.FrameRate, res.FPS()))
			}
			if res.HasAudio {
				f.Field("audio", res.AudioCodec)
			}
			return nil
		},
	}
}
