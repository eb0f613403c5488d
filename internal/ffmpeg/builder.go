package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// NormalizedFrameRate is the frame rate every concat intermediate is
	// re-timed to.
	NormalizedFrameRate = 30

	mixSampleRate = "48000"
	// Fade time in seconds when a mix input ends before the longest one.
	mixDropout = 2
)

func preamble() []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-loglevel", "error",
		"-progress", "pipe:2", "-nostats",
	}
}

func secs(v float64) string {
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// TranscodeArgs builds the argument list for a trim + re-encode.
func TranscodeArgs(req TranscodeRequest) []string {
	args := make([]string, 0, 48)
	args = append(args, preamble()...)

	// --- Inputs ---
	if req.Still {
		args = append(args,
			"-loop", "1",
			"-framerate", strconv.Itoa(frameRateOrDefault(req.FrameRate)),
			"-t", secs(req.TrimDuration),
			"-i", req.Input,
		)
	} else {
		args = append(args,
			"-ss", secs(req.TrimStart),
			"-t", secs(req.TrimDuration),
			"-i", req.Input,
		)
	}
	silent := req.Still || !req.HasAudio
	if silent {
		args = append(args,
			"-f", "lavfi",
			"-t", secs(req.TrimDuration),
			"-i", "anullsrc=channel_layout=stereo:sample_rate="+mixSampleRate,
		)
	}

	// --- Maps ---
	args = append(args, "-map", "0:v:0")
	if silent {
		args = append(args, "-map", "1:a:0")
	} else {
		args = append(args, "-map", "0:a:0")
	}

	// --- Video ---
	args = append(args, "-vf", videoFilter(req))
	args = append(args, "-c:v", req.Profile.VideoCodec)
	args = append(args, req.Profile.qualityArgs(req.Fidelity)...)
	args = append(args, req.Profile.VideoOpts...)

	// --- Audio ---
	args = append(args, audioCodecArgs(req.Profile)...)
	if silent {
		args = append(args, "-shortest")
	}

	// --- Output ---
	args = append(args, req.Profile.ContainerOpts...)
	args = append(args, req.Output)
	return args
}

func frameRateOrDefault(fps int) int {
	if fps <= 0 {
		return NormalizedFrameRate
	}
	return fps
}

func videoFilter(req TranscodeRequest) string {
	var chain []string
	if req.Target.IsZero() {
		chain = append(chain, "scale=trunc(iw/2)*2:trunc(ih/2)*2")
	} else {
		w, h := req.Target.Width, req.Target.Height
		chain = append(chain,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h),
		)
	}
	chain = append(chain, "setsar=1")
	if req.FrameRate > 0 {
		chain = append(chain, "fps="+strconv.Itoa(req.FrameRate))
	}
	chain = append(chain, "format=yuv420p")
	return strings.Join(chain, ",")
}

func audioCodecArgs(p FormatProfile) []string {
	args := []string{"-c:a", p.AudioCodec}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	return append(args, "-ar", mixSampleRate, "-ac", "2")
}

// ConcatArgs builds the argument list for a stream-copy join of the files
// listed in req.ListPath.
func ConcatArgs(req ConcatRequest) []string {
	args := preamble()
	args = append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", req.ListPath,
		"-c", "copy",
	)
	args = append(args, req.Profile.ContainerOpts...)
	return append(args, req.Output)
}

// ConcatList renders a concat demuxer list. Single quotes inside paths are
// closed, escaped and reopened.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// WriteConcatList writes ConcatList(paths) to path. Entries are made
// absolute first: the concat demuxer resolves relative entries against the
// list file's directory, not the working directory.
func WriteConcatList(path string, paths []string) error {
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		abs[i] = a
	}
	return os.WriteFile(path, []byte(ConcatList(abs)), 0644)
}

// MixArgs builds the argument list that mixes the primary file's audio with
// every secondary input and copies the primary video stream.
func MixArgs(req MixRequest) []string {
	args := preamble()
	args = append(args, "-i", req.Primary)
	for _, in := range req.Secondary {
		args = append(args, "-i", in.Path)
	}
	args = append(args,
		"-filter_complex", MixFilter(req.Secondary),
		"-map", "0:v:0",
		"-map", "[aout]",
		"-c:v", "copy",
	)
	args = append(args, audioCodecArgs(req.Profile)...)
	args = append(args, req.Profile.ContainerOpts...)
	return append(args, req.Output)
}

// MixFilter builds the filter graph for MixArgs. Input 0 is the primary;
// secondary i is input i+1, trimmed to its window and delayed to its offset.
func MixFilter(secondary []MixInput) string {
	var parts []string
	labels := "[0:a]"
	for i, in := range secondary {
		label := fmt.Sprintf("[a%d]", i+1)
		parts = append(parts, fmt.Sprintf(
			"[%d:a]atrim=start=%s:duration=%s,asetpts=PTS-STARTPTS,adelay=%d:all=1%s",
			i+1, secs(in.TrimStart), secs(in.Duration), delayMillis(in.Offset), label,
		))
		labels += label
	}
	parts = append(parts, fmt.Sprintf(
		"%samix=inputs=%d:duration=longest:dropout_transition=%d[aout]",
		labels, len(secondary)+1, mixDropout,
	))
	return strings.Join(parts, ";")
}

func delayMillis(offset float64) int64 {
	if offset <= 0 {
		return 0
	}
	return int64(offset*1000 + 0.5)
}

// ScreenshotArgs builds the argument list for a single-frame grab.
func ScreenshotArgs(req ScreenshotRequest) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-loglevel", "error",
		"-ss", secs(req.At),
		"-i", req.Input,
		"-frames:v", "1",
	}
	if !req.Size.IsZero() {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", req.Size.Width, req.Size.Height))
	}
	return append(args, req.Output)
}

// ProbeArgs builds the ffprobe argument list for a JSON stream/format dump.
func ProbeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}
}
