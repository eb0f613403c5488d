// Package export compiles a timeline snapshot into an ordered plan of media
// engine steps, runs the plan, and renders edit decision lists.
package export

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/timeline"
)

const (
	// Relative cost of a stream-copy concat and an audio mix against one
	// second of transcoded video.
	concatCostFactor = 0.1
	mixCostFactor    = 0.5
)

// fallbackTarget is used when quality is unrecognised and the first clip's
// size is unknown but several clips still need a common size for concat.
var fallbackTarget = ffmpeg.Resolution{Width: 1280, Height: 720}

// Options controls where compiled steps write.
type Options struct {
	WorkDir   string
	OutputDir string

	// Output overrides the final artifact path; otherwise it is
	// OutputDir/<filename>.<ext>.
	Output string

	Logger *slog.Logger
}

// Compile turns a snapshot into a Plan. It fails with a ValidationError when
// the format is unsupported or no video or image clip exists.
//
// Plans use the fewest ffmpeg runs that produce the output: a single video
// part is never concatenated, so with audio clips the mix reads that part
// directly.
func Compile(snap timeline.Snapshot, settings Settings, opts Options) (*Plan, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings = settings.WithDefaults()
	profile, err := settings.Profile()
	if err != nil {
		return nil, err
	}
	quality := LookupQuality(settings.Quality)

	videoClips, audioClips, err := partition(snap)
	if err != nil {
		return nil, err
	}
	if len(videoClips) == 0 {
		return nil, apperr.Validation("export", "timeline has no video or image clips to export")
	}

	filename := settings.BaseName() + profile.Extension()
	output := opts.Output
	if output == "" {
		output = filepath.Join(opts.OutputDir, filename)
	} else {
		filename = filepath.Base(output)
	}

	plan := &Plan{
		Settings: settings,
		Profile:  profile,
		Quality:  quality,
		WorkDir:  opts.WorkDir,
		Output:   output,
		Filename: filename,
		Overlaps: snap.Timeline.Overlaps(),
	}
	for _, o := range plan.Overlaps {
		logger.Warn("overlapping clips exported back to back",
			"track_id", o.TrackID, "first", o.First, "second", o.Second, "overlap_s", o.Amount)
	}

	record := 0.0
	for _, c := range videoClips {
		m, _ := snap.Media.Lookup(c.MediaID)
		plan.Video = append(plan.Video, segmentFor(c, m, record))
		record += c.SourceTrimEnd - c.SourceTrimStart
	}
	plan.VideoDuration = record
	for _, c := range audioClips {
		m, _ := snap.Media.Lookup(c.MediaID)
		plan.Audio = append(plan.Audio, segmentFor(c, m, c.TimelineStart))
	}

	if len(videoClips) == 1 && len(audioClips) == 0 {
		c := videoClips[0]
		m, _ := snap.Media.Lookup(c.MediaID)
		plan.addTranscode(c, m, output, false, quality.Target, 0, quality.Fidelity)
		return plan, nil
	}

	target := commonTarget(quality, snap.Media, videoClips)
	var parts []string
	for i, c := range videoClips {
		m, _ := snap.Media.Lookup(c.MediaID)
		out := filepath.Join(opts.WorkDir, fmt.Sprintf("part-%03d%s", i, profile.Extension()))
		plan.addTranscode(c, m, out, true, target, ffmpeg.NormalizedFrameRate, quality.Fidelity)
		parts = append(parts, out)
	}
	transcodes := indexes(len(parts))

	primary := parts[0]
	primaryStep := []int{0}
	if len(parts) > 1 {
		concatOut := output
		intermediate := len(audioClips) > 0
		if intermediate {
			concatOut = filepath.Join(opts.WorkDir, "concat"+profile.Extension())
		}
		plan.add(Step{
			Kind:         StepConcat,
			DependsOn:    transcodes,
			Weight:       concatCostFactor * plan.VideoDuration,
			Output:       concatOut,
			Intermediate: intermediate,
			Concat: &ffmpeg.ConcatRequest{
				Inputs:   parts,
				ListPath: filepath.Join(opts.WorkDir, "concat.txt"),
				Output:   concatOut,
				Duration: plan.VideoDuration,
				Profile:  profile,
			},
		})
		primary = concatOut
		primaryStep = []int{len(plan.Steps) - 1}
	}

	if len(audioClips) > 0 {
		mixDuration := plan.VideoDuration
		var secondary []ffmpeg.MixInput
		for _, seg := range plan.Audio {
			secondary = append(secondary, ffmpeg.MixInput{
				Path:      seg.SourcePath,
				Offset:    seg.RecordStart,
				TrimStart: seg.TrimStart,
				Duration:  seg.Duration(),
			})
			mixDuration = math.Max(mixDuration, seg.RecordStart+seg.Duration())
		}
		plan.add(Step{
			Kind:      StepMix,
			DependsOn: primaryStep,
			Weight:    mixCostFactor * mixDuration,
			Output:    output,
			Mix: &ffmpeg.MixRequest{
				Primary:   primary,
				Secondary: secondary,
				Output:    output,
				Duration:  mixDuration,
				Profile:   profile,
			},
		})
	}

	return plan, nil
}

func (p *Plan) add(s Step) {
	s.Index = len(p.Steps)
	p.Steps = append(p.Steps, s)
}

func (p *Plan) addTranscode(c timeline.Clip, m timeline.MediaItem, out string, intermediate bool, target ffmpeg.Resolution, fps int, fid ffmpeg.Fidelity) {
	dur := c.SourceTrimEnd - c.SourceTrimStart
	p.add(Step{
		Kind:         StepTranscode,
		Weight:       dur,
		Output:       out,
		Intermediate: intermediate,
		ClipID:       c.ID,
		Transcode: &ffmpeg.TranscodeRequest{
			Input:        m.SourcePath,
			Output:       out,
			TrimStart:    c.SourceTrimStart,
			TrimDuration: dur,
			Still:        m.Kind == timeline.MediaImage,
			HasAudio:     m.Kind != timeline.MediaImage && m.CarriesAudio(),
			Target:       target,
			FrameRate:    fps,
			Fidelity:     fid,
			Profile:      p.Profile,
		},
	})
}

// partition splits clips by media kind and sorts each group into output order.
func partition(snap timeline.Snapshot) (video, audio []timeline.Clip, err error) {
	for _, c := range snap.Timeline.Clips {
		m, ok := snap.Media.Lookup(c.MediaID)
		if !ok {
			return nil, nil, apperr.NotFound("media", c.MediaID)
		}
		if err := timeline.ValidateClip(c, m); err != nil {
			return nil, nil, apperr.Validation("export", "%v", err)
		}
		if m.Kind == timeline.MediaAudio {
			audio = append(audio, c)
		} else {
			video = append(video, c)
		}
	}
	timeline.SortClips(video)
	timeline.SortClips(audio)
	return video, audio, nil
}

// commonTarget picks the size every concat part is normalised to.
func commonTarget(q QualityProfile, media timeline.Catalog, clips []timeline.Clip) ffmpeg.Resolution {
	if q.Known {
		return q.Target
	}
	if m, ok := media.Lookup(clips[0].MediaID); ok && m.Width > 0 && m.Height > 0 {
		return ffmpeg.Resolution{Width: m.Width &^ 1, Height: m.Height &^ 1}
	}
	return fallbackTarget
}

func segmentFor(c timeline.Clip, m timeline.MediaItem, record float64) Segment {
	return Segment{
		ClipID:      c.ID,
		MediaID:     c.MediaID,
		SourcePath:  m.SourcePath,
		Kind:        m.Kind,
		TrimStart:   c.SourceTrimStart,
		TrimEnd:     c.SourceTrimEnd,
		RecordStart: record,
	}
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
