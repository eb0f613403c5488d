package export

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMedia() timeline.Catalog {
	return timeline.Catalog{
		"v10":   {ID: "v10", SourcePath: "/media/ten.mp4", Kind: timeline.MediaVideo, Duration: 10, Width: 1920, Height: 1080},
		"v20":   {ID: "v20", SourcePath: "/media/twenty.mov", Kind: timeline.MediaVideo, Duration: 20, Width: 1281, Height: 721},
		"img":   {ID: "img", SourcePath: "/media/still.png", Kind: timeline.MediaImage, Duration: timeline.ImageDuration},
		"music": {ID: "music", SourcePath: "/media/music.mp3", Kind: timeline.MediaAudio, Duration: 60},
	}
}

func clip(id, mediaID, trackID string, start, trimStart, trimEnd float64) timeline.Clip {
	return timeline.Clip{
		ID:               id,
		MediaID:          mediaID,
		TrackID:          trackID,
		TimelineStart:    start,
		TimelineDuration: trimEnd - trimStart,
		SourceTrimStart:  trimStart,
		SourceTrimEnd:    trimEnd,
	}
}

func snapshot(clips ...timeline.Clip) timeline.Snapshot {
	return timeline.Snapshot{
		Timeline: timeline.Timeline{Tracks: timeline.DefaultTracks(), Clips: clips},
		Media:    testMedia(),
	}
}

func compileOpts(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		WorkDir:   filepath.Join(dir, "work"),
		OutputDir: filepath.Join(dir, "out"),
		Logger:    testLogger(),
	}
}

func TestCompile_SingleClipTrim(t *testing.T) {
	opts := compileOpts(t)
	plan, err := Compile(snapshot(clip("c1", "v10", "video-1", 0, 2, 7)), Settings{Format: "mp4", Quality: "medium", Filename: "out"}, opts)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if len(plan.Steps) != 1 || plan.Steps[0].Kind != StepTranscode {
		t.Fatalf("steps = %+v, want one transcode", plan.Steps)
	}
	req := plan.Steps[0].Transcode
	if req.TrimStart != 2 || req.TrimDuration != 5 {
		t.Errorf("trim = (%v, %v), want (2, 5)", req.TrimStart, req.TrimDuration)
	}
	if req.Target != (ffmpeg.Resolution{Width: 1280, Height: 720}) || req.Fidelity != ffmpeg.FidelityMedium {
		t.Errorf("target = %v fidelity = %v", req.Target, req.Fidelity)
	}
	if req.Output != plan.Output || plan.Steps[0].Intermediate {
		t.Errorf("single step must write the final artifact directly")
	}
	if plan.Output != filepath.Join(opts.OutputDir, "out.mp4") || plan.Filename != "out.mp4" {
		t.Errorf("output = %s filename = %s", plan.Output, plan.Filename)
	}
	if len(plan.Intermediates()) != 0 {
		t.Errorf("intermediates = %v, want none", plan.Intermediates())
	}
}

func TestCompile_ThreeVideoOneAudio(t *testing.T) {
	// Durations 3, 4, 2 in timeline order, inserted out of order.
	snap := snapshot(
		clip("b", "v20", "video-1", 5, 0, 4),
		clip("c", "img", "video-2", 12, 0, 2),
		clip("a", "v10", "video-1", 0, 1, 4),
		clip("m", "music", "audio-1", 1, 10, 40),
	)
	plan, err := Compile(snap, Settings{Format: "webm", Quality: "high"}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if n := plan.CountSteps(StepTranscode); n != 3 {
		t.Errorf("transcode steps = %d, want 3", n)
	}
	if n := plan.CountSteps(StepConcat); n != 1 {
		t.Errorf("concat steps = %d, want 1", n)
	}
	if n := plan.CountSteps(StepMix); n != 1 {
		t.Errorf("mix steps = %d, want 1", n)
	}
	if plan.VideoDuration != 9 {
		t.Errorf("VideoDuration = %v, want 9", plan.VideoDuration)
	}

	var order []string
	for _, s := range plan.Steps[:3] {
		order = append(order, s.ClipID)
		if s.Transcode.Target != (ffmpeg.Resolution{Width: 1920, Height: 1080}) || s.Transcode.FrameRate != ffmpeg.NormalizedFrameRate {
			t.Errorf("clip %s not normalised: %+v", s.ClipID, s.Transcode)
		}
		if !s.Intermediate {
			t.Errorf("transcode %d should be intermediate", s.Index)
		}
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("concat order = %v, want [a b c]", order)
	}
	if !plan.Steps[2].Transcode.Still || plan.Steps[2].Transcode.HasAudio {
		t.Errorf("image clip should loop a still with synthesised audio")
	}

	concat := plan.Steps[3]
	if len(concat.DependsOn) != 3 || !concat.Intermediate || concat.Concat.Duration != 9 {
		t.Errorf("concat step = %+v", concat)
	}
	mix := plan.Steps[4]
	if mix.Mix.Primary != concat.Output || mix.Output != plan.Output || mix.Intermediate {
		t.Errorf("mix step = %+v", mix)
	}
	in := mix.Mix.Secondary[0]
	if in.Path != "/media/music.mp3" || in.Offset != 1 || in.TrimStart != 10 || in.Duration != 30 {
		t.Errorf("mix input = %+v", in)
	}
	if mix.Mix.Duration != 31 {
		t.Errorf("mix duration = %v, want 31 (longest input)", mix.Mix.Duration)
	}

	levels := plan.Levels()
	if len(levels) != 3 || len(levels[0]) != 3 {
		t.Errorf("levels = %v, want [[0 1 2] [3] [4]]", levels)
	}
	if len(plan.Intermediates()) != 4 {
		t.Errorf("intermediates = %v, want 3 parts + concat", plan.Intermediates())
	}
	if plan.Filename != "export.webm" {
		t.Errorf("filename = %s", plan.Filename)
	}
}

func TestCompile_SingleVideoWithAudioSkipsConcat(t *testing.T) {
	plan, err := Compile(snapshot(
		clip("v", "v10", "video-1", 0, 0, 6),
		clip("m", "music", "audio-1", 0, 0, 3),
	), Settings{}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.Steps) != 2 || plan.Steps[0].Kind != StepTranscode || plan.Steps[1].Kind != StepMix {
		t.Fatalf("steps = %+v, want transcode then mix", plan.Steps)
	}
	if plan.Steps[1].Mix.Primary != plan.Steps[0].Output {
		t.Errorf("mix should read the transcode output")
	}
	if plan.Steps[1].DependsOn[0] != 0 {
		t.Errorf("mix depends on %v", plan.Steps[1].DependsOn)
	}
}

func TestCompile_MultiVideoWithoutAudio(t *testing.T) {
	plan, err := Compile(snapshot(
		clip("a", "v10", "video-1", 0, 0, 2),
		clip("b", "v10", "video-1", 2, 2, 4),
	), Settings{Quality: "low"}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.Steps) != 3 || plan.Steps[2].Kind != StepConcat {
		t.Fatalf("steps = %+v", plan.Steps)
	}
	if plan.Steps[2].Output != plan.Output || plan.Steps[2].Intermediate {
		t.Errorf("concat should write the final artifact")
	}
}

func TestCompile_UnknownQuality(t *testing.T) {
	single, err := Compile(snapshot(clip("a", "v10", "video-1", 0, 0, 2)), Settings{Quality: "ultra"}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	req := single.Steps[0].Transcode
	if !req.Target.IsZero() || req.Fidelity != ffmpeg.FidelityMedium {
		t.Errorf("unknown quality should keep source size at medium, got %v %v", req.Target, req.Fidelity)
	}

	multi, err := Compile(snapshot(
		clip("a", "v20", "video-1", 0, 0, 2),
		clip("b", "v10", "video-1", 2, 0, 2),
	), Settings{Quality: "ultra"}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := ffmpeg.Resolution{Width: 1280, Height: 720}
	for _, s := range multi.Steps[:2] {
		if s.Transcode.Target != want {
			t.Errorf("part target = %v, want first clip size rounded to even %v", s.Transcode.Target, want)
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		snap     timeline.Snapshot
		settings Settings
		check    func(error) bool
	}{
		{"empty timeline", snapshot(), Settings{}, apperr.IsValidation},
		{"audio only", snapshot(clip("m", "music", "audio-1", 0, 0, 5)), Settings{}, apperr.IsValidation},
		{"bad format", snapshot(clip("a", "v10", "video-1", 0, 0, 2)), Settings{Format: "mkv"}, apperr.IsValidation},
		{"unknown media", snapshot(clip("a", "ghost", "video-1", 0, 0, 2)), Settings{}, apperr.IsNotFound},
		{"broken clip", snapshot(clip("a", "v10", "video-1", 0, 5, 30)), Settings{}, apperr.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.snap, tt.settings, compileOpts(t))
			if !tt.check(err) {
				t.Fatalf("Compile() error = %v", err)
			}
		})
	}
}

func TestCompile_OverlapsRecorded(t *testing.T) {
	plan, err := Compile(snapshot(
		clip("a", "v10", "video-1", 0, 0, 5),
		clip("b", "v10", "video-1", 3, 0, 5),
	), Settings{}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(plan.Overlaps) != 1 {
		t.Fatalf("overlaps = %+v", plan.Overlaps)
	}
	// Overlap does not shorten the output.
	if plan.VideoDuration != 10 {
		t.Errorf("VideoDuration = %v, want 10", plan.VideoDuration)
	}
	if plan.Video[1].RecordStart != 5 {
		t.Errorf("second segment record start = %v, want 5", plan.Video[1].RecordStart)
	}
}

func TestCompile_WeightsFollowDuration(t *testing.T) {
	plan, err := Compile(snapshot(
		clip("a", "v10", "video-1", 0, 0, 3),
		clip("b", "v10", "video-1", 3, 0, 1),
	), Settings{}, compileOpts(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	w := plan.Weights()
	if w[0] != 3 || w[1] != 1 || math.Abs(w[2]-0.4) > 1e-9 {
		t.Errorf("weights = %v, want [3 1 0.4]", w)
	}
}

func TestCompile_OutputOverride(t *testing.T) {
	opts := compileOpts(t)
	opts.Output = filepath.Join(opts.OutputDir, "film - dup1.mp4")
	plan, err := Compile(snapshot(clip("a", "v10", "video-1", 0, 0, 2)), Settings{Filename: "film"}, opts)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if plan.Output != opts.Output || plan.Filename != "film - dup1.mp4" {
		t.Errorf("output = %s filename = %s", plan.Output, plan.Filename)
	}
}
