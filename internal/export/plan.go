package export

import (
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/timeline"
)

type StepKind string

const (
	StepTranscode StepKind = "transcode"
	StepConcat    StepKind = "concat"
	StepMix       StepKind = "mix"
)

// Step is one engine invocation. Exactly one request field is set, matching
// Kind.
type Step struct {
	Index     int
	Kind      StepKind
	DependsOn []int

	// Weight is the estimated relative cost used for whole-plan progress.
	Weight float64

	Output       string
	Intermediate bool
	ClipID       string

	Transcode *ffmpeg.TranscodeRequest
	Concat    *ffmpeg.ConcatRequest
	Mix       *ffmpeg.MixRequest
}

// Segment is one clip in the compiled output order.
type Segment struct {
	ClipID      string
	MediaID     string
	SourcePath  string
	Kind        timeline.MediaKind
	TrimStart   float64
	TrimEnd     float64
	RecordStart float64
}

func (s Segment) Duration() float64 { return s.TrimEnd - s.TrimStart }

// Plan is the compiled, ordered list of engine steps for one export.
type Plan struct {
	Settings Settings
	Profile  ffmpeg.FormatProfile
	Quality  QualityProfile

	WorkDir  string
	Output   string
	Filename string

	Steps []Step

	// Video is the back-to-back concatenation order; Audio are the mixed
	// clips placed at their own timeline positions.
	Video []Segment
	Audio []Segment

	VideoDuration float64
	Overlaps      []timeline.Overlap
}

// Weights returns the per-step progress weights in step order.
func (p *Plan) Weights() []float64 {
	w := make([]float64, len(p.Steps))
	for i, s := range p.Steps {
		w[i] = s.Weight
	}
	return w
}

// Intermediates lists every artifact that is not the final output.
func (p *Plan) Intermediates() []string {
	var out []string
	for _, s := range p.Steps {
		if s.Intermediate {
			out = append(out, s.Output)
		}
	}
	return out
}

// Levels groups step indexes into dependency levels. Steps in one level only
// depend on steps in earlier levels and may run concurrently.
func (p *Plan) Levels() [][]int {
	level := make([]int, len(p.Steps))
	maxLevel := 0
	for i, s := range p.Steps {
		for _, d := range s.DependsOn {
			if d >= 0 && d < i && level[d]+1 > level[i] {
				level[i] = level[d] + 1
			}
		}
		if level[i] > maxLevel {
			maxLevel = level[i]
		}
	}
	if len(p.Steps) == 0 {
		return nil
	}
	out := make([][]int, maxLevel+1)
	for i := range p.Steps {
		out[level[i]] = append(out[level[i]], i)
	}
	return out
}

// CountSteps returns how many steps of kind the plan has.
func (p *Plan) CountSteps(kind StepKind) int {
	n := 0
	for _, s := range p.Steps {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
