package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolution is a frame size in pixels. The zero value means "keep the
// source size".
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) IsZero() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Fidelity ranks encoder quality independently of codec.
type Fidelity int

const (
	FidelityLow Fidelity = iota
	FidelityMedium
	FidelityHigh
)

func (f Fidelity) String() string {
	switch f {
	case FidelityLow:
		return "low"
	case FidelityHigh:
		return "high"
	default:
		return "medium"
	}
}

// FormatProfile is the codec set used for one output container.
type FormatProfile struct {
	Container    string
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string

	// QualityFlag takes QualityValues[fidelity]; lower is better for every
	// supported codec.
	QualityFlag   string
	QualityValues [3]int

	VideoOpts     []string
	ContainerOpts []string
}

// Extension returns the file extension including the dot.
func (p FormatProfile) Extension() string { return "." + p.Container }

func (p FormatProfile) qualityArgs(f Fidelity) []string {
	if f < FidelityLow || f > FidelityHigh {
		f = FidelityMedium
	}
	return []string{p.QualityFlag, strconv.Itoa(p.QualityValues[f])}
}

var profiles = map[string]FormatProfile{
	"mp4": {
		Container:     "mp4",
		VideoCodec:    "libx264",
		AudioCodec:    "aac",
		AudioBitrate:  "192k",
		QualityFlag:   "-crf",
		QualityValues: [3]int{28, 23, 18},
		VideoOpts:     []string{"-preset", "medium"},
		ContainerOpts: []string{"-movflags", "+faststart"},
	},
	"webm": {
		Container:     "webm",
		VideoCodec:    "libvpx-vp9",
		AudioCodec:    "libopus",
		AudioBitrate:  "128k",
		QualityFlag:   "-crf",
		QualityValues: [3]int{40, 32, 24},
		VideoOpts:     []string{"-b:v", "0", "-row-mt", "1"},
	},
	"avi": {
		Container:     "avi",
		VideoCodec:    "mpeg4",
		AudioCodec:    "libmp3lame",
		AudioBitrate:  "192k",
		QualityFlag:   "-q:v",
		QualityValues: [3]int{8, 5, 2},
	},
}

// LookupProfile returns the profile for an output format name.
func LookupProfile(format string) (FormatProfile, bool) {
	p, ok := profiles[strings.ToLower(format)]
	return p, ok
}

// Formats lists the supported output format names.
func Formats() []string { return []string{"mp4", "webm", "avi"} }

// Rational is an exact frame rate such as 30000/1001.
type Rational struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

func (r Rational) IsZero() bool { return r.Num == 0 || r.Den == 0 }

func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// ParseRational parses an ffprobe rate such as "30000/1001" or "25".
// "0/0" (unknown rate) parses to the zero Rational without error.
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("empty rational")
	}
	numStr, denStr, hasDen := strings.Cut(s, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("invalid rational numerator %q: %w", s, err)
	}
	den := int64(1)
	if hasDen {
		den, err = strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid rational denominator %q: %w", s, err)
		}
	}
	if num < 0 || den < 0 {
		return Rational{}, fmt.Errorf("negative rational %q", s)
	}
	if den == 0 {
		return Rational{}, nil
	}
	return Rational{Num: num, Den: den}, nil
}

// TranscodeRequest trims one source and re-encodes it with a profile.
type TranscodeRequest struct {
	Input        string
	Output       string
	TrimStart    float64
	TrimDuration float64

	// Still loops a single image for TrimDuration seconds.
	Still bool
	// HasAudio false synthesises a silent track so every output carries audio.
	HasAudio bool

	Target    Resolution
	FrameRate int
	Fidelity  Fidelity
	Profile   FormatProfile
}

// ConcatRequest joins same-codec artifacts in order with a stream copy.
type ConcatRequest struct {
	Inputs   []string
	ListPath string
	Output   string
	Duration float64
	Profile  FormatProfile
}

// MixInput is one secondary audio source placed on the output timeline.
type MixInput struct {
	Path      string
	Offset    float64
	TrimStart float64
	Duration  float64
}

// MixRequest mixes the primary file's audio with secondary sources and keeps
// the primary video stream as is.
type MixRequest struct {
	Primary   string
	Secondary []MixInput
	Output    string
	Duration  float64
	Profile   FormatProfile
}

// ScreenshotRequest grabs one frame at At seconds.
type ScreenshotRequest struct {
	Input  string
	Output string
	At     float64
	Size   Resolution
}

// ProbeResult is the subset of ffprobe output the editor needs.
type ProbeResult struct {
	FormatName string
	Duration   float64
	Width      int
	Height     int
	FrameRate  Rational
	VideoCodec string
	AudioCodec string
	HasVideo   bool
	HasAudio   bool
}

// FPS returns the frame rate as a float, or 0 when unknown.
func (p ProbeResult) FPS() float64 { return p.FrameRate.Float() }
