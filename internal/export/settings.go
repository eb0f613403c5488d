package export

import (
	"strings"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
)

const (
	DefaultFormat   = "mp4"
	DefaultQuality  = "high"
	DefaultFilename = "export"

	maxFilenameLen = 120
)

// Settings are the user's choices for one export.
type Settings struct {
	Format   string `json:"format"`
	Quality  string `json:"quality"`
	Filename string `json:"filename"`
}

// WithDefaults fills empty fields.
func (s Settings) WithDefaults() Settings {
	if strings.TrimSpace(s.Format) == "" {
		s.Format = DefaultFormat
	}
	if strings.TrimSpace(s.Quality) == "" {
		s.Quality = DefaultQuality
	}
	if strings.TrimSpace(s.Filename) == "" {
		s.Filename = DefaultFilename
	}
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
	return s
}

// Profile resolves the output container profile.
func (s Settings) Profile() (ffmpeg.FormatProfile, error) {
	p, ok := ffmpeg.LookupProfile(s.Format)
	if !ok {
		return ffmpeg.FormatProfile{}, apperr.Validation("export", "unsupported format %q (want one of %s)",
			s.Format, strings.Join(ffmpeg.Formats(), ", "))
	}
	return p, nil
}

// BaseName returns the sanitised filename without extension.
func (s Settings) BaseName() string {
	name := strings.TrimSpace(s.Filename)
	// Drop an extension the user typed; the format decides it.
	for _, f := range ffmpeg.Formats() {
		if strings.HasSuffix(strings.ToLower(name), "."+f) {
			name = name[:len(name)-len(f)-1]
			break
		}
	}
	name = strings.Trim(SanitizeName(name, maxFilenameLen), ". ")
	if name == "" {
		return DefaultFilename
	}
	return name
}

// QualityProfile is the fixed target for a quality name. Known is false for
// unrecognised names, which keep the source resolution.
type QualityProfile struct {
	Name     string
	Target   ffmpeg.Resolution
	Fidelity ffmpeg.Fidelity
	Known    bool
}

var qualities = map[string]QualityProfile{
	"high":   {Name: "high", Target: ffmpeg.Resolution{Width: 1920, Height: 1080}, Fidelity: ffmpeg.FidelityHigh, Known: true},
	"medium": {Name: "medium", Target: ffmpeg.Resolution{Width: 1280, Height: 720}, Fidelity: ffmpeg.FidelityMedium, Known: true},
	"low":    {Name: "low", Target: ffmpeg.Resolution{Width: 854, Height: 480}, Fidelity: ffmpeg.FidelityLow, Known: true},
}

// LookupQuality never fails: unknown names fall back to source resolution at
// medium fidelity.
func LookupQuality(name string) QualityProfile {
	if q, ok := qualities[strings.ToLower(strings.TrimSpace(name))]; ok {
		return q
	}
	return QualityProfile{Name: name, Fidelity: ffmpeg.FidelityMedium}
}
