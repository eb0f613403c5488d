package ffmpeg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Duration     string         `json:"duration"`
	Disposition  map[string]int `json:"disposition"`
}

// ParseProbeJSON converts ffprobe -print_format json output into a
// ProbeResult. Attached pictures (cover art) are not treated as video.
func ParseProbeJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{
		FormatName: raw.Format.FormatName,
		Duration:   parseFloat(raw.Format.Duration),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if s.Disposition["attached_pic"] == 1 || pr.HasVideo {
				continue
			}
			pr.HasVideo = true
			pr.VideoCodec = s.CodecName
			pr.Width = s.Width
			pr.Height = s.Height
			pr.FrameRate = streamRate(s)
			if pr.Duration == 0 {
				pr.Duration = parseFloat(s.Duration)
			}
		case "audio":
			if pr.HasAudio {
				continue
			}
			pr.HasAudio = true
			pr.AudioCodec = s.CodecName
			if pr.Duration == 0 {
				pr.Duration = parseFloat(s.Duration)
			}
		}
	}
	return pr, nil
}

// streamRate prefers the average rate and falls back to the container rate.
func streamRate(s *ffprobeStream) Rational {
	for _, v := range []string{s.AvgFrameRate, s.RFrameRate} {
		if r, err := ParseRational(v); err == nil && !r.IsZero() {
			return r
		}
	}
	return Rational{}
}

// ffprobe reports numbers as strings, and "N/A" when unknown.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
