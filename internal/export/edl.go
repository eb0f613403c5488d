package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge/internal/timeline"
)

// DefaultEDLFrameRate is used when no clip carries a known video rate.
const DefaultEDLFrameRate = 30

// FrameRate is the source rate of the earliest video clip in snap, or
// DefaultEDLFrameRate.
func FrameRate(snap timeline.Snapshot) float64 {
	clips := append([]timeline.Clip(nil), snap.Timeline.Clips...)
	timeline.SortClips(clips)
	for _, c := range clips {
		m, ok := snap.Media.Lookup(c.MediaID)
		if ok && m.Kind == timeline.MediaVideo && m.FPS > 0 {
			return m.FPS
		}
	}
	return DefaultEDLFrameRate
}

// GenerateEDL renders the plan as a CMX3600 edit decision list. Video events
// follow the concatenation order; audio events sit at their mix offsets.
func GenerateEDL(plan *Plan, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	event := 0
	emit := func(seg Segment, channel string) {
		event++
		recIn := seg.RecordStart
		recOut := recIn + seg.Duration()
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", event, "AX", channel,
				secondsToTimecode(seg.TrimStart, fps), secondsToTimecode(seg.TrimEnd, fps),
				secondsToTimecode(recIn, fps), secondsToTimecode(recOut, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", filepath.Base(seg.SourcePath)),
			fmt.Sprintf("* MEDIA PATH:  %s", seg.SourcePath),
		)
	}
	for _, seg := range plan.Video {
		emit(seg, "V")
	}
	for _, seg := range plan.Audio {
		emit(seg, "A")
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(sec float64, fps int) string {
	if sec < 0 {
		sec = 0
	}
	totalFrames := int(math.Round(sec * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
