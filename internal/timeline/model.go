// Package timeline holds the non-destructive edit state: media references,
// tracks and clips, plus the editing session that mutates them.
//
// All positions and durations are in seconds. Pixel conversion belongs to
// whatever renders the timeline.
package timeline

import (
	"fmt"
	"math"
	"sort"
)

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

const (
	// ImageDuration is the synthetic duration given to still images at import.
	ImageDuration = 5.0

	// MinClipDuration is the shortest clip a resize may produce.
	MinClipDuration = 0.1

	// DuplicateGap separates a duplicated clip from its original.
	DuplicateGap = 0.1

	// Epsilon is the tolerance used for all float comparisons.
	Epsilon = 1e-6
)

// MediaItem is an imported asset. It is immutable once created.
type MediaItem struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"sourcePath"`
	Kind       MediaKind `json:"kind"`
	Duration   float64   `json:"duration"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	FPS        float64   `json:"fps,omitempty"`
	HasAudio   *bool     `json:"hasAudio,omitempty"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
}

// CarriesAudio reports whether the source has an audio stream. Unknown values
// assume audio for video media; loaders re-probe such items first.
func (m MediaItem) CarriesAudio() bool {
	if m.HasAudio != nil {
		return *m.HasAudio
	}
	return m.Kind == MediaVideo || m.Kind == MediaAudio
}

// TrackKindFor returns the track kind a media item can be placed on.
func TrackKindFor(kind MediaKind) TrackKind {
	if kind == MediaAudio {
		return TrackAudio
	}
	return TrackVideo
}

func ValidMediaKind(k MediaKind) bool {
	return k == MediaVideo || k == MediaAudio || k == MediaImage
}

func ValidTrackKind(k TrackKind) bool {
	return k == TrackVideo || k == TrackAudio
}

type Track struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind TrackKind `json:"kind"`
}

// Clip places the trim window [SourceTrimStart, SourceTrimEnd) of one media
// item on a track at TimelineStart.
type Clip struct {
	ID               string  `json:"id"`
	MediaID          string  `json:"mediaId"`
	TrackID          string  `json:"trackId"`
	TimelineStart    float64 `json:"timelineStart"`
	TimelineDuration float64 `json:"timelineDuration"`
	SourceTrimStart  float64 `json:"sourceTrimStart"`
	SourceTrimEnd    float64 `json:"sourceTrimEnd"`
}

func (c Clip) End() float64 {
	return c.TimelineStart + c.TimelineDuration
}

// Contains reports whether t lies strictly inside the clip's timeline span.
func (c Clip) Contains(t float64) bool {
	return t > c.TimelineStart+Epsilon && t < c.End()-Epsilon
}

// Catalog is a read-only view over imported media.
type Catalog map[string]MediaItem

func (c Catalog) Lookup(id string) (MediaItem, bool) {
	m, ok := c[id]
	return m, ok
}

func (c Catalog) clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Timeline is the set of tracks and the clips placed on them.
type Timeline struct {
	Tracks []Track `json:"tracks"`
	Clips  []Clip  `json:"clips"`
}

// DefaultTracks returns the layout every new project starts with.
func DefaultTracks() []Track {
	return []Track{
		{ID: "video-1", Name: "Video 1", Kind: TrackVideo},
		{ID: "video-2", Name: "Video 2", Kind: TrackVideo},
		{ID: "audio-1", Name: "Audio 1", Kind: TrackAudio},
		{ID: "audio-2", Name: "Audio 2", Kind: TrackAudio},
	}
}

func (t Timeline) Clone() Timeline {
	out := Timeline{
		Tracks: make([]Track, len(t.Tracks)),
		Clips:  make([]Clip, len(t.Clips)),
	}
	copy(out.Tracks, t.Tracks)
	copy(out.Clips, t.Clips)
	return out
}

func (t Timeline) Track(id string) (Track, bool) {
	for _, tr := range t.Tracks {
		if tr.ID == id {
			return tr, true
		}
	}
	return Track{}, false
}

func (t Timeline) Clip(id string) (Clip, bool) {
	if i := t.clipIndex(id); i >= 0 {
		return t.Clips[i], true
	}
	return Clip{}, false
}

func (t Timeline) clipIndex(id string) int {
	for i, c := range t.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// CountTracks returns how many tracks of kind exist.
func (t Timeline) CountTracks(kind TrackKind) int {
	n := 0
	for _, tr := range t.Tracks {
		if tr.Kind == kind {
			n++
		}
	}
	return n
}

// FirstTrack returns the first track of kind in registry order.
func (t Timeline) FirstTrack(kind TrackKind) (Track, bool) {
	for _, tr := range t.Tracks {
		if tr.Kind == kind {
			return tr, true
		}
	}
	return Track{}, false
}

// ClipsOnTrack returns the clips of one track ordered by start time.
func (t Timeline) ClipsOnTrack(trackID string) []Clip {
	var out []Clip
	for _, c := range t.Clips {
		if c.TrackID == trackID {
			out = append(out, c)
		}
	}
	SortClips(out)
	return out
}

// Duration is the end of the last clip on any track.
func (t Timeline) Duration() float64 {
	end := 0.0
	for _, c := range t.Clips {
		end = math.Max(end, c.End())
	}
	return end
}

// SortClips orders clips by timeline start, breaking ties by id.
func SortClips(clips []Clip) {
	sort.SliceStable(clips, func(i, j int) bool {
		if math.Abs(clips[i].TimelineStart-clips[j].TimelineStart) > Epsilon {
			return clips[i].TimelineStart < clips[j].TimelineStart
		}
		return clips[i].ID < clips[j].ID
	})
}

// Overlap is a pair of clips on the same track whose spans intersect.
type Overlap struct {
	TrackID string
	First   string
	Second  string
	Amount  float64
}

// Overlaps lists every overlapping clip pair, track by track. Overlap is
// allowed while editing; export resolves it by start order.
func (t Timeline) Overlaps() []Overlap {
	var out []Overlap
	for _, tr := range t.Tracks {
		clips := t.ClipsOnTrack(tr.ID)
		for i := 0; i < len(clips); i++ {
			for j := i + 1; j < len(clips); j++ {
				if clips[j].TimelineStart >= clips[i].End()-Epsilon {
					break
				}
				amount := math.Min(clips[i].End(), clips[j].End()) - clips[j].TimelineStart
				out = append(out, Overlap{
					TrackID: tr.ID,
					First:   clips[i].ID,
					Second:  clips[j].ID,
					Amount:  amount,
				})
			}
		}
	}
	return out
}

// ValidateClip checks a clip against its media item.
func ValidateClip(c Clip, m MediaItem) error {
	switch {
	case c.TimelineStart < -Epsilon:
		return fmt.Errorf("clip %s starts before zero (%.3f)", c.ID, c.TimelineStart)
	case c.TimelineDuration <= 0:
		return fmt.Errorf("clip %s has non-positive duration %.3f", c.ID, c.TimelineDuration)
	case c.SourceTrimStart < -Epsilon:
		return fmt.Errorf("clip %s trim starts before zero (%.3f)", c.ID, c.SourceTrimStart)
	case c.SourceTrimStart >= c.SourceTrimEnd:
		return fmt.Errorf("clip %s has empty trim window [%.3f, %.3f)", c.ID, c.SourceTrimStart, c.SourceTrimEnd)
	case c.SourceTrimEnd > m.Duration+Epsilon:
		return fmt.Errorf("clip %s trim end %.3f exceeds media duration %.3f", c.ID, c.SourceTrimEnd, m.Duration)
	case math.Abs(c.TimelineDuration-(c.SourceTrimEnd-c.SourceTrimStart)) > Epsilon:
		return fmt.Errorf("clip %s duration %.3f does not match trim window %.3f", c.ID, c.TimelineDuration, c.SourceTrimEnd-c.SourceTrimStart)
	}
	return nil
}

// Validate checks every structural invariant of the timeline against media.
func (t Timeline) Validate(media Catalog) error {
	if t.CountTracks(TrackVideo) == 0 {
		return fmt.Errorf("timeline has no video track")
	}
	if t.CountTracks(TrackAudio) == 0 {
		return fmt.Errorf("timeline has no audio track")
	}
	seen := make(map[string]bool, len(t.Tracks))
	for _, tr := range t.Tracks {
		if seen[tr.ID] {
			return fmt.Errorf("duplicate track id %s", tr.ID)
		}
		seen[tr.ID] = true
	}
	for _, c := range t.Clips {
		if !seen[c.TrackID] {
			return fmt.Errorf("clip %s references unknown track %s", c.ID, c.TrackID)
		}
		m, ok := media.Lookup(c.MediaID)
		if !ok {
			return fmt.Errorf("clip %s references unknown media %s", c.ID, c.MediaID)
		}
		if err := ValidateClip(c, m); err != nil {
			return err
		}
	}
	return nil
}
