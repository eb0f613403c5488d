// Package project persists editing sessions as project documents and
// serialises edits against them.
package project

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/timeline"
)

const (
	DefaultZoom            = 1.0
	DefaultPixelsPerSecond = 100.0
)

// ViewSettings are carried for the timeline view; the core never reads them.
type ViewSettings struct {
	Zoom            float64 `json:"zoom"`
	PixelsPerSecond float64 `json:"pixelsPerSecond"`
}

// Document is the persisted form of a project.
type Document struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Created       time.Time            `json:"created"`
	Updated       time.Time            `json:"updated,omitzero"`
	MediaItems    []timeline.MediaItem `json:"mediaItems"`
	TimelineClips []timeline.Clip      `json:"timelineClips"`
	Tracks        []timeline.Track     `json:"tracks"`
	Settings      ViewSettings         `json:"settings"`
}

// NewDocument returns an empty project with the default track layout.
func NewDocument(id, name string, now time.Time) *Document {
	return &Document{
		ID:            id,
		Name:          name,
		Created:       now,
		Updated:       now,
		MediaItems:    []timeline.MediaItem{},
		TimelineClips: []timeline.Clip{},
		Tracks:        timeline.DefaultTracks(),
		Settings:      ViewSettings{Zoom: DefaultZoom, PixelsPerSecond: DefaultPixelsPerSecond},
	}
}

// wireClip accepts both the current trackId field and the legacy per-clip
// track kind.
type wireClip struct {
	timeline.Clip
	Track string `json:"track,omitempty"`
}

type wireDocument struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Created       string               `json:"created"`
	Updated       string               `json:"updated"`
	MediaItems    []timeline.MediaItem `json:"mediaItems"`
	TimelineClips []wireClip           `json:"timelineClips"`
	Tracks        *[]timeline.Track    `json:"tracks"`
	Settings      *ViewSettings        `json:"settings"`
}

// Decode parses a project document. Documents without a tracks array are
// migrated to the default layout, their clips re-pointed from track
// "video"/"audio" to video-1/audio-1.
func Decode(data []byte) (*Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperr.Validation("decode project", "invalid document: %v", err)
	}

	doc := &Document{
		ID:            w.ID,
		Name:          w.Name,
		Created:       parseTime(w.Created),
		Updated:       parseTime(w.Updated),
		MediaItems:    w.MediaItems,
		TimelineClips: make([]timeline.Clip, 0, len(w.TimelineClips)),
		Settings:      ViewSettings{Zoom: DefaultZoom, PixelsPerSecond: DefaultPixelsPerSecond},
	}
	if doc.MediaItems == nil {
		doc.MediaItems = []timeline.MediaItem{}
	}
	if w.Settings != nil {
		doc.Settings = *w.Settings
		if doc.Settings.Zoom <= 0 {
			doc.Settings.Zoom = DefaultZoom
		}
		if doc.Settings.PixelsPerSecond <= 0 {
			doc.Settings.PixelsPerSecond = DefaultPixelsPerSecond
		}
	}

	legacy := w.Tracks == nil
	if legacy {
		doc.Tracks = timeline.DefaultTracks()
	} else {
		doc.Tracks = repairTracks(*w.Tracks)
	}

	kinds := make(map[string]timeline.MediaKind, len(doc.MediaItems))
	for _, m := range doc.MediaItems {
		kinds[m.ID] = m.Kind
	}
	for _, wc := range w.TimelineClips {
		c := wc.Clip
		if legacy || c.TrackID == "" {
			id, err := legacyTrackID(wc.Track, kinds[c.MediaID])
			if err != nil {
				return nil, apperr.Validation("decode project", "clip %s: %v", c.ID, err)
			}
			c.TrackID = id
		}
		if c.TimelineDuration == 0 && c.SourceTrimEnd > c.SourceTrimStart {
			c.TimelineDuration = c.SourceTrimEnd - c.SourceTrimStart
		}
		doc.TimelineClips = append(doc.TimelineClips, c)
	}
	return doc, nil
}

// Older documents carry naive ISO timestamps without a zone.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Encode renders the document as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return data, nil
}

// legacyTrackID maps a legacy track kind to the first track of that kind.
// Clips with neither field fall back to their media's kind.
func legacyTrackID(track string, kind timeline.MediaKind) (string, error) {
	switch strings.ToLower(strings.TrimSpace(track)) {
	case "video":
		return "video-1", nil
	case "audio":
		return "audio-1", nil
	case "":
		if kind == "" {
			return "", fmt.Errorf("no track and unknown media")
		}
		if timeline.TrackKindFor(kind) == timeline.TrackAudio {
			return "audio-1", nil
		}
		return "video-1", nil
	}
	return "", fmt.Errorf("unknown legacy track %q", track)
}

// repairTracks fills a missing kind from the id prefix.
func repairTracks(tracks []timeline.Track) []timeline.Track {
	out := make([]timeline.Track, len(tracks))
	for i, tr := range tracks {
		if tr.Kind == "" {
			tr.Kind = timeline.TrackVideo
			if strings.HasPrefix(tr.ID, string(timeline.TrackAudio)) {
				tr.Kind = timeline.TrackAudio
			}
		}
		out[i] = tr
	}
	return out
}

// Session rebuilds an editing session from the document. The result is
// validated; a document that breaks a timeline invariant is rejected.
func (d *Document) Session() (timeline.Session, error) {
	media := make(timeline.Catalog, len(d.MediaItems))
	for _, m := range d.MediaItems {
		media[m.ID] = m
	}
	s := timeline.NewSession(media)
	s.Timeline = timeline.Timeline{
		Tracks: append([]timeline.Track(nil), d.Tracks...),
		Clips:  append([]timeline.Clip(nil), d.TimelineClips...),
	}
	if err := s.Timeline.Validate(media); err != nil {
		return timeline.Session{}, apperr.Validation("load project", "%v", err)
	}
	return s, nil
}

// Apply copies the session's timeline and media into the document.
func (d *Document) Apply(s timeline.Session, now time.Time) {
	d.Tracks = append([]timeline.Track{}, s.Timeline.Tracks...)
	d.TimelineClips = append([]timeline.Clip{}, s.Timeline.Clips...)
	d.MediaItems = make([]timeline.MediaItem, 0, len(s.Media))
	for _, m := range s.Media {
		d.MediaItems = append(d.MediaItems, m)
	}
	sortMedia(d.MediaItems)
	d.Updated = now
}

func sortMedia(items []timeline.MediaItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
