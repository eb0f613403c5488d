package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/apperr"
)

type ClipboardAction string

const (
	ActionCopy ClipboardAction = "copy"
	ActionCut  ClipboardAction = "cut"
)

// ClipboardEntry is a snapshot of a clip taken by Copy or Cut.
type ClipboardEntry struct {
	Clip   Clip            `json:"clip"`
	Action ClipboardAction `json:"action"`
}

// Edge selects which end of a clip ResizeClip moves.
type Edge string

const (
	EdgeLeft  Edge = "left"
	EdgeRight Edge = "right"
)

// Session is the complete editing state of one project. Operations take the
// session by value and return the next one; a failed operation returns the
// error and the receiver is left as it was.
type Session struct {
	Timeline       Timeline
	Media          Catalog
	Clipboard      *ClipboardEntry
	SelectedClipID string
	Playhead       float64

	// NewID generates clip ids. Nil means random UUIDs.
	NewID func() string
}

// NewSession starts an empty session with the default track layout.
func NewSession(media Catalog) Session {
	if media == nil {
		media = Catalog{}
	}
	return Session{
		Timeline: Timeline{Tracks: DefaultTracks()},
		Media:    media,
	}
}

func (s Session) clone() Session {
	next := s
	next.Timeline = s.Timeline.Clone()
	next.Media = s.Media.clone()
	if s.Clipboard != nil {
		cb := *s.Clipboard
		next.Clipboard = &cb
	}
	return next
}

func (s Session) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Snapshot returns an independent copy of the timeline and media for export.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		Timeline: s.Timeline.Clone(),
		Media:    s.Media.clone(),
	}
}

// Snapshot is an immutable view of a session handed to the export compiler.
type Snapshot struct {
	Timeline Timeline
	Media    Catalog
}

// AddMedia registers an imported media item with the session.
func (s Session) AddMedia(m MediaItem) (Session, error) {
	if m.ID == "" {
		return s, apperr.Validation("add media", "media id is required")
	}
	if !ValidMediaKind(m.Kind) {
		return s, apperr.Validation("add media", "unknown media kind %q", m.Kind)
	}
	if m.Duration < 0 {
		return s, apperr.Validation("add media", "media duration must not be negative")
	}
	next := s.clone()
	next.Media[m.ID] = m
	return next, nil
}

// AddTrack appends a track of kind. Its id continues the kind's numbering
// (video-3 after video-2) and its name counts the tracks of that kind.
func (s Session) AddTrack(kind TrackKind) (Session, Track, error) {
	if !ValidTrackKind(kind) {
		return s, Track{}, apperr.Validation("add track", "unknown track kind %q", kind)
	}
	next := s.clone()

	seq := 0
	prefix := string(kind) + "-"
	for _, tr := range next.Timeline.Tracks {
		if n, err := strconv.Atoi(strings.TrimPrefix(tr.ID, prefix)); err == nil && strings.HasPrefix(tr.ID, prefix) && n > seq {
			seq = n
		}
	}
	count := next.Timeline.CountTracks(kind) + 1
	track := Track{
		ID:   fmt.Sprintf("%s%d", prefix, seq+1),
		Name: fmt.Sprintf("%s %d", titleCase(string(kind)), count),
		Kind: kind,
	}
	next.Timeline.Tracks = append(next.Timeline.Tracks, track)
	return next, track, nil
}

// RemoveTrack deletes a track and every clip on it. The last track of a kind
// cannot be removed.
func (s Session) RemoveTrack(id string) (Session, error) {
	tr, ok := s.Timeline.Track(id)
	if !ok {
		return s, apperr.NotFound("track", id)
	}
	if s.Timeline.CountTracks(tr.Kind) <= 1 {
		return s, apperr.Validation("remove track", "cannot remove the last %s track", tr.Kind)
	}

	next := s.clone()
	tracks := next.Timeline.Tracks[:0]
	for _, t := range next.Timeline.Tracks {
		if t.ID != id {
			tracks = append(tracks, t)
		}
	}
	next.Timeline.Tracks = tracks

	clips := next.Timeline.Clips[:0]
	for _, c := range next.Timeline.Clips {
		if c.TrackID == id {
			if next.SelectedClipID == c.ID {
				next.SelectedClipID = ""
			}
			continue
		}
		clips = append(clips, c)
	}
	next.Timeline.Clips = clips
	return next, nil
}

// AddClip places the full duration of a media item on a track.
func (s Session) AddClip(mediaID, trackID string, start float64) (Session, Clip, error) {
	m, ok := s.Media.Lookup(mediaID)
	if !ok {
		return s, Clip{}, apperr.NotFound("media", mediaID)
	}
	tr, ok := s.Timeline.Track(trackID)
	if !ok {
		return s, Clip{}, apperr.NotFound("track", trackID)
	}
	if err := checkPlacement(m, tr); err != nil {
		return s, Clip{}, err
	}
	if m.Duration <= 0 {
		return s, Clip{}, apperr.Validation("add clip", "media %s has no duration", mediaID)
	}

	next := s.clone()
	clip := Clip{
		ID:               next.newID(),
		MediaID:          mediaID,
		TrackID:          trackID,
		TimelineStart:    math.Max(0, start),
		TimelineDuration: m.Duration,
		SourceTrimStart:  0,
		SourceTrimEnd:    m.Duration,
	}
	next.Timeline.Clips = append(next.Timeline.Clips, clip)
	return next, clip, nil
}

// MoveClip changes only the start of a clip, clamped at zero.
func (s Session) MoveClip(id string, newStart float64) (Session, Clip, error) {
	i := s.Timeline.clipIndex(id)
	if i < 0 {
		return s, Clip{}, apperr.NotFound("clip", id)
	}
	next := s.clone()
	next.Timeline.Clips[i].TimelineStart = math.Max(0, newStart)
	return next, next.Timeline.Clips[i], nil
}

// ResizeClip moves one edge of a clip. For EdgeLeft value is the new start;
// for EdgeRight it is the new duration. The result is clamped so the trim
// window stays inside the media and the clip keeps MinClipDuration.
func (s Session) ResizeClip(id string, edge Edge, value float64) (Session, Clip, error) {
	i := s.Timeline.clipIndex(id)
	if i < 0 {
		return s, Clip{}, apperr.NotFound("clip", id)
	}
	c := s.Timeline.Clips[i]
	m, ok := s.Media.Lookup(c.MediaID)
	if !ok {
		return s, Clip{}, apperr.NotFound("media", c.MediaID)
	}

	switch edge {
	case EdgeLeft:
		delta := value - c.TimelineStart
		delta = math.Max(delta, -c.SourceTrimStart)
		delta = math.Max(delta, -c.TimelineStart)
		// Never shrink below the minimum. A split can leave a clip already
		// shorter than that; it may still grow or stay put.
		delta = math.Min(delta, math.Max(0, c.TimelineDuration-MinClipDuration))
		c.TimelineStart += delta
		c.SourceTrimStart += delta
		c.TimelineDuration = c.SourceTrimEnd - c.SourceTrimStart
	case EdgeRight:
		width := math.Max(value, MinClipDuration)
		width = math.Min(width, m.Duration-c.SourceTrimStart)
		c.TimelineDuration = width
		c.SourceTrimEnd = c.SourceTrimStart + width
	default:
		return s, Clip{}, apperr.Validation("resize clip", "unknown edge %q", edge)
	}

	if err := ValidateClip(c, m); err != nil {
		return s, Clip{}, apperr.Validation("resize clip", "%v", err)
	}
	next := s.clone()
	next.Timeline.Clips[i] = c
	return next, c, nil
}

// Select marks a clip as the current selection; an empty id clears it.
func (s Session) Select(id string) (Session, error) {
	if id != "" && s.Timeline.clipIndex(id) < 0 {
		return s, apperr.NotFound("clip", id)
	}
	next := s.clone()
	next.SelectedClipID = id
	return next, nil
}

func (s Session) SetPlayhead(t float64) Session {
	next := s.clone()
	next.Playhead = math.Max(0, t)
	return next
}

func checkPlacement(m MediaItem, tr Track) error {
	if want := TrackKindFor(m.Kind); want != tr.Kind {
		return apperr.Validation("place clip", "%s media cannot be placed on %s track %s", m.Kind, tr.Kind, tr.ID)
	}
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
