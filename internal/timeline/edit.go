package timeline

import (
	"math"

	"github.com/clipforge/clipforge/internal/apperr"
)

// Split cuts a clip in two at timeline time at. The original keeps the left
// part; the returned clip is the right part. Together they partition both
// the original timeline span and the original trim window.
func (s Session) Split(clipID string, at float64) (Session, Clip, error) {
	i := s.Timeline.clipIndex(clipID)
	if i < 0 {
		return s, Clip{}, apperr.NotFound("clip", clipID)
	}
	orig := s.Timeline.Clips[i]
	if !orig.Contains(at) {
		return s, Clip{}, apperr.Validation("split", "time %.3f is outside clip %s [%.3f, %.3f)", at, clipID, orig.TimelineStart, orig.End())
	}

	next := s.clone()
	offset := at - orig.TimelineStart

	left := orig
	left.TimelineDuration = offset
	left.SourceTrimEnd = orig.SourceTrimStart + offset

	right := Clip{
		ID:               next.newID(),
		MediaID:          orig.MediaID,
		TrackID:          orig.TrackID,
		TimelineStart:    at,
		TimelineDuration: orig.TimelineDuration - offset,
		SourceTrimStart:  orig.SourceTrimStart + offset,
		SourceTrimEnd:    orig.SourceTrimEnd,
	}

	next.Timeline.Clips[i] = left
	next.Timeline.Clips = append(next.Timeline.Clips, right)
	return next, right, nil
}

// Copy stores a snapshot of the clip in the clipboard, replacing any entry.
func (s Session) Copy(clipID string) (Session, error) {
	c, ok := s.Timeline.Clip(clipID)
	if !ok {
		return s, apperr.NotFound("clip", clipID)
	}
	next := s.clone()
	next.Clipboard = &ClipboardEntry{Clip: c, Action: ActionCopy}
	return next, nil
}

// Cut stores a snapshot of the clip in the clipboard and deletes it.
func (s Session) Cut(clipID string) (Session, error) {
	c, ok := s.Timeline.Clip(clipID)
	if !ok {
		return s, apperr.NotFound("clip", clipID)
	}
	next, err := s.DeleteClip(clipID)
	if err != nil {
		return s, err
	}
	next.Clipboard = &ClipboardEntry{Clip: c, Action: ActionCut}
	return next, nil
}

// Paste places a fresh clone of the clipboard clip at time at. A cut entry
// is consumed; a copy entry stays for repeated pastes. If the clip's track no
// longer exists the clone goes to the first track of the same kind.
func (s Session) Paste(at float64) (Session, Clip, error) {
	if s.Clipboard == nil {
		return s, Clip{}, apperr.Validation("paste", "clipboard is empty")
	}
	src := s.Clipboard.Clip
	m, ok := s.Media.Lookup(src.MediaID)
	if !ok {
		return s, Clip{}, apperr.NotFound("media", src.MediaID)
	}

	trackID := src.TrackID
	if _, ok := s.Timeline.Track(trackID); !ok {
		tr, ok := s.Timeline.FirstTrack(TrackKindFor(m.Kind))
		if !ok {
			return s, Clip{}, apperr.NotFound("track", trackID)
		}
		trackID = tr.ID
	}

	next := s.clone()
	clip := src
	clip.ID = next.newID()
	clip.TrackID = trackID
	clip.TimelineStart = math.Max(0, at)
	next.Timeline.Clips = append(next.Timeline.Clips, clip)

	if next.Clipboard.Action == ActionCut {
		next.Clipboard = nil
	}
	return next, clip, nil
}

// PasteAtPlayhead pastes at the current playhead position.
func (s Session) PasteAtPlayhead() (Session, Clip, error) {
	return s.Paste(s.Playhead)
}

// Duplicate places a clone of the clip right after it, DuplicateGap apart,
// with the same trim window.
func (s Session) Duplicate(clipID string) (Session, Clip, error) {
	orig, ok := s.Timeline.Clip(clipID)
	if !ok {
		return s, Clip{}, apperr.NotFound("clip", clipID)
	}
	next := s.clone()
	dup := orig
	dup.ID = next.newID()
	dup.TimelineStart = orig.End() + DuplicateGap
	next.Timeline.Clips = append(next.Timeline.Clips, dup)
	return next, dup, nil
}

// DeleteClip removes a clip and clears the selection if it pointed at it.
func (s Session) DeleteClip(clipID string) (Session, error) {
	i := s.Timeline.clipIndex(clipID)
	if i < 0 {
		return s, apperr.NotFound("clip", clipID)
	}
	next := s.clone()
	next.Timeline.Clips = append(next.Timeline.Clips[:i], next.Timeline.Clips[i+1:]...)
	if next.SelectedClipID == clipID {
		next.SelectedClipID = ""
	}
	return next, nil
}
