package timeline

import (
	"testing"

	"github.com/clipforge/clipforge/internal/apperr"
)

func boolPtr(b bool) *bool { return &b }

func TestNewSession_DefaultTracks(t *testing.T) {
	s := NewSession(nil)
	want := []string{"video-1", "video-2", "audio-1", "audio-2"}
	if len(s.Timeline.Tracks) != len(want) {
		t.Fatalf("tracks = %d, want %d", len(s.Timeline.Tracks), len(want))
	}
	for i, id := range want {
		if s.Timeline.Tracks[i].ID != id {
			t.Errorf("track[%d] = %s, want %s", i, s.Timeline.Tracks[i].ID, id)
		}
	}
	if s.Media == nil {
		t.Error("media catalog should be initialised")
	}
}

func TestAddTrack_Numbering(t *testing.T) {
	s := testSession(t)

	s, tr, err := s.AddTrack(TrackVideo)
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if tr.ID != "video-3" || tr.Name != "Video 3" {
		t.Errorf("track = %+v, want video-3 / Video 3", tr)
	}

	s, err = s.RemoveTrack("video-2")
	if err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	_, tr, err = s.AddTrack(TrackVideo)
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if tr.ID != "video-4" || tr.Name != "Video 3" {
		t.Errorf("track after removal = %+v, want video-4 / Video 3", tr)
	}

	if _, _, err := s.AddTrack("subtitle"); !apperr.IsValidation(err) {
		t.Errorf("AddTrack(subtitle) error = %v, want ValidationError", err)
	}
}

func TestRemoveTrack_LastOfKindFails(t *testing.T) {
	s := testSession(t)
	s, err := s.RemoveTrack("audio-2")
	if err != nil {
		t.Fatalf("RemoveTrack(audio-2) error = %v", err)
	}
	next, err := s.RemoveTrack("audio-1")
	if !apperr.IsValidation(err) {
		t.Fatalf("RemoveTrack(audio-1) error = %v, want ValidationError", err)
	}
	if next.Timeline.CountTracks(TrackAudio) != 1 {
		t.Errorf("audio tracks = %d, want 1", next.Timeline.CountTracks(TrackAudio))
	}
	if _, err := s.RemoveTrack("nope"); !apperr.IsNotFound(err) {
		t.Errorf("RemoveTrack(nope) error = %v, want NotFoundError", err)
	}
}

func TestRemoveTrack_CascadesClips(t *testing.T) {
	s := testSession(t)
	s, onV2, err := s.AddClip("vid", "video-2", 0)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	s, onV1, err := s.AddClip("vid", "video-1", 0)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	s, _ = s.Select(onV2.ID)

	s, err = s.RemoveTrack("video-2")
	if err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	if _, ok := s.Timeline.Clip(onV2.ID); ok {
		t.Error("clip on removed track should be gone")
	}
	if _, ok := s.Timeline.Clip(onV1.ID); !ok {
		t.Error("clip on other track should remain")
	}
	if s.SelectedClipID != "" {
		t.Errorf("selection = %q, want cleared", s.SelectedClipID)
	}
	assertInvariant(t, s)
}

func TestAddClip(t *testing.T) {
	tests := []struct {
		name    string
		mediaID string
		trackID string
		start   float64
		wantErr func(error) bool
		wantDur float64
	}{
		{name: "video on video", mediaID: "vid", trackID: "video-1", start: 2, wantDur: 20},
		{name: "image on video", mediaID: "still", trackID: "video-2", start: 0, wantDur: ImageDuration},
		{name: "audio on audio", mediaID: "music", trackID: "audio-1", start: 1, wantDur: 30},
		{name: "audio on video", mediaID: "music", trackID: "video-1", wantErr: apperr.IsValidation},
		{name: "video on audio", mediaID: "vid", trackID: "audio-1", wantErr: apperr.IsValidation},
		{name: "unknown media", mediaID: "nope", trackID: "video-1", wantErr: apperr.IsNotFound},
		{name: "unknown track", mediaID: "vid", trackID: "video-9", wantErr: apperr.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c, err := testSession(t).AddClip(tt.mediaID, tt.trackID, tt.start)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("AddClip() error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddClip() error = %v", err)
			}
			if !near(c.TimelineDuration, tt.wantDur) || !near(c.SourceTrimStart, 0) || !near(c.SourceTrimEnd, tt.wantDur) {
				t.Errorf("clip = %+v, want full trim of %v", c, tt.wantDur)
			}
			assertInvariant(t, s)
		})
	}
}

func TestAddClip_ClampsNegativeStart(t *testing.T) {
	_, c, err := testSession(t).AddClip("vid", "video-1", -3)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	if c.TimelineStart != 0 {
		t.Errorf("start = %v, want 0", c.TimelineStart)
	}
}

func TestMoveClip_KeepsTrim(t *testing.T) {
	s, c := placeClip(t, testSession(t), 4, 1, 6)
	s, moved, err := s.MoveClip(c.ID, -2)
	if err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}
	if moved.TimelineStart != 0 {
		t.Errorf("start = %v, want 0", moved.TimelineStart)
	}
	if !near(moved.SourceTrimStart, c.SourceTrimStart) || !near(moved.TimelineDuration, c.TimelineDuration) {
		t.Errorf("move changed trim or duration: %+v -> %+v", c, moved)
	}
	assertInvariant(t, s)
}

func TestResizeClip_Clamping(t *testing.T) {
	tests := []struct {
		name      string
		edge      Edge
		value     float64
		wantStart float64
		wantDur   float64
		wantTrimS float64
	}{
		// clip starts at 10 with trim [2,10)
		{name: "left grows into trim", edge: EdgeLeft, value: 9, wantStart: 9, wantDur: 9, wantTrimS: 1},
		{name: "left capped by trim start", edge: EdgeLeft, value: 0, wantStart: 8, wantDur: 10, wantTrimS: 0},
		{name: "left shrinks", edge: EdgeLeft, value: 13, wantStart: 13, wantDur: 5, wantTrimS: 5},
		{name: "left keeps minimum", edge: EdgeLeft, value: 30, wantStart: 17.9, wantDur: MinClipDuration, wantTrimS: 9.9},
		{name: "right shrinks", edge: EdgeRight, value: 3, wantStart: 10, wantDur: 3, wantTrimS: 2},
		{name: "right capped by media", edge: EdgeRight, value: 100, wantStart: 10, wantDur: 18, wantTrimS: 2},
		{name: "right keeps minimum", edge: EdgeRight, value: 0, wantStart: 10, wantDur: MinClipDuration, wantTrimS: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := placeClip(t, testSession(t), 10, 2, 10)
			s, got, err := s.ResizeClip(c.ID, tt.edge, tt.value)
			if err != nil {
				t.Fatalf("ResizeClip() error = %v", err)
			}
			if !near(got.TimelineStart, tt.wantStart) || !near(got.TimelineDuration, tt.wantDur) || !near(got.SourceTrimStart, tt.wantTrimS) {
				t.Errorf("got start=%v dur=%v trimStart=%v, want %v %v %v",
					got.TimelineStart, got.TimelineDuration, got.SourceTrimStart, tt.wantStart, tt.wantDur, tt.wantTrimS)
			}
			assertInvariant(t, s)
		})
	}
}

// Split can leave clips shorter than MinClipDuration. Left-edge resizes on
// them may grow the clip or leave it alone but never drag it leftwards.
func TestResizeClip_ShortSplitClip(t *testing.T) {
	// sliver cuts [at, at+0.05) out of a 10s clip starting at 0 and returns
	// the 0.05s piece.
	sliver := func(t *testing.T, at float64) (Session, Clip) {
		t.Helper()
		s, c := placeClip(t, testSession(t), 0, 0, 10)
		if at > 0 {
			var err error
			if s, c, err = s.Split(c.ID, at); err != nil {
				t.Fatalf("Split() error = %v", err)
			}
		}
		s, _, err := s.Split(c.ID, at+0.05)
		if err != nil {
			t.Fatalf("Split() error = %v", err)
		}
		c, _ = s.Timeline.Clip(c.ID)
		return s, c
	}

	tests := []struct {
		name      string
		at        float64
		value     float64
		wantStart float64
		wantDur   float64
		wantTrimS float64
	}{
		{name: "no-op", at: 5, value: 5, wantStart: 5, wantDur: 0.05, wantTrimS: 5},
		{name: "shrink refused", at: 5, value: 5.03, wantStart: 5, wantDur: 0.05, wantTrimS: 5},
		{name: "grows left", at: 5, value: 4, wantStart: 4, wantDur: 1.05, wantTrimS: 4},
		{name: "no-op at zero", at: 0, value: 0, wantStart: 0, wantDur: 0.05, wantTrimS: 0},
		{name: "shrink refused at zero", at: 0, value: 0.02, wantStart: 0, wantDur: 0.05, wantTrimS: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := sliver(t, tt.at)
			if !near(c.TimelineStart, tt.at) || !near(c.TimelineDuration, 0.05) {
				t.Fatalf("setup clip = %+v, want [%v,%v)", c, tt.at, tt.at+0.05)
			}
			s, got, err := s.ResizeClip(c.ID, EdgeLeft, tt.value)
			if err != nil {
				t.Fatalf("ResizeClip() error = %v", err)
			}
			if !near(got.TimelineStart, tt.wantStart) || !near(got.TimelineDuration, tt.wantDur) || !near(got.SourceTrimStart, tt.wantTrimS) {
				t.Errorf("got start=%v dur=%v trimStart=%v, want %v %v %v",
					got.TimelineStart, got.TimelineDuration, got.SourceTrimStart, tt.wantStart, tt.wantDur, tt.wantTrimS)
			}
			if !near(got.SourceTrimEnd-got.SourceTrimStart, got.TimelineDuration) {
				t.Errorf("trim window [%v,%v) does not match duration %v", got.SourceTrimStart, got.SourceTrimEnd, got.TimelineDuration)
			}
			assertInvariant(t, s)
		})
	}
}

func TestResizeClip_UnknownEdge(t *testing.T) {
	s, c := placeClip(t, testSession(t), 0, 0, 5)
	if _, _, err := s.ResizeClip(c.ID, "top", 1); !apperr.IsValidation(err) {
		t.Fatalf("ResizeClip() error = %v, want ValidationError", err)
	}
}

func TestOverlaps(t *testing.T) {
	s, a := placeClip(t, testSession(t), 0, 0, 5)
	s, b := placeClip(t, s, 3, 0, 4)
	s, _ = placeClip(t, s, 7, 0, 2)
	s, _, err := s.AddClip("music", "audio-1", 0)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}

	// [0,5) and [3,7) overlap; [7,9) only touches [3,7).
	got := s.Timeline.Overlaps()
	if len(got) != 1 {
		t.Fatalf("overlaps = %+v, want 1", got)
	}
	if got[0].TrackID != "video-1" || got[0].First != a.ID || got[0].Second != b.ID || !near(got[0].Amount, 2) {
		t.Errorf("overlap = %+v, want %s/%s by 2", got[0], a.ID, b.ID)
	}
}

func TestTimelineDuration(t *testing.T) {
	s, _ := placeClip(t, testSession(t), 2, 0, 3)
	s, _, err := s.AddClip("music", "audio-1", 1)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	if d := s.Timeline.Duration(); !near(d, 31) {
		t.Errorf("Duration() = %v, want 31", d)
	}
	if d := (Timeline{}).Duration(); d != 0 {
		t.Errorf("empty Duration() = %v, want 0", d)
	}
}

func TestAddMedia(t *testing.T) {
	s := NewSession(nil)
	s, err := s.AddMedia(MediaItem{ID: "m1", Kind: MediaVideo, Duration: 3, HasAudio: boolPtr(false)})
	if err != nil {
		t.Fatalf("AddMedia() error = %v", err)
	}
	m, ok := s.Media.Lookup("m1")
	if !ok || m.CarriesAudio() {
		t.Errorf("media = %+v, ok=%v; want silent video", m, ok)
	}
	if _, err := s.AddMedia(MediaItem{ID: "m2", Kind: "hologram"}); !apperr.IsValidation(err) {
		t.Errorf("AddMedia(hologram) error = %v, want ValidationError", err)
	}
}

func TestCarriesAudio(t *testing.T) {
	tests := []struct {
		item MediaItem
		want bool
	}{
		{MediaItem{Kind: MediaVideo}, true},
		{MediaItem{Kind: MediaAudio}, true},
		{MediaItem{Kind: MediaImage}, false},
		{MediaItem{Kind: MediaVideo, HasAudio: boolPtr(false)}, false},
	}
	for _, tt := range tests {
		if got := tt.item.CarriesAudio(); got != tt.want {
			t.Errorf("%+v CarriesAudio() = %v, want %v", tt.item, got, tt.want)
		}
	}
}
