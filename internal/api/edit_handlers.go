package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/timeline"
)

// clipEdit is a session operation that yields the clip it touched.
type clipEdit func(timeline.Session) (timeline.Session, timeline.Clip, error)

func runEdit(cfg ServerConfig, w http.ResponseWriter, r *http.Request, status int, fn project.EditFunc) {
	st, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		WriteAppError(w, cfg.Logger, err)
		return
	}
	WriteJSON(w, status, st)
}

func runClipEdit(cfg ServerConfig, w http.ResponseWriter, r *http.Request, status int, fn clipEdit) {
	var clip timeline.Clip
	st, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(s timeline.Session) (timeline.Session, error) {
		next, c, err := fn(s)
		clip = c
		return next, err
	})
	if err != nil {
		WriteAppError(w, cfg.Logger, err)
		return
	}
	WriteJSON(w, status, ClipResponse{Clip: clip, State: st})
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddTrackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		var track timeline.Track
		st, err := cfg.Projects.Edit(r.Context(), chi.URLParam(r, "id"), func(s timeline.Session) (timeline.Session, error) {
			next, tr, err := s.AddTrack(req.Kind)
			track = tr
			return next, err
		})
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TrackResponse{Track: track, State: st})
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "trackId")
		runEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, error) {
			return s.RemoveTrack(trackID)
		})
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		runClipEdit(cfg, w, r, http.StatusCreated, func(s timeline.Session) (timeline.Session, timeline.Clip, error) {
			return s.AddClip(req.MediaID, req.TrackID, req.Start)
		})
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipId")
		runClipEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, timeline.Clip, error) {
			return s.MoveClip(clipID, req.Start)
		})
	}
}

func resizeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResizeClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipId")
		runClipEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, timeline.Clip, error) {
			return s.ResizeClip(clipID, req.Edge, req.Value)
		})
	}
}

// splitClipHandler returns the right-hand half as the clip.
func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipId")
		runClipEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, timeline.Clip, error) {
			return s.Split(clipID, req.At)
		})
	}
}

func copyClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipId")
		runEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, error) {
			return s.Copy(clipID)
		})
	}
}

func cutClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipId")
		runEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, error) {
			return s.Cut(clipID)
		})
	}
}

func duplicateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipId")
		runClipEdit(cfg, w, r, http.StatusCreated, func(s timeline.Session) (timeline.Session, timeline.Clip, error) {
			return s.Duplicate(clipID)
		})
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipId")
		runEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, error) {
			return s.DeleteClip(clipID)
		})
	}
}

func pasteHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PasteRequest
		if !decodeBody(w, r, &req) {
			return
		}
		runClipEdit(cfg, w, r, http.StatusCreated, func(s timeline.Session) (timeline.Session, timeline.Clip, error) {
			if req.At == nil {
				return s.PasteAtPlayhead()
			}
			return s.Paste(*req.At)
		})
	}
}

func selectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		runEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, error) {
			return s.Select(req.ClipID)
		})
	}
}

func playheadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayheadRequest
		if !decodeBody(w, r, &req) {
			return
		}
		runEdit(cfg, w, r, http.StatusOK, func(s timeline.Session) (timeline.Session, error) {
			return s.SetPlayhead(req.Time), nil
		})
	}
}
