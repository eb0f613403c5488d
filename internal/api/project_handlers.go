package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/playback"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/timeline"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Projects.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectSummaryResponse, len(list))}
		for i, s := range list {
			resp.Projects[i] = SummaryToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		st, err := cfg.Projects.Create(r.Context(), req.Name)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, st)
	}
}

func importProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PathRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		st, err := cfg.Projects.ImportFile(r.Context(), req.Path)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, st)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Projects.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, st)
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req UpdateProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == nil && req.Settings == nil {
			WriteError(w, http.StatusBadRequest, "name or settings is required", "BAD_REQUEST")
			return
		}

		var st *project.State
		var err error
		if req.Name != nil {
			if st, err = cfg.Projects.Rename(r.Context(), id, *req.Name); err != nil {
				WriteAppError(w, cfg.Logger, err)
				return
			}
		}
		if req.Settings != nil {
			if st, err = cfg.Projects.UpdateSettings(r.Context(), id, *req.Settings); err != nil {
				WriteAppError(w, cfg.Logger, err)
				return
			}
		}
		WriteJSON(w, http.StatusOK, st)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// saveProjectHandler writes the project document to a JSON file.
func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PathRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if err := cfg.Projects.ExportFile(r.Context(), chi.URLParam(r, "id"), req.Path); err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"path": req.Path})
	}
}

func importMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PathRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		item, st, err := cfg.Projects.ImportMedia(r.Context(), chi.URLParam(r, "id"), req.Path)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, MediaResponse{Media: item, State: st})
	}
}

func lookupMedia(r *http.Request, cfg ServerConfig) (timeline.MediaItem, error) {
	st, err := cfg.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return timeline.MediaItem{}, err
	}
	mediaID := chi.URLParam(r, "mediaId")
	for _, m := range st.Project.MediaItems {
		if m.ID == mediaID {
			return m, nil
		}
	}
	return timeline.MediaItem{}, apperr.NotFound("media", mediaID)
}

// mediaFileHandler streams an imported source file for the preview player.
func mediaFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := lookupMedia(r, cfg)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		if err := cfg.Files.ServeFile(w, r, playback.File{Path: m.SourcePath}); err != nil {
			WriteAppError(w, cfg.Logger, err)
		}
	}
}

func mediaThumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := lookupMedia(r, cfg)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		if m.Thumbnail == "" {
			WriteAppError(w, cfg.Logger, apperr.NotFound("thumbnail", m.ID))
			return
		}
		if err := cfg.Files.ServeFile(w, r, playback.File{Path: m.Thumbnail}); err != nil {
			WriteAppError(w, cfg.Logger, err)
		}
	}
}
