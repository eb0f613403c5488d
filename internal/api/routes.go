package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/playback"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Files == nil {
		cfg.Files = playback.NewServer(cfg.Logger)
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", listProjectsHandler(cfg))
			r.Post("/", createProjectHandler(cfg))
			r.Post("/import", importProjectHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getProjectHandler(cfg))
				r.Patch("/", updateProjectHandler(cfg))
				r.Delete("/", deleteProjectHandler(cfg))
				r.Post("/save", saveProjectHandler(cfg))

				r.Post("/media", importMediaHandler(cfg))
				r.With(LoopbackGuard()).Get("/media/{mediaId}/file", mediaFileHandler(cfg))
				r.With(LoopbackGuard()).Get("/media/{mediaId}/thumbnail", mediaThumbnailHandler(cfg))
				r.Post("/tracks", addTrackHandler(cfg))
				r.Delete("/tracks/{trackId}", removeTrackHandler(cfg))

				r.Post("/clips", addClipHandler(cfg))
				r.Delete("/clips/{clipId}", deleteClipHandler(cfg))
				r.Post("/clips/{clipId}/move", moveClipHandler(cfg))
				r.Post("/clips/{clipId}/resize", resizeClipHandler(cfg))
				r.Post("/clips/{clipId}/split", splitClipHandler(cfg))
				r.Post("/clips/{clipId}/copy", copyClipHandler(cfg))
				r.Post("/clips/{clipId}/cut", cutClipHandler(cfg))
				r.Post("/clips/{clipId}/duplicate", duplicateClipHandler(cfg))
				r.Post("/paste", pasteHandler(cfg))
				r.Put("/selection", selectHandler(cfg))
				r.Put("/playhead", playheadHandler(cfg))

				r.Get("/edl", edlHandler(cfg))
				r.Get("/exports", listProjectExportsHandler(cfg))
				r.Post("/exports", startExportHandler(cfg))
			})
		})

		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Post("/exports/{id}/cancel", cancelExportHandler(cfg))
		r.Get("/exports/{id}/progress", exportProgressHandler(cfg))
		r.With(LoopbackGuard()).Get("/exports/{id}/file", downloadExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

// statusHandler reports running exports and the last cached tool probe. It
// never probes the tools itself.
func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: "idle"}

		if cfg.Exports != nil {
			resp.ExportsRunning = cfg.Exports.ActiveCount()
			if resp.ExportsRunning > 0 {
				resp.State = "exporting"
			}
			recent, err := cfg.Exports.List(r.Context(), "", 10)
			if err == nil {
				for _, j := range recent {
					if j.Status == jobs.StatusFailed {
						resp.LastError = j.Error
						break
					}
				}
			}
		}

		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				resp.Tools = CapabilitiesToResponse(caps)
				if !caps.Ready() && resp.State == "idle" {
					resp.State = "degraded"
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// decodeBody decodes a JSON request body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}
