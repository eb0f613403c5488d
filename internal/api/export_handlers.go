package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/clipforge/clipforge/internal/export"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/playback"
	"github.com/clipforge/clipforge/internal/progress"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isAllowedOrigin(origin)
	},
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var settings export.Settings
		if !decodeBody(w, r, &settings) {
			return
		}

		snap, name, err := cfg.Projects.Snapshot(r.Context(), id)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		if settings.Filename == "" {
			settings.Filename = name
		}

		job, err := cfg.Exports.Submit(r.Context(), id, snap, settings)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, job)
	}
}

func listProjectExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := cfg.Projects.Get(r.Context(), id); err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		writeJobList(cfg, w, r, id)
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJobList(cfg, w, r, "")
	}
}

func writeJobList(cfg ServerConfig, w http.ResponseWriter, r *http.Request, projectID string) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
			return
		}
		limit = n
	}
	list, err := cfg.Exports.List(r.Context(), projectID, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	WriteJSON(w, http.StatusOK, ExportJobsResponse{Exports: list})
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Exports.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, job)
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Exports.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// exportProgressHandler streams one job's updates over a websocket until
// the terminal update, then closes the connection.
func exportProgressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Exports.Get(r.Context(), id)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already replied.
			cfg.Logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
			return
		}
		defer conn.Close()

		var updates <-chan progress.Update
		if _, live := cfg.Hub.Last(id); live || !job.Status.Terminal() {
			ch, unsubscribe := cfg.Hub.Subscribe(id)
			defer unsubscribe()
			updates = ch
		} else {
			// The topic has expired; replay the stored outcome.
			ch := make(chan progress.Update, 1)
			ch <- jobUpdate(job)
			close(ch)
			updates = ch
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			// Reading is required to process control frames; any error
			// means the client went away.
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case u, ok := <-updates:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "export finished"),
						time.Now().Add(wsWriteWait))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(u); err != nil {
					cfg.Logger.Debug("progress stream closed", "job_id", id, "error", err)
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

func jobUpdate(j *jobs.Job) progress.Update {
	u := progress.Update{
		JobID:   j.ID,
		Percent: j.Progress,
		Status:  string(j.Status),
		Error:   j.Error,
		Done:    j.Status.Terminal(),
	}
	if j.FailedStep != nil {
		u.Step = *j.FailedStep
	}
	if j.Status == jobs.StatusCompleted {
		u.Path = j.OutputPath
		u.Filename = j.Filename
	}
	return u
}

func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Exports.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		if job.Status != jobs.StatusCompleted {
			WriteError(w, http.StatusConflict, fmt.Sprintf("export is %s", job.Status), "NOT_READY")
			return
		}

		err = cfg.Files.ServeFile(w, r, playback.File{Path: job.OutputPath, Name: job.Filename, Download: true})
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
		}
	}
}

// edlHandler renders the project's current edit as a CMX3600 EDL.
func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap, name, err := cfg.Projects.Snapshot(r.Context(), id)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}

		settings := export.Settings{Filename: name}
		plan, err := export.Compile(snap, settings, export.Options{
			OutputDir: cfg.ExportDir,
			Logger:    cfg.Logger,
		})
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}

		title := settings.WithDefaults().BaseName()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", title+".edl"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, export.GenerateEDL(plan, title, export.FrameRate(snap)))
	}
}
