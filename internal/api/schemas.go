package api

import (
	"time"

	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/project"
	"github.com/clipforge/clipforge/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State          string               `json:"state"`
	ExportsRunning int                  `json:"exports_running"`
	LastError      string               `json:"last_error,omitempty"`
	Tools          *ToolsStatusResponse `json:"tools,omitempty"`
}

type ToolsStatusResponse struct {
	Ready       bool            `json:"ready"`
	FFmpeg      ffmpeg.ToolInfo `json:"ffmpeg"`
	FFprobe     ffmpeg.ToolInfo `json:"ffprobe"`
	LastProbeAt string          `json:"last_probe_at,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type PathRequest struct {
	Path string `json:"path"`
}

type UpdateProjectRequest struct {
	Name     *string               `json:"name,omitempty"`
	Settings *project.ViewSettings `json:"settings,omitempty"`
}

type ProjectSummaryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectSummaryResponse `json:"projects"`
}

type MediaResponse struct {
	Media timeline.MediaItem `json:"media"`
	*project.State
}

type AddTrackRequest struct {
	Kind timeline.TrackKind `json:"kind"`
}

type TrackResponse struct {
	Track timeline.Track `json:"track"`
	*project.State
}

type AddClipRequest struct {
	MediaID string  `json:"mediaId"`
	TrackID string  `json:"trackId"`
	Start   float64 `json:"start"`
}

type MoveClipRequest struct {
	Start float64 `json:"start"`
}

type ResizeClipRequest struct {
	Edge  timeline.Edge `json:"edge"`
	Value float64       `json:"value"`
}

type SplitClipRequest struct {
	At float64 `json:"at"`
}

// PasteRequest pastes at the playhead when At is omitted.
type PasteRequest struct {
	At *float64 `json:"at,omitempty"`
}

type SelectRequest struct {
	ClipID string `json:"clipId"`
}

type PlayheadRequest struct {
	Time float64 `json:"time"`
}

// ClipResponse is the project state after an edit that produced a clip.
type ClipResponse struct {
	Clip timeline.Clip `json:"clip"`
	*project.State
}

type ExportJobsResponse struct {
	Exports []*jobs.Job `json:"exports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SummaryToResponse(s *project.Summary) ProjectSummaryResponse {
	return ProjectSummaryResponse{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

func CapabilitiesToResponse(c *ffmpeg.Capabilities) *ToolsStatusResponse {
	resp := &ToolsStatusResponse{
		Ready:   c.Ready(),
		FFmpeg:  c.FFmpeg,
		FFprobe: c.FFprobe,
	}
	if !c.ProbedAt.IsZero() {
		resp.LastProbeAt = c.ProbedAt.Format(time.RFC3339)
	}
	return resp
}
