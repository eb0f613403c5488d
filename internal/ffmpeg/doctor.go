package ffmpeg

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL = 5 * time.Minute
	versionTimeout  = 10 * time.Second
)

// ToolInfo reports the availability of one external binary.
type ToolInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Capabilities is the result of a doctor probe.
type Capabilities struct {
	FFmpeg   ToolInfo  `json:"ffmpeg"`
	FFprobe  ToolInfo  `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// Ready reports whether exports and imports can run.
func (c Capabilities) Ready() bool { return c.FFmpeg.Available && c.FFprobe.Available }

// VersionProber runs the version check behind a doctor probe.
type VersionProber interface {
	Versions(ctx context.Context) (*Capabilities, error)
}

// Versions runs `-version` on both binaries. A missing binary is reported in
// the result, not as an error.
func (e *Executor) Versions(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	caps := &Capabilities{
		FFmpeg:   toolVersion(ctx, "ffmpeg", e.ffmpeg),
		FFprobe:  toolVersion(ctx, "ffprobe", e.ffprobe),
		ProbedAt: time.Now(),
	}
	e.cfg.Logger.Info("doctor probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffmpeg_version", caps.FFmpeg.Version,
		"ffprobe", caps.FFprobe.Available,
	)
	return caps, nil
}

func toolVersion(ctx context.Context, name, bin string) ToolInfo {
	info := ToolInfo{Name: name, Path: bin}
	path, err := exec.LookPath(bin)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Path = path

	var stderrBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	out, err := cmd.Output()
	if err != nil {
		info.Error = strings.TrimSpace(err.Error() + " " + stderrBuf.String())
		return info
	}
	info.Available = true
	info.Version = parseVersion(string(out), name)
	return info
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out, name string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] == name && fields[i+1] == "version" {
			return fields[i+2]
		}
	}
	return strings.TrimSpace(line)
}

// CachedDoctor caches doctor probe results with a configurable TTL.
type CachedDoctor struct {
	prober VersionProber
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(prober VersionProber, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe. On failure a stale cache is returned if one
// exists.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.Versions(ctx)
	if err != nil {
		d.logger.Warn("doctor probe failed", "error", err)
		if d.cached != nil {
			d.logger.Info("returning stale capabilities cache")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
