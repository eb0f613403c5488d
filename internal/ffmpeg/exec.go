package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/apperr"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Config holds the executor's configuration.
type Config struct {
	FFmpegPath  string // empty = look up "ffmpeg" on PATH
	FFprobePath string // empty = look up "ffprobe" on PATH
	Logger      *slog.Logger
	DebugPaths  bool // if true, log full file paths; otherwise sanitise
}

// Executor is the subprocess implementation of Engine.
type Executor struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
}

var _ Engine = (*Executor)(nil)

// NewExecutor resolves the ffmpeg and ffprobe binaries. A missing binary is
// logged and left unresolved; calls needing it fail with a ProcessingError
// and the doctor reports it as unavailable.
func NewExecutor(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Executor{cfg: cfg}

	var err error
	if e.ffmpeg, err = resolveBinary(cfg.FFmpegPath, "ffmpeg"); err != nil {
		cfg.Logger.Warn("ffmpeg not available", "error", err)
		e.ffmpeg = orDefault(cfg.FFmpegPath, "ffmpeg")
	}
	if e.ffprobe, err = resolveBinary(cfg.FFprobePath, "ffprobe"); err != nil {
		cfg.Logger.Warn("ffprobe not available", "error", err)
		e.ffprobe = orDefault(cfg.FFprobePath, "ffprobe")
	}

	cfg.Logger.Info("media engine initialised", "ffmpeg", e.ffmpeg, "ffprobe", e.ffprobe)
	return e
}

func (e *Executor) Transcode(ctx context.Context, req TranscodeRequest, obs Observer) error {
	return e.run(ctx, "transcode", TranscodeArgs(req), req.TrimDuration, req.Output, obs)
}

func (e *Executor) Concat(ctx context.Context, req ConcatRequest, obs Observer) error {
	if req.ListPath == "" {
		req.ListPath = req.Output + ".txt"
	}
	if err := WriteConcatList(req.ListPath, req.Inputs); err != nil {
		ioErr := &apperr.IOError{Op: "write concat list", Path: req.ListPath, Err: err}
		obs.emit(Event{Kind: EventError, Err: ioErr})
		return ioErr
	}
	defer func() {
		if err := os.Remove(req.ListPath); err != nil && !os.IsNotExist(err) {
			e.cfg.Logger.Warn("cannot remove concat list", "path", e.safePath(req.ListPath), "error", err)
		}
	}()
	return e.run(ctx, "concat", ConcatArgs(req), req.Duration, req.Output, obs)
}

func (e *Executor) Mix(ctx context.Context, req MixRequest, obs Observer) error {
	return e.run(ctx, "mix", MixArgs(req), req.Duration, req.Output, obs)
}

func (e *Executor) Screenshot(ctx context.Context, req ScreenshotRequest, obs Observer) error {
	return e.run(ctx, "screenshot", ScreenshotArgs(req), 0, req.Output, obs)
}

// Probe runs a single ffprobe JSON call against path.
func (e *Executor) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe, ProbeArgs(path)...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	out, err := cmd.Output()
	if err != nil {
		return nil, &apperr.ProcessingError{
			Op:         "probe",
			Step:       -1,
			ExitCode:   exitCode(err),
			StderrTail: strings.TrimSpace(stderrBuf.String()),
			Err:        err,
		}
	}
	pr, err := ParseProbeJSON(out)
	if err != nil {
		return nil, &apperr.ProcessingError{Op: "probe", Step: -1, Err: err}
	}
	return pr, nil
}

// run is the core subprocess execution helper. total is the expected output
// duration in seconds used to turn out_time into a percentage; 0 disables
// intermediate progress.
func (e *Executor) run(ctx context.Context, op string, args []string, total float64, outPath string, obs Observer) error {
	start := time.Now()

	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			ioErr := &apperr.IOError{Op: "create output dir", Path: filepath.Dir(outPath), Err: err}
			obs.emit(Event{Kind: EventError, Err: ioErr})
			return ioErr
		}
	}

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	cmd.Stdout = io.Discard
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return e.fail(op, obs, &apperr.ProcessingError{Op: op, Step: -1, ExitCode: -1, Err: err})
	}

	e.cfg.Logger.Debug("executing ffmpeg", "op", op, "args", e.safeArgs(args))

	if err := cmd.Start(); err != nil {
		return e.fail(op, obs, &apperr.ProcessingError{Op: op, Step: -1, ExitCode: -1, Err: err})
	}
	obs.emit(Event{Kind: EventStart})

	var tail bytes.Buffer
	last := scanProgress(stderr, total, &limitedWriter{w: &tail, limit: maxStderrBytes}, func(pct float64) {
		obs.emit(Event{Kind: EventProgress, Percent: pct})
	})

	err = cmd.Wait()
	elapsed := time.Since(start)

	if err != nil {
		pe := &apperr.ProcessingError{
			Op:         op,
			Step:       -1,
			ExitCode:   exitCode(err),
			StderrTail: strings.TrimSpace(tail.String()),
			Err:        err,
		}
		// A killed process reports "signal: killed"; the context says why.
		if ctxErr := ctx.Err(); ctxErr != nil {
			pe.Err = ctxErr
		}
		e.cfg.Logger.Warn("ffmpeg command failed",
			"op", op,
			"exit_code", pe.ExitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(pe.StderrTail, 512),
		)
		return e.fail(op, obs, pe)
	}

	e.cfg.Logger.Info("ffmpeg command succeeded",
		"op", op,
		"duration_ms", elapsed.Milliseconds(),
		"output", e.safePath(outPath),
	)
	if last < 100 {
		obs.emit(Event{Kind: EventProgress, Percent: 100})
	}
	obs.emit(Event{Kind: EventEnd})
	return nil
}

func (e *Executor) fail(op string, obs Observer, err error) error {
	e.cfg.Logger.Debug("ffmpeg operation error", "op", op, "error", err)
	obs.emit(Event{Kind: EventError, Err: err})
	return err
}

// scanProgress reads ffmpeg's -progress key=value stream. Progress keys are
// turned into percentages; every other line goes to diag. It returns the last
// percentage reported, or -1 if none was.
func scanProgress(r io.Reader, total float64, diag io.Writer, onProgress func(float64)) float64 {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	last := -1.0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := progressPair(line)
		if !ok {
			diag.Write([]byte(line + "\n"))
			continue
		}

		var pct float64
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || total <= 0 {
				continue
			}
			pct = float64(us) / 1e6 / total * 100
		case "progress":
			if value != "end" {
				continue
			}
			pct = 100
		default:
			continue
		}

		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		if pct > last {
			last = pct
			onProgress(pct)
		}
	}
	return last
}

// progressPair splits a -progress line. Diagnostic messages contain spaces
// and are rejected.
func progressPair(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok || key == "" || strings.ContainsAny(line, " \t") {
		return "", "", false
	}
	for _, r := range key {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return "", "", false
		}
	}
	return key, value, true
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (e *Executor) safePath(path string) string {
	if e.cfg.DebugPaths || path == "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func (e *Executor) safeArgs(args []string) []string {
	if e.cfg.DebugPaths {
		return args
	}
	out := make([]string, len(args))
	for i, a := range args {
		if filepath.IsAbs(a) {
			a = e.safePath(a)
		}
		out[i] = a
	}
	return out
}

// resolveBinary finds a usable executable, preferring the configured path.
func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH", name)
	}
	return p, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
