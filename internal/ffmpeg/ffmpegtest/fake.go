// Package ffmpegtest provides an in-process Engine for tests that never
// spawns ffmpeg.
package ffmpegtest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
)

// Call records one engine invocation.
type Call struct {
	Op     string
	Output string
}

// Engine writes a small placeholder file for every output it is asked to
// produce and reports progress at 50 and 100 percent.
type Engine struct {
	mu    sync.Mutex
	calls []Call

	// FailOn makes the operation writing this output path fail.
	FailOn map[string]error

	// BlockOn makes the operation writing this output path wait for its
	// context to end.
	BlockOn map[string]bool

	// Probes maps a path to the result Probe returns. Unknown paths fail.
	Probes map[string]*ffmpeg.ProbeResult

	// Payload is written to every output. Empty means "fake".
	Payload []byte
}

func New() *Engine {
	return &Engine{
		FailOn:  make(map[string]error),
		BlockOn: make(map[string]bool),
		Probes:  make(map[string]*ffmpeg.ProbeResult),
	}
}

// Calls returns a copy of the recorded invocations in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Count returns how many invocations of op were recorded.
func (e *Engine) Count(op string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (e *Engine) Transcode(ctx context.Context, req ffmpeg.TranscodeRequest, obs ffmpeg.Observer) error {
	return e.produce(ctx, "transcode", req.Output, obs)
}

func (e *Engine) Concat(ctx context.Context, req ffmpeg.ConcatRequest, obs ffmpeg.Observer) error {
	for _, in := range req.Inputs {
		if _, err := os.Stat(in); err != nil {
			return &apperr.ProcessingError{Op: "concat", Step: -1, Err: err}
		}
	}
	return e.produce(ctx, "concat", req.Output, obs)
}

func (e *Engine) Mix(ctx context.Context, req ffmpeg.MixRequest, obs ffmpeg.Observer) error {
	if _, err := os.Stat(req.Primary); err != nil {
		return &apperr.ProcessingError{Op: "mix", Step: -1, Err: err}
	}
	return e.produce(ctx, "mix", req.Output, obs)
}

func (e *Engine) Screenshot(ctx context.Context, req ffmpeg.ScreenshotRequest, obs ffmpeg.Observer) error {
	return e.produce(ctx, "screenshot", req.Output, obs)
}

func (e *Engine) Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error) {
	e.record("probe", path)
	e.mu.Lock()
	res, ok := e.Probes[path]
	e.mu.Unlock()
	if !ok {
		return nil, &apperr.ProcessingError{Op: "probe", Step: -1, Err: errors.New("no such media")}
	}
	out := *res
	return &out, nil
}

func (e *Engine) record(op, output string) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Op: op, Output: output})
	e.mu.Unlock()
}

func (e *Engine) produce(ctx context.Context, op, output string, obs ffmpeg.Observer) error {
	e.record(op, output)
	notify := func(ev ffmpeg.Event) {
		if obs != nil {
			obs(ev)
		}
	}
	notify(ffmpeg.Event{Kind: ffmpeg.EventStart})

	e.mu.Lock()
	failErr := e.FailOn[output]
	block := e.BlockOn[output]
	payload := e.Payload
	e.mu.Unlock()

	if block {
		<-ctx.Done()
		notify(ffmpeg.Event{Kind: ffmpeg.EventError, Err: ctx.Err()})
		return &apperr.ProcessingError{Op: op, Step: -1, Err: ctx.Err()}
	}
	if failErr != nil {
		notify(ffmpeg.Event{Kind: ffmpeg.EventError, Err: failErr})
		return &apperr.ProcessingError{Op: op, Step: -1, ExitCode: 1, Err: failErr}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	notify(ffmpeg.Event{Kind: ffmpeg.EventProgress, Percent: 50})
	if len(payload) == 0 {
		payload = []byte("fake")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return &apperr.IOError{Op: "create", Path: output, Err: err}
	}
	if err := os.WriteFile(output, payload, 0644); err != nil {
		return &apperr.IOError{Op: "write", Path: output, Err: err}
	}
	notify(ffmpeg.Event{Kind: ffmpeg.EventProgress, Percent: 100})
	notify(ffmpeg.Event{Kind: ffmpeg.EventEnd})
	return nil
}

var _ ffmpeg.Engine = (*Engine)(nil)
