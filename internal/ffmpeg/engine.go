// Package ffmpeg drives the ffmpeg and ffprobe binaries as subprocesses with
// structured argument lists, progress parsing and bounded stderr capture.
package ffmpeg

import "context"

// Engine is the set of media operations the export pipeline and importer
// need. Every call blocks until the subprocess exits; progress is delivered
// through the observer while it runs.
type Engine interface {
	Transcode(ctx context.Context, req TranscodeRequest, obs Observer) error
	Concat(ctx context.Context, req ConcatRequest, obs Observer) error
	Mix(ctx context.Context, req MixRequest, obs Observer) error
	Screenshot(ctx context.Context, req ScreenshotRequest, obs Observer) error
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

type EventKind int

const (
	EventStart EventKind = iota
	EventProgress
	EventEnd
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventProgress:
		return "progress"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one lifecycle notification from a running operation. Percent is
// in [0, 100] and only set for EventProgress; Err only for EventError.
type Event struct {
	Kind    EventKind
	Percent float64
	Err     error
}

// Observer receives events synchronously on the goroutine running the
// operation. It may be nil.
type Observer func(Event)

func (o Observer) emit(ev Event) {
	if o != nil {
		o(ev)
	}
}
