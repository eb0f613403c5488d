package ffmpeg

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProber struct {
	fn func(ctx context.Context) (*Capabilities, error)
}

func (f *fakeProber) Versions(ctx context.Context) (*Capabilities, error) { return f.fn(ctx) }

func TestCachedDoctor_TTL(t *testing.T) {
	calls := 0
	d := NewCachedDoctor(&fakeProber{fn: func(ctx context.Context) (*Capabilities, error) {
		calls++
		return &Capabilities{FFmpeg: ToolInfo{Available: true}, FFprobe: ToolInfo{Available: true}, ProbedAt: time.Now()}, nil
	}}, testLogger())

	for i := 0; i < 3; i++ {
		caps, err := d.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !caps.Ready() {
			t.Error("expected ready capabilities")
		}
	}
	if calls != 1 {
		t.Errorf("prober called %d times, want 1", calls)
	}

	d.Invalidate()
	if d.Peek() != nil {
		t.Error("Peek() after Invalidate should be nil")
	}
	if _, err := d.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("prober called %d times after invalidate, want 2", calls)
	}
}

func TestCachedDoctor_StaleOnFailure(t *testing.T) {
	fail := false
	d := NewCachedDoctor(&fakeProber{fn: func(ctx context.Context) (*Capabilities, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &Capabilities{ProbedAt: time.Now()}, nil
	}}, testLogger())

	first, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	fail = true
	again, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() with cache should not fail, got %v", err)
	}
	if again != first {
		t.Error("expected stale cache to be returned")
	}

	d.Invalidate()
	if _, err := d.Refresh(context.Background()); err == nil {
		t.Error("expected error without cache")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		out  string
		name string
		want string
	}{
		{"ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc", "ffmpeg", "6.1.1-3ubuntu5"},
		{"ffprobe version n7.0 Copyright", "ffprobe", "n7.0"},
		{"something else", "ffmpeg", "something else"},
	}
	for _, tt := range tests {
		if got := parseVersion(tt.out, tt.name); got != tt.want {
			t.Errorf("parseVersion(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}

func TestExecutor_Versions(t *testing.T) {
	bin := fakeBinary(t, `echo "ffmpeg version 6.0 Copyright"`)
	e := NewExecutor(Config{FFmpegPath: bin, FFprobePath: "/nonexistent/ffprobe999", Logger: testLogger()})

	caps, err := e.Versions(context.Background())
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if !caps.FFmpeg.Available || caps.FFmpeg.Version != "6.0" {
		t.Errorf("ffmpeg = %+v", caps.FFmpeg)
	}
	if caps.FFprobe.Available || caps.FFprobe.Error == "" {
		t.Errorf("ffprobe = %+v, want unavailable with error", caps.FFprobe)
	}
	if caps.Ready() {
		t.Error("Ready() should be false without ffprobe")
	}
}
