package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/db"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/ffmpeg/ffmpegtest"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/project"
)

const testToken = "test-token-0123456789"

type testEnv struct {
	cfg      ServerConfig
	router   http.Handler
	engine   *ffmpegtest.Engine
	mediaDir string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := discardLogger()
	repo := project.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatal(err)
	}

	engine := ffmpegtest.New()
	hub := progress.NewHub(logger)
	importer := media.NewImporter(engine, media.Config{Logger: logger})
	exportDir := filepath.Join(dir, "exports")
	manager := jobs.NewManager(engine, jobs.NewRepository(database.Conn()), hub, jobs.Config{
		OutputDir: exportDir,
		WorkDir:   filepath.Join(dir, "work"),
		Logger:    logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})

	cfg := ServerConfig{
		Projects:  project.NewService(repo, importer, logger),
		Exports:   manager,
		Hub:       hub,
		Tokens:    repo,
		ExportDir: exportDir,
		Logger:    logger,
		StartTime: time.Now().Add(-10 * time.Second),
		Version:   "test",
	}
	env := &testEnv{
		cfg:      cfg,
		router:   NewRouter(cfg),
		engine:   engine,
		mediaDir: filepath.Join(dir, "media"),
	}
	if err := os.MkdirAll(env.mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return env
}

// addVideoFile creates a file the fake engine probes as a 10 s 720p video.
func (e *testEnv) addVideoFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.mediaDir, name)
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.engine.Probes[path] = &ffmpeg.ProbeResult{
		Duration:  10,
		Width:     1280,
		Height:    720,
		FrameRate: ffmpeg.Rational{Num: 25, Den: 1},
		HasVideo:  true,
		HasAudio:  true,
	}
	return path
}

// do sends an authenticated request with an optional JSON body.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}

	return body
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}
