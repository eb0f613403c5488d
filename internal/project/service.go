package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/timeline"
)

const DefaultName = "Untitled Project"

// MediaImporter builds media items from files on disk.
type MediaImporter interface {
	Import(ctx context.Context, path string) (timeline.MediaItem, error)
}

// AudioProber answers whether a source file has an audio stream.
type AudioProber interface {
	ProbeAudio(ctx context.Context, path string) (bool, error)
}

// BackfillAudio fills in HasAudio for media saved before it was recorded.
// Images never carry audio and audio files always do; video is re-probed
// when prober is non-nil. Probe failures are logged and leave the value
// unknown. It reports whether doc changed.
func BackfillAudio(ctx context.Context, doc *Document, prober AudioProber, logger *slog.Logger) bool {
	changed := false
	for i := range doc.MediaItems {
		m := &doc.MediaItems[i]
		if m.HasAudio != nil {
			continue
		}
		var has bool
		switch {
		case m.Kind == timeline.MediaImage:
		case m.Kind == timeline.MediaAudio:
			has = true
		case prober == nil:
			continue
		default:
			var err error
			if has, err = prober.ProbeAudio(ctx, m.SourcePath); err != nil {
				if logger != nil {
					logger.Warn("cannot determine audio for media", "media_id", m.ID, "error", err)
				}
				continue
			}
		}
		m.HasAudio = &has
		changed = true
	}
	return changed
}

// State is a project document together with its live editing state.
type State struct {
	Project        *Document                `json:"project"`
	SelectedClipID string                   `json:"selectedClipId,omitempty"`
	Playhead       float64                  `json:"playhead"`
	Clipboard      *timeline.ClipboardEntry `json:"clipboard,omitempty"`
	Duration       float64                  `json:"duration"`
}

// EditFunc is one session operation.
type EditFunc func(timeline.Session) (timeline.Session, error)

type entry struct {
	doc     *Document
	session timeline.Session
}

// Service owns the open editing sessions. Edits on all projects are
// serialised by one mutex; each successful edit is persisted before it
// becomes visible.
type Service struct {
	repo     Repository
	importer MediaImporter
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewService(repo Repository, importer MediaImporter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		importer: importer,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

func (s *Service) Create(ctx context.Context, name string) (*State, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	doc := NewDocument(uuid.NewString(), name, s.now().UTC())
	return s.store(ctx, doc)
}

// ImportFile creates a project from a document on disk. The document keeps
// its id unless that id is already taken.
func (s *Service) ImportFile(ctx context.Context, path string) (*State, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	} else if existing, err := s.repo.Get(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("lookup project: %w", err)
	} else if existing != nil {
		doc.ID = uuid.NewString()
	}
	if strings.TrimSpace(doc.Name) == "" {
		doc.Name = DefaultName
	}
	now := s.now().UTC()
	if doc.Created.IsZero() {
		doc.Created = now
	}
	doc.Updated = now
	return s.store(ctx, doc)
}

func (s *Service) store(ctx context.Context, doc *Document) (*State, error) {
	s.backfill(ctx, doc)
	session, err := doc.Session()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	e := &entry{doc: doc, session: session}
	s.sessions[doc.ID] = e

	s.logger.Info("project created", "project_id", doc.ID, "name", doc.Name, "clips", len(doc.TimelineClips))
	return e.state(), nil
}

// ExportFile writes the project's current document to path.
func (s *Service) ExportFile(ctx context.Context, id, path string) error {
	s.mu.Lock()
	e, err := s.load(ctx, id)
	var doc Document
	if err == nil {
		doc = *e.doc
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return SaveFile(path, &doc)
}

func (s *Service) List(ctx context.Context) ([]*Summary, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.state(), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	delete(s.sessions, id)
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// Rename changes the project's display name.
func (s *Service) Rename(ctx context.Context, id, name string) (*State, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("rename project", "name is required")
	}
	return s.update(ctx, id, func(doc *Document) { doc.Name = name })
}

// UpdateSettings stores the timeline view settings.
func (s *Service) UpdateSettings(ctx context.Context, id string, v ViewSettings) (*State, error) {
	if v.Zoom <= 0 || v.PixelsPerSecond <= 0 {
		return nil, apperr.Validation("update settings", "zoom and pixelsPerSecond must be positive")
	}
	return s.update(ctx, id, func(doc *Document) { doc.Settings = v })
}

func (s *Service) update(ctx context.Context, id string, mutate func(*Document)) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := *e.doc
	mutate(&doc)
	doc.Updated = s.now().UTC()
	if err := s.repo.Update(ctx, &doc); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	e.doc = &doc
	return e.state(), nil
}

// ImportMedia probes path and adds the resulting item to the project.
func (s *Service) ImportMedia(ctx context.Context, id, path string) (timeline.MediaItem, *State, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return timeline.MediaItem{}, nil, err
	}
	if s.importer == nil {
		return timeline.MediaItem{}, nil, apperr.Validation("import", "media import is not available")
	}
	item, err := s.importer.Import(ctx, path)
	if err != nil {
		return timeline.MediaItem{}, nil, err
	}
	st, err := s.Edit(ctx, id, func(sess timeline.Session) (timeline.Session, error) {
		return sess.AddMedia(item)
	})
	if err != nil {
		return timeline.MediaItem{}, nil, err
	}
	return item, st, nil
}

// Edit applies fn to the project's session and persists the result. When fn
// or the save fails, the session is left as it was.
func (s *Service) Edit(ctx context.Context, id string, fn EditFunc) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(e.session)
	if err != nil {
		return nil, err
	}

	doc := *e.doc
	doc.Apply(next, s.now().UTC())
	if err := s.repo.Update(ctx, &doc); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	e.doc = &doc
	e.session = next
	return e.state(), nil
}

// Snapshot returns an immutable copy of the project's timeline and media
// for export, plus the project name.
func (s *Service) Snapshot(ctx context.Context, id string) (timeline.Snapshot, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.load(ctx, id)
	if err != nil {
		return timeline.Snapshot{}, "", err
	}
	return e.session.Snapshot(), e.doc.Name, nil
}

// load must be called with mu held.
func (s *Service) load(ctx context.Context, id string) (*entry, error) {
	if e, ok := s.sessions[id]; ok {
		return e, nil
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if doc == nil {
		return nil, apperr.NotFound("project", id)
	}
	if s.backfill(ctx, doc) {
		if err := s.repo.Update(ctx, doc); err != nil {
			s.logger.Warn("cannot save backfilled media", "project_id", id, "error", err)
		}
	}
	session, err := doc.Session()
	if err != nil {
		return nil, err
	}
	e := &entry{doc: doc, session: session}
	s.sessions[id] = e
	return e, nil
}

func (s *Service) backfill(ctx context.Context, doc *Document) bool {
	prober, _ := s.importer.(AudioProber)
	return BackfillAudio(ctx, doc, prober, s.logger.With("project_id", doc.ID))
}

func (e *entry) state() *State {
	doc := *e.doc
	st := &State{
		Project:        &doc,
		SelectedClipID: e.session.SelectedClipID,
		Playhead:       e.session.Playhead,
		Duration:       e.session.Timeline.Duration(),
	}
	if e.session.Clipboard != nil {
		cb := *e.session.Clipboard
		st.Clipboard = &cb
	}
	return st
}
