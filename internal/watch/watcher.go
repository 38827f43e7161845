// Package watch feeds the draft pipeline from a local inbox directory.
// Dropped transcripts become ready drafts; dropped recordings become
// generating drafts waiting on the transcription backend.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voxreport/voxreport/internal/models"
)

const (
	// inboxDirPerm is the permission mode for the inbox directory when
	// ensuring it exists before starting the watcher.
	inboxDirPerm = 0o755

	// debounceInterval batches rapid writes (editors save in bursts)
	// into a single ingest per file.
	debounceInterval = 500 * time.Millisecond
)

var (
	transcriptExts = map[string]bool{".md": true, ".txt": true}
	audioExts      = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".ogg": true}
)

// draftIntake is the slice of the engine the watcher drives.
type draftIntake interface {
	CreateDraft(ctx context.Context, title string, source models.SourceType, sourceInfo string) (models.Draft, error)
	AttachGenerated(ctx context.Context, draftID, generated, title string) (models.Draft, error)
}

// Watcher monitors the inbox directory and turns dropped files into
// drafts.
type Watcher struct {
	dir    string
	intake draftIntake
	logger *slog.Logger

	// ingested maps paths to the mtime last turned into a draft, so a
	// settled file is not re-ingested when later events fire for it.
	ingested map[string]time.Time
}

// NewWatcher creates an inbox watcher over dir.
func NewWatcher(dir string, intake draftIntake, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		intake:   intake,
		logger:   logger,
		ingested: make(map[string]time.Time),
	}
}

// Watch blocks until the context is cancelled, ingesting files as their
// write activity settles. Files already present at startup are ingested
// immediately.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, inboxDirPerm); err != nil {
		return fmt.Errorf("creating inbox dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching inbox dir: %w", err)
	}

	w.logger.Info("inbox watcher started", slog.String("dir", w.dir))

	w.ingestExisting(ctx)

	pending := make(map[string]time.Time)

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
				delete(w.ingested, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("inbox watcher error", "error", err)

		case <-ticker.C:
			now := time.Now()

			for path, last := range pending {
				if now.Sub(last) < debounceInterval {
					continue
				}

				delete(pending, path)
				w.ingest(ctx, path)
			}
		}
	}
}

// ingestExisting picks up files dropped while the client was not running.
func (w *Watcher) ingestExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("reading inbox dir failed", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())
		if !w.shouldIgnore(path) {
			w.ingest(ctx, path)
		}
	}
}

func (w *Watcher) shouldIgnore(absPath string) bool {
	name := filepath.Base(absPath)

	if strings.HasPrefix(name, ".") {
		return true
	}

	// Editor temp files.
	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") {
		return true
	}

	ext := strings.ToLower(filepath.Ext(name))

	return !transcriptExts[ext] && !audioExts[ext]
}

// ingest turns one settled file into a draft.
func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	if last, ok := w.ingested[path]; ok && !info.ModTime().After(last) {
		return
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case transcriptExts[ext]:
		err = w.ingestTranscript(ctx, path)
	case audioExts[ext]:
		err = w.ingestAudio(ctx, path)
	default:
		return
	}

	if err != nil {
		w.logger.Warn("inbox ingest failed", "path", path, "error", err)
		return
	}

	w.ingested[path] = info.ModTime()
}

// ingestTranscript creates a ready draft from a transcript file. YAML
// frontmatter can override the title and source type; the body becomes
// the generated report.
func (w *Watcher) ingestTranscript(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	fm, body := parseFrontmatter(content)

	title := titleFromFilename(path)
	source := models.SourceUpload

	// An explicit frontmatter title is forwarded to AttachGenerated so
	// content-derived title extraction does not replace it.
	explicitTitle := ""

	if fm != nil {
		if fm.Title != "" {
			title = fm.Title
			explicitTitle = fm.Title
		}

		if fm.Source == string(models.SourceRecording) {
			source = models.SourceRecording
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("transcript %s is empty", filepath.Base(path))
	}

	draft, err := w.intake.CreateDraft(ctx, title, source, filepath.Base(path))
	if err != nil {
		return err
	}

	if _, err := w.intake.AttachGenerated(ctx, draft.ID, text, explicitTitle); err != nil {
		return err
	}

	w.logger.Info("transcript ingested", "path", path, "draft_id", draft.ID)

	return nil
}

// ingestAudio creates a generating draft for a recording. The transcript
// arrives later through the backend.
func (w *Watcher) ingestAudio(ctx context.Context, path string) error {
	draft, err := w.intake.CreateDraft(ctx, titleFromFilename(path), models.SourceRecording, filepath.Base(path))
	if err != nil {
		return err
	}

	w.logger.Info("recording ingested", "path", path, "draft_id", draft.ID)

	return nil
}

// titleFromFilename turns "site-visit_week3.md" into "site visit week3".
func titleFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	return strings.Join(strings.Fields(name), " ")
}
