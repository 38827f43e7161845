package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxreport/voxreport/internal/models"
)

type fakeIntake struct {
	mu       sync.Mutex
	created  []models.Draft
	attached map[string]string
	titles   map[string]string
}

func (f *fakeIntake) CreateDraft(ctx context.Context, title string, source models.SourceType, sourceInfo string) (models.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d := models.Draft{
		ID:         "draft_" + title,
		Title:      title,
		SourceType: source,
		SourceInfo: sourceInfo,
		Status:     models.DraftGenerating,
	}
	f.created = append(f.created, d)

	return d, nil
}

func (f *fakeIntake) AttachGenerated(ctx context.Context, draftID, generated, title string) (models.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attached == nil {
		f.attached = make(map[string]string)
	}

	f.attached[draftID] = generated

	if f.titles == nil {
		f.titles = make(map[string]string)
	}

	f.titles[draftID] = title

	return models.Draft{ID: draftID, Status: models.DraftReady}, nil
}

func (f *fakeIntake) drafts() []models.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.Draft(nil), f.created...)
}

func (f *fakeIntake) generated(draftID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.attached[draftID]
}

func (f *fakeIntake) attachedTitle(draftID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.titles[draftID]
}

// waitFor polls until cond returns true or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(20 * time.Millisecond)
	}

	t.Fatal("timed out waiting for condition")
}

// watchedInbox starts a watcher over a temp inbox in the background.
func watchedInbox(t *testing.T) (string, *fakeIntake) {
	t.Helper()

	dir := t.TempDir()
	intake := &fakeIntake{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := NewWatcher(dir, intake, logger)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		errCh <- w.Watch(ctx)
	}()

	// Give fsnotify a moment to set up the watch.
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		cancel()

		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("watcher error: %v", err)
		}
	})

	return dir, intake
}

func TestWatch_TranscriptBecomesReadyDraft(t *testing.T) {
	dir, intake := watchedInbox(t)

	path := filepath.Join(dir, "site-visit_week3.md")
	require.NoError(t, os.WriteFile(path, []byte("Observations from the visit.\n"), 0o644))

	waitFor(t, 3*time.Second, func() bool { return len(intake.drafts()) == 1 })

	d := intake.drafts()[0]
	assert.Equal(t, "site visit week3", d.Title)
	assert.Equal(t, models.SourceUpload, d.SourceType)
	assert.Equal(t, "site-visit_week3.md", d.SourceInfo)
	assert.Equal(t, "Observations from the visit.", intake.generated(d.ID))
	assert.Empty(t, intake.attachedTitle(d.ID))
}

func TestWatch_FrontmatterOverrides(t *testing.T) {
	dir, intake := watchedInbox(t)

	content := "---\ntitle: Chantier Nord\nsource: recording\n---\nCorps du rapport.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.txt"), []byte(content), 0o644))

	waitFor(t, 3*time.Second, func() bool { return len(intake.drafts()) == 1 })

	d := intake.drafts()[0]
	assert.Equal(t, "Chantier Nord", d.Title)
	assert.Equal(t, models.SourceRecording, d.SourceType)
	assert.Equal(t, "Corps du rapport.", intake.generated(d.ID))

	// The explicit title travels with the generated text so it stays
	// authoritative over content-derived extraction.
	assert.Equal(t, "Chantier Nord", intake.attachedTitle(d.ID))
}

func TestWatch_AudioBecomesGeneratingDraft(t *testing.T) {
	dir, intake := watchedInbox(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "interview.mp3"), []byte("not-really-audio"), 0o644))

	waitFor(t, 3*time.Second, func() bool { return len(intake.drafts()) == 1 })

	d := intake.drafts()[0]
	assert.Equal(t, "interview", d.Title)
	assert.Equal(t, models.SourceRecording, d.SourceType)
	assert.Empty(t, intake.generated(d.ID), "audio drafts wait for the backend transcript")
}

func TestWatch_ExistingFilesIngestedAtStartup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.md"), []byte("left over\n"), 0o644))

	intake := &fakeIntake{}
	w := NewWatcher(dir, intake, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- w.Watch(ctx)
	}()

	waitFor(t, 3*time.Second, func() bool { return len(intake.drafts()) == 1 })

	cancel()
	<-errCh
}

func TestWatch_IgnoresUnrelatedFiles(t *testing.T) {
	dir, intake := watchedInbox(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.md"), []byte("real\n"), 0o644))

	waitFor(t, 3*time.Second, func() bool { return len(intake.drafts()) == 1 })

	assert.Equal(t, "real.md", intake.drafts()[0].SourceInfo)
}

func TestWatch_EmptyTranscriptSkipped(t *testing.T) {
	dir, intake := watchedInbox(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.md"), []byte("   \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full.md"), []byte("content\n"), 0o644))

	waitFor(t, 3*time.Second, func() bool { return len(intake.drafts()) == 1 })

	assert.Equal(t, "full.md", intake.drafts()[0].SourceInfo)
}

func TestParseFrontmatter(t *testing.T) {
	fm, body := parseFrontmatter([]byte("---\ntitle: T\nsource: recording\n---\nbody here\n"))
	require.NotNil(t, fm)
	assert.Equal(t, "T", fm.Title)
	assert.Equal(t, "recording", fm.Source)
	assert.Equal(t, "body here\n", string(body))
}

func TestParseFrontmatter_None(t *testing.T) {
	content := []byte("just a body\n")

	fm, body := parseFrontmatter(content)
	assert.Nil(t, fm)
	assert.Equal(t, content, body)
}

func TestParseFrontmatter_Invalid(t *testing.T) {
	content := []byte("---\n: invalid: yaml: [[\n---\nbody\n")

	fm, body := parseFrontmatter(content)
	assert.Nil(t, fm)
	assert.Equal(t, content, body)
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "site visit week3", titleFromFilename("/inbox/site-visit_week3.md"))
	assert.Equal(t, "interview", titleFromFilename("interview.mp3"))
}
