// Package engine is the reconciliation core: it owns the local snapshot
// of drafts, reports and folders, applies every mutation optimistically
// to the cache, and propagates it to the backend best-effort. The remote
// copy is authoritative only at full-pull boundaries; between pulls the
// local snapshot is the truth the UI sees.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxreport/voxreport/internal/cache"
	"github.com/voxreport/voxreport/internal/models"
	"github.com/voxreport/voxreport/internal/remote"
	"github.com/voxreport/voxreport/internal/translate"
)

// pushTimeout bounds a single fire-and-forget remote push.
const pushTimeout = 30 * time.Second

// snapshot aliases the persisted document type; the engine mutates it in
// place under its lock.
type snapshot = cache.Snapshot

// Gateway is the slice of the remote API the engine drives.
type Gateway interface {
	PullAll(ctx context.Context, userID string) (remote.Collections, error)

	InsertDraft(ctx context.Context, userID string, d models.Draft) error
	UpdateDraft(ctx context.Context, userID string, d models.Draft) error
	DeleteDraft(ctx context.Context, draftID string) error

	InsertReport(ctx context.Context, userID string, r models.Report) error
	UpdateReport(ctx context.Context, userID string, r models.Report) error
	DeleteReport(ctx context.Context, reportID string) error

	InsertFolder(ctx context.Context, userID string, f models.Folder) error
	UpdateFolder(ctx context.Context, userID string, f models.Folder) error
	DeleteFolder(ctx context.Context, folderID string) error
	ClearFolderAssignments(ctx context.Context, userID, folderID string) error
}

// Cache persists the local snapshot between runs.
type Cache interface {
	LoadSnapshot() cache.Snapshot
	SaveSnapshot(snap cache.Snapshot) (truncated bool, err error)
}

// Session exposes the account to the engine: identity, plan gates and
// the monthly counter.
type Session interface {
	CurrentUser() (*models.User, error)
	IncrementMonthlyReports(ctx context.Context) (int, error)
}

// ObjectStore uploads exported PDFs. Nil disables uploads; exports fall
// back to inline data.
type ObjectStore interface {
	Upload(ctx context.Context, key string, payload []byte) (string, error)
	Remove(ctx context.Context, signedURL string)
}

// Translator calls the translation webhook. Nil means the webhook is not
// configured.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (translate.Result, error)
}

// PDFGenerator renders a report into PDF bytes.
type PDFGenerator func(title, content string) []byte

// Notifier carries user-visible degradation messages (offline pushes,
// snapshot truncation). It must not block.
type Notifier interface {
	Notify(message string)
}

// LogNotifier routes notifications to the log when no UI is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(message string) {
	n.Logger.Warn(message)
}

// Options bundles the engine's collaborators.
type Options struct {
	Gateway    Gateway
	Cache      Cache
	Session    Session
	Store      ObjectStore
	Translator Translator
	PDF        PDFGenerator
	Notifier   Notifier
	Logger     *slog.Logger

	// SyncTimeout bounds a full pull so a stalled network cannot hold
	// the sync latch forever.
	SyncTimeout time.Duration
}

// Engine serializes snapshot mutations and coordinates pulls and pushes.
type Engine struct {
	gateway     Gateway
	cache       Cache
	session     Session
	store       ObjectStore
	translator  Translator
	pdf         PDFGenerator
	notifier    Notifier
	logger      *slog.Logger
	syncTimeout time.Duration

	mu   sync.Mutex
	snap cache.Snapshot

	syncing atomic.Bool

	pushCtx    context.Context
	pushCancel context.CancelFunc
	pushWG     sync.WaitGroup
}

// New builds an engine seeded from the persisted snapshot.
func New(opts Options) *Engine {
	pushCtx, pushCancel := context.WithCancel(context.Background())

	return &Engine{
		gateway:     opts.Gateway,
		cache:       opts.Cache,
		session:     opts.Session,
		store:       opts.Store,
		translator:  opts.Translator,
		pdf:         opts.PDF,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		syncTimeout: opts.SyncTimeout,
		snap:        opts.Cache.LoadSnapshot(),
		pushCtx:     pushCtx,
		pushCancel:  pushCancel,
	}
}

// Close stops accepting pushes and waits for in-flight ones. Pushes cut
// off here are lost until the next full pull reconciles them.
func (e *Engine) Close() {
	e.pushCancel()
	e.pushWG.Wait()
}

// Snapshot returns a copy of the current local collections.
func (e *Engine) Snapshot() cache.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return copySnapshot(e.snap)
}

func copySnapshot(s cache.Snapshot) cache.Snapshot {
	return cache.Snapshot{
		Drafts:    append([]models.Draft(nil), s.Drafts...),
		Reports:   append([]models.Report(nil), s.Reports...),
		Folders:   append([]models.Folder(nil), s.Folders...),
		LastSaved: s.LastSaved,
	}
}

// Sync runs one full pull and replaces the snapshot wholesale. At most
// one sync is in flight: a concurrent call observes the held latch and
// returns the current snapshot without queueing. A failed pull keeps the
// local snapshot and is reported as a warning, not an error.
func (e *Engine) Sync(ctx context.Context) (cache.Snapshot, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		e.logger.Debug("sync already in flight, returning local snapshot")
		return e.Snapshot(), nil
	}
	defer e.syncing.Store(false)

	user, err := e.session.CurrentUser()
	if err != nil {
		return e.Snapshot(), err
	}

	ctx, cancel := context.WithTimeout(ctx, e.syncTimeout)
	defer cancel()

	cols, err := e.gateway.PullAll(ctx, user.ID)
	if err != nil {
		e.logger.Warn("full pull failed, keeping local snapshot", "error", err)
		e.notifier.Notify("Could not reach the server; showing local data")

		return e.Snapshot(), nil
	}

	e.mu.Lock()
	e.snap = cache.Snapshot{
		Drafts:  cols.Drafts,
		Reports: cols.Reports,
		Folders: cols.Folders,
	}
	e.persistLocked()
	snap := copySnapshot(e.snap)
	e.mu.Unlock()

	e.logger.Info("synced",
		"drafts", len(snap.Drafts),
		"reports", len(snap.Reports),
		"folders", len(snap.Folders))

	return snap, nil
}

// mutate applies fn to the snapshot under the lock and persists the
// result. fn returning an error leaves the snapshot untouched.
func (e *Engine) mutate(fn func(snap *snapshot) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := copySnapshot(e.snap)
	if err := fn(&next); err != nil {
		return err
	}

	e.snap = next
	e.persistLocked()

	return nil
}

func (e *Engine) persistLocked() {
	truncated, err := e.cache.SaveSnapshot(e.snap)
	if err != nil {
		e.logger.Error("persisting snapshot failed", "error", err)
		return
	}

	if truncated {
		e.notifier.Notify("Local storage is full; oldest items were trimmed from the offline copy")
	}
}

// push runs a remote propagation in the background. Failures are logged
// and surfaced through the notifier; the local mutation stands either way.
func (e *Engine) push(desc string, op func(ctx context.Context) error) {
	e.pushWG.Add(1)

	go func() {
		defer e.pushWG.Done()

		ctx, cancel := context.WithTimeout(e.pushCtx, pushTimeout)
		defer cancel()

		if err := op(ctx); err != nil {
			e.logger.Warn("remote push failed", "op", desc, "error", err)
			e.notifier.Notify("Saved locally; " + desc + " will reach the server on the next sync")
		}
	}()
}

// userID returns the logged-in account id.
func (e *Engine) userID() (string, error) {
	user, err := e.session.CurrentUser()
	if err != nil {
		return "", err
	}

	return user.ID, nil
}
