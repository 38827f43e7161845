// Package cache is the local persistence layer: a bbolt-backed snapshot of
// the three synced collections plus the per-install device identifier and
// language preference. It is the offline copy the UI reads; the remote
// backend stays the source of truth and replaces it wholesale on each pull.
package cache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/voxreport/voxreport/internal/models"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.voxreport/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second

	// maxSnapshotBytes bounds the serialized snapshot. Inline PDF payloads
	// can blow the document up quickly, so oversized saves fall back to a
	// truncated snapshot rather than failing outright.
	maxSnapshotBytes = 4 << 20

	// truncateDrafts and truncateReports are how many most-recent entries
	// survive a capacity fallback. Folders are never dropped.
	truncateDrafts  = 10
	truncateReports = 20
)

var (
	appBucket   = []byte("app")
	snapshotKey = []byte("snapshot")
	deviceIDKey = []byte("device_id")
	languageKey = []byte("language")
)

// Snapshot is the full local document: every synced collection plus the
// time it was last written. A snapshot write replaces the whole document.
type Snapshot struct {
	Drafts    []models.Draft  `json:"drafts"`
	Reports   []models.Report `json:"reports"`
	Folders   []models.Folder `json:"folders"`
	LastSaved time.Time       `json:"lastSaved"`
}

// Store wraps a bbolt database holding all persistent client state.
type Store struct {
	db *bolt.DB
}

// Load opens the state database at ~/.voxreport/state.db, creating it
// if it does not exist.
func Load() (*Store, error) {
	return LoadAt(dbPath())
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadSnapshot returns the persisted snapshot. It fails soft: a missing or
// unparseable document yields empty collections, never an error.
func (s *Store) LoadSnapshot() Snapshot {
	var snap Snapshot

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(snapshotKey)
		if v == nil {
			return nil
		}

		if err := json.Unmarshal(v, &snap); err != nil {
			// Corrupt document: start from an empty snapshot and let
			// the next pull repopulate it.
			snap = Snapshot{}
		}

		return nil
	})

	if snap.Drafts == nil {
		snap.Drafts = []models.Draft{}
	}

	if snap.Reports == nil {
		snap.Reports = []models.Report{}
	}

	if snap.Folders == nil {
		snap.Folders = []models.Folder{}
	}

	return snap
}

// SaveSnapshot persists the snapshot, stamping LastSaved. When the
// serialized document exceeds the size bound, the snapshot is truncated to
// the most recent drafts and reports (folders are kept in full) and the
// write retried once. The returned flag tells the caller a truncation
// happened so a non-fatal notification can be surfaced.
func (s *Store) SaveSnapshot(snap Snapshot) (truncated bool, err error) {
	snap.LastSaved = time.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("marshalling snapshot: %w", err)
	}

	if len(data) > maxSnapshotBytes {
		snap = truncate(snap)
		truncated = true

		data, err = json.Marshal(snap)
		if err != nil {
			return true, fmt.Errorf("marshalling truncated snapshot: %w", err)
		}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(snapshotKey, data)
	})
	if err != nil {
		return truncated, fmt.Errorf("writing snapshot: %w", err)
	}

	return truncated, nil
}

// truncate keeps the most recent drafts and reports and every folder.
func truncate(snap Snapshot) Snapshot {
	drafts := make([]models.Draft, len(snap.Drafts))
	copy(drafts, snap.Drafts)
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})

	if len(drafts) > truncateDrafts {
		drafts = drafts[:truncateDrafts]
	}

	reports := make([]models.Report, len(snap.Reports))
	copy(reports, snap.Reports)
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	if len(reports) > truncateReports {
		reports = reports[:truncateReports]
	}

	// Inline PDF payloads are the usual reason a snapshot outgrows the
	// bound. They are reproducible from title+content, so drop them.
	for i := range reports {
		reports[i].PDFData = ""
	}

	snap.Drafts = drafts
	snap.Reports = reports

	return snap
}

// DeviceID returns the stable per-install device identifier, generating
// and persisting one on first use.
func (s *Store) DeviceID() (string, error) {
	var id string

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)

		if v := b.Get(deviceIDKey); v != nil {
			id = string(v)
			return nil
		}

		id = "device_" + uuid.NewString()

		return b.Put(deviceIDKey, []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}

	return id, nil
}

// Language returns the persisted UI language preference, or empty string.
func (s *Store) Language() string {
	var lang string

	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(appBucket).Get(languageKey); v != nil {
			lang = string(v)
		}

		return nil
	})

	return lang
}

// SetLanguage persists the UI language preference.
func (s *Store) SetLanguage(code string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(languageKey, []byte(code))
	})
}

func dbPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		// Fail loudly rather than silently writing to the current directory
		// where the database (containing session state) might end up with
		// wrong permissions or inside a source-controlled tree.
		fmt.Fprintf(os.Stderr, "fatal: cannot determine home directory: %v\n", err)
		os.Exit(1)
	}

	return filepath.Join(dir, ".voxreport", "state.db")
}
