// Package cache persists scan results for files already judged not to
// be TikTok media, so repeat scans of the same folder skip the
// expensive analysis. The store is a single JSON file kept next to the
// organization folder.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TegranGrigorian/tiktok-cleaner/logger"
)

const (
	// FileName is the on-disk name of the store inside the
	// organization folder.
	FileName = "not_tiktok.json"

	currentVersion = "2.0"
)

// Entry records what was known about a file when it was last analyzed.
// Size and modification time gate reuse: any change invalidates the
// entry.
type Entry struct {
	Size       int64     `json:"size"`
	Modified   time.Time `json:"modified"`
	Confidence int       `json:"confidence"`
	IsTikTok   bool      `json:"is_tiktok"`
}

type storeFile struct {
	ScannedFiles []string         `json:"scanned_files"`
	LastUpdated  time.Time        `json:"last_updated"`
	FileMetadata map[string]Entry `json:"file_metadata"`
	CacheVersion string           `json:"cache_version"`
}

type Store struct {
	mu          sync.Mutex
	path        string
	entries     map[string]Entry
	lastUpdated time.Time
	// legacy paths carried over from a version 1 store; they have no
	// size or mtime so they never satisfy ShouldSkip, but they are
	// preserved on save.
	legacy []string
}

// Load reads the store at path. It never fails: a missing, corrupt, or
// unreadable file yields an empty store, and a version 1 file is
// migrated in place on the next Save.
func Load(path string) *Store {
	store := &Store{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Could not read cache file %s: %v", path, err)
		}
		return store
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		logger.Warnf("Cache file %s is corrupt, starting fresh: %v", path, err)
		return store
	}

	if file.FileMetadata != nil {
		store.entries = file.FileMetadata
	}
	store.lastUpdated = file.LastUpdated
	if file.CacheVersion != currentVersion {
		store.legacy = file.ScannedFiles
		logger.Infof("Migrating cache file %s from version %q (%d legacy paths)",
			path, file.CacheVersion, len(store.legacy))
	}
	return store
}

// ShouldSkip reports whether a file can be skipped: it must have a
// cached entry with the exact same size and modification time, and
// that entry must not be a TikTok match. Matches are always
// re-analyzed so a moved or reorganized match is never missed.
func (s *Store) ShouldSkip(path string, size int64, modified time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[path]
	if !ok {
		return false
	}
	if entry.IsTikTok {
		return false
	}
	return entry.Size == size && entry.Modified.Equal(modified)
}

// Record stores or replaces the entry for a path.
func (s *Store) Record(path string, size int64, modified time.Time, confidence int, isTikTok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[path] = Entry{
		Size:       size,
		Modified:   modified,
		Confidence: confidence,
		IsTikTok:   isTikTok,
	}
}

// Forget drops the entry for a path, typically after the file moved.
func (s *Store) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// LastUpdated reports when the loaded store was last saved; zero for a
// fresh store.
func (s *Store) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Save writes the store atomically with owner-only permissions. A
// failed save only costs a re-scan, so callers treat errors as
// warnings.
func (s *Store) Save() error {
	s.mu.Lock()
	file := storeFile{
		ScannedFiles: append([]string(nil), s.legacy...),
		LastUpdated:  time.Now().UTC(),
		FileMetadata: s.entries,
		CacheVersion: currentVersion,
	}
	if file.ScannedFiles == nil {
		file.ScannedFiles = []string{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
