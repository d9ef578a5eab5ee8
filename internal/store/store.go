// Package store persists booking-reminder entries in a single JSON
// file. The file is the entire durable state of the daemon.
//
// Read side never fails: a missing file is an empty store, and a
// corrupted file is recovered as empty rather than cascading parse
// errors into every caller. Writes replace the whole snapshot via a
// tmp file + rename so a crash mid-write cannot leave a half-written
// store behind.
//
// Single in-process writer assumed; concurrent external writers can
// lose updates (see the watcher for how external edits are absorbed).
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tatkald/internal/model"
	"tatkald/pkg/logx"
)

type Store struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

func New(path string, log logx.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Store{path: path, log: log}, nil
}

func (s *Store) Path() string { return s.path }

// Load returns every entry in file order. Missing or malformed files
// yield an empty slice, never an error.
func (s *Store) Load() ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]model.Entry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Entry{}, nil
		}
		return nil, err
	}
	var entries []model.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		s.log.Warn("entries file malformed; treating store as empty",
			logx.String("path", s.path), logx.Err(err))
		return []model.Entry{}, nil
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	return entries, nil
}

// Save overwrites the full snapshot atomically (tmp + rename).
func (s *Store) Save(entries []model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(entries)
}

func (s *Store) saveLocked(entries []model.Entry) error {
	if entries == nil {
		entries = []model.Entry{}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Append persists a new entry at the end of the snapshot.
func (s *Store) Append(e model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return s.saveLocked(entries)
}

var ErrNotFound = errors.New("entry not found")

// Remove deletes the entry with the given id, preserving the order of
// the remaining entries. Returns ErrNotFound for unknown ids.
func (s *Store) Remove(id string) (model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.loadLocked()
	if err != nil {
		return model.Entry{}, err
	}
	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Entry{}, ErrNotFound
	}
	removed := entries[idx]
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := s.saveLocked(entries); err != nil {
		return model.Entry{}, err
	}
	return removed, nil
}
