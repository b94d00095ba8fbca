// Package session implements the client-side session: durable token
// storage, an HTTP client that recovers from expired access tokens, and a
// manager that keeps the session fresh in the background.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry names. Each session field is persisted as its own named record,
// mirroring the cookies a browser client would keep.
const (
	EntryAccessToken  = "auth_token"
	EntryRefreshToken = "refresh_token"
	EntryUser         = "ui_user"
)

// Lifetimes per entry.
const (
	accessEntryTTL  = 7 * 24 * time.Hour
	refreshEntryTTL = 30 * 24 * time.Hour
)

// Entry is one durable session record with cookie-like attributes.
type Entry struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires"`
	Path     string    `json:"path"`
	SameSite string    `json:"sameSite"`
	Secure   bool      `json:"secure"`
}

func newEntry(name, value string, ttl time.Duration, secure bool) Entry {
	return Entry{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(ttl),
		Path:     "/",
		SameSite: "Strict",
		Secure:   secure,
	}
}

func (e Entry) expired() bool {
	return !e.Expires.IsZero() && !e.Expires.After(time.Now())
}

// Store is durable storage for session entries. Implementations must be
// safe for concurrent use.
type Store interface {
	Get(name string) (Entry, bool)
	Set(entry Entry) error
	Delete(name string) error
}

// MemStore keeps entries in memory. Useful in tests and for callers that do
// not want persistence across restarts.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Entry)}
}

func (s *MemStore) Get(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[name]
	if !ok || entry.expired() {
		delete(s.entries, name)
		return Entry{}, false
	}
	return entry, true
}

func (s *MemStore) Set(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Name] = entry
	return nil
}

func (s *MemStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
	return nil
}

// FileStore persists entries as a single JSON file, written atomically via a
// temp file rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Entry{}, false
	}
	entry, ok := entries[name]
	if !ok || entry.expired() {
		return Entry{}, false
	}
	return entry, true
}

func (s *FileStore) Set(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		entries = make(map[string]Entry)
	}
	entries[entry.Name] = entry
	return s.save(entries)
}

func (s *FileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil
	}
	if _, ok := entries[name]; !ok {
		return nil
	}
	delete(entries, name)
	return s.save(entries)
}

func (s *FileStore) load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]Entry), nil
		}
		return nil, err
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
