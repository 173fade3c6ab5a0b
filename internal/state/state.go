// Package state persists reading positions and named bookmarks across
// process restarts. Positions and bookmarks are stored as opaque
// bookmark tokens keyed by document identity; the store never inspects
// token structure.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const stateFileName = "positions.json"

// NamedBookmark is one user-saved bookmark: a display title plus the
// opaque token that anchors it.
type NamedBookmark struct {
	Title string `json:"title"`
	Token string `json:"token"`
}

// documentState is everything remembered about one document.
type documentState struct {
	Position  string          `json:"position,omitempty"`
	Bookmarks []NamedBookmark `json:"bookmarks,omitempty"`
}

// Store manages persistent per-document reading state.
type Store struct {
	path string
	data map[string]*documentState
	mu   sync.RWMutex
}

// NewStore creates or loads the store from XDG_STATE_HOME/folio/.
func NewStore() (*Store, error) {
	dir := stateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	store := &Store{
		path: filepath.Join(dir, stateFileName),
		data: make(map[string]*documentState),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with empty state
		store.data = make(map[string]*documentState)
	}
	return store, nil
}

// stateDir returns XDG_STATE_HOME/folio or ~/.local/state/folio
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "folio")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "folio")
}

// Token returns the saved position token for a document identity, or ""
// if none is saved.
func (s *Store) Token(identity string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ds := s.data[identity]; ds != nil {
		return ds.Position
	}
	return ""
}

// SetToken saves the position token for a document identity.
func (s *Store) SetToken(identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc(identity).Position = token
	return s.save()
}

// Bookmarks returns the saved named bookmarks for a document identity,
// in the order they were added.
func (s *Store) Bookmarks(identity string) []NamedBookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds := s.data[identity]
	if ds == nil {
		return nil
	}
	return append([]NamedBookmark(nil), ds.Bookmarks...)
}

// AddBookmark saves a named bookmark for a document identity.
func (s *Store) AddBookmark(identity string, bm NamedBookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.doc(identity)
	ds.Bookmarks = append(ds.Bookmarks, bm)
	return s.save()
}

// RemoveBookmark deletes the first saved bookmark whose token matches.
// Removing an unknown token is a no-op.
func (s *Store) RemoveBookmark(identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.data[identity]
	if ds == nil {
		return nil
	}
	for i, bm := range ds.Bookmarks {
		if bm.Token == token {
			ds.Bookmarks = append(ds.Bookmarks[:i], ds.Bookmarks[i+1:]...)
			return s.save()
		}
	}
	return nil
}

// Clear removes all saved state for a document identity.
func (s *Store) Clear(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, identity)
	return s.save()
}

// doc returns the state entry for identity, creating it if absent.
// Caller holds the write lock.
func (s *Store) doc(identity string) *documentState {
	ds := s.data[identity]
	if ds == nil {
		ds = &documentState{}
		s.data[identity] = ds
	}
	return ds
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
