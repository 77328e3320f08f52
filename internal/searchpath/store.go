package searchpath

import (
	"encoding/base64"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"quicklaunch/internal/fileutil"
	"quicklaunch/internal/logging"
)

// Path is a user-chosen search directory with its access capability.
// Token is nil while the directory cannot be accessed; the path is kept
// and access is re-acquired on the next Load or Add.
type Path struct {
	Location string
	Token    Capability
}

// Available reports whether access to the path is currently held.
func (p Path) Available() bool { return p.Token != nil }

// blob is the persisted form: one base64 bookmark per path.
type blob struct {
	Bookmarks []string `yaml:"bookmarks"`
}

// Store keeps the custom search paths and persists them as a whole.
type Store struct {
	file     string
	accessor Accessor

	mu    sync.Mutex
	paths []Path
}

// NewStore creates a store persisted at file. Call Load to rehydrate it.
func NewStore(file string, accessor Accessor) *Store {
	if accessor == nil {
		accessor = FSAccessor{}
	}
	return &Store{file: file, accessor: accessor}
}

// Load replaces the in-memory paths with the persisted ones, re-acquiring
// access to each. An unreadable or corrupt blob yields an empty list and
// entries that no longer resolve are dropped. Entries whose directory is
// inaccessible are kept without a capability.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()

	data, err := fileutil.ReadIfExists(s.file)
	if err != nil {
		logging.Warn("cannot read search paths", "file", s.file, "error", err)
		return
	}
	if len(data) == 0 {
		return
	}

	var b blob
	if err := yaml.Unmarshal(data, &b); err != nil {
		logging.Warn("discarding corrupt search paths", "file", s.file, "error", err)
		return
	}

	dirty := false
	for _, encoded := range b.Bookmarks {
		bookmark, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			logging.Warn("discarding corrupt bookmark", "error", err)
			dirty = true
			continue
		}
		location, stale, err := s.accessor.Resolve(bookmark)
		if err != nil {
			logging.Warn("cannot resolve search path", "error", err)
			dirty = true
			continue
		}
		if s.indexLocked(location) >= 0 {
			dirty = true
			continue
		}
		token, err := s.accessor.StartAccess(location)
		if err != nil {
			logging.Warn("cannot access search path", "location", location, "error", err)
			token = nil
		}
		dirty = dirty || stale
		s.paths = append(s.paths, Path{Location: location, Token: token})
	}

	if dirty {
		if err := s.saveLocked(); err != nil {
			logging.Warn("cannot rewrite search paths", "file", s.file, "error", err)
		}
	}
	logging.Debug("loaded search paths", "count", len(s.paths))
}

// Add acquires access to location and persists it. It reports whether the
// available paths changed: adding a present location reports false unless
// access to it had been lost and is now re-acquired.
func (s *Store) Add(location string) (bool, error) {
	bookmark, err := s.accessor.Bookmark(location)
	if err != nil {
		return false, fmt.Errorf("failed to bookmark %s: %w", location, err)
	}
	resolved, _, err := s.accessor.Resolve(bookmark)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", location, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(resolved); i >= 0 {
		if s.paths[i].Token == nil {
			token, err := s.accessor.StartAccess(resolved)
			if err != nil {
				return false, fmt.Errorf("failed to access %s: %w", resolved, err)
			}
			s.paths[i].Token = token
			return true, nil
		}
		return false, nil
	}
	token, err := s.accessor.StartAccess(resolved)
	if err != nil {
		return false, fmt.Errorf("failed to access %s: %w", resolved, err)
	}
	s.paths = append(s.paths, Path{Location: resolved, Token: token})
	if err := s.saveLocked(); err != nil {
		return true, fmt.Errorf("failed to save search paths: %w", err)
	}
	return true, nil
}

// Remove releases and forgets location. It reports whether it was present.
func (s *Store) Remove(location string) (bool, error) {
	bookmark, err := s.accessor.Bookmark(location)
	if err != nil {
		return false, err
	}
	resolved, _, err := s.accessor.Resolve(bookmark)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(resolved)
	if i < 0 {
		return false, nil
	}
	return true, s.removeLocked(i)
}

// RemoveAt releases and forgets the path at index i of List.
func (s *Store) RemoveAt(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.paths) {
		return fmt.Errorf("search path index %d out of range", i)
	}
	return s.removeLocked(i)
}

func (s *Store) removeLocked(i int) error {
	s.release(s.paths[i])
	s.paths = append(s.paths[:i], s.paths[i+1:]...)
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("failed to save search paths: %w", err)
	}
	return nil
}

// List returns the paths in insertion order.
func (s *Store) List() []Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Path(nil), s.paths...)
}

// Locations returns the locations of the available paths in insertion
// order.
func (s *Store) Locations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		if p.Available() {
			out = append(out, p.Location)
		}
	}
	return out
}

// Close releases every capability. The persisted blob is left as is.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Store) releaseLocked() {
	for _, p := range s.paths {
		s.release(p)
	}
	s.paths = nil
}

func (s *Store) release(p Path) {
	if p.Token != nil {
		s.accessor.StopAccess(p.Token)
	}
}

func (s *Store) indexLocked(location string) int {
	for i, p := range s.paths {
		if p.Location == location {
			return i
		}
	}
	return -1
}

func (s *Store) saveLocked() error {
	b := blob{Bookmarks: make([]string, 0, len(s.paths))}
	for _, p := range s.paths {
		bookmark, err := s.accessor.Bookmark(p.Location)
		if err != nil {
			return err
		}
		b.Bookmarks = append(b.Bookmarks, base64.StdEncoding.EncodeToString(bookmark))
	}
	data, err := yaml.Marshal(&b)
	if err != nil {
		return err
	}
	return fileutil.AtomicWrite(s.file, data, 0o600)
}
