package searchpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotDirectory is returned when a search path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Capability proves read access to a search path until it is released.
type Capability interface {
	Location() string
}

// Accessor creates and resolves bookmarks and grants access to the
// directories they name.
type Accessor interface {
	// Bookmark encodes location so that it can be resolved in a later run.
	Bookmark(location string) ([]byte, error)
	// Resolve decodes a bookmark. stale reports that the bookmark should be
	// recreated from the returned location.
	Resolve(bookmark []byte) (location string, stale bool, err error)
	StartAccess(location string) (Capability, error)
	StopAccess(c Capability)
}

// FSAccessor is the portable accessor. A bookmark is the cleaned absolute
// path and a capability is an open handle on the directory.
type FSAccessor struct{}

type dirHandle struct {
	location string
	f        *os.File
}

func (h *dirHandle) Location() string { return h.location }

func (FSAccessor) Bookmark(location string) ([]byte, error) {
	abs, err := normalize(location)
	if err != nil {
		return nil, err
	}
	return []byte(abs), nil
}

func (FSAccessor) Resolve(bookmark []byte) (string, bool, error) {
	if len(bookmark) == 0 {
		return "", false, errors.New("empty bookmark")
	}
	raw := string(bookmark)
	abs, err := normalize(raw)
	if err != nil {
		return "", false, err
	}
	return abs, abs != raw, nil
}

func (FSAccessor) StartAccess(location string) (Capability, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", location, ErrNotDirectory)
	}
	return &dirHandle{location: location, f: f}, nil
}

func (FSAccessor) StopAccess(c Capability) {
	if h, ok := c.(*dirHandle); ok && h.f != nil {
		h.f.Close()
		h.f = nil
	}
}

func normalize(location string) (string, error) {
	if location == "" {
		return "", errors.New("empty location")
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
