package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"quicklaunch/internal/config"
	"quicklaunch/internal/item"
	"quicklaunch/internal/logging"
)

// Scanner finds launchable applications under a list of directories.
type Scanner interface {
	Scan(ctx context.Context, dirs []string) ([]item.Application, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(ctx context.Context, dirs []string) ([]item.Application, error)

func (f ScannerFunc) Scan(ctx context.Context, dirs []string) ([]item.Application, error) {
	return f(ctx, dirs)
}

// DefaultSearchDirs returns the local, user and system application folders.
func DefaultSearchDirs() []string {
	dirs := []string{"/Applications"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "Applications"))
	}
	return append(dirs, "/System/Applications")
}

// GlobScanner matches application bundles with a doublestar pattern.
// Hidden entries are skipped and a matched bundle is never descended into.
type GlobScanner struct {
	pattern string
}

// NewGlobScanner creates a scanner for pattern, or the default bundle
// pattern when empty.
func NewGlobScanner(pattern string) (*GlobScanner, error) {
	if pattern == "" {
		pattern = config.DefaultAppPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid discovery pattern %q", pattern)
	}
	return &GlobScanner{pattern: pattern}, nil
}

// Scan walks every directory in order and returns the applications found,
// deduplicated by location. Missing or unreadable directories are skipped.
func (s *GlobScanner) Scan(ctx context.Context, dirs []string) ([]item.Application, error) {
	found := item.NewSet()

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			logging.Debug("skipping search directory", "dir", dir, "error", err)
			continue
		}

		before := found.Len()
		err = doublestar.GlobWalk(os.DirFS(dir), s.pattern, func(rel string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if hidden(rel) {
				if d.IsDir() {
					return doublestar.SkipDir
				}
				return nil
			}
			found.Add(item.NewApplication("", filepath.Join(dir, filepath.FromSlash(rel))))
			if d.IsDir() {
				return doublestar.SkipDir
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.Warn("search directory scan failed", "dir", dir, "error", err)
			continue
		}
		logging.Debug("scanned search directory", "dir", dir, "found", found.Len()-before)
	}

	return found.Slice(), nil
}

// hidden reports whether any element of the slash-separated rel starts with a dot.
func hidden(rel string) bool {
	for _, part := range strings.Split(path.Clean(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
