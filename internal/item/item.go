// Package item defines the launchable entries shown by the launcher:
// applications (leaves) and folders (containers).
package item

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultFolderName is the name given to folders created by dropping one
// application onto another.
const DefaultFolderName = "New Folder"

// Kind distinguishes the two item variants.
type Kind int

const (
	KindApplication Kind = iota
	KindFolder
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Application is an installed application discovered on disk.
// Its identity is the canonical form of its location, never its name.
type Application struct {
	Name     string
	Location string
}

// NewApplication creates an application record for the bundle at location.
// When name is empty it is derived from the bundle's file name.
func NewApplication(name, location string) Application {
	if name == "" {
		base := filepath.Base(strings.TrimRight(location, "/"))
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Application{Name: name, Location: location}
}

// ID returns the canonical location string.
func (a Application) ID() string {
	return CanonicalLocation(a.Location)
}

// Equal reports whether a and b point at the same location.
func (a Application) Equal(b Application) bool {
	return a.ID() == b.ID()
}

// CanonicalLocation converts a filesystem path or file URL into the
// file URL form used as an application identity.
func CanonicalLocation(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		p = u.Path
	}
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = filepath.ToSlash(filepath.Clean(p))
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// NewFolderID returns a fresh folder identifier.
func NewFolderID() string {
	return uuid.NewString()
}

// Folder is a snapshot of a folder record: its stable id, its name and
// the items it holds in insertion order.
type Folder struct {
	ID    string
	Name  string
	Items []Item
}

// Equal reports whether f and g are the same folder.
func (f Folder) Equal(g Folder) bool {
	return f.ID == g.ID
}

// Item is a tagged union over Application and folder references.
// Lists hold folders by id; the folder record itself lives in the tree store.
type Item struct {
	kind     Kind
	app      Application
	folderID string
	name     string
}

// FromApplication wraps an application as an item.
func FromApplication(a Application) Item {
	return Item{kind: KindApplication, app: a}
}

// FolderRef creates an item referencing the folder with the given id.
// name is a display hint and does not take part in identity.
func FolderRef(id, name string) Item {
	return Item{kind: KindFolder, folderID: id, name: name}
}

// Kind returns the variant held by the item.
func (it Item) Kind() Kind { return it.kind }

// IsApplication reports whether the item is an application.
func (it Item) IsApplication() bool { return it.kind == KindApplication }

// IsFolder reports whether the item is a folder reference.
func (it Item) IsFolder() bool { return it.kind == KindFolder }

// Application returns the wrapped application.
func (it Item) Application() (Application, bool) {
	if it.kind != KindApplication {
		return Application{}, false
	}
	return it.app, true
}

// FolderID returns the referenced folder id.
func (it Item) FolderID() (string, bool) {
	if it.kind != KindFolder {
		return "", false
	}
	return it.folderID, true
}

// ID returns the identity of the item regardless of its variant.
func (it Item) ID() string {
	if it.kind == KindFolder {
		return it.folderID
	}
	return it.app.ID()
}

// Name returns the display name regardless of its variant.
func (it Item) Name() string {
	if it.kind == KindFolder {
		return it.name
	}
	return it.app.Name
}

// WithName returns a copy of a folder reference carrying a new display name.
func (it Item) WithName(name string) Item {
	if it.kind == KindFolder {
		it.name = name
	}
	return it
}
