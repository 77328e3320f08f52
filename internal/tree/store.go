// Package tree holds the launcher's item hierarchy and the operations
// that reorganize it.
//
// Folders live in an arena keyed by id; every list (root or a folder's
// items) stores folders by reference. A folder id appears in at most one
// list at a time, so ownership moves with the reference.
package tree

import (
	"errors"

	"quicklaunch/internal/item"
)

// RootID is the container id used for the root list.
const RootID = ""

// ErrNotFound is returned by lookups that find nothing. Engine operations
// treat it as a no-op and never surface it to callers.
var ErrNotFound = errors.New("item not found")

type folderRecord struct {
	name  string
	items []item.Item
}

// Store owns the root list and every folder record reachable from it.
// Store is not safe for concurrent use; Engine serializes access.
type Store struct {
	root    []item.Item
	folders map[string]*folderRecord
	version uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{folders: make(map[string]*folderRecord)}
}

// NewStoreWithApps creates a store whose root list holds apps.
func NewStoreWithApps(apps []item.Application) *Store {
	s := NewStore()
	s.Replace(apps)
	return s
}

// Version returns a counter bumped on every structural change.
func (s *Store) Version() uint64 {
	return s.version
}

// Replace discards the whole hierarchy and installs apps as the root list.
func (s *Store) Replace(apps []item.Application) {
	set := item.NewSet()
	root := make([]item.Item, 0, len(apps))
	for _, a := range apps {
		if set.Add(a) {
			root = append(root, item.FromApplication(a))
		}
	}
	s.root = root
	s.folders = make(map[string]*folderRecord)
	s.version++
}

// Root returns a copy of the root list.
func (s *Store) Root() []item.Item {
	return s.resolve(s.root)
}

// Items returns a copy of the list held by the container id.
// RootID yields the root list.
func (s *Store) Items(containerID string) ([]item.Item, bool) {
	if containerID == RootID {
		return s.Root(), true
	}
	rec, ok := s.folders[containerID]
	if !ok {
		return nil, false
	}
	return s.resolve(rec.items), true
}

// Folder returns a snapshot of the folder with the given id.
func (s *Store) Folder(id string) (item.Folder, bool) {
	rec, ok := s.folders[id]
	if !ok {
		return item.Folder{}, false
	}
	return item.Folder{ID: id, Name: rec.name, Items: s.resolve(rec.items)}, true
}

// FlattenApplications collects every application reachable from root.
func (s *Store) FlattenApplications() []item.Application {
	var apps []item.Application
	s.walk(s.root, func(it item.Item) {
		if a, ok := it.Application(); ok {
			apps = append(apps, a)
		}
	})
	return apps
}

// AllFolders collects every folder reachable from root, depth first.
func (s *Store) AllFolders() []item.Folder {
	var folders []item.Folder
	s.walk(s.root, func(it item.Item) {
		if id, ok := it.FolderID(); ok {
			if f, ok := s.Folder(id); ok {
				folders = append(folders, f)
			}
		}
	})
	return folders
}

// FindItemByID searches the root list and the list of every folder.
func (s *Store) FindItemByID(id string) (item.Item, bool) {
	for _, it := range s.root {
		if it.ID() == id {
			return s.resolveOne(it), true
		}
	}
	for _, f := range s.AllFolders() {
		for _, it := range f.Items {
			if it.ID() == id {
				return it, true
			}
		}
	}
	return item.Item{}, false
}

// FolderContext is a folder together with the id of the list holding it.
// ParentID is RootID when the root list is the container.
type FolderContext struct {
	Target   item.Folder
	ParentID string
}

// HasParent reports whether the folder sits inside another folder.
func (c FolderContext) HasParent() bool {
	return c.ParentID != RootID
}

// FindFolderContext locates a folder and its immediate container.
func (s *Store) FindFolderContext(folderID string) (FolderContext, bool) {
	if s.indexIn(s.root, folderID, true) >= 0 {
		f, ok := s.Folder(folderID)
		return FolderContext{Target: f}, ok
	}
	for _, parent := range s.AllFolders() {
		if s.indexIn(s.folders[parent.ID].items, folderID, true) >= 0 {
			f, ok := s.Folder(folderID)
			return FolderContext{Target: f, ParentID: parent.ID}, ok
		}
	}
	return FolderContext{}, false
}

// Rename changes a folder's display name.
func (s *Store) Rename(folderID, name string) error {
	rec, ok := s.folders[folderID]
	if !ok {
		return ErrNotFound
	}
	if rec.name != name {
		rec.name = name
		s.version++
	}
	return nil
}

// walk visits every item reachable from list, descending into folders.
func (s *Store) walk(list []item.Item, visit func(item.Item)) {
	seen := make(map[string]bool)
	var rec func([]item.Item)
	rec = func(items []item.Item) {
		for _, it := range items {
			visit(s.resolveOne(it))
			id, ok := it.FolderID()
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			if f, ok := s.folders[id]; ok {
				rec(f.items)
			}
		}
	}
	rec(list)
}

func (s *Store) resolve(list []item.Item) []item.Item {
	out := make([]item.Item, len(list))
	for i, it := range list {
		out[i] = s.resolveOne(it)
	}
	return out
}

func (s *Store) resolveOne(it item.Item) item.Item {
	if id, ok := it.FolderID(); ok {
		if rec, ok := s.folders[id]; ok {
			return it.WithName(rec.name)
		}
	}
	return it
}

func (s *Store) indexIn(list []item.Item, id string, foldersOnly bool) int {
	for i, it := range list {
		if foldersOnly && !it.IsFolder() {
			continue
		}
		if it.ID() == id {
			return i
		}
	}
	return -1
}

// list returns a pointer to the list held by containerID.
func (s *Store) list(containerID string) (*[]item.Item, bool) {
	if containerID == RootID {
		return &s.root, true
	}
	rec, ok := s.folders[containerID]
	if !ok {
		return nil, false
	}
	return &rec.items, true
}

// removeID drops every occurrence of id from root and from every folder.
func (s *Store) removeID(id string) bool {
	removed := false
	filter := func(list []item.Item) []item.Item {
		out := list[:0]
		for _, it := range list {
			if it.ID() == id {
				removed = true
				continue
			}
			out = append(out, it)
		}
		return out
	}
	s.root = filter(s.root)
	for _, rec := range s.folders {
		rec.items = filter(rec.items)
	}
	if removed {
		s.version++
	}
	return removed
}

func (s *Store) appendTo(containerID string, items ...item.Item) bool {
	l, ok := s.list(containerID)
	if !ok {
		return false
	}
	*l = append(*l, items...)
	s.version++
	return true
}

func (s *Store) newFolder(name string, items []item.Item) item.Item {
	id := item.NewFolderID()
	s.folders[id] = &folderRecord{name: name, items: append([]item.Item(nil), items...)}
	s.version++
	return item.FolderRef(id, name)
}

// reachable returns the ids of folders reachable from root.
func (s *Store) reachable() map[string]bool {
	ids := make(map[string]bool)
	s.walk(s.root, func(it item.Item) {
		if id, ok := it.FolderID(); ok {
			ids[id] = true
		}
	})
	return ids
}

// cleanup removes empty folders bottom-up so that a folder left holding
// only empty folders is removed too, then drops unreachable records.
// Returns the number of folders removed.
func (s *Store) cleanup() int {
	removed := 0
	visiting := make(map[string]bool)
	var prune func([]item.Item) []item.Item
	prune = func(list []item.Item) []item.Item {
		out := list[:0]
		for _, it := range list {
			id, ok := it.FolderID()
			if !ok {
				out = append(out, it)
				continue
			}
			rec, exists := s.folders[id]
			if !exists || visiting[id] {
				// Dangling or cyclic reference.
				removed++
				continue
			}
			visiting[id] = true
			rec.items = prune(rec.items)
			visiting[id] = false
			if len(rec.items) == 0 {
				delete(s.folders, id)
				removed++
				continue
			}
			out = append(out, it)
		}
		return out
	}
	s.root = prune(s.root)

	live := s.reachable()
	for id := range s.folders {
		if !live[id] {
			delete(s.folders, id)
		}
	}
	if removed > 0 {
		s.version++
	}
	return removed
}
