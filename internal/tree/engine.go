package tree

import (
	"sort"
	"strings"
	"sync"

	"quicklaunch/internal/item"
	"quicklaunch/internal/logging"
)

// ChangeHandler is called after a mutation changed the hierarchy.
type ChangeHandler func(Change)

// Engine is the mutation API used by drag-and-drop gestures.
// Operations are serialized and never fail: references to items that no
// longer exist are ignored. Empty folders never survive an operation.
type Engine struct {
	mu       sync.Mutex
	store    *Store
	nav      []string // open folders, innermost last
	handlers map[int]ChangeHandler
	nextID   int
}

// NewEngine creates an engine over store. A nil store starts empty.
func NewEngine(store *Store) *Engine {
	if store == nil {
		store = NewStore()
	}
	return &Engine{
		store:    store,
		handlers: make(map[int]ChangeHandler),
	}
}

// Subscribe registers handler for change notifications.
// The returned function removes the subscription.
func (e *Engine) Subscribe(handler ChangeHandler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
	}
}

// mutate runs fn under the lock, restores the empty-folder invariant and
// notifies subscribers outside the lock.
func (e *Engine) mutate(op string, fn func(s *Store)) {
	e.mu.Lock()
	before := e.store.Snapshot()
	fn(e.store)
	if n := e.store.cleanup(); n > 0 {
		logging.Debug("removed empty folders", "op", op, "count", n)
	}
	e.pruneNav()
	change := Diff(before, e.store.Snapshot())
	handlers := make([]ChangeHandler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	if change.Empty() {
		return
	}
	for _, h := range handlers {
		h(change)
	}
}

// MoveOntoTarget drops an application onto the item with targetID.
// Dropping onto another application creates a new folder holding both in
// the currently open folder. Dropping onto a folder appends to it.
func (e *Engine) MoveOntoTarget(dragged item.Application, targetID string) {
	if dragged.ID() == targetID {
		return
	}
	e.mutate("move_onto_target", func(s *Store) {
		target, ok := s.FindItemByID(targetID)
		if !ok {
			logging.Debug("drop target not found", "target", targetID)
			return
		}
		s.removeID(dragged.ID())

		if targetApp, ok := target.Application(); ok {
			s.removeID(targetApp.ID())
			folder := s.newFolder(item.DefaultFolderName, []item.Item{
				item.FromApplication(dragged),
				item.FromApplication(targetApp),
			})
			s.appendTo(e.openContainer(s), folder)
			logging.Debug("created folder from drop", "folder", folder.ID(), "apps", []string{dragged.Name, targetApp.Name})
			return
		}

		folderID, _ := target.FolderID()
		s.appendTo(folderID, item.FromApplication(dragged))
	})
}

// MoveAppToRoot moves app out of whatever folder holds it to the end of
// the root list.
func (e *Engine) MoveAppToRoot(app item.Application) {
	e.mutate("move_to_root", func(s *Store) {
		s.removeID(app.ID())
		s.appendTo(RootID, item.FromApplication(app))
	})
}

// DeleteFolder removes a folder and appends its items to the end of the
// list that held it.
func (e *Engine) DeleteFolder(folderID string) {
	e.mutate("delete_folder", func(s *Store) {
		ctx, ok := s.FindFolderContext(folderID)
		if !ok {
			return
		}
		l, ok := s.list(ctx.ParentID)
		if !ok {
			return
		}
		rec := s.folders[folderID]
		children := append([]item.Item(nil), rec.items...)

		idx := s.indexIn(*l, folderID, true)
		*l = append((*l)[:idx], (*l)[idx+1:]...)
		delete(s.folders, folderID)
		*l = append(*l, children...)
		s.version++
	})
}

// RenameFolder changes a folder's display name. Blank names are ignored.
func (e *Engine) RenameFolder(folderID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	e.mutate("rename_folder", func(s *Store) {
		_ = s.Rename(folderID, name)
	})
}

// ReplaceAll installs a fresh discovery result as the root list.
func (e *Engine) ReplaceAll(apps []item.Application) {
	e.mutate("replace_all", func(s *Store) {
		s.Replace(apps)
	})
}

// Cleanup removes every empty folder. It is idempotent.
func (e *Engine) Cleanup() {
	e.mutate("cleanup", func(*Store) {})
}

// EnterFolder pushes a folder onto the navigation stack.
func (e *Engine) EnterFolder(folderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.store.FindFolderContext(folderID); !ok {
		return false
	}
	e.nav = append(e.nav, folderID)
	return true
}

// GoBack pops the innermost open folder.
func (e *Engine) GoBack() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.nav) > 0 {
		e.nav = e.nav[:len(e.nav)-1]
	}
}

// OpenFolder returns the innermost open folder, if any.
func (e *Engine) OpenFolder() (item.Folder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.nav) == 0 {
		return item.Folder{}, false
	}
	return e.store.Folder(e.nav[len(e.nav)-1])
}

// openContainer returns the list new folders are placed into.
func (e *Engine) openContainer(s *Store) string {
	for i := len(e.nav) - 1; i >= 0; i-- {
		if _, ok := s.folders[e.nav[i]]; ok {
			return e.nav[i]
		}
	}
	return RootID
}

// pruneNav drops navigation entries whose folder is gone.
func (e *Engine) pruneNav() {
	kept := e.nav[:0]
	for _, id := range e.nav {
		if _, ok := e.store.folders[id]; ok {
			kept = append(kept, id)
		}
	}
	e.nav = kept
}

// Root returns a copy of the root list.
func (e *Engine) Root() []item.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Root()
}

// Items returns the items of the container id; RootID yields root.
func (e *Engine) Items(containerID string) ([]item.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Items(containerID)
}

// CurrentItems returns the open folder's items (or root's), folders first
// and then by case-insensitive name.
func (e *Engine) CurrentItems() []item.Item {
	e.mu.Lock()
	container := e.openContainer(e.store)
	items, _ := e.store.Items(container)
	e.mu.Unlock()

	SortForDisplay(items)
	return items
}

// SortForDisplay orders items folders first, then alphabetically by name
// ignoring case.
func SortForDisplay(items []item.Item) {
	col := item.NameCollator()
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		return col.CompareString(a.Name(), b.Name()) < 0
	})
}

// Folder returns a snapshot of a folder.
func (e *Engine) Folder(id string) (item.Folder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Folder(id)
}

// FlattenApplications returns every reachable application.
func (e *Engine) FlattenApplications() []item.Application {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.FlattenApplications()
}

// AllFolders returns every reachable folder.
func (e *Engine) AllFolders() []item.Folder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.AllFolders()
}

// FindItemByID looks an item up across root and every folder.
func (e *Engine) FindItemByID(id string) (item.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.FindItemByID(id)
}

// FindFolderContext returns a folder and the id of its container.
func (e *Engine) FindFolderContext(folderID string) (FolderContext, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.FindFolderContext(folderID)
}

// Version returns the store's change counter.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Version()
}
