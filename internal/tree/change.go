package tree

import (
	"sort"

	"quicklaunch/internal/item"
)

// Snapshot records where every reachable item lives.
type Snapshot struct {
	Version   uint64
	Container map[string]string // item id -> container id
	Names     map[string]string // folder id -> name
}

// Snapshot captures the current placement of every reachable item.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Version:   s.version,
		Container: make(map[string]string),
		Names:     make(map[string]string),
	}
	var rec func(containerID string, list []item.Item)
	rec = func(containerID string, list []item.Item) {
		for _, it := range list {
			id := it.ID()
			if _, seen := snap.Container[id]; seen {
				continue
			}
			snap.Container[id] = containerID
			if fid, ok := it.FolderID(); ok {
				if f, ok := s.folders[fid]; ok {
					snap.Names[fid] = f.name
					rec(fid, f.items)
				}
			}
		}
	}
	rec(RootID, s.root)
	return snap
}

// Change describes the difference between two snapshots.
type Change struct {
	Version uint64
	Added   []string
	Removed []string
	Moved   []string
	Renamed []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Moved) == 0 && len(c.Renamed) == 0
}

// Diff compares two snapshots. Ids in each list are sorted.
func Diff(before, after Snapshot) Change {
	c := Change{Version: after.Version}
	for id, container := range after.Container {
		prev, ok := before.Container[id]
		switch {
		case !ok:
			c.Added = append(c.Added, id)
		case prev != container:
			c.Moved = append(c.Moved, id)
		}
	}
	for id := range before.Container {
		if _, ok := after.Container[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	for id, name := range after.Names {
		if prev, ok := before.Names[id]; ok && prev != name {
			c.Renamed = append(c.Renamed, id)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Moved)
	sort.Strings(c.Renamed)
	return c
}
