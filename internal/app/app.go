package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"quicklaunch/internal/cache"
	"quicklaunch/internal/chat"
	"quicklaunch/internal/client"
	"quicklaunch/internal/config"
	"quicklaunch/internal/discovery"
	"quicklaunch/internal/item"
	"quicklaunch/internal/logging"
	"quicklaunch/internal/ratelimit"
	"quicklaunch/internal/searchpath"
	"quicklaunch/internal/tree"
)

// ErrNoFailedSearch is returned by RetrySearch when the last search did not fail.
var ErrNoFailedSearch = errors.New("no failed search to retry")

// Searcher selects matching names from a candidate list. *client.Gateway
// implements it.
type Searcher interface {
	SearchApplications(ctx context.Context, query string, candidateNames []string) ([]string, error)
}

// SearchState is the outcome of the latest AI search.
type SearchState struct {
	Query           string
	Results         []item.Application // nil unless the last search succeeded
	Error           string             // user-facing message of the last failure
	LastFailedQuery string
	Loading         bool
}

// Launcher ties discovery, the item tree, search paths and the AI gateway together.
type Launcher struct {
	cfg      *config.Config
	engine   *tree.Engine
	paths    *searchpath.Store
	worker   *discovery.Worker
	watcher  *discovery.Watcher
	gateway  *client.Gateway
	searcher Searcher
	cache    *cache.SearchCache
	chat     *chat.Session
	dirs     func() []string

	mu     sync.Mutex
	search SearchState
}

// New builds a Launcher from cfg with the default components.
func New(ctx context.Context, cfg *config.Config) (*Launcher, error) {
	return NewBuilder(ctx, cfg).Build()
}

// Start runs the first scan and starts watching the search directories
// when enabled.
func (l *Launcher) Start() error {
	l.worker.Rescan()
	if l.watcher != nil {
		if err := l.watcher.Start(l.dirs()); err != nil {
			return fmt.Errorf("failed to watch search directories: %w", err)
		}
	}
	return nil
}

// Config returns the configuration the launcher was built from.
func (l *Launcher) Config() *config.Config { return l.cfg }

// Engine returns the organization engine.
func (l *Launcher) Engine() *tree.Engine { return l.engine }

// Chat returns the chat session.
func (l *Launcher) Chat() *chat.Session { return l.chat }

// Rescan requests a new discovery scan.
func (l *Launcher) Rescan() { l.worker.Rescan() }

// WaitForScan blocks until no scan is running or pending.
func (l *Launcher) WaitForScan() { l.worker.Wait() }

// ScanStats returns the discovery worker statistics.
func (l *Launcher) ScanStats() discovery.WorkerStats { return l.worker.Stats() }

// SearchDirs returns the directories the next scan will visit.
func (l *Launcher) SearchDirs() []string { return l.dirs() }

// SearchPaths returns the custom search paths.
func (l *Launcher) SearchPaths() []searchpath.Path { return l.paths.List() }

// AddSearchPath adds a custom directory and rescans.
func (l *Launcher) AddSearchPath(location string) error {
	added, err := l.paths.Add(location)
	if added {
		l.searchPathsChanged()
	}
	return err
}

// RemoveSearchPath removes a custom directory and rescans.
func (l *Launcher) RemoveSearchPath(location string) error {
	removed, err := l.paths.Remove(location)
	if removed {
		l.searchPathsChanged()
	}
	return err
}

// RemoveSearchPathAt removes the custom directory at index i and rescans.
func (l *Launcher) RemoveSearchPathAt(i int) error {
	if err := l.paths.RemoveAt(i); err != nil {
		return err
	}
	l.searchPathsChanged()
	return nil
}

func (l *Launcher) searchPathsChanged() {
	if l.watcher != nil {
		l.watcher.Watch(l.dirs())
	}
	l.worker.Rescan()
}

// CurrentItems returns the open folder's items, or the root list, with
// folders first and then by case-insensitive name.
func (l *Launcher) CurrentItems() []item.Item {
	return l.engine.CurrentItems()
}

// FilterByName returns the current items whose name contains query,
// ignoring case. A blank query returns every current item.
func (l *Launcher) FilterByName(query string) []item.Item {
	items := l.engine.CurrentItems()
	q := strings.TrimSpace(query)
	if q == "" {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if item.MatchesName(it.Name(), q) {
			out = append(out, it)
		}
	}
	return out
}

// VisibleItems returns the AI search results when present, otherwise the
// current items filtered by query.
func (l *Launcher) VisibleItems(query string) []item.Item {
	l.mu.Lock()
	results := l.search.Results
	l.mu.Unlock()

	if results != nil {
		out := make([]item.Item, len(results))
		for i, a := range results {
			out[i] = item.FromApplication(a)
		}
		return out
	}
	return l.FilterByName(query)
}

// SearchWithAI asks the model which applications match query and keeps
// the matching applications as the search results. Names returned by the
// model that match no application are ignored. A blank query does nothing.
func (l *Launcher) SearchWithAI(ctx context.Context, query string) ([]item.Application, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	l.mu.Lock()
	l.search = SearchState{Query: query, Loading: true}
	l.mu.Unlock()

	apps := l.engine.FlattenApplications()
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}

	key := cache.SearchKey(query, names)
	selected, cached := l.cache.Get(key)
	var err error
	if !cached {
		selected, err = l.searcher.SearchApplications(ctx, query, names)
		if err == nil {
			l.cache.Set(key, selected)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.search.Loading = false

	if err != nil {
		l.search.LastFailedQuery = query
		l.search.Error = searchErrorText(err)
		logging.Warn("AI search failed", "query", query, "error", err)
		return nil, err
	}

	want := make(map[string]bool, len(selected))
	for _, n := range selected {
		want[n] = true
	}
	results := make([]item.Application, 0, len(selected))
	for _, a := range apps {
		if want[a.Name] {
			results = append(results, a)
		}
	}
	l.search.Results = results
	logging.Debug("AI search complete", "query", query, "selected", len(selected), "matched", len(results), "cached", cached)
	return results, nil
}

// RetrySearch repeats the last failed search.
func (l *Launcher) RetrySearch(ctx context.Context) ([]item.Application, error) {
	l.mu.Lock()
	query := l.search.LastFailedQuery
	l.mu.Unlock()

	if query == "" {
		return nil, ErrNoFailedSearch
	}
	return l.SearchWithAI(ctx, query)
}

// LastFailedQuery returns the query of the last failed search, if any.
func (l *Launcher) LastFailedQuery() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.search.LastFailedQuery
}

// Search returns the state of the latest AI search.
func (l *Launcher) Search() SearchState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.search
	s.Results = slices.Clone(s.Results)
	return s
}

// SearchCacheStats returns the AI search cache statistics.
func (l *Launcher) SearchCacheStats() cache.SearchStats { return l.cache.Stats() }

// RateLimitStats returns the gateway's request pacing statistics. It is
// zero when the AI backends were supplied without a gateway.
func (l *Launcher) RateLimitStats() ratelimit.Stats {
	if l.gateway == nil {
		return ratelimit.Stats{}
	}
	return l.gateway.RateLimitStats()
}

// ClearSearch drops the AI search results and error.
func (l *Launcher) ClearSearch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.search = SearchState{}
}

func searchErrorText(err error) string {
	if client.IsOverloaded(err) {
		return "AI search is overloaded. Please try again later."
	}
	return "Search error: " + err.Error()
}

// Close stops background work and releases search path access.
func (l *Launcher) Close() {
	if l.watcher != nil {
		if err := l.watcher.Stop(); err != nil {
			logging.Debug("watcher stop failed", "error", err)
		}
	}
	l.worker.Close()
	l.chat.Close()
	l.paths.Close()
}
