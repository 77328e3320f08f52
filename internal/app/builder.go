package app

import (
	"context"
	"fmt"
	"sync"

	"quicklaunch/internal/cache"
	"quicklaunch/internal/chat"
	"quicklaunch/internal/client"
	"quicklaunch/internal/config"
	"quicklaunch/internal/discovery"
	"quicklaunch/internal/logging"
	"quicklaunch/internal/searchpath"
	"quicklaunch/internal/tree"
)

// Builder constructs a Launcher from configuration. Components that are
// set explicitly are used as is; the rest are derived from the config.
type Builder struct {
	cfg *config.Config
	ctx context.Context

	engine   *tree.Engine
	paths    *searchpath.Store
	accessor searchpath.Accessor
	scanner  discovery.Scanner
	worker   *discovery.Worker
	watcher  *discovery.Watcher
	gateway  *client.Gateway
	searcher Searcher
	cache    *cache.SearchCache
	chatter  chat.Chatter
	session  *chat.Session
	status   client.StatusCallback

	buildErrors []error
	mu          sync.Mutex
}

// NewBuilder creates a Builder for cfg.
func NewBuilder(ctx context.Context, cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, ctx: ctx}
}

// WithScanner replaces the filesystem scanner.
func (b *Builder) WithScanner(s discovery.Scanner) *Builder {
	b.scanner = s
	return b
}

// WithAccessor replaces the search path accessor.
func (b *Builder) WithAccessor(a searchpath.Accessor) *Builder {
	b.accessor = a
	return b
}

// WithGateway uses g for both search and chat.
func (b *Builder) WithGateway(g *client.Gateway) *Builder {
	b.gateway = g
	b.searcher = g
	b.chatter = g
	return b
}

// WithSearcher replaces the AI search backend.
func (b *Builder) WithSearcher(s Searcher) *Builder {
	b.searcher = s
	return b
}

// WithChatter replaces the AI chat backend.
func (b *Builder) WithChatter(c chat.Chatter) *Builder {
	b.chatter = c
	return b
}

// WithStatusCallback receives gateway retry updates.
func (b *Builder) WithStatusCallback(cb client.StatusCallback) *Builder {
	b.status = cb
	return b
}

// Build constructs the Launcher. It does not start scanning.
func (b *Builder) Build() (*Launcher, error) {
	b.initEngine()
	b.initSearchPaths()
	if err := b.initDiscovery(); err != nil {
		b.addError(err)
		return nil, b.finalizeError()
	}
	if err := b.initGateway(); err != nil {
		b.addError(err)
		return nil, b.finalizeError()
	}
	b.initCache()
	b.initChat()
	if err := b.initWatcher(); err != nil {
		// Rescans still work on request.
		logging.Warn("search directory watcher disabled", "error", err)
	}
	return b.assemble(), nil
}

func (b *Builder) initEngine() {
	b.engine = tree.NewEngine(tree.NewStore())
}

func (b *Builder) initSearchPaths() {
	b.paths = searchpath.NewStore(b.cfg.SearchPathsPath(), b.accessor)
	b.paths.Load()
}

func (b *Builder) initDiscovery() error {
	if b.scanner == nil {
		s, err := discovery.NewGlobScanner(b.cfg.Discovery.Pattern)
		if err != nil {
			return err
		}
		b.scanner = s
	}
	b.worker = discovery.NewWorker(b.scanner, b.engine, b.searchDirs)
	return nil
}

// searchDirs lists the custom paths first, then the configured or
// platform application directories.
func (b *Builder) searchDirs() []string {
	dirs := b.paths.Locations()
	if len(b.cfg.Discovery.Dirs) > 0 {
		return append(dirs, b.cfg.Discovery.Dirs...)
	}
	return append(dirs, discovery.DefaultSearchDirs()...)
}

func (b *Builder) initGateway() error {
	if b.searcher != nil && b.chatter != nil {
		return nil
	}
	var opts []client.Option
	if b.status != nil {
		opts = append(opts, client.WithStatusCallback(b.status))
	}
	g, err := client.NewGatewayFromConfig(b.ctx, b.cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create AI gateway: %w", err)
	}
	b.gateway = g
	if b.searcher == nil {
		b.searcher = g
	}
	if b.chatter == nil {
		b.chatter = g
	}
	return nil
}

func (b *Builder) initCache() {
	if b.cfg.Cache.Enabled {
		b.cache = cache.NewSearchCache(b.cfg.Cache.Capacity, b.cfg.Cache.TTL)
	}
}

func (b *Builder) initChat() {
	b.session = chat.NewSession(b.chatter,
		chat.WithTypeInterval(b.cfg.Chat.TypeInterval),
		chat.WithGreeting(b.cfg.Chat.Greeting),
	)
}

func (b *Builder) initWatcher() error {
	if !b.cfg.Discovery.Watch {
		return nil
	}
	w, err := discovery.NewWatcher(discovery.WatchConfig{
		DebounceMs: b.cfg.Discovery.DebounceMs,
		MaxWatches: b.cfg.Discovery.MaxWatches,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	b.watcher = w
	return nil
}

func (b *Builder) assemble() *Launcher {
	l := &Launcher{
		cfg:      b.cfg,
		engine:   b.engine,
		paths:    b.paths,
		worker:   b.worker,
		watcher:  b.watcher,
		gateway:  b.gateway,
		searcher: b.searcher,
		cache:    b.cache,
		chat:     b.session,
		dirs:     b.searchDirs,
	}
	if l.watcher != nil {
		l.watcher.SetOnChange(func(paths []string) {
			logging.Debug("search directories changed", "paths", len(paths))
			l.worker.Rescan()
		})
	}
	return l
}

func (b *Builder) addError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buildErrors = append(b.buildErrors, err)
}

// finalizeError combines all build errors into a single error.
func (b *Builder) finalizeError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buildErrors) == 0 {
		return nil
	}
	msg := fmt.Sprintf("launcher build failed with %d error(s)", len(b.buildErrors))
	for i, err := range b.buildErrors {
		msg += fmt.Sprintf("\n  %d. %s", i+1, err.Error())
	}
	return fmt.Errorf("%s", msg)
}
