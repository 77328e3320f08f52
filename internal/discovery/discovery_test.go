package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicklaunch/internal/item"
)

func mkBundle(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(filepath.Join(p, "Contents", "MacOS"), 0o755))
	return p
}

func appNames(apps []item.Application) []string {
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}
	return names
}

func TestGlobScannerFindsBundles(t *testing.T) {
	root := t.TempDir()
	mkBundle(t, root, "Safari.app")
	mkBundle(t, root, "Utilities", "Terminal.app")
	mkBundle(t, root, "Xcode.app", "Contents", "Developer", "Simulator.app")
	mkBundle(t, root, ".hidden", "Secret.app")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	s, err := NewGlobScanner("")
	require.NoError(t, err)

	apps, err := s.Scan(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{"Safari", "Terminal", "Xcode"}, appNames(apps))
}

func TestGlobScannerDeduplicatesAcrossDirs(t *testing.T) {
	root := t.TempDir()
	mkBundle(t, root, "Mail.app")
	mkBundle(t, root, "Sub", "Notes.app")

	s, err := NewGlobScanner("")
	require.NoError(t, err)

	apps, err := s.Scan(context.Background(), []string{root, filepath.Join(root, "Sub"), root + "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mail", "Notes"}, appNames(apps))
}

func TestGlobScannerSkipsMissingDirs(t *testing.T) {
	root := t.TempDir()
	mkBundle(t, root, "Maps.app")

	s, err := NewGlobScanner("")
	require.NoError(t, err)

	apps, err := s.Scan(context.Background(), []string{filepath.Join(root, "missing"), root})
	require.NoError(t, err)
	assert.Equal(t, []string{"Maps"}, appNames(apps))
}

func TestGlobScannerCancelled(t *testing.T) {
	s, err := NewGlobScanner("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx, []string{t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGlobScannerRejectsBadPattern(t *testing.T) {
	_, err := NewGlobScanner("[")
	assert.Error(t, err)
}

func TestDefaultSearchDirs(t *testing.T) {
	dirs := DefaultSearchDirs()
	assert.Equal(t, "/Applications", dirs[0])
	assert.Equal(t, "/System/Applications", dirs[len(dirs)-1])
}

type recordingSink struct {
	mu      sync.Mutex
	results [][]item.Application
}

func (r *recordingSink) ReplaceAll(apps []item.Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, apps)
}

func (r *recordingSink) Results() [][]item.Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]item.Application(nil), r.results...)
}

func TestWorkerDeliversWholeResult(t *testing.T) {
	sink := &recordingSink{}
	scanner := ScannerFunc(func(ctx context.Context, dirs []string) ([]item.Application, error) {
		return []item.Application{
			item.NewApplication("", "/Applications/Mail.app"),
			item.NewApplication("", "/Applications/Notes.app"),
		}, nil
	})
	w := NewWorker(scanner, sink, func() []string { return []string{"/Applications"} })
	defer w.Close()

	w.Rescan()
	w.Wait()

	results := sink.Results()
	require.Len(t, results, 1)
	assert.Len(t, results[0], 2)
	stats := w.Stats()
	assert.EqualValues(t, 1, stats.Scans)
	assert.Equal(t, 2, stats.LastFound)
	assert.False(t, stats.Running)
}

func TestWorkerCoalescesRescans(t *testing.T) {
	sink := &recordingSink{}
	release := make(chan struct{})
	var scans atomic.Int32
	scanner := ScannerFunc(func(ctx context.Context, dirs []string) ([]item.Application, error) {
		if scans.Add(1) == 1 {
			<-release
		}
		return nil, nil
	})
	w := NewWorker(scanner, sink, func() []string { return nil })
	defer w.Close()

	w.Rescan()
	require.Eventually(t, func() bool { return scans.Load() == 1 }, time.Second, time.Millisecond)
	w.Rescan()
	w.Rescan()
	w.Rescan()
	close(release)
	w.Wait()

	assert.EqualValues(t, 2, scans.Load())
	assert.Len(t, sink.Results(), 2)
}

func TestWorkerFailedScanPublishesNothing(t *testing.T) {
	sink := &recordingSink{}
	scanner := ScannerFunc(func(ctx context.Context, dirs []string) ([]item.Application, error) {
		return nil, errors.New("permission denied")
	})
	w := NewWorker(scanner, sink, func() []string { return nil })
	defer w.Close()

	w.Rescan()
	w.Wait()

	assert.Empty(t, sink.Results())
	assert.EqualError(t, w.Stats().LastError, "permission denied")
}

func TestWorkerCloseCancelsScan(t *testing.T) {
	sink := &recordingSink{}
	started := make(chan struct{})
	scanner := ScannerFunc(func(ctx context.Context, dirs []string) ([]item.Application, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	w := NewWorker(scanner, sink, func() []string { return nil })

	w.Rescan()
	<-started
	w.Close()
	w.Rescan()
	w.Wait()

	assert.Empty(t, sink.Results())
}

func TestWatcherReportsSettledChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Utilities"), 0o755))

	w, err := NewWatcher(WatchConfig{DebounceMs: 20})
	require.NoError(t, err)
	defer w.Stop()

	changes := make(chan []string, 4)
	w.SetOnChange(func(paths []string) { changes <- paths })
	require.NoError(t, w.Start([]string{root}))
	assert.Equal(t, 2, w.WatchedPaths())

	mkBundle(t, root, "Utilities", "Console.app")
	mkBundle(t, root, "Calendar.app")

	select {
	case paths := <-changes:
		assert.Contains(t, paths, filepath.Join(root, "Calendar.app"))
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherSkipsBundleInternals(t *testing.T) {
	root := t.TempDir()
	mkBundle(t, root, "Mail.app")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))

	w, err := NewWatcher(WatchConfig{DebounceMs: 20, MaxWatches: 10})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start([]string{root}))
	assert.Equal(t, 1, w.WatchedPaths())
}
