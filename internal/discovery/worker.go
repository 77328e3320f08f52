package discovery

import (
	"context"
	"sync"
	"time"

	"quicklaunch/internal/item"
	"quicklaunch/internal/logging"
)

// Sink receives a completed scan. *tree.Engine implements it.
type Sink interface {
	ReplaceAll(apps []item.Application)
}

// DirsFunc returns the directories to scan. It is called once per scan so
// that search path changes are picked up.
type DirsFunc func() []string

// WorkerStats holds worker statistics.
type WorkerStats struct {
	Running   bool
	Scans     int64
	LastFound int
	LastScan  time.Time
	LastError error
}

// Worker runs scans off the caller's goroutine and hands each complete
// result to the sink in one call. A rescan requested while a scan is
// running is coalesced into a single follow-up scan.
type Worker struct {
	scanner Scanner
	sink    Sink
	dirs    DirsFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	pending bool
	closed  bool
	stats   WorkerStats
	wg      sync.WaitGroup
}

// NewWorker creates a worker. Scans run until Close is called.
func NewWorker(scanner Scanner, sink Sink, dirs DirsFunc) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		scanner: scanner,
		sink:    sink,
		dirs:    dirs,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Rescan requests a scan. It never blocks.
func (w *Worker) Rescan() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.running {
		w.pending = true
		return
	}
	w.running = true
	w.stats.Running = true
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		w.scanOnce()

		w.mu.Lock()
		if w.pending && w.ctx.Err() == nil {
			w.pending = false
			w.mu.Unlock()
			continue
		}
		w.pending = false
		w.running = false
		w.stats.Running = false
		w.mu.Unlock()
		return
	}
}

func (w *Worker) scanOnce() {
	dirs := w.dirs()
	start := time.Now()

	apps, err := w.scanner.Scan(w.ctx, dirs)

	w.mu.Lock()
	w.stats.Scans++
	w.stats.LastScan = start
	w.stats.LastError = err
	if err == nil {
		w.stats.LastFound = len(apps)
	}
	w.mu.Unlock()

	if err != nil {
		if w.ctx.Err() == nil {
			logging.Warn("application scan failed", "error", err)
		}
		return
	}

	logging.Info("application scan complete", "dirs", len(dirs), "found", len(apps), "duration", time.Since(start))
	w.sink.ReplaceAll(apps)
}

// Wait blocks until no scan is running or pending.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Stats returns a snapshot of the worker statistics.
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close cancels any running scan and waits for it to stop.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.pending = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}
