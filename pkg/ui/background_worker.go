package ui

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
)

// WorkerState is where the reload worker is in its cycle.
type WorkerState int

const (
	WorkerIdle WorkerState = iota
	WorkerProcessing
	WorkerStopped
)

var workerStateNames = [...]string{"idle", "processing", "stopped"}

func (s WorkerState) String() string {
	if s >= 0 && int(s) < len(workerStateNames) {
		return workerStateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// WorkerError is a failed reload. Retries counts consecutive failures
// including this one.
type WorkerError struct {
	Phase   string
	Cause   error
	Time    time.Time
	Retries int
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error { return e.Cause }

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// ItemSnapshot is one loaded item collection.
type ItemSnapshot struct {
	Items    []model.Item
	Hash     string
	LoadedAt time.Time
	Duration time.Duration
}

// ItemsReadyMsg carries a collection whose fingerprint differs from the
// previous one.
type ItemsReadyMsg struct {
	Snapshot *ItemSnapshot
}

// ItemsErrorMsg reports a failed reload. The map keeps its last good items.
type ItemsErrorMsg struct {
	Err         error
	Recoverable bool
}

// WorkerConfig configures a BackgroundWorker. Source defaults to the file
// at WatchPath.
type WorkerConfig struct {
	Source        loader.Source
	WatchPath     string
	DebounceDelay time.Duration
	Program       Sender
	Logger        *log.Logger
}

// BackgroundWorker reloads the collection off the update loop, either on
// request or when the watched file settles after a change.
type BackgroundWorker struct {
	src      loader.Source
	path     string
	debounce time.Duration
	logger   *log.Logger
	fw       *fsnotify.Watcher

	mu       sync.RWMutex
	state    WorkerState
	again    bool
	running  bool
	snapshot *ItemSnapshot
	hash     string
	err      *WorkerError
	failures int
	out      Sender

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewBackgroundWorker creates a worker. With a WatchPath the parent
// directory is watched from here on, so a missing directory fails now.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	w := &BackgroundWorker{
		src:      cfg.Source,
		path:     cfg.WatchPath,
		debounce: cfg.DebounceDelay,
		logger:   cfg.Logger,
		out:      cfg.Program,
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = 200 * time.Millisecond
	}
	if w.logger == nil {
		w.logger = log.Default()
	}
	if w.src == nil && w.path != "" {
		w.src = loader.Open(w.path)
	}

	if w.path != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := fw.Add(filepath.Dir(w.path)); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", w.path, err)
		}
		w.fw = fw
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	return w, nil
}

// SetProgram sets where reload messages go.
func (w *BackgroundWorker) SetProgram(p Sender) {
	w.mu.Lock()
	w.out = p
	w.mu.Unlock()
}

// Start begins watching. Calling it again is a no-op.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	first := !w.running && w.state != WorkerStopped
	w.running = true
	w.mu.Unlock()
	if !first {
		return nil
	}
	if w.fw == nil {
		close(w.done)
		return nil
	}
	go w.watch()
	return nil
}

// Stop cancels any load in flight and closes the watcher.
func (w *BackgroundWorker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.state = WorkerStopped
		running := w.running
		w.mu.Unlock()

		w.cancel()
		if w.fw != nil {
			w.fw.Close()
		}
		if !running {
			return
		}
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
			w.logger.Printf("worker: watcher did not exit")
		}
	})
}

// TriggerRefresh reloads now. A request that arrives during a load causes
// exactly one more pass once it finishes.
func (w *BackgroundWorker) TriggerRefresh() {
	if w.State() == WorkerStopped {
		return
	}
	go w.refresh()
}

func (w *BackgroundWorker) GetSnapshot() *ItemSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError is the error of the latest reload, nil after a success.
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// LastHash is the fingerprint of the last published collection.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hash
}

// ResetHash makes the next reload publish even when nothing changed.
func (w *BackgroundWorker) ResetHash() {
	w.mu.Lock()
	w.hash = ""
	w.mu.Unlock()
}

func (w *BackgroundWorker) watch() {
	defer close(w.done)

	target := filepath.Clean(w.path)
	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	const touched = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == target && ev.Op&touched != 0 {
				settle.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("worker: watcher error: %v", err)
		case <-settle.C:
			w.refresh()
		}
	}
}

// begin moves Idle to Processing. Otherwise it records a pending pass when
// a load is already running and reports false.
func (w *BackgroundWorker) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case WorkerIdle:
		w.state = WorkerProcessing
		w.again = false
		return true
	case WorkerProcessing:
		w.again = true
	}
	return false
}

func (w *BackgroundWorker) refresh() {
	if !w.begin() {
		return
	}
	snap, werr := w.load()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if werr != nil {
		w.failures++
		werr.Retries = w.failures
	} else {
		w.failures = 0
	}
	w.err = werr
	if snap != nil {
		w.snapshot = snap
		w.hash = snap.Hash
	}
	w.state = WorkerIdle
	again, out := w.again, w.out
	w.mu.Unlock()

	switch {
	case werr != nil:
		w.logger.Printf("worker: %s: %v", w.src, werr)
		if out != nil {
			out.Send(ItemsErrorMsg{Err: werr, Recoverable: true})
		}
	case snap != nil && out != nil:
		out.Send(ItemsReadyMsg{Snapshot: snap})
	}
	if again {
		go w.refresh()
	}
}

// load reads and normalizes the source. It returns a nil snapshot when
// there is no source or the fingerprint is unchanged.
func (w *BackgroundWorker) load() (*ItemSnapshot, *WorkerError) {
	if w.src == nil {
		return nil, nil
	}
	start := time.Now()

	var items []model.Item
	if werr := guard("load", func() (err error) {
		items, err = w.src.Load(w.ctx)
		return err
	}); werr != nil {
		return nil, werr
	}
	if werr := guard("normalize", func() error {
		items = loader.Normalize(items, w.logger)
		return nil
	}); werr != nil {
		return nil, werr
	}

	hash := loader.Fingerprint(items)
	if prev := w.LastHash(); prev != "" && prev == hash {
		w.logger.Printf("worker: %s unchanged (hash=%s)", w.src, shortHash(hash))
		return nil, nil
	}
	took := time.Since(start)
	w.logger.Printf("worker: loaded %d items from %s in %v (hash=%s)", len(items), w.src, took, shortHash(hash))
	return &ItemSnapshot{Items: items, Hash: hash, LoadedAt: time.Now(), Duration: took}, nil
}

// guard runs fn, turning an error or a panic into a WorkerError for phase.
func guard(phase string, fn func() error) (werr *WorkerError) {
	defer func() {
		if r := recover(); r != nil {
			werr = &WorkerError{Phase: phase, Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()), Time: time.Now()}
		}
	}()
	if err := fn(); err != nil {
		return &WorkerError{Phase: phase, Cause: err, Time: time.Now()}
	}
	return nil
}

func shortHash(h string) string {
	return h[:min(len(h), 16)]
}
