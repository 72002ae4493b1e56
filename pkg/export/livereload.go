package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LiveReloadHub pushes reload events to preview pages over Server-Sent
// Events. With a path it also watches that file and reloads once writes
// have settled.
type LiveReloadHub struct {
	path     string
	onChange func()
	logger   *log.Logger
	settle   time.Duration

	fw      *fsnotify.Watcher
	pending *time.Timer

	mu   sync.Mutex
	subs map[chan struct{}]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewLiveReloadHub returns a hub for path. onChange, if set, runs before
// every reload broadcast. An empty path reloads only on Notify.
func NewLiveReloadHub(path string, onChange func(), logger *log.Logger) *LiveReloadHub {
	if logger == nil {
		logger = log.Default()
	}
	h := &LiveReloadHub{
		path:     path,
		onChange: onChange,
		logger:   logger,
		settle:   200 * time.Millisecond,
		subs:     make(map[chan struct{}]struct{}),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// Start watches the directory holding the file, which also catches editors
// that save by renaming over it.
func (h *LiveReloadHub) Start() error {
	if h.path == "" {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(h.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", h.path, err)
	}
	h.fw = fw
	go h.watch()
	return nil
}

// Stop closes the watcher and ends every open stream.
func (h *LiveReloadHub) Stop() {
	h.cancel()
	if h.fw != nil {
		h.fw.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		h.pending.Stop()
	}
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

func (h *LiveReloadHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *LiveReloadHub) watch() {
	target := filepath.Clean(h.path)
	const touched = fsnotify.Write | fsnotify.Create | fsnotify.Rename
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-h.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == target && ev.Op&touched != 0 {
				h.schedule()
			}
		case err, ok := <-h.fw.Errors:
			if !ok {
				return
			}
			h.logger.Printf("livereload: watcher error: %v", err)
		}
	}
}

// schedule restarts the settle timer; Notify runs when it fires.
func (h *LiveReloadHub) schedule() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		h.pending.Stop()
	}
	h.pending = time.AfterFunc(h.settle, func() {
		if h.ctx.Err() == nil {
			h.Notify()
		}
	})
}

// Notify runs the change hook, then broadcasts a reload.
func (h *LiveReloadHub) Notify() {
	if h.onChange != nil {
		h.onChange()
	}
	h.Broadcast()
}

// Broadcast asks every open page to reload. A page with a reload already
// queued gets no second one.
func (h *LiveReloadHub) Broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *LiveReloadHub) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *LiveReloadHub) unsubscribe(ch chan struct{}) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func writeEvent(w io.Writer, f http.Flusher, name, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	f.Flush()
}

// SSEHandler streams a "connected" event followed by one "reload" event
// per broadcast.
func (h *LiveReloadHub) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		hdr := w.Header()
		hdr.Set("Content-Type", "text/event-stream")
		hdr.Set("Cache-Control", "no-cache")
		hdr.Set("Connection", "keep-alive")

		ch := h.subscribe()
		defer h.unsubscribe(ch)
		writeEvent(w, f, "connected", `{"status":"connected"}`)

		for {
			select {
			case <-r.Context().Done():
				return
			case <-h.ctx.Done():
				return
			case _, open := <-ch:
				if !open {
					return
				}
				writeEvent(w, f, "reload", `{"action":"reload"}`)
			}
		}
	}
}

// LiveReloadScript reconnects with backoff and reloads the page on a
// reload event.
const LiveReloadScript = `<script>
(function() {
  if (!window.EventSource) return;
  var wait = 1000;
  (function open() {
    var src = new EventSource('/__preview__/events');
    src.addEventListener('connected', function() { wait = 1000; });
    src.addEventListener('reload', function() { window.location.reload(); });
    src.onerror = function() {
      src.close();
      setTimeout(open, wait);
      wait = Math.min(wait * 2, 30000);
    };
  })();
})();
</script>`

// InjectLiveReload places LiveReloadScript before the closing body tag,
// or at the end of a page without one.
func InjectLiveReload(page []byte) []byte {
	at := bytes.LastIndex(page, []byte("</body>"))
	if at < 0 {
		at = len(page)
	}
	out := make([]byte, 0, len(page)+len(LiveReloadScript))
	out = append(out, page[:at]...)
	out = append(out, LiveReloadScript...)
	return append(out, page[at:]...)
}
